package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/registry"
	"github.com/suleymanmyradov/trustgate/internal/store"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in -short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("trustgate_test"),
		postgres.WithUsername("trustgate"),
		postgres.WithPassword("trustgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := store.Migrate(db.DB); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

// newServicesFixture builds the minimal ServiceContext ServicesLogic
// actually touches (RegistryStore, Registry), leaving every other
// field nil since this logic never reaches them.
func newServicesFixture(t *testing.T) *ServicesLogic {
	t.Helper()
	db := newTestDB(t)
	svcCtx := &svc.ServiceContext{
		RegistryStore: store.NewRegistryStore(db),
		Registry:      registry.NewRegistry(),
	}
	return NewServicesLogic(context.Background(), svcCtx)
}

func sampleCreateRequest(serviceID string) *CreateServiceRequest {
	return &CreateServiceRequest{
		ServiceID:           serviceID,
		DisplayName:         "Orders API",
		BaseURL:             "http://orders.internal:8080",
		RoutePrefix:         "/orders",
		DefaultVisibility:   "PUBLIC",
		DefaultAuthRequired: true,
	}
}

func TestServicesLogic_CreateAlsoPopulatesInMemoryRegistry(t *testing.T) {
	l := newServicesFixture(t)

	created, err := l.CreateService(sampleCreateRequest("orders"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	// The in-process router must see the new service without a reload.
	_, ok := l.svcCtx.Registry.Get("orders")
	assert.True(t, ok, "CreateService must Put into the live Registry, not just persist")
}

func TestServicesLogic_CreateRejectsInvalidRequest(t *testing.T) {
	l := newServicesFixture(t)

	_, err := l.CreateService(&CreateServiceRequest{ServiceID: "bad", DisplayName: "x", BaseURL: "not-a-url", RoutePrefix: "/x", DefaultVisibility: "PUBLIC"})
	require.Error(t, err)
	var ge *gatewayerr.Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, gatewayerr.KindInput, ge.Kind)
}

func TestServicesLogic_UpdateEnforcesOptimisticConcurrency(t *testing.T) {
	l := newServicesFixture(t)

	created, err := l.CreateService(sampleCreateRequest("billing"))
	require.NoError(t, err)

	updateReq := &UpdateServiceRequest{
		DisplayName: "Billing API v2", BaseURL: created.BaseURL, RoutePrefix: created.RoutePrefix,
		DefaultVisibility: created.DefaultVisibility, DefaultAuthRequired: created.DefaultAuthRequired,
		ExpectedVersion: created.Version,
	}
	updated, err := l.UpdateService("billing", updateReq)
	require.NoError(t, err)
	assert.Equal(t, "Billing API v2", updated.DisplayName)

	// Re-using the now-stale version must fail, not silently overwrite.
	staleReq := &UpdateServiceRequest{
		DisplayName: "Billing API (stale)", BaseURL: created.BaseURL, RoutePrefix: created.RoutePrefix,
		DefaultVisibility: created.DefaultVisibility, DefaultAuthRequired: created.DefaultAuthRequired,
		ExpectedVersion: created.Version,
	}
	_, err = l.UpdateService("billing", staleReq)
	require.Error(t, err)
	var ge *gatewayerr.Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, gatewayerr.KindConflict, ge.Kind)
}

func TestServicesLogic_DeleteRemovesFromRegistryAndStore(t *testing.T) {
	l := newServicesFixture(t)

	_, err := l.CreateService(sampleCreateRequest("temp-svc"))
	require.NoError(t, err)

	require.NoError(t, l.DeleteService("temp-svc"))

	_, ok := l.svcCtx.Registry.Get("temp-svc")
	assert.False(t, ok)

	_, err = l.GetService("temp-svc")
	require.Error(t, err)
	var ge *gatewayerr.Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, gatewayerr.KindNotFound, ge.Kind)
}

func TestServicesLogic_ListServicesPaginates(t *testing.T) {
	l := newServicesFixture(t)

	for _, id := range []string{"svc-a", "svc-b", "svc-c"} {
		_, err := l.CreateService(sampleCreateRequest(id))
		require.NoError(t, err)
	}

	resp, err := l.ListServices(2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Services, 2)
}
