package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/model"
)

func sampleRegistration(serviceID string) *model.ServiceRegistration {
	return &model.ServiceRegistration{
		ServiceID:           serviceID,
		DisplayName:         "Orders API",
		BaseURL:             "http://orders.internal:8080",
		RoutePrefix:         "/orders",
		DefaultVisibility:   model.VisibilityPublic,
		DefaultAuthRequired: true,
	}
}

func TestRegistryStore_CreateGetDelete(t *testing.T) {
	db := newTestDB(t)
	s := NewRegistryStore(db)
	ctx := context.Background()

	created, err := s.Create(ctx, sampleRegistration("orders"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	got, err := s.Get(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "http://orders.internal:8080", got.BaseURL)

	require.NoError(t, s.Delete(ctx, "orders"))
	_, err = s.Get(ctx, "orders")
	var ge *gatewayerr.Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, gatewayerr.KindNotFound, ge.Kind)
}

// TestRegistryStore_Update_VersionConflict exercises Testable Property 1,
// Scenario S6: a write against a stale expectedVersion must fail with
// ErrVersionConflict and must not apply, regardless of which writer
// raced in first.
func TestRegistryStore_Update_VersionConflict(t *testing.T) {
	db := newTestDB(t)
	s := NewRegistryStore(db)
	ctx := context.Background()

	created, err := s.Create(ctx, sampleRegistration("billing"))
	require.NoError(t, err)

	firstWriter := *created
	firstWriter.DisplayName = "Billing API v2"
	updated, err := s.Update(ctx, &firstWriter, created.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	secondWriter := *created
	secondWriter.DisplayName = "Billing API (stale writer)"
	_, err = s.Update(ctx, &secondWriter, created.Version)
	require.Error(t, err)
	var ge *gatewayerr.Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, gatewayerr.KindConflict, ge.Kind)
	assert.True(t, errors.Is(err, gatewayerr.ErrVersionConflict))

	got, err := s.Get(ctx, "billing")
	require.NoError(t, err)
	assert.Equal(t, "Billing API v2", got.DisplayName, "the stale write must not have applied")
}

func TestRegistryStore_Update_UnknownServiceReturnsNotFound(t *testing.T) {
	db := newTestDB(t)
	s := NewRegistryStore(db)
	ctx := context.Background()

	reg := sampleRegistration("ghost")
	_, err := s.Update(ctx, reg, 1)
	require.Error(t, err)
	var ge *gatewayerr.Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, gatewayerr.KindNotFound, ge.Kind)
}

func TestRegistryStore_ListAndCount(t *testing.T) {
	db := newTestDB(t)
	s := NewRegistryStore(db)
	ctx := context.Background()

	for _, id := range []string{"a-svc", "b-svc", "c-svc"} {
		_, err := s.Create(ctx, sampleRegistration(id))
		require.NoError(t, err)
	}

	regs, count, err := s.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Len(t, regs, 2)
	assert.Equal(t, "a-svc", regs[0].ServiceID, "List orders by service_id")

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
