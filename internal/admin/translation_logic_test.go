package admin

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/trustgate/internal/config"
	"github.com/suleymanmyradov/trustgate/internal/store"
	"github.com/suleymanmyradov/trustgate/internal/svc"
	"github.com/suleymanmyradov/trustgate/internal/translate"
)

// newTranslationFixture builds the minimal ServiceContext TranslationLogic
// touches: TranslationStore plus a real Translator wired against a
// miniredis stand-in, so Activate's cache-invalidation call has
// somewhere to land.
func newTranslationFixture(t *testing.T) *TranslationLogic {
	t.Helper()
	db := newTestDB(t)
	ts := store.NewTranslationStore(db)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	tr, err := translate.NewTranslator(ts, rdb, config.TranslationConfig{CacheMaxEntries: 1000, CacheTTL: time.Minute})
	require.NoError(t, err)

	svcCtx := &svc.ServiceContext{TranslationStore: ts, Translator: tr}
	return NewTranslationLogic(context.Background(), svcCtx)
}

// TestTranslationLogic_RollbackClonesSchemaIntoNewVersion locks in
// rollback's actual semantics: cloning an older version's schema under
// a brand-new version number rather than reactivating the old one in
// place, so the version history only ever grows forward.
func TestTranslationLogic_RollbackClonesSchemaIntoNewVersion(t *testing.T) {
	l := newTranslationFixture(t)

	v1, err := l.UploadConfig(&UploadTranslationConfigRequest{
		Schema:    map[string]interface{}{"rules": []interface{}{}},
		CreatedBy: "admin",
		Comment:   "v1",
	})
	require.NoError(t, err)
	require.NoError(t, l.Activate(v1.Version))

	v2, err := l.UploadConfig(&UploadTranslationConfigRequest{
		Schema:    map[string]interface{}{"rules": []interface{}{}},
		CreatedBy: "admin",
		Comment:   "v2",
	})
	require.NoError(t, err)
	require.NoError(t, l.Activate(v2.Version))

	rolledBack, err := l.Rollback(v1.Version, "oncall")
	require.NoError(t, err)

	assert.Greater(t, rolledBack.Version, v2.Version, "rollback must allocate a new version number, not reuse v1's")
	assert.Equal(t, "oncall", rolledBack.CreatedBy)

	active, err := l.svcCtx.TranslationStore.ActiveVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rolledBack.Version, active, "the cloned version, not v1, must become active")

	versions, err := l.ListVersions()
	require.NoError(t, err)
	assert.Len(t, versions, 3, "v1 and v2 remain in history alongside the new rollback clone")
}

func TestTranslationLogic_RollbackRejectsUnknownVersion(t *testing.T) {
	l := newTranslationFixture(t)

	_, err := l.Rollback(999, "oncall")
	require.Error(t, err)
}
