// Package translate implements the claim-translation config and cache
// (C3, C6): a pure translate(issuer, subject, claims) function
// evaluated against an activatable, versioned config, with a two-tier
// (L1 in-process LRU, L2 Redis) result cache. The two-tier shape is
// adapted directly from ipiton-alert-history-service's
// TwoTierTemplateCache (L1 hashicorp/golang-lru -> L2 redis ->
// compute-and-populate-both), generalized from caching a fetched
// entity to caching a computed translation result.
package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/trustgate/internal/config"
	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/model"
	"github.com/suleymanmyradov/trustgate/internal/store"
)

// Result is the output of translating a caller's claims: the roles
// and permissions a PermissionPolicy / authorization evaluator consumes.
type Result struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// ConfigSchema is the decoded shape of TranslationConfigVersion.ConfigSchema:
// an ordered list of claim-to-role/permission mapping rules.
type ConfigSchema struct {
	Rules []MappingRule `json:"rules"`
}

// MappingRule maps one claim value to roles/permissions granted when
// claims[ClaimName] == ClaimValue (or ClaimValue is "*").
type MappingRule struct {
	ClaimName   string   `json:"claimName"`
	ClaimValue  string   `json:"claimValue"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Translator evaluates the active translation config and caches results.
type Translator struct {
	store *store.TranslationStore
	l1    *lru.Cache[string, Result]
	l2    *redis.Client
	ttl   time.Duration
}

func NewTranslator(ts *store.TranslationStore, rdb *redis.Client, cfg config.TranslationConfig) (*Translator, error) {
	l1, err := lru.New[string, Result](cfg.CacheMaxEntries)
	if err != nil {
		return nil, fmt.Errorf("create translation L1 cache: %w", err)
	}
	return &Translator{store: ts, l1: l1, l2: rdb, ttl: cfg.CacheTTL}, nil
}

// Translate resolves (issuer, subject, claims) against the active
// config, consulting the L1 then L2 cache before falling back to a
// pure evaluation against the loaded schema.
func (t *Translator) Translate(ctx context.Context, issuer, subject string, claims map[string]interface{}) (Result, error) {
	activeVersion, err := t.store.ActiveVersion(ctx)
	if err != nil {
		return Result{}, err
	}
	if activeVersion == 0 {
		return Result{}, nil
	}

	key := fingerprint(activeVersion, issuer, subject, claims)

	if result, ok := t.l1.Get(key); ok {
		return result, nil
	}

	if t.l2 != nil {
		if cached, err := t.l2.Get(ctx, redisKey(key)).Result(); err == nil {
			var result Result
			if jsonErr := json.Unmarshal([]byte(cached), &result); jsonErr == nil {
				t.l1.Add(key, result)
				return result, nil
			}
		} else if err != redis.Nil {
			logx.Errorf("translation L2 cache read failed, falling back to compute: %v", err)
		}
	}

	version, err := t.store.GetVersion(ctx, activeVersion)
	if err != nil {
		return Result{}, err
	}
	var schema ConfigSchema
	if err := json.Unmarshal(version.ConfigSchema, &schema); err != nil {
		return Result{}, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("unmarshal translation config: %w", err))
	}

	result := evaluate(schema, claims)
	t.l1.Add(key, result)
	if t.l2 != nil {
		if payload, err := json.Marshal(result); err == nil {
			if err := t.l2.Set(ctx, redisKey(key), payload, t.ttl).Err(); err != nil {
				logx.Errorf("translation L2 cache write failed: %v", err)
			}
		}
	}
	return result, nil
}

// Test previews what candidateSchema would produce for claims,
// without touching the active config or either cache tier (spec §4.4
// `test(claims, optionalConfig)`).
func (t *Translator) Test(ctx context.Context, candidateSchema *ConfigSchema, issuer, subject string, claims map[string]interface{}) (Result, error) {
	if candidateSchema != nil {
		return evaluate(*candidateSchema, claims), nil
	}
	return t.Translate(ctx, issuer, subject, claims)
}

// InvalidateAll purges the L1 cache in full; called on every
// translation-config activation per spec §4.4. L2 entries are keyed
// by activeConfigId, so they age out naturally once no lookup can
// produce their key again; we don't attempt a pattern-scan delete
// against Redis for the same reason ipiton's TwoTierTemplateCache
// doesn't (no cheap way to clear by prefix without SCAN, which is
// unnecessary here since the old keys become unreachable).
func (t *Translator) InvalidateAll() {
	t.l1.Purge()
}

func evaluate(schema ConfigSchema, claims map[string]interface{}) Result {
	roles := model.NewStringSet()
	permissions := model.NewStringSet()

	for _, rule := range schema.Rules {
		value, ok := claims[rule.ClaimName]
		if !ok {
			continue
		}
		strValue := fmt.Sprintf("%v", value)
		if rule.ClaimValue != "*" && rule.ClaimValue != strValue {
			continue
		}
		for _, r := range rule.Roles {
			roles[r] = struct{}{}
		}
		for _, p := range rule.Permissions {
			permissions[p] = struct{}{}
		}
	}

	return Result{Roles: roles.Slice(), Permissions: permissions.Slice()}
}

// fingerprint builds the cache key from (activeConfigId, issuer,
// subject, sortedClaims), per spec §4.4.
func fingerprint(version int64, issuer, subject string, claims map[string]interface{}) string {
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "v=%d|iss=%s|sub=%s|", version, issuer, subject)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v|", k, claims[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func redisKey(fingerprint string) string {
	return "trustgate:translate:" + fingerprint
}
