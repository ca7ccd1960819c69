// Package model holds the entities shared by every trust-plane
// component: service registrations, signing keys, API keys, translation
// config versions, revocations, lockouts, and the ephemeral per-request
// Principal.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BaseModel carries the id/timestamp columns every persisted entity has.
type BaseModel struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StringSet is a JSON-encoded string set, storable as a Postgres jsonb
// column via database/sql/driver.
type StringSet map[string]struct{}

// NewStringSet builds a StringSet from a slice, de-duplicating.
func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Has reports whether item is a member.
func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Slice returns the members in no particular order.
func (s StringSet) Slice() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}

// Union returns a new set containing the members of s and other.
func (s StringSet) Union(other StringSet) StringSet {
	out := make(StringSet, len(s)+len(other))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Intersects reports whether s and other share at least one member.
func (s StringSet) Intersects(other StringSet) bool {
	small, big := s, other
	if len(other) < len(s) {
		small, big = other, s
	}
	for k := range small {
		if _, ok := big[k]; ok {
			return true
		}
	}
	return false
}

func (s *StringSet) Scan(value interface{}) error {
	if value == nil {
		*s = StringSet{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		*s = StringSet{}
		return nil
	}
	var items []string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &items); err != nil {
			return err
		}
	}
	*s = NewStringSet(items...)
	return nil
}

func (s StringSet) Value() (driver.Value, error) {
	return json.Marshal(s.Slice())
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewStringSet(items...)
	return nil
}

// KeyStatus is a signing key's position in its lifecycle.
type KeyStatus string

const (
	KeyPending    KeyStatus = "PENDING"
	KeyActive     KeyStatus = "ACTIVE"
	KeyDeprecated KeyStatus = "DEPRECATED"
	KeyRetired    KeyStatus = "RETIRED"
)

// SigningKey is an asymmetric key used to sign and verify issued
// tokens.
type SigningKey struct {
	BaseModel
	KeyID         string     `db:"key_id" json:"keyId"`
	Status        KeyStatus  `db:"status" json:"status"`
	Algorithm     string     `db:"algorithm" json:"algorithm"`
	PublicKeyPEM  string     `db:"public_key_pem" json:"publicKeyPem"`
	PrivateHandle string     `db:"private_handle" json:"-"`
	ActivatedAt   *time.Time `db:"activated_at" json:"activatedAt,omitempty"`
	DeprecatedAt  *time.Time `db:"deprecated_at" json:"deprecatedAt,omitempty"`
	RetiredAt     *time.Time `db:"retired_at" json:"retiredAt,omitempty"`
}

// CanSign reports whether tokens may be minted with this key.
func (k SigningKey) CanSign() bool { return k.Status == KeyActive }

// CanVerify reports whether this key still belongs in the verification set.
func (k SigningKey) CanVerify() bool {
	return k.Status == KeyActive || k.Status == KeyDeprecated
}

// ApiKey is a long-lived credential for programmatic callers. The
// plaintext value is never persisted; KeyHash is its one-way digest and
// EncryptedBody is an opaque, server-encrypted envelope holding name,
// description, permissions and expiry.
type ApiKey struct {
	BaseModel
	KeyHash       string    `db:"key_hash" json:"-"`
	EncryptedBody []byte    `db:"encrypted_body" json:"-"`
	Name          string    `db:"-" json:"name"`
	Description   string    `db:"-" json:"description"`
	Permissions   StringSet `db:"-" json:"permissions"`
	ExpiresAt     *time.Time `db:"-" json:"expiresAt,omitempty"`
	Revoked       bool      `db:"-" json:"revoked"`
}

// ApiKeyBody is the plaintext structure sealed inside EncryptedBody.
type ApiKeyBody struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Permissions StringSet  `json:"permissions"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Revoked     bool       `json:"revoked"`
}

// Visibility controls whether an endpoint requires network-allowlist checks.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// EndpointType distinguishes plain HTTP endpoints from WebSocket upgrades.
type EndpointType string

const (
	EndpointHTTP      EndpointType = "HTTP"
	EndpointWebSocket EndpointType = "WEBSOCKET"
)

// RateLimitConfig is a token-bucket configuration.
type RateLimitConfig struct {
	RequestsPerWindow int `json:"requestsPerWindow"`
	WindowSeconds     int `json:"windowSeconds"`
	BurstCapacity     int `json:"burstCapacity"`
}

// Endpoint is one routable path on a service.
type Endpoint struct {
	Path         string           `json:"path"`
	Methods      []string         `json:"methods"`
	Visibility   Visibility       `json:"visibility"`
	PathRewrite  string           `json:"pathRewrite,omitempty"`
	AuthRequired *bool            `json:"authRequired,omitempty"`
	Type         EndpointType     `json:"type"`
	RateLimit    *RateLimitConfig `json:"rateLimit,omitempty"`
	// Operation names the PermissionPolicy entry that governs this
	// endpoint (spec's "gateway-defined string", e.g.
	// "service.config.update"). Empty means no policy entry applies, so
	// any authenticated caller passes the authorization check.
	Operation string `json:"operation,omitempty"`
}

// VisibilityRule is a fallback pattern+method+visibility rule evaluated
// when no endpoint matches a request.
type VisibilityRule struct {
	Pattern    string     `json:"pattern"`
	Methods    []string   `json:"methods"`
	Visibility Visibility `json:"visibility"`
}

// AccessConfig lists the network allowlists a PRIVATE endpoint is gated by.
type AccessConfig struct {
	AllowedIPs        []string `json:"allowedIps,omitempty"`
	AllowedDomains    []string `json:"allowedDomains,omitempty"`
	AllowedSubdomains []string `json:"allowedSubdomains,omitempty"`
}

// CorsConfig is stored with the registration. Only AllowedOrigins is
// read, by the gateway's WebSocket origin check; the plain HTTP proxy
// path sets no CORS headers.
type CorsConfig struct {
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
	AllowedMethods []string `json:"allowedMethods,omitempty"`
	AllowedHeaders []string `json:"allowedHeaders,omitempty"`
}

// PermissionPolicy maps a gateway operation name to the permissions
// that satisfy it (logical OR).
type PermissionPolicy map[string]PermissionRule

type PermissionRule struct {
	AnyOfPermissions StringSet `json:"anyOfPermissions"`
}

// ServiceRegistration is the routing and policy record for one backend.
// Composite fields (rules, endpoints, policies) are persisted as jsonb by
// the store adapter, not via direct sqlx struct scanning; db tags on them
// are informational only.
type ServiceRegistration struct {
	BaseModel
	ServiceID           string           `db:"service_id" json:"serviceId"`
	DisplayName         string           `db:"display_name" json:"displayName"`
	BaseURL             string           `db:"base_url" json:"baseUrl"`
	RoutePrefix         string           `db:"route_prefix" json:"routePrefix,omitempty"`
	DefaultVisibility   Visibility       `db:"default_visibility" json:"defaultVisibility"`
	DefaultAuthRequired bool             `db:"default_auth_required" json:"defaultAuthRequired"`
	VisibilityRules     []VisibilityRule `db:"-" json:"visibilityRules"`
	Endpoints           []Endpoint       `db:"-" json:"endpoints"`
	AccessConfig        *AccessConfig    `db:"-" json:"accessConfig,omitempty"`
	CorsConfig          *CorsConfig      `db:"-" json:"corsConfig,omitempty"`
	PermissionPolicy    PermissionPolicy `db:"-" json:"permissionPolicy,omitempty"`
	RateLimitConfig     *RateLimitConfig `db:"-" json:"rateLimitConfig,omitempty"`
	Version             int64           `db:"version" json:"version"`
}

// TranslationConfigVersion is one immutable snapshot of claim-mapping rules.
type TranslationConfigVersion struct {
	BaseModel
	Version      int64  `db:"version" json:"version"`
	ConfigSchema []byte `db:"config_schema" json:"configSchema"`
	CreatedBy    string `db:"created_by" json:"createdBy"`
	Comment      string `db:"comment" json:"comment"`
}

// Role is a named bundle of permissions expanded at token-validation time.
type Role struct {
	ID          string    `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"displayName,omitempty"`
	Description string    `db:"description" json:"description,omitempty"`
	Permissions StringSet `db:"permissions" json:"permissions"`
}

// Group behaves identically to Role but is expanded from a token's
// "groups" claim rather than its "roles" claim.
type Group = Role

// TokenRevocation is a single-token revocation entry.
type TokenRevocation struct {
	JTI       string    `db:"jti" json:"jti"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	Reason    string    `db:"reason" json:"reason,omitempty"`
}

// UserRevocation blanket-revokes every token issued to a subject before RevokedAt.
type UserRevocation struct {
	UserID    string    `db:"user_id" json:"userId"`
	RevokedAt time.Time `db:"revoked_at" json:"revokedAt"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
}

// LockoutEntry gates a key (ip/user/apikey scope) from further attempts.
type LockoutEntry struct {
	Key            string    `db:"key" json:"key"`
	LockedAt       time.Time `db:"locked_at" json:"lockedAt"`
	ExpiresAt      time.Time `db:"expires_at" json:"expiresAt"`
	Reason         string    `db:"reason" json:"reason"`
	FailedAttempts int       `db:"failed_attempts" json:"failedAttempts"`
	LockoutCount   int       `db:"lockout_count" json:"lockoutCount"`
}

// PrincipalSource identifies how a Principal was authenticated.
type PrincipalSource string

const (
	SourceToken  PrincipalSource = "TOKEN"
	SourceAPIKey PrincipalSource = "API_KEY"
)

// Principal is the ephemeral, per-request identity produced by the
// authentication pipeline.
type Principal struct {
	Subject              string
	Issuer               string
	EffectivePermissions StringSet
	Roles                []string
	Groups               []string
	TokenID              string
	ExpiresAt            *time.Time
	Source               PrincipalSource
}
