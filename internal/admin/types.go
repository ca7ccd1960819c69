// Package admin implements the C11 admin API: service registration
// CRUD, API key and signing key management, translation config
// versioning, and revocation/lockout operations. Handlers follow the
// teacher's goctl-scaffolded handler/logic split (handler decodes and
// writes the HTTP response; logic holds the operation), generalized
// from one handler-per-RPC-method to one handler-per-admin-operation.
package admin

import "time"

type ServiceIDPath struct {
	ServiceID string `path:"serviceId"`
}

type ApiKeyIDPath struct {
	ID string `path:"id"`
}

type SigningKeyIDPath struct {
	KeyID string `path:"keyId"`
}

type TranslationVersionPath struct {
	Version int64 `path:"version"`
}

type RollbackTranslationConfigRequest struct {
	Version      int64  `path:"version"`
	RolledBackBy string `json:"rolledBackBy" validate:"required"`
}

type ListServicesQuery struct {
	Limit  int `form:"limit,default=50"`
	Offset int `form:"offset,default=0"`
}

type CreateServiceRequest struct {
	ServiceID           string                    `json:"serviceId" validate:"required"`
	DisplayName         string                    `json:"displayName" validate:"required"`
	BaseURL             string                    `json:"baseUrl" validate:"required,url"`
	RoutePrefix         string                    `json:"routePrefix" validate:"required"`
	DefaultVisibility   string                    `json:"defaultVisibility" validate:"required,oneof=PUBLIC PRIVATE"`
	DefaultAuthRequired bool                      `json:"defaultAuthRequired"`
	VisibilityRules     []VisibilityRuleRequest   `json:"visibilityRules,omitempty"`
	Endpoints           []EndpointRequest         `json:"endpoints,omitempty"`
	AccessConfig        *AccessConfigRequest      `json:"accessConfig,omitempty"`
	CorsConfig          *CorsConfigRequest        `json:"corsConfig,omitempty"`
	PermissionPolicy    map[string]PermissionRule `json:"permissionPolicy,omitempty"`
	RateLimitConfig     *RateLimitConfigRequest   `json:"rateLimitConfig,omitempty"`
}

type UpdateServiceRequest struct {
	ServiceID           string                    `path:"serviceId"`
	DisplayName         string                    `json:"displayName" validate:"required"`
	BaseURL             string                    `json:"baseUrl" validate:"required,url"`
	RoutePrefix         string                    `json:"routePrefix" validate:"required"`
	DefaultVisibility   string                    `json:"defaultVisibility" validate:"required,oneof=PUBLIC PRIVATE"`
	DefaultAuthRequired bool                      `json:"defaultAuthRequired"`
	VisibilityRules     []VisibilityRuleRequest   `json:"visibilityRules,omitempty"`
	Endpoints           []EndpointRequest         `json:"endpoints,omitempty"`
	AccessConfig        *AccessConfigRequest      `json:"accessConfig,omitempty"`
	CorsConfig          *CorsConfigRequest        `json:"corsConfig,omitempty"`
	PermissionPolicy    map[string]PermissionRule `json:"permissionPolicy,omitempty"`
	RateLimitConfig     *RateLimitConfigRequest   `json:"rateLimitConfig,omitempty"`
	ExpectedVersion     int64                     `json:"expectedVersion" validate:"required"`
}

type VisibilityRuleRequest struct {
	Pattern    string   `json:"pattern" validate:"required"`
	Methods    []string `json:"methods" validate:"required,min=1"`
	Visibility string   `json:"visibility" validate:"required,oneof=PUBLIC PRIVATE"`
}

type EndpointRequest struct {
	Path         string                  `json:"path" validate:"required"`
	Methods      []string                `json:"methods" validate:"required,min=1"`
	Visibility   string                  `json:"visibility" validate:"required,oneof=PUBLIC PRIVATE"`
	PathRewrite  string                  `json:"pathRewrite,omitempty"`
	AuthRequired *bool                   `json:"authRequired,omitempty"`
	Type         string                  `json:"type" validate:"required,oneof=HTTP WEBSOCKET"`
	RateLimit    *RateLimitConfigRequest `json:"rateLimit,omitempty"`
	Operation    string                  `json:"operation,omitempty"`
}

type AccessConfigRequest struct {
	AllowedIPs        []string `json:"allowedIps,omitempty"`
	AllowedDomains    []string `json:"allowedDomains,omitempty"`
	AllowedSubdomains []string `json:"allowedSubdomains,omitempty"`
}

type CorsConfigRequest struct {
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
	AllowedMethods []string `json:"allowedMethods,omitempty"`
	AllowedHeaders []string `json:"allowedHeaders,omitempty"`
}

type PermissionRule struct {
	AnyOfPermissions []string `json:"anyOfPermissions" validate:"required,min=1"`
}

type RateLimitConfigRequest struct {
	RequestsPerWindow int `json:"requestsPerWindow" validate:"required,min=1"`
	WindowSeconds     int `json:"windowSeconds" validate:"required,min=1"`
	BurstCapacity     int `json:"burstCapacity" validate:"required,min=1"`
}

type ServiceResponse struct {
	ServiceID           string    `json:"serviceId"`
	DisplayName         string    `json:"displayName"`
	BaseURL             string    `json:"baseUrl"`
	RoutePrefix         string    `json:"routePrefix"`
	DefaultVisibility   string    `json:"defaultVisibility"`
	DefaultAuthRequired bool      `json:"defaultAuthRequired"`
	Version             int64     `json:"version"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type ListServicesResponse struct {
	Services []ServiceResponse `json:"services"`
	Total    int               `json:"total"`
}

type CreateApiKeyRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions" validate:"required,min=1"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

type CreateApiKeyResponse struct {
	ID        string `json:"id"`
	Plaintext string `json:"plaintext"` // shown exactly once
}

type ApiKeySummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Revoked     bool       `json:"revoked"`
}

type CreateSigningKeyResponse struct {
	KeyID        string `json:"keyId"`
	Status       string `json:"status"`
	Algorithm    string `json:"algorithm"`
	PublicKeyPEM string `json:"publicKeyPem"`
}

type SigningKeyHealth struct {
	Enabled              bool   `json:"enabled"`
	Status               string `json:"status"`
	ActiveKeyID          string `json:"activeKeyId,omitempty"`
	VerificationKeyCount int    `json:"verificationKeyCount"`
}

type UploadTranslationConfigRequest struct {
	Schema    map[string]interface{} `json:"schema" validate:"required"`
	CreatedBy string                  `json:"createdBy" validate:"required"`
	Comment   string                  `json:"comment"`
}

type TranslationVersionResponse struct {
	Version   int64     `json:"version"`
	CreatedBy string    `json:"createdBy"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type TestTranslationRequest struct {
	Issuer  string                 `json:"issuer"`
	Subject string                 `json:"subject"`
	Claims  map[string]interface{} `json:"claims" validate:"required"`
	Config  map[string]interface{} `json:"config,omitempty"`
}

type RevokeTokenRequest struct {
	Token  string `json:"token,omitempty"`
	JTI    string `json:"jti,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type RevokeUserRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type LockoutKeyPath struct {
	Key string `path:"key"`
}

type ForceLockoutRequest struct {
	Key    string `path:"key"`
	Reason string `json:"reason"`
}

type LockoutStatusResponse struct {
	Key    string `json:"key"`
	Locked bool   `json:"locked"`
}
