// Code adapted from growth-server's shared/config package. Safe to edit.
package config

import (
	"time"

	"github.com/zeromicro/go-zero/rest"
)

// Config is the gateway server's configuration, loaded by conf.MustLoad
// from a YAML file the same way every go-zero service in the teacher
// fleet loads its RestConf.
type Config struct {
	rest.RestConf

	// Ingress is the data-plane socket the C1-C10 dispatch pipeline
	// listens on, separate from RestConf's admin (C11) socket so
	// operator and tenant traffic never share a route table or a port.
	Ingress IngressConfig

	Database DatabaseConfig
	Redis    RedisConfig

	SigningKeys  SigningKeyConfig
	Token        TokenPolicyConfig
	Translation  TranslationConfig
	Lockout      LockoutConfig
	RateLimit    RateLimitDefaults
	Revocation   RevocationConfig
	Secrets      SecretsConfig
}

// SecretsConfig holds key material that must come from the
// environment or a secrets manager, never a checked-in default.
type SecretsConfig struct {
	// CredentialMasterKey seeds the HKDF derivation for the API-key
	// body cipher (internal/authn.NewCredentialCipher). Required.
	CredentialMasterKey string `json:",optional"`
}

// IngressConfig is the data-plane listener address.
type IngressConfig struct {
	Host string `json:",default=0.0.0.0"`
	Port int    `json:",default=8888"`
}

type DatabaseConfig struct {
	Host     string `json:",default=localhost"`
	Port     int    `json:",default=5432"`
	User     string `json:",default=trustgate"`
	Password string `json:",optional"`
	DBName   string `json:",default=trustgate"`
	SSLMode  string `json:",default=disable"`
}

type RedisConfig struct {
	Host     string `json:",default=localhost"`
	Port     int    `json:",default=6379"`
	Password string `json:",optional"`
	DB       int    `json:",default=0"`
}

// SigningKeyConfig drives the key lifecycle manager (C4).
type SigningKeyConfig struct {
	// SigningMethod accepts "symmetric" or "asymmetric", mirroring
	// gourdiantoken's SigningMethod enum, but nothing reads it: the key
	// manager generates asymmetric keys only, chosen by Algorithm
	// (RS256/RS384/RS512, ES256, EdDSA).
	SigningMethod string `json:",default=asymmetric,options=symmetric|asymmetric"`
	Algorithm     string `json:",default=RS256"`
	RotationEvery time.Duration `json:",default=720h"`
	// DeprecationGrace is how long a DEPRECATED key stays verify-capable
	// after it stops being ACTIVE (should be >= MaxTokenLifetime).
	DeprecationGrace time.Duration `json:",default=48h"`
}

// TokenPolicyConfig bounds issued-token lifetime and clock tolerance.
type TokenPolicyConfig struct {
	MaxLifetime        time.Duration `json:",default=24h"`
	ClockSkewTolerance time.Duration `json:",default=30s"`
}

// TranslationConfig tunes the translation cache (C3/C6).
type TranslationConfig struct {
	CacheMaxEntries int           `json:",default=10000"`
	CacheTTL        time.Duration `json:",default=5m"`
}

// LockoutConfig tunes the lockout gate (C7).
type LockoutConfig struct {
	FailureThreshold int           `json:",default=5"`
	WindowDuration   time.Duration `json:",default=60s"`
	LockoutDuration  time.Duration `json:",default=15m"`
	SweepInterval    time.Duration `json:",default=1m"`
}

// RevocationConfig tunes the bloom-filter fast path (C7).
type RevocationConfig struct {
	TargetFalsePositiveRate float64       `json:",default=0.01"`
	RebuildInterval         time.Duration `json:",default=5m"`
	ExpectedEntries         int           `json:",default=100000"`
}

// RateLimitDefaults is the service-level default bucket (C10); services
// and endpoints may override it via ServiceRegistration.RateLimitConfig
// / Endpoint.RateLimit.
type RateLimitDefaults struct {
	RequestsPerWindow int `json:",default=600"`
	WindowSeconds     int `json:",default=60"`
	BurstCapacity     int `json:",default=50"`
}
