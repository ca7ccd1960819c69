// Package svc wires every trust-plane component into a single
// ServiceContext, the way every go-zero service in the teacher fleet
// threads its dependencies through internal/svc.ServiceContext into
// its handlers.
package svc

import (
	"context"
	"fmt"

	"github.com/suleymanmyradov/trustgate/internal/authn"
	"github.com/suleymanmyradov/trustgate/internal/authz"
	"github.com/suleymanmyradov/trustgate/internal/config"
	"github.com/suleymanmyradov/trustgate/internal/keys"
	"github.com/suleymanmyradov/trustgate/internal/model"
	"github.com/suleymanmyradov/trustgate/internal/ratelimit"
	"github.com/suleymanmyradov/trustgate/internal/registry"
	"github.com/suleymanmyradov/trustgate/internal/revocation"
	"github.com/suleymanmyradov/trustgate/internal/store"
	"github.com/suleymanmyradov/trustgate/internal/translate"
)

type ServiceContext struct {
	Config config.Config

	Registry         *registry.Registry
	RegistryStore    *store.RegistryStore
	Credentials      *store.CredentialStore
	Roles            *store.RoleStore
	TranslationStore *store.TranslationStore
	RevocationStore  *store.RevocationStore

	Keys        *keys.Manager
	Cipher      *authn.CredentialCipher
	Authn       *authn.Authenticator
	Authz       *authz.Evaluator
	Translator  *translate.Translator
	Revocation  *revocation.Gate
	Lockout     *revocation.LockoutTracker
	RateLimiter *ratelimit.Limiter
}

// NewServiceContext builds every component and loads their initial
// state. Callers (cmd/gateway) are responsible for starting the
// periodic background loops (revocation rebuild/sweep, rate limiter
// cleanup) after construction.
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	pg, err := store.NewPostgres(c.Database)
	if err != nil {
		return nil, err
	}
	rdb, err := store.NewRedis(c.Redis)
	if err != nil {
		return nil, err
	}

	registryStore := store.NewRegistryStore(pg)
	credStore := store.NewCredentialStore(pg)
	roleStore := store.NewRoleStore(pg)
	translationStore := store.NewTranslationStore(pg)
	revocationStore := store.NewRevocationStore(pg)

	keyManager := keys.NewManager(credStore, c.SigningKeys)
	if err := keyManager.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("load signing keys: %w", err)
	}
	if err := keyManager.Bootstrap(context.Background()); err != nil {
		return nil, fmt.Errorf("bootstrap signing keys: %w", err)
	}

	gate := revocation.NewGate(revocationStore, rdb, c.Revocation, c.Lockout)
	if err := gate.Rebuild(context.Background()); err != nil {
		return nil, fmt.Errorf("initial bloom filter rebuild: %w", err)
	}
	lockout := revocation.NewLockoutTracker(rdb, c.Lockout)

	cipher, err := authn.NewCredentialCipher(c.Secrets.CredentialMasterKey)
	if err != nil {
		return nil, fmt.Errorf("init credential cipher: %w", err)
	}
	authenticator := authn.NewAuthenticator(keyManager, credStore, gate, lockout, cipher, c.Token)

	evaluator := authz.NewEvaluator()
	if err := evaluator.Refresh(context.Background(), roleStore); err != nil {
		return nil, fmt.Errorf("load roles/groups: %w", err)
	}

	translator, err := translate.NewTranslator(translationStore, rdb, c.Translation)
	if err != nil {
		return nil, fmt.Errorf("init translator: %w", err)
	}

	reg := registry.NewRegistry()
	services, err := registryStore.ListAll(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load service registrations: %w", err)
	}
	reg.Replace(services)

	rateLimiter := ratelimit.New(model.RateLimitConfig{
		RequestsPerWindow: c.RateLimit.RequestsPerWindow,
		WindowSeconds:     c.RateLimit.WindowSeconds,
		BurstCapacity:     c.RateLimit.BurstCapacity,
	})

	return &ServiceContext{
		Config:           c,
		Registry:         reg,
		RegistryStore:    registryStore,
		Credentials:      credStore,
		Roles:            roleStore,
		TranslationStore: translationStore,
		RevocationStore:  revocationStore,
		Keys:          keyManager,
		Cipher:        cipher,
		Authn:         authenticator,
		Authz:         evaluator,
		Translator:    translator,
		Revocation:    gate,
		Lockout:       lockout,
		RateLimiter:   rateLimiter,
	}, nil
}
