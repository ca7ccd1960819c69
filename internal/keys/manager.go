// Package keys implements the signing-key lifecycle manager (C4): key
// generation, the PENDING -> ACTIVE -> DEPRECATED -> RETIRED state
// machine, rotation, emergency force-retire, and the verification key
// set consumed by the authenticator (C5). Key generation and PEM
// handling are adapted from growth-server's pkg/gourdiantoken
// (parseKeyPair / initializeKeys), generalized from a single
// fixed key pair to a managed multi-key registry.
package keys

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/trustgate/internal/config"
	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/model"
	"github.com/suleymanmyradov/trustgate/internal/store"
)

// keyMaterial pairs a parsed private key (kept only in memory, never
// logged or serialized) with its public counterpart.
type keyMaterial struct {
	private crypto.Signer
	public  crypto.PublicKey
}

// Manager owns the set of signing keys and enforces the at-most-one-
// ACTIVE invariant (I-KEY-1 in spec terms) across concurrent rotation
// and force-retire calls.
type Manager struct {
	mu         sync.RWMutex
	creds      *store.CredentialStore
	cfg        config.SigningKeyConfig
	keys       map[string]*model.SigningKey // keyID -> row
	materials  map[string]keyMaterial       // keyID -> parsed key, in-memory only
}

func NewManager(creds *store.CredentialStore, cfg config.SigningKeyConfig) *Manager {
	return &Manager{
		creds:     creds,
		cfg:       cfg,
		keys:      make(map[string]*model.SigningKey),
		materials: make(map[string]keyMaterial),
	}
}

// Load populates the in-memory snapshot from the store. Call once at
// startup before serving traffic.
func (m *Manager) Load(ctx context.Context) error {
	rows, err := m.creds.ListSigningKeys(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.keys[row.KeyID] = row
		if row.Status == model.KeyRetired {
			continue
		}
		if block, _ := pem.Decode([]byte(row.PrivateHandle)); block != nil {
			if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
				if signer, ok := parsed.(crypto.Signer); ok {
					m.materials[row.KeyID] = keyMaterial{private: signer, public: signer.Public()}
				}
			}
		}
	}
	logx.Infof("loaded %d signing keys", len(rows))
	return nil
}

// Bootstrap ensures at least one ACTIVE key exists, generating and
// activating one if the registry is empty (first-run convenience).
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.mu.RLock()
	hasActive := false
	for _, k := range m.keys {
		if k.Status == model.KeyActive {
			hasActive = true
			break
		}
	}
	m.mu.RUnlock()
	if hasActive {
		return nil
	}

	key, err := m.Generate(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap signing key: %w", err)
	}
	return m.Activate(ctx, key.KeyID)
}

// Generate creates a new key pair in PENDING status, per the
// configured algorithm, and persists it. The private key never leaves
// the process as plaintext: PrivateHandle stores the PEM encoding, and
// the parsed crypto.Signer lives only in the in-memory materials map.
func (m *Manager) Generate(ctx context.Context) (*model.SigningKey, error) {
	algorithm := m.cfg.Algorithm
	material, publicPEM, privatePEM, err := generateKeyPair(algorithm)
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("generate key pair: %w", err))
	}

	row := &model.SigningKey{
		KeyID:         uuid.New().String(),
		Algorithm:     algorithm,
		PublicKeyPEM:  publicPEM,
		PrivateHandle: privatePEM,
	}
	row, err = m.creds.CreateSigningKey(ctx, row)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.keys[row.KeyID] = row
	m.materials[row.KeyID] = material
	m.mu.Unlock()

	logx.Infof("generated signing key %s (%s), status PENDING", row.KeyID, algorithm)
	return row, nil
}

// Activate promotes a PENDING key to ACTIVE and demotes the current
// ACTIVE key (if any) to DEPRECATED, atomically, preserving
// exactly-one-ACTIVE at all times (Testable Property for C4).
func (m *Manager) Activate(ctx context.Context, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.keys[keyID]
	if !ok {
		return gatewayerr.New(gatewayerr.KindNotFound, gatewayerr.ErrNotFound)
	}
	if target.Status != model.KeyPending {
		return gatewayerr.New(gatewayerr.KindPrecondition, fmt.Errorf("key %s is %s, not PENDING", keyID, target.Status))
	}

	var previousActive *model.SigningKey
	for _, k := range m.keys {
		if k.Status == model.KeyActive {
			previousActive = k
			break
		}
	}

	now := time.Now().UTC()
	err := m.creds.WithTx(ctx, func(tx *sqlx.Tx) error {
		if previousActive != nil {
			if err := m.creds.UpdateSigningKeyStatus(ctx, tx, previousActive.KeyID, model.KeyDeprecated, now); err != nil {
				return err
			}
		}
		return m.creds.UpdateSigningKeyStatus(ctx, tx, keyID, model.KeyActive, now)
	})
	if err != nil {
		return err
	}

	if previousActive != nil {
		previousActive.Status = model.KeyDeprecated
		previousActive.DeprecatedAt = &now
	}
	target.Status = model.KeyActive
	target.ActivatedAt = &now

	logx.Infof("activated signing key %s, deprecated previous active key", keyID)
	return nil
}

// Deprecate moves an ACTIVE key straight to DEPRECATED without
// promoting a replacement; used when an operator wants to stop
// minting with a key before a successor is ready.
func (m *Manager) Deprecate(ctx context.Context, keyID string) error {
	return m.transition(ctx, keyID, model.KeyDeprecated, model.KeyActive)
}

// Retire moves a DEPRECATED key to RETIRED once its deprecation grace
// period has elapsed, removing it from the verification set.
func (m *Manager) Retire(ctx context.Context, keyID string) error {
	m.mu.RLock()
	var deprecatedAt *time.Time
	if k, ok := m.keys[keyID]; ok {
		deprecatedAt = k.DeprecatedAt
	}
	m.mu.RUnlock()
	if deprecatedAt != nil && time.Since(*deprecatedAt) < m.cfg.DeprecationGrace {
		return gatewayerr.New(gatewayerr.KindPrecondition, fmt.Errorf("key %s is still within its deprecation grace period", keyID))
	}
	return m.transition(ctx, keyID, model.KeyRetired, model.KeyDeprecated)
}

// ForceRetire immediately retires a key regardless of its current
// status, for incident response when a key is suspected compromised.
// Unlike Retire, it does not require the key to have already passed
// through DEPRECATED.
func (m *Manager) ForceRetire(ctx context.Context, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.keys[keyID]
	if !ok {
		return gatewayerr.New(gatewayerr.KindNotFound, gatewayerr.ErrNotFound)
	}

	now := time.Now().UTC()
	err := m.creds.WithTx(ctx, func(tx *sqlx.Tx) error {
		return m.creds.UpdateSigningKeyStatus(ctx, tx, keyID, model.KeyRetired, now)
	})
	if err != nil {
		return err
	}
	target.Status = model.KeyRetired
	target.RetiredAt = &now
	delete(m.materials, keyID)

	logx.Infof("force-retired signing key %s", keyID)
	return nil
}

func (m *Manager) transition(ctx context.Context, keyID string, to, from model.KeyStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.keys[keyID]
	if !ok {
		return gatewayerr.New(gatewayerr.KindNotFound, gatewayerr.ErrNotFound)
	}
	if target.Status != from {
		return gatewayerr.New(gatewayerr.KindPrecondition, fmt.Errorf("key %s is %s, not %s", keyID, target.Status, from))
	}

	now := time.Now().UTC()
	err := m.creds.WithTx(ctx, func(tx *sqlx.Tx) error {
		return m.creds.UpdateSigningKeyStatus(ctx, tx, keyID, to, now)
	})
	if err != nil {
		return err
	}

	target.Status = to
	switch to {
	case model.KeyDeprecated:
		target.DeprecatedAt = &now
	case model.KeyRetired:
		target.RetiredAt = &now
		delete(m.materials, keyID)
	}
	return nil
}

// Rotate generates a fresh key and immediately activates it,
// deprecating the current ACTIVE key in the same call. This is the
// steady-state operation an operator or a cron schedule calls.
func (m *Manager) Rotate(ctx context.Context) (*model.SigningKey, error) {
	key, err := m.Generate(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.Activate(ctx, key.KeyID); err != nil {
		return nil, err
	}
	return key, nil
}

// Signer returns the current ACTIVE key's id and private signer, for
// a token issuer outside this package; within this module only the
// tests call it.
func (m *Manager) Signer() (keyID string, signer crypto.Signer, algorithm string, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, k := range m.keys {
		if k.Status == model.KeyActive {
			return id, m.materials[id].private, k.Algorithm, nil
		}
	}
	return "", nil, "", gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("no ACTIVE signing key"))
}

// VerificationKey returns the public key for kid if it is still
// CanVerify() (ACTIVE or DEPRECATED), implementing the JWKS-like
// lookup the authenticator uses as a jwt.Keyfunc.
func (m *Manager) VerificationKey(keyID string) (crypto.PublicKey, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, ok := m.keys[keyID]
	if !ok || !k.CanVerify() {
		return nil, "", gatewayerr.ErrUnknownKID
	}
	mat, ok := m.materials[keyID]
	if !ok {
		return nil, "", gatewayerr.ErrUnknownKID
	}
	return mat.public, k.Algorithm, nil
}

// Healthy reports whether an ACTIVE key exists, for the gateway's
// liveness/readiness surface.
func (m *Manager) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, k := range m.keys {
		if k.Status == model.KeyActive {
			return true
		}
	}
	return false
}

// PublicSet returns every key still in the verification set, shaped
// for the admin API's JWKS-like publication endpoint.
func (m *Manager) PublicSet() []model.SigningKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.SigningKey, 0, len(m.keys))
	for _, k := range m.keys {
		if k.CanVerify() {
			out = append(out, *k)
		}
	}
	return out
}

func generateKeyPair(algorithm string) (keyMaterial, string, string, error) {
	switch algorithm {
	case "RS256", "RS384", "RS512":
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return keyMaterial{}, "", "", err
		}
		return encodeRSA(priv)
	case "ES256":
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return keyMaterial{}, "", "", err
		}
		return encodeECDSA(priv)
	case "EdDSA":
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return keyMaterial{}, "", "", err
		}
		return encodeEd25519(pub, priv)
	default:
		return keyMaterial{}, "", "", fmt.Errorf("unsupported signing algorithm: %s", algorithm)
	}
}

func encodeRSA(priv *rsa.PrivateKey) (keyMaterial, string, string, error) {
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return keyMaterial{}, "", "", err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return keyMaterial{}, "", "", err
	}
	return keyMaterial{private: priv, public: &priv.PublicKey}, pemEncode("PUBLIC KEY", pubDER), pemEncode("PRIVATE KEY", privDER), nil
}

func encodeECDSA(priv *ecdsa.PrivateKey) (keyMaterial, string, string, error) {
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return keyMaterial{}, "", "", err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return keyMaterial{}, "", "", err
	}
	return keyMaterial{private: priv, public: &priv.PublicKey}, pemEncode("PUBLIC KEY", pubDER), pemEncode("PRIVATE KEY", privDER), nil
}

func encodeEd25519(pub ed25519.PublicKey, priv ed25519.PrivateKey) (keyMaterial, string, string, error) {
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return keyMaterial{}, "", "", err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return keyMaterial{}, "", "", err
	}
	return keyMaterial{private: priv, public: pub}, pemEncode("PUBLIC KEY", pubDER), pemEncode("PRIVATE KEY", privDER), nil
}

func pemEncode(blockType string, der []byte) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}))
}
