// Package authn implements the authentication pipeline (C5): bearer
// credential dispatch between issued tokens and API keys, signature
// verification against the key lifecycle manager's verification set,
// and the encrypted API-key body envelope. Token verification follows
// growth-server's pkg/gourdiantoken VerifyAccessToken flow (parse,
// check alg, check claims, surface a typed failure reason) but
// verifies against a multi-key rotating set instead of one fixed key,
// and classifies failures into the gatewayerr sentinels instead of
// ad-hoc error strings.
package authn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/trustgate/internal/config"
	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/keys"
	"github.com/suleymanmyradov/trustgate/internal/model"
	"github.com/suleymanmyradov/trustgate/internal/revocation"
	"github.com/suleymanmyradov/trustgate/internal/store"
)

// Authenticator dispatches a bearer credential to the token or API-key
// path and produces a Principal.
type Authenticator struct {
	keys       *keys.Manager
	creds      *store.CredentialStore
	gate       *revocation.Gate
	lockout    *revocation.LockoutTracker
	cipher     *CredentialCipher
	tokenCfg   config.TokenPolicyConfig
}

func NewAuthenticator(km *keys.Manager, creds *store.CredentialStore, gate *revocation.Gate,
	lockout *revocation.LockoutTracker, cipher *CredentialCipher, tokenCfg config.TokenPolicyConfig) *Authenticator {
	return &Authenticator{
		keys:     km,
		creds:    creds,
		gate:     gate,
		lockout:  lockout,
		cipher:   cipher,
		tokenCfg: tokenCfg,
	}
}

// Authenticate dispatches credential (the raw Authorization: Bearer
// value) to the token or API-key path. lockoutKey scopes the failed-
// attempt counter; the gateway builds it as "ip:<client address>" from
// the inbound request.
func (a *Authenticator) Authenticate(ctx context.Context, credential, lockoutKey string) (*model.Principal, error) {
	if a.isLocked(ctx, lockoutKey) {
		return nil, gatewayerr.New(gatewayerr.KindAuth, gatewayerr.ErrLockedOut)
	}

	var principal *model.Principal
	var err error
	if looksLikeToken(credential) {
		principal, err = a.authenticateToken(ctx, credential)
	} else {
		principal, err = a.authenticateApiKey(ctx, credential)
	}

	if err != nil {
		a.recordFailure(ctx, lockoutKey)
		// Every failure mode is surfaced to the caller as the same
		// opaque 401; only internal logs see the specific reason.
		logx.Infof("authentication failed for key=%s: %v", lockoutKey, err)
		return nil, gatewayerr.New(gatewayerr.KindAuth, err)
	}
	return principal, nil
}

func (a *Authenticator) isLocked(ctx context.Context, lockoutKey string) bool {
	if a.lockout == nil || lockoutKey == "" {
		return false
	}
	locked, err := a.lockout.IsLocked(ctx, lockoutKey)
	if err != nil {
		logx.Errorf("lockout check failed, failing open: %v", err)
		return false
	}
	return locked
}

func (a *Authenticator) recordFailure(ctx context.Context, lockoutKey string) {
	if a.lockout == nil || lockoutKey == "" {
		return
	}
	if err := a.lockout.RecordFailedAttempt(ctx, lockoutKey); err != nil {
		logx.Errorf("failed to record auth failure: %v", err)
	}
}

// looksLikeToken reports whether credential has the three
// dot-separated segments of a JWT, per spec §4.2's dispatch rule.
func looksLikeToken(credential string) bool {
	return strings.Count(credential, ".") == 2
}

func (a *Authenticator) authenticateToken(ctx context.Context, tokenString string) (*model.Principal, error) {
	token, err := a.parseToken(tokenString)
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !token.Valid {
		return nil, gatewayerr.ErrInvalidSignature
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, gatewayerr.ErrMalformed
	}

	jti, _ := claims["jti"].(string)
	subject, _ := claims["sub"].(string)
	issuer, _ := claims["iss"].(string)
	if jti == "" || subject == "" {
		return nil, gatewayerr.ErrMalformed
	}

	if a.gate != nil {
		revoked, err := a.gate.IsTokenRevoked(ctx, jti)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, gatewayerr.ErrRevoked
		}

		issuedAt := claimTime(claims, "iat")
		userRevoked, err := a.gate.IsUserRevoked(ctx, subject, issuedAt)
		if err != nil {
			return nil, err
		}
		if userRevoked {
			return nil, gatewayerr.ErrRevoked
		}
	}

	var expiresAt *time.Time
	if exp := claimTime(claims, "exp"); !exp.IsZero() {
		expiresAt = &exp
	}

	return &model.Principal{
		Subject:              subject,
		Issuer:                issuer,
		EffectivePermissions: model.NewStringSet(claimStrings(claims, "permissions")...),
		Roles:                claimStrings(claims, "roles"),
		Groups:               claimStrings(claims, "groups"),
		TokenID:              jti,
		ExpiresAt:            expiresAt,
		Source:               model.SourceToken,
	}, nil
}

// errNoKIDHeader is an internal sentinel used only to signal, from
// inside the keyfunc, that the token carried no kid and parseToken
// must retry candidate by candidate.
var errNoKIDHeader = errors.New("authn: token header carries no kid")

// parseToken verifies tokenString's signature. golang-jwt/jwt's Parse
// invokes its keyfunc exactly once per call and verifies the signature
// with whatever key the keyfunc returns, so a token with a kid header
// is a single-candidate verification, but a kid-less token (spec
// §4.2) must actually be tried against every verify-capable key in
// turn rather than against the first one whose algorithm happens to
// match — during key-rotation overlap an ACTIVE and a DEPRECATED key
// can share an algorithm, and only one of them actually signed the
// token.
func (a *Authenticator) parseToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errNoKIDHeader
		}
		return a.verificationKeyFor(kid, t)
	}, jwt.WithLeeway(a.tokenCfg.ClockSkewTolerance))
	if err == nil || !errors.Is(err, errNoKIDHeader) {
		return token, err
	}

	for _, k := range a.keys.PublicSet() {
		candidate := k.KeyID
		tok, parseErr := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			return a.verificationKeyFor(candidate, t)
		}, jwt.WithLeeway(a.tokenCfg.ClockSkewTolerance))
		if parseErr == nil && tok.Valid {
			return tok, nil
		}
	}
	return nil, gatewayerr.ErrUnknownKID
}

// verificationKeyFor looks up keyID's public key, rejecting it up
// front if the token's alg header doesn't match what that key was
// generated with.
func (a *Authenticator) verificationKeyFor(keyID string, t *jwt.Token) (interface{}, error) {
	pub, alg, err := a.keys.VerificationKey(keyID)
	if err != nil {
		return nil, err
	}
	if t.Method.Alg() != alg {
		return nil, gatewayerr.ErrInvalidSignature
	}
	return pub, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return gatewayerr.ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return gatewayerr.ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return gatewayerr.ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return gatewayerr.ErrMalformed
	case errors.Is(err, gatewayerr.ErrUnknownKID):
		return gatewayerr.ErrUnknownKID
	default:
		return gatewayerr.ErrInvalidSignature
	}
}

func claimTime(claims jwt.MapClaims, name string) time.Time {
	v, ok := claims[name]
	if !ok {
		return time.Time{}
	}
	f, ok := v.(float64)
	if !ok {
		return time.Time{}
	}
	return time.Unix(int64(f), 0).UTC()
}

func claimStrings(claims jwt.MapClaims, name string) []string {
	raw, ok := claims[name].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (a *Authenticator) authenticateApiKey(ctx context.Context, plaintext string) (*model.Principal, error) {
	hash := HashLookupKey(plaintext)
	key, err := a.creds.GetApiKeyByHash(ctx, hash)
	if err != nil {
		return nil, gatewayerr.ErrMalformed
	}

	body, err := a.cipher.Open(key.EncryptedBody)
	if err != nil {
		return nil, gatewayerr.ErrMalformed
	}

	if body.Revoked {
		return nil, gatewayerr.ErrRevoked
	}
	if body.ExpiresAt != nil && body.ExpiresAt.Before(time.Now().UTC()) {
		return nil, gatewayerr.ErrExpired
	}

	return &model.Principal{
		Subject:              key.ID.String(),
		EffectivePermissions: body.Permissions,
		Source:               model.SourceAPIKey,
	}, nil
}
