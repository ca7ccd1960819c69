package admin

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/trustgate/internal/model"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

type SigningKeysLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSigningKeysLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SigningKeysLogic {
	return &SigningKeysLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *SigningKeysLogic) GenerateKey() (*CreateSigningKeyResponse, error) {
	key, err := l.svcCtx.Keys.Generate(l.ctx)
	if err != nil {
		return nil, err
	}
	return toSigningKeyResponse(key), nil
}

func (l *SigningKeysLogic) RotateKey() (*CreateSigningKeyResponse, error) {
	key, err := l.svcCtx.Keys.Rotate(l.ctx)
	if err != nil {
		return nil, err
	}
	return toSigningKeyResponse(key), nil
}

func (l *SigningKeysLogic) ActivateKey(keyID string) error {
	return l.svcCtx.Keys.Activate(l.ctx, keyID)
}

func (l *SigningKeysLogic) DeprecateKey(keyID string) error {
	return l.svcCtx.Keys.Deprecate(l.ctx, keyID)
}

func (l *SigningKeysLogic) RetireKey(keyID string) error {
	return l.svcCtx.Keys.Retire(l.ctx, keyID)
}

// ForceRetireKey is the incident-response path: retire a key
// immediately regardless of its current lifecycle position, for when a
// key is suspected compromised and cannot wait for a graceful handoff.
func (l *SigningKeysLogic) ForceRetireKey(keyID string) error {
	return l.svcCtx.Keys.ForceRetire(l.ctx, keyID)
}

func (l *SigningKeysLogic) ListKeys() ([]model.SigningKey, error) {
	return l.svcCtx.Keys.PublicSet(), nil
}

func (l *SigningKeysLogic) Health() SigningKeyHealth {
	active := ""
	for _, k := range l.svcCtx.Keys.PublicSet() {
		if k.Status == model.KeyActive {
			active = k.KeyID
		}
	}
	status := "healthy"
	if !l.svcCtx.Keys.Healthy() {
		status = "degraded"
	}
	return SigningKeyHealth{
		Enabled:              true,
		Status:               status,
		ActiveKeyID:          active,
		VerificationKeyCount: len(l.svcCtx.Keys.PublicSet()),
	}
}

func toSigningKeyResponse(k *model.SigningKey) *CreateSigningKeyResponse {
	return &CreateSigningKeyResponse{
		KeyID:        k.KeyID,
		Status:       string(k.Status),
		Algorithm:    k.Algorithm,
		PublicKeyPEM: k.PublicKeyPEM,
	}
}
