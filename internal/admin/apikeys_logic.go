package admin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/trustgate/internal/authn"
	"github.com/suleymanmyradov/trustgate/internal/model"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

type ApiKeysLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewApiKeysLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ApiKeysLogic {
	return &ApiKeysLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

// CreateApiKey mints a new credential: a random high-entropy secret is
// generated, its lookup hash and sealed body are persisted, and the
// plaintext is returned exactly once. It is never recoverable again.
func (l *ApiKeysLogic) CreateApiKey(req *CreateApiKeyRequest) (*CreateApiKeyResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	plaintext, err := authn.GeneratePlaintext()
	if err != nil {
		return nil, err
	}

	body := model.ApiKeyBody{
		Name:        req.Name,
		Description: req.Description,
		Permissions: model.NewStringSet(req.Permissions...),
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   req.ExpiresAt,
	}
	sealed, err := l.svcCtx.Cipher.Seal(body)
	if err != nil {
		return nil, err
	}

	key := &model.ApiKey{
		KeyHash:       authn.HashLookupKey(plaintext),
		EncryptedBody: sealed,
	}
	created, err := l.svcCtx.Credentials.CreateApiKey(l.ctx, key)
	if err != nil {
		return nil, err
	}

	return &CreateApiKeyResponse{ID: created.ID.String(), Plaintext: plaintext}, nil
}

func (l *ApiKeysLogic) ListApiKeys() ([]ApiKeySummary, error) {
	keys, err := l.svcCtx.Credentials.ListApiKeys(l.ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ApiKeySummary, 0, len(keys))
	for _, k := range keys {
		body, err := l.svcCtx.Cipher.Open(k.EncryptedBody)
		if err != nil {
			logx.Errorf("skipping unreadable api key %s: %v", k.ID, err)
			continue
		}
		out = append(out, ApiKeySummary{
			ID:          k.ID.String(),
			Name:        body.Name,
			Description: body.Description,
			Permissions: body.Permissions.Slice(),
			ExpiresAt:   body.ExpiresAt,
			Revoked:     body.Revoked,
		})
	}
	return out, nil
}

// RevokeApiKey flips the sealed body's Revoked flag without deleting
// the row, so audit history and the key hash survive revocation.
func (l *ApiKeysLogic) RevokeApiKey(id string) error {
	keyID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	key, err := l.svcCtx.Credentials.GetApiKeyByID(l.ctx, keyID)
	if err != nil {
		return err
	}
	body, err := l.svcCtx.Cipher.Open(key.EncryptedBody)
	if err != nil {
		return err
	}
	body.Revoked = true
	sealed, err := l.svcCtx.Cipher.Seal(body)
	if err != nil {
		return err
	}
	return l.svcCtx.Credentials.UpdateApiKeyBody(l.ctx, keyID, sealed)
}
