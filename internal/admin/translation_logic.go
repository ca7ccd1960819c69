package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/svc"
	"github.com/suleymanmyradov/trustgate/internal/translate"
)

type TranslationLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewTranslationLogic(ctx context.Context, svcCtx *svc.ServiceContext) *TranslationLogic {
	return &TranslationLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *TranslationLogic) UploadConfig(req *UploadTranslationConfigRequest) (*TranslationVersionResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	schema, err := json.Marshal(req.Schema)
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindInput, err)
	}
	version, err := l.svcCtx.TranslationStore.CreateVersion(l.ctx, schema, req.CreatedBy, req.Comment)
	if err != nil {
		return nil, err
	}
	return toVersionResponse(version.Version, version.CreatedBy, version.Comment, version.CreatedAt), nil
}

func (l *TranslationLogic) ListVersions() ([]TranslationVersionResponse, error) {
	versions, err := l.svcCtx.TranslationStore.ListVersions(l.ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TranslationVersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, *toVersionResponse(v.Version, v.CreatedBy, v.Comment, v.CreatedAt))
	}
	return out, nil
}

// Activate makes version the active translation config and purges the
// L1 cache, per spec §4.4; in-flight requests already holding a cached
// result from the previous version keep it until their own lookup
// recomputes, since invalidation is not retroactive.
func (l *TranslationLogic) Activate(version int64) error {
	if err := l.svcCtx.TranslationStore.Activate(l.ctx, version); err != nil {
		return err
	}
	l.svcCtx.Translator.InvalidateAll()
	return nil
}

// Rollback clones an older, already-persisted version's schema into a
// brand-new version number and activates that clone, per spec §4.4.
// Versions are immutable snapshots: rollback is itself a normal upload
// (never a mutation of history), so the history log always grows
// forward even when the effective config moves backward.
func (l *TranslationLogic) Rollback(version int64, rolledBackBy string) (*TranslationVersionResponse, error) {
	old, err := l.svcCtx.TranslationStore.GetVersion(l.ctx, version)
	if err != nil {
		return nil, err
	}

	comment := fmt.Sprintf("rollback to version %d", version)
	clone, err := l.svcCtx.TranslationStore.CreateVersion(l.ctx, old.ConfigSchema, rolledBackBy, comment)
	if err != nil {
		return nil, err
	}
	if err := l.Activate(clone.Version); err != nil {
		return nil, err
	}
	return toVersionResponse(clone.Version, clone.CreatedBy, clone.Comment, clone.CreatedAt), nil
}

func (l *TranslationLogic) Test(req *TestTranslationRequest) (translate.Result, error) {
	var candidate *translate.ConfigSchema
	if req.Config != nil {
		raw, err := json.Marshal(req.Config)
		if err != nil {
			return translate.Result{}, gatewayerr.New(gatewayerr.KindInput, err)
		}
		var schema translate.ConfigSchema
		if err := json.Unmarshal(raw, &schema); err != nil {
			return translate.Result{}, gatewayerr.New(gatewayerr.KindInput, err)
		}
		candidate = &schema
	}
	return l.svcCtx.Translator.Test(l.ctx, candidate, req.Issuer, req.Subject, req.Claims)
}

func toVersionResponse(version int64, createdBy, comment string, createdAt time.Time) *TranslationVersionResponse {
	return &TranslationVersionResponse{
		Version:   version,
		CreatedBy: createdBy,
		Comment:   comment,
		CreatedAt: createdAt,
	}
}
