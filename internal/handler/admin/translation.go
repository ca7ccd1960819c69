package admin

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/suleymanmyradov/trustgate/internal/admin"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

func UploadTranslationConfigHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.UploadTranslationConfigRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		resp, err := admin.NewTranslationLogic(r.Context(), svcCtx).UploadConfig(&req)
		writeResult(w, r, resp, err)
	}
}

func ListTranslationVersionsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := admin.NewTranslationLogic(r.Context(), svcCtx).ListVersions()
		writeResult(w, r, resp, err)
	}
}

func ActivateTranslationConfigHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.TranslationVersionPath
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		err := admin.NewTranslationLogic(r.Context(), svcCtx).Activate(req.Version)
		writeResult(w, r, struct{}{}, err)
	}
}

func RollbackTranslationConfigHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.RollbackTranslationConfigRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		resp, err := admin.NewTranslationLogic(r.Context(), svcCtx).Rollback(req.Version, req.RolledBackBy)
		writeResult(w, r, resp, err)
	}
}

func TestTranslationConfigHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.TestTranslationRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		resp, err := admin.NewTranslationLogic(r.Context(), svcCtx).Test(&req)
		writeResult(w, r, resp, err)
	}
}
