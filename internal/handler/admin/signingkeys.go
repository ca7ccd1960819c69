package admin

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/suleymanmyradov/trustgate/internal/admin"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

func GenerateSigningKeyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := admin.NewSigningKeysLogic(r.Context(), svcCtx).GenerateKey()
		writeResult(w, r, resp, err)
	}
}

func RotateSigningKeyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := admin.NewSigningKeysLogic(r.Context(), svcCtx).RotateKey()
		writeResult(w, r, resp, err)
	}
}

func ListSigningKeysHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := admin.NewSigningKeysLogic(r.Context(), svcCtx).ListKeys()
		writeResult(w, r, resp, err)
	}
}

func SigningKeyHealthHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := admin.NewSigningKeysLogic(r.Context(), svcCtx).Health()
		writeResult(w, r, resp, nil)
	}
}

func ActivateSigningKeyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.SigningKeyIDPath
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		err := admin.NewSigningKeysLogic(r.Context(), svcCtx).ActivateKey(req.KeyID)
		writeResult(w, r, struct{}{}, err)
	}
}

func DeprecateSigningKeyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.SigningKeyIDPath
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		err := admin.NewSigningKeysLogic(r.Context(), svcCtx).DeprecateKey(req.KeyID)
		writeResult(w, r, struct{}{}, err)
	}
}

func RetireSigningKeyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.SigningKeyIDPath
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		err := admin.NewSigningKeysLogic(r.Context(), svcCtx).RetireKey(req.KeyID)
		writeResult(w, r, struct{}{}, err)
	}
}

func ForceRetireSigningKeyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.SigningKeyIDPath
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		err := admin.NewSigningKeysLogic(r.Context(), svcCtx).ForceRetireKey(req.KeyID)
		writeResult(w, r, struct{}{}, err)
	}
}
