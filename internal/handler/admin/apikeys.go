package admin

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/suleymanmyradov/trustgate/internal/admin"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

func CreateApiKeyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.CreateApiKeyRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		resp, err := admin.NewApiKeysLogic(r.Context(), svcCtx).CreateApiKey(&req)
		writeResult(w, r, resp, err)
	}
}

func ListApiKeysHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := admin.NewApiKeysLogic(r.Context(), svcCtx).ListApiKeys()
		writeResult(w, r, resp, err)
	}
}

func RevokeApiKeyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.ApiKeyIDPath
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		err := admin.NewApiKeysLogic(r.Context(), svcCtx).RevokeApiKey(req.ID)
		writeResult(w, r, struct{}{}, err)
	}
}
