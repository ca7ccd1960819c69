package admin

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/suleymanmyradov/trustgate/internal/admin"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

func RevokeTokenHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.RevokeTokenRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		err := admin.NewRevocationLogic(r.Context(), svcCtx).RevokeToken(&req)
		writeResult(w, r, struct{}{}, err)
	}
}

func RevokeUserHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.RevokeUserRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		err := admin.NewRevocationLogic(r.Context(), svcCtx).RevokeUser(&req)
		writeResult(w, r, struct{}{}, err)
	}
}

func LockoutStatusHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.LockoutKeyPath
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		resp, err := admin.NewRevocationLogic(r.Context(), svcCtx).IsLocked(req.Key)
		writeResult(w, r, resp, err)
	}
}

func ForceLockoutHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.ForceLockoutRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		err := admin.NewRevocationLogic(r.Context(), svcCtx).ForceLockout(req.Key, req.Reason)
		writeResult(w, r, struct{}{}, err)
	}
}
