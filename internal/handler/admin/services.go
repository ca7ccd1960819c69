// Package admin holds the goctl-style handler layer for the C11 admin
// API: each handler decodes its request via httpx.Parse, delegates to
// the matching internal/admin logic struct, and writes the HTTP
// response, mirroring growth-server's handler/goals convention.
package admin

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/suleymanmyradov/trustgate/internal/admin"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

func CreateServiceHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.CreateServiceRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		resp, err := admin.NewServicesLogic(r.Context(), svcCtx).CreateService(&req)
		writeResult(w, r, resp, err)
	}
}

func GetServiceHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.ServiceIDPath
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		resp, err := admin.NewServicesLogic(r.Context(), svcCtx).GetService(req.ServiceID)
		writeResult(w, r, resp, err)
	}
}

func ListServicesHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.ListServicesQuery
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		resp, err := admin.NewServicesLogic(r.Context(), svcCtx).ListServices(req.Limit, req.Offset)
		writeResult(w, r, resp, err)
	}
}

// UpdateServiceHandler enforces optimistic concurrency via the request
// body's expectedVersion field, returned as HTTP 409 by the logic layer
// on a stale version rather than by inspecting an If-Match header
// directly — the gateway's registrations are versioned row-side, not
// ETag-side.
func UpdateServiceHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.UpdateServiceRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		resp, err := admin.NewServicesLogic(r.Context(), svcCtx).UpdateService(req.ServiceID, &req)
		writeResult(w, r, resp, err)
	}
}

func DeleteServiceHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admin.ServiceIDPath
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		err := admin.NewServicesLogic(r.Context(), svcCtx).DeleteService(req.ServiceID)
		writeResult(w, r, struct{}{}, err)
	}
}
