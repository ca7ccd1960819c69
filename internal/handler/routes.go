// Package handler registers every HTTP route on the go-zero rest.Server,
// the way growthapi.go calls handler.RegisterHandlers(server, ctx) in
// the teacher fleet. Admin (C11) routes are grouped under /admin/v1;
// the ingress dispatch route (C1-C10 pipeline) is registered separately
// by internal/gateway so operator traffic and tenant traffic don't share
// a route table.
package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	adminHandler "github.com/suleymanmyradov/trustgate/internal/handler/admin"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

func RegisterAdminHandlers(server *rest.Server, svcCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{Method: http.MethodPost, Path: "/services", Handler: adminHandler.CreateServiceHandler(svcCtx)},
			{Method: http.MethodGet, Path: "/services", Handler: adminHandler.ListServicesHandler(svcCtx)},
			{Method: http.MethodGet, Path: "/services/:serviceId", Handler: adminHandler.GetServiceHandler(svcCtx)},
			{Method: http.MethodPut, Path: "/services/:serviceId", Handler: adminHandler.UpdateServiceHandler(svcCtx)},
			{Method: http.MethodDelete, Path: "/services/:serviceId", Handler: adminHandler.DeleteServiceHandler(svcCtx)},

			{Method: http.MethodPost, Path: "/api-keys", Handler: adminHandler.CreateApiKeyHandler(svcCtx)},
			{Method: http.MethodGet, Path: "/api-keys", Handler: adminHandler.ListApiKeysHandler(svcCtx)},
			{Method: http.MethodDelete, Path: "/api-keys/:id", Handler: adminHandler.RevokeApiKeyHandler(svcCtx)},

			{Method: http.MethodPost, Path: "/signing-keys", Handler: adminHandler.GenerateSigningKeyHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/signing-keys/rotate", Handler: adminHandler.RotateSigningKeyHandler(svcCtx)},
			{Method: http.MethodGet, Path: "/signing-keys", Handler: adminHandler.ListSigningKeysHandler(svcCtx)},
			{Method: http.MethodGet, Path: "/signing-keys/health", Handler: adminHandler.SigningKeyHealthHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/signing-keys/:keyId/activate", Handler: adminHandler.ActivateSigningKeyHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/signing-keys/:keyId/deprecate", Handler: adminHandler.DeprecateSigningKeyHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/signing-keys/:keyId/retire", Handler: adminHandler.RetireSigningKeyHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/signing-keys/:keyId/force-retire", Handler: adminHandler.ForceRetireSigningKeyHandler(svcCtx)},

			{Method: http.MethodPost, Path: "/translation-config", Handler: adminHandler.UploadTranslationConfigHandler(svcCtx)},
			{Method: http.MethodGet, Path: "/translation-config", Handler: adminHandler.ListTranslationVersionsHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/translation-config/:version/activate", Handler: adminHandler.ActivateTranslationConfigHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/translation-config/:version/rollback", Handler: adminHandler.RollbackTranslationConfigHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/translation-config/test", Handler: adminHandler.TestTranslationConfigHandler(svcCtx)},

			{Method: http.MethodPost, Path: "/revocations/tokens", Handler: adminHandler.RevokeTokenHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/revocations/users", Handler: adminHandler.RevokeUserHandler(svcCtx)},
			{Method: http.MethodGet, Path: "/lockouts/:key", Handler: adminHandler.LockoutStatusHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/lockouts/:key/force", Handler: adminHandler.ForceLockoutHandler(svcCtx)},
		},
		rest.WithPrefix("/admin/v1"),
	)
}
