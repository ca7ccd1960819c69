package main

import (
	"context"
	"errors"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/model"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

const demoServiceID = "demobackend"

// seedDemoBackend registers the demo echo service on first startup so
// there's always a real upstream for the dispatch path to prove
// itself against, without clobbering an operator's existing edits to
// the same registration on subsequent restarts.
func seedDemoBackend(svcCtx *svc.ServiceContext) error {
	ctx := context.Background()
	if _, err := svcCtx.RegistryStore.Get(ctx, demoServiceID); err == nil {
		return nil
	} else {
		var ge *gatewayerr.Error
		if !errors.As(err, &ge) || ge.Kind != gatewayerr.KindNotFound {
			return err
		}
	}

	authRequired := false
	reg := &model.ServiceRegistration{
		ServiceID:           demoServiceID,
		DisplayName:         "Demo Backend",
		BaseURL:             "http://localhost:9001",
		RoutePrefix:         "/demo",
		DefaultVisibility:   model.VisibilityPublic,
		DefaultAuthRequired: false,
		Endpoints: []model.Endpoint{
			{Path: "/ping", Methods: []string{"GET"}, Visibility: model.VisibilityPublic, AuthRequired: &authRequired, Type: model.EndpointHTTP, PathRewrite: "/ping"},
			{Path: "/echo", Methods: []string{"*"}, Visibility: model.VisibilityPublic, AuthRequired: &authRequired, Type: model.EndpointHTTP, PathRewrite: "/echo"},
		},
	}

	created, err := svcCtx.RegistryStore.Create(ctx, reg)
	if err != nil {
		return err
	}
	svcCtx.Registry.Put(created)
	return nil
}
