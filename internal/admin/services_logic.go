package admin

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/trustgate/internal/model"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

type ServicesLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewServicesLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ServicesLogic {
	return &ServicesLogic{Logger: logx.WithContext(ctx), ctx: ctx, svcCtx: svcCtx}
}

func (l *ServicesLogic) CreateService(req *CreateServiceRequest) (*ServiceResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	reg := req.toModel()
	created, err := l.svcCtx.RegistryStore.Create(l.ctx, reg)
	if err != nil {
		return nil, err
	}
	l.svcCtx.Registry.Put(created)
	return toServiceResponse(created), nil
}

func (l *ServicesLogic) GetService(serviceID string) (*ServiceResponse, error) {
	reg, err := l.svcCtx.RegistryStore.Get(l.ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return toServiceResponse(reg), nil
}

func (l *ServicesLogic) ListServices(limit, offset int) (*ListServicesResponse, error) {
	regs, total, err := l.svcCtx.RegistryStore.List(l.ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	resp := &ListServicesResponse{Services: make([]ServiceResponse, 0, len(regs)), Total: total}
	for _, r := range regs {
		resp.Services = append(resp.Services, *toServiceResponse(r))
	}
	return resp, nil
}

// UpdateService applies req over the existing registration identified
// by serviceID, enforcing optimistic concurrency against
// req.ExpectedVersion (the gateway's equivalent of an If-Match
// precondition): a stale ExpectedVersion yields a 409 from the store's
// CAS update rather than silently clobbering a concurrent edit.
func (l *ServicesLogic) UpdateService(serviceID string, req *UpdateServiceRequest) (*ServiceResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	existing, err := l.svcCtx.RegistryStore.Get(l.ctx, serviceID)
	if err != nil {
		return nil, err
	}
	updated := buildRegistration(serviceID, req.DisplayName, req.BaseURL, req.RoutePrefix, req.DefaultVisibility,
		req.DefaultAuthRequired, req.VisibilityRules, req.Endpoints, req.AccessConfig, req.CorsConfig,
		req.PermissionPolicy, req.RateLimitConfig)
	updated.BaseModel = existing.BaseModel

	saved, err := l.svcCtx.RegistryStore.Update(l.ctx, updated, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	l.svcCtx.Registry.Put(saved)
	return toServiceResponse(saved), nil
}

func (l *ServicesLogic) DeleteService(serviceID string) error {
	if err := l.svcCtx.RegistryStore.Delete(l.ctx, serviceID); err != nil {
		return err
	}
	l.svcCtx.Registry.Remove(serviceID)
	return nil
}

func (r *CreateServiceRequest) toModel() *model.ServiceRegistration {
	return buildRegistration(r.ServiceID, r.DisplayName, r.BaseURL, r.RoutePrefix, r.DefaultVisibility,
		r.DefaultAuthRequired, r.VisibilityRules, r.Endpoints, r.AccessConfig, r.CorsConfig,
		r.PermissionPolicy, r.RateLimitConfig)
}

func buildRegistration(serviceID, displayName, baseURL, routePrefix, defaultVisibility string, defaultAuthRequired bool,
	visibilityRules []VisibilityRuleRequest, endpoints []EndpointRequest, accessConfig *AccessConfigRequest,
	corsConfig *CorsConfigRequest, permissionPolicy map[string]PermissionRule, rateLimitConfig *RateLimitConfigRequest,
) *model.ServiceRegistration {
	reg := &model.ServiceRegistration{
		ServiceID:           serviceID,
		DisplayName:         displayName,
		BaseURL:             baseURL,
		RoutePrefix:         routePrefix,
		DefaultVisibility:   model.Visibility(defaultVisibility),
		DefaultAuthRequired: defaultAuthRequired,
	}
	for _, vr := range visibilityRules {
		reg.VisibilityRules = append(reg.VisibilityRules, model.VisibilityRule{
			Pattern:    vr.Pattern,
			Methods:    vr.Methods,
			Visibility: model.Visibility(vr.Visibility),
		})
	}
	for _, ep := range endpoints {
		e := model.Endpoint{
			Path:         ep.Path,
			Methods:      ep.Methods,
			Visibility:   model.Visibility(ep.Visibility),
			PathRewrite:  ep.PathRewrite,
			AuthRequired: ep.AuthRequired,
			Type:         model.EndpointType(ep.Type),
			Operation:    ep.Operation,
		}
		if ep.RateLimit != nil {
			e.RateLimit = &model.RateLimitConfig{
				RequestsPerWindow: ep.RateLimit.RequestsPerWindow,
				WindowSeconds:     ep.RateLimit.WindowSeconds,
				BurstCapacity:     ep.RateLimit.BurstCapacity,
			}
		}
		reg.Endpoints = append(reg.Endpoints, e)
	}
	if accessConfig != nil {
		reg.AccessConfig = &model.AccessConfig{
			AllowedIPs:        accessConfig.AllowedIPs,
			AllowedDomains:    accessConfig.AllowedDomains,
			AllowedSubdomains: accessConfig.AllowedSubdomains,
		}
	}
	if corsConfig != nil {
		reg.CorsConfig = &model.CorsConfig{
			AllowedOrigins: corsConfig.AllowedOrigins,
			AllowedMethods: corsConfig.AllowedMethods,
			AllowedHeaders: corsConfig.AllowedHeaders,
		}
	}
	if len(permissionPolicy) > 0 {
		reg.PermissionPolicy = make(model.PermissionPolicy, len(permissionPolicy))
		for op, rule := range permissionPolicy {
			reg.PermissionPolicy[op] = model.PermissionRule{AnyOfPermissions: model.NewStringSet(rule.AnyOfPermissions...)}
		}
	}
	if rateLimitConfig != nil {
		reg.RateLimitConfig = &model.RateLimitConfig{
			RequestsPerWindow: rateLimitConfig.RequestsPerWindow,
			WindowSeconds:     rateLimitConfig.WindowSeconds,
			BurstCapacity:     rateLimitConfig.BurstCapacity,
		}
	}
	return reg
}

func toServiceResponse(r *model.ServiceRegistration) *ServiceResponse {
	return &ServiceResponse{
		ServiceID:           r.ServiceID,
		DisplayName:         r.DisplayName,
		BaseURL:             r.BaseURL,
		RoutePrefix:         r.RoutePrefix,
		DefaultVisibility:   string(r.DefaultVisibility),
		DefaultAuthRequired: r.DefaultAuthRequired,
		Version:             r.Version,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}
