// Package registry holds the C2 service registry (serviceId ->
// ServiceRegistration, loaded from internal/store.RegistryStore) and
// the C8 router that matches an inbound request to an endpoint.
// Route matching borrows gorilla/mux's pattern-matching engine the
// way ipiton-alert-history-service's internal/api/router.go wires up
// its mux.Router, but here mux is used purely as a matcher: the
// gateway's actual socket is owned by go-zero's rest.Server, so
// mux.Router.Match is called directly against a synthetic request
// instead of ever calling ServeHTTP.
package registry

import (
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/model"
)

// Match is the result of resolving an inbound (method, path) to a
// service and, if one matched, a specific endpoint.
type Match struct {
	Service        *model.ServiceRegistration
	Endpoint       *model.Endpoint // nil if no endpoint matched; visibility rule / defaults apply
	VisibilityRule *model.VisibilityRule
	RewrittenPath  string
}

// Registry is the in-memory, read-mostly snapshot of every
// ServiceRegistration, rebuilt from the store on demand and kept
// current by admin writes.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*model.ServiceRegistration
	routers  map[string]*mux.Router // serviceId -> endpoint matcher
}

func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[string]*model.ServiceRegistration),
		routers: make(map[string]*mux.Router),
	}
}

// Replace atomically swaps in a freshly loaded set of registrations.
func (r *Registry) Replace(services []*model.ServiceRegistration) {
	byID := make(map[string]*model.ServiceRegistration, len(services))
	routers := make(map[string]*mux.Router, len(services))
	for _, svc := range services {
		byID[svc.ServiceID] = svc
		routers[svc.ServiceID] = buildEndpointMatcher(svc)
	}

	r.mu.Lock()
	r.byID = byID
	r.routers = routers
	r.mu.Unlock()
}

// Put adds or updates a single registration without disturbing others.
func (r *Registry) Put(svc *model.ServiceRegistration) {
	r.mu.Lock()
	r.byID[svc.ServiceID] = svc
	r.routers[svc.ServiceID] = buildEndpointMatcher(svc)
	r.mu.Unlock()
}

// Remove drops a registration.
func (r *Registry) Remove(serviceID string) {
	r.mu.Lock()
	delete(r.byID, serviceID)
	delete(r.routers, serviceID)
	r.mu.Unlock()
}

// Get returns the registration for serviceID, if present.
func (r *Registry) Get(serviceID string) (*model.ServiceRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.byID[serviceID]
	return svc, ok
}

// All returns every currently registered service.
func (r *Registry) All() []*model.ServiceRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.ServiceRegistration, 0, len(r.byID))
	for _, svc := range r.byID {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceID < out[j].ServiceID })
	return out
}

func buildEndpointMatcher(svc *model.ServiceRegistration) *mux.Router {
	router := mux.NewRouter()
	for i, ep := range svc.Endpoints {
		route := router.NewRoute().Path(ep.Path)
		if !containsWildcard(ep.Methods) {
			route = route.Methods(ep.Methods...)
		}
		route.Name(epName(i))
	}
	return router
}

func containsWildcard(methods []string) bool {
	for _, m := range methods {
		if m == "*" {
			return true
		}
	}
	return false
}

func epName(i int) string {
	return "ep_" + strconv.Itoa(i)
}

// Resolve implements the §4.1 routing algorithm: longest matching
// RoutePrefix selects the service; within it, declared-order endpoint
// matching wins, then declared-order visibilityRules, then the
// service's defaults.
func (r *Registry) Resolve(method, path string) (*Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	svc := r.matchServiceLocked(path)
	if svc == nil {
		return nil, gatewayerr.New(gatewayerr.KindNotFound, gatewayerr.ErrNotFound)
	}

	remaining := path[len(svc.RoutePrefix):]
	if remaining == "" {
		remaining = "/"
	}

	if ep, ok := r.matchEndpointLocked(svc, method, remaining); ok {
		rewritten := remaining
		if ep.PathRewrite != "" {
			rewritten = ep.PathRewrite
		}
		return &Match{Service: svc, Endpoint: ep, RewrittenPath: rewritten}, nil
	}

	if rule := matchVisibilityRule(svc, method, remaining); rule != nil {
		return &Match{Service: svc, VisibilityRule: rule, RewrittenPath: remaining}, nil
	}

	return &Match{Service: svc, RewrittenPath: remaining}, nil
}

func (r *Registry) matchServiceLocked(path string) *model.ServiceRegistration {
	var best *model.ServiceRegistration
	for _, svc := range r.byID {
		if svc.RoutePrefix == "" {
			continue
		}
		if !hasPathPrefix(path, svc.RoutePrefix) {
			continue
		}
		if best == nil || len(svc.RoutePrefix) > len(best.RoutePrefix) {
			best = svc
		}
	}
	return best
}

func hasPathPrefix(path, prefix string) bool {
	if len(path) < len(prefix) {
		return false
	}
	return path[:len(prefix)] == prefix
}

func (r *Registry) matchEndpointLocked(svc *model.ServiceRegistration, method, path string) (*model.Endpoint, bool) {
	router, ok := r.routers[svc.ServiceID]
	if !ok {
		return nil, false
	}

	req, err := http.NewRequest(method, path, nil)
	if err != nil {
		return nil, false
	}

	var routeMatch mux.RouteMatch
	if !router.Match(req, &routeMatch) {
		return nil, false
	}
	if routeMatch.Route == nil {
		return nil, false
	}

	name := routeMatch.Route.GetName()
	for i := range svc.Endpoints {
		if epName(i) == name {
			ep := &svc.Endpoints[i]
			if ep.Type == model.EndpointWebSocket && method != http.MethodGet && !containsWildcard(ep.Methods) {
				return nil, false
			}
			return ep, true
		}
	}
	return nil, false
}

func matchVisibilityRule(svc *model.ServiceRegistration, method, path string) *model.VisibilityRule {
	for i, rule := range svc.VisibilityRules {
		router := mux.NewRouter()
		route := router.NewRoute().Path(rule.Pattern)
		if !containsWildcard(rule.Methods) {
			route = route.Methods(rule.Methods...)
		}
		req, err := http.NewRequest(method, path, nil)
		if err != nil {
			continue
		}
		var routeMatch mux.RouteMatch
		if router.Match(req, &routeMatch) {
			return &svc.VisibilityRules[i]
		}
	}
	return nil
}
