// Package gateway implements the C1-C10 ingress dispatch pipeline: the
// request lifecycle diagrammed in the design as
//
//	ingress -> router -> authenticator -> translator(cache) ->
//	    authorizer -> rate-limiter -> upstream dispatch
//
// It is a plain http.Handler rather than a go-zero rest.Route table,
// since the route space is fully dynamic (determined by whatever
// services are registered) and not known at server-start: growth-server's
// rest.Server owns the admin API's fixed route table (internal/handler),
// while this package owns the wildcard data-plane socket, following the
// split already established between internal/handler (management plane)
// and the ingress proxy (data plane).
package gateway

import (
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/model"
	"github.com/suleymanmyradov/trustgate/internal/ratelimit"
	"github.com/suleymanmyradov/trustgate/internal/registry"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

// Gateway dispatches every inbound request through the trust-plane
// pipeline before proxying it to the matched backend.
type Gateway struct {
	svcCtx  *svc.ServiceContext
	proxies proxyCache
}

func New(svcCtx *svc.ServiceContext) *Gateway {
	return &Gateway{svcCtx: svcCtx, proxies: newProxyCache()}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	match, err := g.svcCtx.Registry.Resolve(r.Method, r.URL.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}

	visibility := effectiveVisibility(match)
	if visibility == model.VisibilityPrivate {
		if !registry.CheckAccess(match.Service.AccessConfig, r.RemoteAddr) {
			writeError(w, r, gatewayerr.New(gatewayerr.KindForbidden, gatewayerr.ErrInvalidSignature))
			return
		}
	}

	principal, err := g.authenticate(r, match)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if principal != nil {
		principal = g.translate(r, principal)
	}

	operation := ""
	if match.Endpoint != nil {
		operation = match.Endpoint.Operation
	}
	if err := g.svcCtx.Authz.Authorize(principal, match.Service, match.Endpoint, operation); err != nil {
		writeError(w, r, err)
		return
	}

	scope := ratelimit.Scope{
		ServiceID:    match.Service.ServiceID,
		EndpointPath: endpointPath(match),
		CallerKey:    callerKey(principal, r),
	}
	rateCfg := match.Service.RateLimitConfig
	if match.Endpoint != nil && match.Endpoint.RateLimit != nil {
		rateCfg = match.Endpoint.RateLimit
	}
	if allowed, retryAfter := g.svcCtx.RateLimiter.Allow(scope, rateCfg); !allowed {
		writeError(w, r, gatewayerr.RateLimited(retryAfter))
		return
	}

	if match.Endpoint != nil && match.Endpoint.Type == model.EndpointWebSocket {
		g.proxyWebSocket(w, r, match, scope, rateCfg)
		return
	}
	g.proxy(w, r, match)
}

// authenticate extracts the caller's credential and runs it through
// C5, skipping verification entirely for endpoints that don't require
// auth (spec §4.2's dispatch gate).
func (g *Gateway) authenticate(r *http.Request, match *registry.Match) (*model.Principal, error) {
	requiresAuth := match.Service.DefaultAuthRequired
	if match.Endpoint != nil && match.Endpoint.AuthRequired != nil {
		requiresAuth = *match.Endpoint.AuthRequired
	}

	credential := extractCredential(r)
	if credential == "" {
		if requiresAuth {
			return nil, gatewayerr.New(gatewayerr.KindAuth, gatewayerr.ErrMalformed)
		}
		return nil, nil
	}

	lockoutKey := "ip:" + clientIP(r)
	principal, err := g.svcCtx.Authn.Authenticate(r.Context(), credential, lockoutKey)
	if err != nil {
		return nil, err
	}
	return principal, nil
}

// translate augments a token-sourced principal's effective permissions
// using the active claim-translation config (C6); API-key principals
// already carry their permissions directly from the sealed body and
// skip this step, matching spec §4.4's scope (translation applies to
// identity-provider claims, not gateway-minted API keys).
func (g *Gateway) translate(r *http.Request, principal *model.Principal) *model.Principal {
	if principal.Source != model.SourceToken {
		return principal
	}
	claims := map[string]interface{}{
		"sub":    principal.Subject,
		"iss":    principal.Issuer,
		"roles":  principal.Roles,
		"groups": principal.Groups,
	}
	result, err := g.svcCtx.Translator.Translate(r.Context(), principal.Issuer, principal.Subject, claims)
	if err != nil {
		logx.Errorf("translation failed, continuing with token-claim permissions: %v", err)
		return principal
	}
	if len(result.Roles) == 0 && len(result.Permissions) == 0 {
		return principal
	}
	principal.Roles = append(principal.Roles, result.Roles...)
	principal.EffectivePermissions = principal.EffectivePermissions.Union(model.NewStringSet(result.Permissions...))
	return principal
}

func effectiveVisibility(match *registry.Match) model.Visibility {
	if match.Endpoint != nil {
		return match.Endpoint.Visibility
	}
	if match.VisibilityRule != nil {
		return match.VisibilityRule.Visibility
	}
	return match.Service.DefaultVisibility
}

func endpointPath(match *registry.Match) string {
	if match.Endpoint != nil {
		return match.Endpoint.Path
	}
	return match.Service.RoutePrefix
}

func callerKey(principal *model.Principal, r *http.Request) string {
	if principal != nil && principal.Subject != "" {
		return principal.Subject
	}
	return clientIP(r)
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// extractCredential reads a bearer token or API key from the
// Authorization header (Bearer <token>) or the X-Api-Key header.
func extractCredential(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return rest
		}
	}
	return r.Header.Get("X-Api-Key")
}

func (g *Gateway) proxy(w http.ResponseWriter, r *http.Request, match *registry.Match) {
	target, err := url.Parse(match.Service.BaseURL)
	if err != nil {
		writeError(w, r, gatewayerr.New(gatewayerr.KindDependency, err))
		return
	}

	proxy := g.proxies.get(match.Service.ServiceID, target)
	r.URL.Path = match.RewrittenPath
	proxy.ServeHTTP(w, r)
}

// wsUpgrader accepts the client-side half of a WebSocket upgrade.
// proxyWebSocket copies it per request and sets CheckOrigin from the
// matched service's CorsConfig instead of a single gateway-wide
// allowlist, matching how every other cross-origin decision in this
// gateway is made per-service.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// proxyWebSocket upgrades the client connection, dials the matched
// backend as a second WebSocket client, and relays frames in both
// directions. Connection establishment already passed the request-level
// bucket in scope; every subsequent client->backend frame is metered
// against its own "ws-message" dimension of the same scope, so a
// chatty long-lived connection cannot bypass the service's rate limit
// simply by never reconnecting (spec §4.7's WebSocket requirement).
func (g *Gateway) proxyWebSocket(w http.ResponseWriter, r *http.Request, match *registry.Match, scope ratelimit.Scope, rateCfg *model.RateLimitConfig) {
	if !corsOriginAllowed(match.Service.CorsConfig, r.Header.Get("Origin")) {
		writeError(w, r, gatewayerr.New(gatewayerr.KindForbidden, gatewayerr.ErrInvalidSignature))
		return
	}

	backendURL, err := websocketBackendURL(match.Service.BaseURL, match.RewrittenPath, r.URL.RawQuery)
	if err != nil {
		writeError(w, r, gatewayerr.New(gatewayerr.KindDependency, err))
		return
	}

	backendConn, _, err := websocket.DefaultDialer.Dial(backendURL, nil)
	if err != nil {
		writeError(w, r, gatewayerr.New(gatewayerr.KindDependency, err))
		return
	}
	defer backendConn.Close()

	upgrader := wsUpgrader
	upgrader.CheckOrigin = func(req *http.Request) bool {
		return corsOriginAllowed(match.Service.CorsConfig, req.Header.Get("Origin"))
	}
	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.WithContext(r.Context()).Errorf("websocket upgrade failed: %v", err)
		return
	}
	defer clientConn.Close()

	messageScope := scope
	messageScope.Dimension = "ws-message"

	done := make(chan struct{})
	go relayWebSocket(backendConn, clientConn, nil)
	go func() {
		relayWebSocket(clientConn, backendConn, func() (bool, int) {
			return g.svcCtx.RateLimiter.Allow(messageScope, rateCfg)
		})
		close(done)
	}()
	<-done
}

// relayWebSocket copies messages from src to dst until either side
// closes or errors. When allow is non-nil, each message is metered
// first and dropped (without closing the connection) if the
// per-message bucket is exhausted.
func relayWebSocket(src, dst *websocket.Conn, allow func() (bool, int)) {
	for {
		msgType, payload, err := src.ReadMessage()
		if err != nil {
			return
		}
		if allow != nil {
			if ok, _ := allow(); !ok {
				continue
			}
		}
		if err := dst.WriteMessage(msgType, payload); err != nil {
			return
		}
	}
}

// corsOriginAllowed reports whether origin may establish a WebSocket
// connection against cfg. A nil CorsConfig or an empty AllowedOrigins
// list means the service hasn't opted into an allowlist, so every
// origin is accepted, matching how CorsConfig already passes through
// untouched to callers that do enforce it.
func corsOriginAllowed(cfg *model.CorsConfig, origin string) bool {
	if cfg == nil || len(cfg.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// websocketBackendURL rewrites a service's http(s) BaseURL into the
// ws(s) scheme gorilla/websocket's Dialer expects, appending the
// router's rewritten path and the inbound query string.
func websocketBackendURL(baseURL, rewrittenPath, rawQuery string) (string, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}
	target.Path = rewrittenPath
	target.RawQuery = rawQuery
	return target.String(), nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := gatewayerr.StatusCode(err)
	logx.WithContext(r.Context()).Errorf("gateway dispatch error (%d): %v", status, err)
	http.Error(w, http.StatusText(status), status)
}

// proxyCache caches one httputil.ReverseProxy per backend so repeated
// requests to the same service reuse its director and transport instead
// of reconstructing one on every request.
type proxyCache struct {
	mu    sync.RWMutex
	cache map[string]*httputil.ReverseProxy
}

func newProxyCache() proxyCache {
	return proxyCache{cache: make(map[string]*httputil.ReverseProxy)}
}

func (c *proxyCache) get(serviceID string, target *url.URL) *httputil.ReverseProxy {
	c.mu.RLock()
	p, ok := c.cache[serviceID+"|"+target.String()]
	c.mu.RUnlock()
	if ok {
		return p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	key := serviceID + "|" + target.String()
	if p, ok = c.cache[key]; ok {
		return p
	}
	p = httputil.NewSingleHostReverseProxy(target)
	c.cache[key] = p
	return p
}
