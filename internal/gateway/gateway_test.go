package gateway

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/trustgate/internal/authz"
	"github.com/suleymanmyradov/trustgate/internal/model"
	"github.com/suleymanmyradov/trustgate/internal/ratelimit"
	"github.com/suleymanmyradov/trustgate/internal/registry"
	"github.com/suleymanmyradov/trustgate/internal/svc"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestEffectiveVisibility_PrefersEndpointOverRuleOverDefault(t *testing.T) {
	service := &model.ServiceRegistration{DefaultVisibility: model.VisibilityPublic}

	onlyDefault := &registry.Match{Service: service}
	assert.Equal(t, model.VisibilityPublic, effectiveVisibility(onlyDefault))

	withRule := &registry.Match{Service: service, VisibilityRule: &model.VisibilityRule{Visibility: model.VisibilityPrivate}}
	assert.Equal(t, model.VisibilityPrivate, effectiveVisibility(withRule))

	withEndpoint := &registry.Match{
		Service:        service,
		VisibilityRule: &model.VisibilityRule{Visibility: model.VisibilityPrivate},
		Endpoint:       &model.Endpoint{Visibility: model.VisibilityPublic},
	}
	assert.Equal(t, model.VisibilityPublic, effectiveVisibility(withEndpoint))
}

func TestExtractCredential_BearerThenApiKeyHeader(t *testing.T) {
	bearer := httptest.NewRequest(http.MethodGet, "/", nil)
	bearer.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", extractCredential(bearer))

	apiKey := httptest.NewRequest(http.MethodGet, "/", nil)
	apiKey.Header.Set("X-Api-Key", "sk_live_123")
	assert.Equal(t, "sk_live_123", extractCredential(apiKey))

	none := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", extractCredential(none))
}

func TestCallerKey_PrefersPrincipalSubjectOverIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:5000"

	withPrincipal := &model.Principal{Subject: "user-42"}
	assert.Equal(t, "user-42", callerKey(withPrincipal, req))
	assert.Equal(t, "203.0.113.5", callerKey(nil, req))
}

func TestEndpointPath_FallsBackToRoutePrefix(t *testing.T) {
	service := &model.ServiceRegistration{RoutePrefix: "/orders"}
	match := &registry.Match{Service: service}
	assert.Equal(t, "/orders", endpointPath(match))

	match.Endpoint = &model.Endpoint{Path: "/{id}"}
	assert.Equal(t, "/{id}", endpointPath(match))
}

func TestProxyCache_ReusesProxyForSameTarget(t *testing.T) {
	cache := newProxyCache()
	target := mustParseURL(t, "http://backend.internal")

	p1 := cache.get("svc", target)
	p2 := cache.get("svc", target)
	assert.Same(t, p1, p2, "repeated lookups for the same service/target should reuse the cached proxy")
}

func TestWebsocketBackendURL_RewritesSchemeAndAppendsQuery(t *testing.T) {
	httpURL, err := websocketBackendURL("http://backend.internal:8080", "/stream", "token=abc")
	require.NoError(t, err)
	assert.Equal(t, "ws://backend.internal:8080/stream?token=abc", httpURL)

	httpsURL, err := websocketBackendURL("https://backend.internal", "/stream", "")
	require.NoError(t, err)
	assert.Equal(t, "wss://backend.internal/stream", httpsURL)
}

func TestCorsOriginAllowed(t *testing.T) {
	assert.True(t, corsOriginAllowed(nil, "https://app.example.com"), "no allowlist means every origin passes")

	cfg := &model.CorsConfig{AllowedOrigins: []string{"https://app.example.com"}}
	assert.True(t, corsOriginAllowed(cfg, "https://app.example.com"))
	assert.False(t, corsOriginAllowed(cfg, "https://evil.example.com"))

	wildcard := &model.CorsConfig{AllowedOrigins: []string{"*"}}
	assert.True(t, corsOriginAllowed(wildcard, "https://anything.example.com"))
}

// TestGateway_ProxiesWebSocketEndpointAndEnforcesPerMessageRateLimit
// exercises the WebSocket endpoint type end to end: the gateway
// upgrades the client connection, dials the matched backend as a
// second WebSocket client, and relays frames — while a tight
// per-message bucket caps how many of those frames actually reach the
// backend, independent of the connection-establishment bucket having
// already let the Upgrade through (spec §4.7).
func TestGateway_ProxiesWebSocketEndpointAndEnforcesPerMessageRateLimit(t *testing.T) {
	received := make(chan string, 16)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(payload)
		}
	}))
	defer backend.Close()

	service := &model.ServiceRegistration{
		ServiceID:           "streaming",
		BaseURL:             backend.URL,
		RoutePrefix:         "/stream",
		DefaultVisibility:   model.VisibilityPublic,
		DefaultAuthRequired: false,
		Endpoints: []model.Endpoint{
			{Path: "/ws", Methods: []string{"GET"}, Type: model.EndpointWebSocket, Visibility: model.VisibilityPublic},
		},
	}

	reg := registry.NewRegistry()
	reg.Replace([]*model.ServiceRegistration{service})

	svcCtx := &svc.ServiceContext{
		Registry:    reg,
		Authz:       authz.NewEvaluator(),
		RateLimiter: ratelimit.New(model.RateLimitConfig{RequestsPerWindow: 1000, WindowSeconds: 60, BurstCapacity: 1000}),
	}
	// A burst of 2 means only the first two frames after the upgrade
	// reach the backend; the rest must be dropped, not close the
	// connection or fail the test.
	service.RateLimitConfig = &model.RateLimitConfig{RequestsPerWindow: 1, WindowSeconds: 60, BurstCapacity: 2}

	gw := New(svcCtx)
	frontend := httptest.NewServer(gw)
	defer frontend.Close()

	wsURL := "ws" + frontend.URL[len("http"):] + "/stream/ws"
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer clientConn.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, clientConn.WriteMessage(websocket.TextMessage, []byte("frame")))
	}

	count := 0
	quiet := time.NewTimer(500 * time.Millisecond)
	defer quiet.Stop()
collect:
	for {
		select {
		case <-received:
			count++
			if !quiet.Stop() {
				<-quiet.C
			}
			quiet.Reset(500 * time.Millisecond)
		case <-quiet.C:
			break collect
		}
	}
	assert.Equal(t, 2, count, "burst capacity of 2 must cap frames relayed to the backend")
}
