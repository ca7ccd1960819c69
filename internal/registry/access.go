package registry

import (
	"net"
	"strings"

	"github.com/suleymanmyradov/trustgate/internal/model"
)

// CheckAccess reports whether remoteAddr is allowed to reach a PRIVATE
// endpoint's accessConfig allowlists. A nil or empty AccessConfig
// denies everything, since a PRIVATE endpoint with no configured
// allowlist has no legitimate caller.
func CheckAccess(cfg *model.AccessConfig, remoteAddr string) bool {
	if cfg == nil {
		return false
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}

	for _, ip := range cfg.AllowedIPs {
		if matchesIPOrCIDR(ip, host) {
			return true
		}
	}
	for _, domain := range cfg.AllowedDomains {
		if strings.EqualFold(host, domain) {
			return true
		}
	}
	for _, sub := range cfg.AllowedSubdomains {
		if strings.HasSuffix(strings.ToLower(host), "."+strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

func matchesIPOrCIDR(allowed, host string) bool {
	if strings.Contains(allowed, "/") {
		_, network, err := net.ParseCIDR(allowed)
		if err != nil {
			return false
		}
		ip := net.ParseIP(host)
		return ip != nil && network.Contains(ip)
	}
	return allowed == host
}
