package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/suleymanmyradov/trustgate/internal/model"
)

func TestCheckAccess_NilConfigDeniesEverything(t *testing.T) {
	assert.False(t, CheckAccess(nil, "10.0.0.1:443"))
}

func TestCheckAccess_ExactIPAllowed(t *testing.T) {
	cfg := &model.AccessConfig{AllowedIPs: []string{"10.0.0.1"}}
	assert.True(t, CheckAccess(cfg, "10.0.0.1:443"))
	assert.False(t, CheckAccess(cfg, "10.0.0.2:443"))
}

func TestCheckAccess_CIDRAllowed(t *testing.T) {
	cfg := &model.AccessConfig{AllowedIPs: []string{"10.0.0.0/24"}}
	assert.True(t, CheckAccess(cfg, "10.0.0.200:1234"))
	assert.False(t, CheckAccess(cfg, "10.0.1.1:1234"))
}

func TestCheckAccess_SubdomainAllowed(t *testing.T) {
	cfg := &model.AccessConfig{AllowedSubdomains: []string{"internal.example.com"}}
	assert.True(t, CheckAccess(cfg, "svc.internal.example.com"))
	assert.False(t, CheckAccess(cfg, "internal.example.com"))
}

func TestCheckAccess_ExactDomainAllowed(t *testing.T) {
	cfg := &model.AccessConfig{AllowedDomains: []string{"example.com"}}
	assert.True(t, CheckAccess(cfg, "EXAMPLE.COM"))
}
