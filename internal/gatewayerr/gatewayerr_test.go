package gatewayerr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode_MapsKnownKinds(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindInput, http.StatusBadRequest},
		{KindAuth, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindConflict, http.StatusConflict},
		{KindPrecondition, http.StatusPreconditionFailed},
		{KindNotFound, http.StatusNotFound},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindDependency, http.StatusServiceUnavailable},
		{KindPolicy, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		err := New(c.kind, errors.New("boom"))
		assert.Equal(t, c.want, StatusCode(err))
	}
}

func TestStatusCode_NonGatewayErrorDefaultsTo500(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("plain")))
}

func TestForbidden_CarriesOperation(t *testing.T) {
	err := Forbidden("service.config.update")
	assert.Equal(t, KindForbidden, err.Kind)
	assert.Equal(t, "service.config.update", err.Operation)
}

func TestError_UnwrapPreservesCause(t *testing.T) {
	cause := errors.New("underlying")
	err := New(KindDependency, cause)
	assert.True(t, errors.Is(err, cause))
}
