package admin

import (
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
)

var (
	validatorOnce sync.Once
	singleton     *validator.Validate
)

func validate(req interface{}) error {
	validatorOnce.Do(func() {
		singleton = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := singleton.Struct(req); err != nil {
		return gatewayerr.New(gatewayerr.KindInput, err)
	}
	return nil
}
