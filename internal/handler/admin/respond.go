package admin

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
)

// writeResult writes resp as JSON on success, or maps err to its HTTP
// status via gatewayerr.StatusCode and writes {"error": <message>}.
func writeResult(w http.ResponseWriter, r *http.Request, resp interface{}, err error) {
	if err != nil {
		httpx.WriteJsonCtx(r.Context(), w, gatewayerr.StatusCode(err), map[string]string{"error": err.Error()})
		return
	}
	httpx.OkJsonCtx(r.Context(), w, resp)
}
