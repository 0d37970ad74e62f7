package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"io"
	"net/http"

	"github.com/promosynchq/promosync/api/responses"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
	"github.com/promosynchq/promosync/pkg/logger"
)

const hmacHeader = "X-Shopify-Hmac-Sha256"

// maxWebhookBody bounds how much of a delivery we buffer for verification.
const maxWebhookBody = 1 << 20

// ShopifyHMAC verifies the webhook signature against the shared app secret
// before the body reaches any handler. The body is re-buffered so handlers
// can read it normally.
func ShopifyHMAC(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if secret == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured"))
				return
			}

			signature := r.Header.Get(hmacHeader)
			if signature == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature missing"))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read webhook body"))
				return
			}
			_ = r.Body.Close()

			if !validSignature(secret, body, signature) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch"))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

func validSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
