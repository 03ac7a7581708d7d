package middleware

import (
	"context"
	"net/http"

	"codegate"
)

// Request headers naming the session under check.
const (
	HeaderIdentity = "X-Identity"
	HeaderSession  = "X-Session-Token"
)

type livenessContextKey struct{}

// LivenessFromContext returns the liveness result injected by SessionGuard.
func LivenessFromContext(ctx context.Context) (codegate.Liveness, bool) {
	res, ok := ctx.Value(livenessContextKey{}).(codegate.Liveness)
	return res, ok
}

// Annotate attaches caller IP, referrer and user agent to the request
// context so Engine operations downstream can audit them.
func Annotate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := codegate.WithCallerIP(r.Context(), codegate.ClientIP(r))
		ctx = codegate.WithReferrer(ctx, codegate.Referrer(r))
		ctx = codegate.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionGuard liveness-checks the session named by the X-Identity and
// X-Session-Token headers. Valid sessions pass through with the liveness
// result in the context; anything else gets 401 with the configured
// session-expired message.
func SessionGuard(engine *codegate.Engine, consumeReload bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identity := r.Header.Get(HeaderIdentity)
			token := r.Header.Get(HeaderSession)
			if identity == "" || token == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			liveness, err := engine.CheckLiveness(r.Context(), identity, token, consumeReload)
			if err != nil {
				msg := codegate.RejectionMessage(err)
				if msg == "" {
					msg = "unauthorized"
				}
				http.Error(w, msg, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), livenessContextKey{}, liveness)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
