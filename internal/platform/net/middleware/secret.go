package middleware

import (
	"net/http"

	pnet "hermes-agent/internal/platform/net"
)

// SecretPort is the seam for validating the cluster shared secret
// carried on every inbound Hermes request
type SecretPort interface {
	// Check inspects the request and returns an error if the secret is
	// missing or does not match the configured cluster secret
	Check(r *http.Request) error
}

// Secret is a no-op until wired. It uses the port when provided
func Secret(p SecretPort, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}
			if err := p.Check(r); err != nil {
				status, body := pnet.Error(err, pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
