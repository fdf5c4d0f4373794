// Package httpkit provides tiny HTTP helpers and adapters
package httpkit

import (
	"crypto/subtle"
	"net/http"

	perrs "hermes-agent/internal/platform/errors"
)

// SecretHeader is the header every cluster peer sends the shared secret on
const SecretHeader = "Appscale-Secret"

// Port implements middleware.SecretPort by comparing the incoming
// Appscale-Secret header against a configured value
type Port struct {
	secret string
}

// NewPortFunc builds a Port from a fixed shared secret value
func NewPortFunc(secret string) *Port {
	return &Port{secret: secret}
}

// Check compares the request's secret header against the configured secret
// using a constant time comparison, returning unauthorized on mismatch
func (p *Port) Check(r *http.Request) error {
	if p == nil || p.secret == "" {
		return perrs.Unauthorizedf("cluster secret not configured")
	}
	got := r.Header.Get(SecretHeader)
	if got == "" {
		return perrs.Unauthorizedf("missing %s header", SecretHeader)
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(p.secret)) != 1 {
		return perrs.Unauthorizedf("invalid %s header", SecretHeader)
	}
	return nil
}
