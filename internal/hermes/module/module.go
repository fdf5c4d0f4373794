// Package module wires the process sampler and service catalog into a
// resourcekit.Handler, following this repo's New(deps,
// opts)/Ports()/Name()/MountRoutes() module shape.
package module

import (
	"context"

	"hermes-agent/internal/hermes/catalog"
	"hermes-agent/internal/hermes/domain"
	"hermes-agent/internal/hermes/resourcekit"
	"hermes-agent/internal/hermes/sampler"
	modkit "hermes-agent/internal/modkit"
	"hermes-agent/internal/modkit/httpkit"
)

// Collaborators holds the external collaborators this module cannot
// construct itself: host identity, cluster membership, and the shared
// cluster secret.
type Collaborators struct {
	Host   domain.HostIPPort
	Peers  domain.ClusterIPsPort
	Secret domain.SecretSource
}

// Module binds resourceName "processes" (or an override) to a
// sampler.Sampler-backed resourcekit.Handler.
type Module struct {
	deps    modkit.Deps
	handler *resourcekit.Handler
	sampler *sampler.Sampler
	auth    *httpkit.Port
	name    string
}

// New constructs the process-resource module.
func New(deps modkit.Deps, collaborators Collaborators, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.ResourceName != "" {
		opts.ResourceName = overrides.ResourceName
	}

	resolver := catalog.NewResolver(nil)
	samp := sampler.New(resolver, collaborators.Host)

	handler := resourcekit.NewHandler(
		opts.ResourceName,
		localSource{sampler: samp},
		collaborators.Peers,
		collaborators.Host,
		collaborators.Secret,
	)

	var secretValue string
	if collaborators.Secret != nil {
		secretValue = collaborators.Secret.Secret()
	}

	return &Module{
		deps:    deps,
		handler: handler,
		sampler: samp,
		auth:    httpkit.NewPortFunc(secretValue),
		name:    "hermes-" + opts.ResourceName,
	}
}

// Ports returns the module ports (Sampler).
func (m *Module) Ports() any { return Ports{Sampler: m.sampler} }

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// MountRoutes mounts the local and cluster endpoints for this resource
// behind the common middleware stack (recovery, access logging, …) and
// the cluster shared-secret check, matching the teacher's
// CommonStack()+Protected() wiring (api.go's httpkit.MountAPIV1 call).
// Unlike the teacher, routes stay at their literal /v2/... paths: a
// Group only adds a middleware scope, it never rewrites the path.
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Group(func(gr httpkit.Router) {
		gr.Use(httpkit.CommonStack()...)
		httpkit.Protected(gr, m.auth, func(pr httpkit.Router) {
			m.handler.MountRoutes(pr)
		})
	})
}

// localSource adapts a domain.Sampler to resourcekit.LocalSource,
// grounded on process.py's list_resource: a scrape never produces its
// own advisory failure messages, only entities.
type localSource struct {
	sampler domain.Sampler
}

func (l localSource) List(ctx context.Context) (any, []string, error) {
	samples, err := l.sampler.Sample(ctx)
	if err != nil {
		return nil, nil, err
	}
	return samples, nil, nil
}
