// Command hermes-agent runs the process-telemetry agent: it samples OS
// processes, joins them against the host's service catalog, and serves
// the result over HTTP for local and cluster-wide collection.
package main

import (
	"context"
	"os"
	"strconv"

	"hermes-agent/internal/hermes/domain"
	"hermes-agent/internal/hermes/module"
	"hermes-agent/internal/hermes/netinfo"
	modkit "hermes-agent/internal/modkit"
	"hermes-agent/internal/modkit/swaggerkit"
	"hermes-agent/internal/platform/config"
	"hermes-agent/internal/platform/logger"
	phttp "hermes-agent/internal/platform/net/http"
)

func main() {
	root := config.New()
	l := logger.Get()

	// HERMES_API_PORT defaults to AppScale's historical Hermes port
	// rather than the platform-wide default.
	if os.Getenv("HERMES_API_PORT") == "" {
		os.Setenv("HERMES_API_PORT", ":"+strconv.Itoa(domain.DefaultPort))
	}

	net := netinfo.FromConfig(root)
	collaborators := module.Collaborators{
		Host:   netinfo.HostIP{Configured: net.PrivateIP},
		Peers:  netinfo.ClusterIPs{IPs: net.ClusterIPs},
		Secret: netinfo.Secret{Value: net.Secret},
	}

	deps := modkit.Deps{Log: *l, Cfg: root}
	m := module.New(deps, collaborators, module.Options{})

	apiCfg := root.Prefix("HERMES_")
	srv := phttp.NewServer(apiCfg)
	r := srv.Router()

	// Swagger UI/profiler are mounted bare on the root router, outside
	// the module's CommonStack+Protected scope, matching api.go's
	// treatment of its own swaggerkit.Mount/phttp.MountProfiler calls.
	swaggerkit.Mount(r, apiCfg.MayBool("SWAGGER", false))
	phttp.MountProfiler(r, "/debug", apiCfg.MayBool("PROFILER", false))

	m.MountRoutes(r)

	l.Info().Str("module", m.Name()).Str("addr", srv.Addr()).Msg("hermes-agent starting")
	if err := srv.Run(context.Background()); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
