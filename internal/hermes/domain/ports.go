package domain

import "context"

// Sampler enumerates OS processes and returns one ProcessSample per live
// process, grounded on process.py's list_processes coroutine.
type Sampler interface {
	Sample(ctx context.Context) ([]ProcessSample, error)
}

// CatalogResolver discovers managed-service PID-to-tag mappings from the
// host's service manager, grounded on process.py's get_known_processes.
type CatalogResolver interface {
	Resolve(ctx context.Context) (map[int32]Tags, error)
}

// ClusterIPsPort supplies the default peer location list used by the
// cluster endpoint when a request body is absent, grounded on
// appscale_info.get_all_ips (an external collaborator this repo cannot
// resolve on its own).
type ClusterIPsPort interface {
	ClusterIPs(ctx context.Context) []string
}

// HostIPPort resolves this node's private address, grounded on
// appscale_info.get_private_ip (an external collaborator this repo
// cannot resolve on its own).
type HostIPPort interface {
	PrivateIP() (string, error)
}

// SecretSource supplies the current cluster shared secret value used to
// populate the Appscale-Secret header on outbound peer requests,
// grounded on appscale_info.get_secret (an external collaborator).
type SecretSource interface {
	Secret() string
}
