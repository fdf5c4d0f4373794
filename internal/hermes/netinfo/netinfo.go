// Package netinfo supplies default implementations of Hermes's external
// collaborator ports: this node's private IP, the cluster peer list,
// and the shared cluster secret. In a real AppScale deployment these
// come from appscale_info (backed by ZooKeeper and local AppScale
// config files, none of which this repo has access to); here they are
// read from env-driven config, the same config-first approach used
// for every other external input in this repo, with a best-effort
// local-network fallback for the private IP.
package netinfo

import (
	"context"
	"errors"
	"net"

	"hermes-agent/internal/platform/config"
)

// Config holds the env-driven defaults for the three external
// collaborator ports.
type Config struct {
	PrivateIP  string
	ClusterIPs []string
	Secret     string
}

// FromConfig reads with HERMES_ prefix.
func FromConfig(cfg config.Conf) Config {
	c := cfg.Prefix("HERMES_")
	return Config{
		PrivateIP:  c.MayString("PRIVATE_IP", ""),
		ClusterIPs: c.MayCSV("CLUSTER_IPS", nil),
		Secret:     c.MayString("SECRET", ""),
	}
}

// errNoLocalIPv4 is returned when no non-loopback IPv4 address can be
// found on any local interface and no override was configured.
var errNoLocalIPv4 = errors.New("netinfo: no non-loopback IPv4 address found")

// HostIP resolves this node's private address: a configured override
// if set, else the first non-loopback IPv4 address on a local
// interface, grounded on appscale_info.get_private_ip.
type HostIP struct {
	Configured string
}

// PrivateIP implements domain.HostIPPort.
func (h HostIP) PrivateIP() (string, error) {
	if h.Configured != "" {
		return h.Configured, nil
	}
	return localIPv4()
}

func localIPv4() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", errNoLocalIPv4
}

// ClusterIPs returns a fixed, configured peer list, grounded on
// appscale_info.get_all_ips (which this agent cannot itself discover
// without the rest of the AppScale control plane).
type ClusterIPs struct {
	IPs []string
}

// ClusterIPs implements domain.ClusterIPsPort.
func (c ClusterIPs) ClusterIPs(context.Context) []string {
	return append([]string(nil), c.IPs...)
}

// Secret returns a fixed, configured shared secret, grounded on
// appscale_info.get_secret.
type Secret struct {
	Value string
}

// Secret implements domain.SecretSource.
func (s Secret) Secret() string { return s.Value }
