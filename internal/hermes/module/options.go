package module

import (
	"hermes-agent/internal/platform/config"
)

// Options controls the process-resource module.
type Options struct {
	ResourceName string
}

// FromConfig reads with HERMES_ prefix.
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("HERMES_")
	return Options{
		ResourceName: c.MayString("RESOURCE_NAME", "processes"),
	}
}
