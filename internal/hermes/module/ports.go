package module

import "hermes-agent/internal/hermes/domain"

// Ports exposes the process sampler as a domain.Sampler port so other
// modules (e.g. a future ad hoc scrape trigger) can reuse it without
// going through HTTP.
type Ports struct {
	Sampler domain.Sampler
}
