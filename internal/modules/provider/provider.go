// Package provider resolves the Local/Cloud/Hybrid strategy to a concrete
// backend and holds the two inference adapters behind one invoke contract.
package provider

import (
	"context"

	"github.com/jobtrail/core/internal/modules/settings"
)

// Backend names a concrete inference target.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendCloud Backend = "cloud"
)

// Request is one atomic inference call. ShapeHint describes the expected
// output JSON so prompts can pin the schema; adapters return raw model text.
type Request struct {
	System      string
	Prompt      string
	ShapeHint   string
	MaxTokens   int
	Temperature float64
}

// Adapter is the uniform invoke contract over local and cloud inference.
// Settings are passed per call so a save takes effect on the next request.
type Adapter interface {
	Invoke(ctx context.Context, cfg settings.AiSettings, req Request) (string, error)
	Name() string
}

// AvailabilityProbe answers whether the local backend could serve a call
// right now (model file valid, runtime answering).
type AvailabilityProbe interface {
	LocalAvailable(ctx context.Context, cfg settings.AiSettings) bool
}
