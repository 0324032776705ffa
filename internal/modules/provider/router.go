package provider

import (
	"context"
	"strings"

	"github.com/jobtrail/core/internal/modules/settings"
	"github.com/jobtrail/core/internal/pkg/aierr"
)

// Selection is the routing outcome. Fallback is set only in hybrid mode when
// both backends are viable; the orchestrator takes at most one fallback step.
type Selection struct {
	Primary  Backend
	Fallback Backend
}

// Select resolves the configured mode to a usable backend. Pure apart from
// the availability probe; settings are never mutated.
func Select(ctx context.Context, cfg settings.AiSettings, probe AvailabilityProbe) (Selection, error) {
	cloudOK, cloudMissing := cloudViable(cfg)
	localOK := probe.LocalAvailable(ctx, cfg)

	switch cfg.Mode {
	case settings.ModeLocal:
		if !localOK {
			return Selection{}, aierr.New(aierr.KindConfiguration, "local provider unavailable: "+localRequirement(cfg))
		}
		return Selection{Primary: BackendLocal}, nil

	case settings.ModeCloud:
		if !cloudOK {
			return Selection{}, aierr.New(aierr.KindConfiguration, "cloud provider unavailable: missing "+strings.Join(cloudMissing, ", "))
		}
		return Selection{Primary: BackendCloud}, nil

	case settings.ModeHybrid:
		switch {
		case cloudOK && localOK:
			return Selection{Primary: BackendCloud, Fallback: BackendLocal}, nil
		case cloudOK:
			return Selection{Primary: BackendCloud}, nil
		case localOK:
			return Selection{Primary: BackendLocal}, nil
		default:
			return Selection{}, aierr.Newf(aierr.KindConfiguration,
				"no usable provider: cloud missing %s; local %s",
				strings.Join(cloudMissing, ", "), localRequirement(cfg))
		}

	default:
		return Selection{}, aierr.Newf(aierr.KindConfiguration, "unknown provider mode %q", cfg.Mode)
	}
}

func cloudViable(cfg settings.AiSettings) (bool, []string) {
	missing := make([]string, 0, 2)
	if strings.TrimSpace(cfg.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if cfg.CloudProvider == "" {
		missing = append(missing, "cloud_provider")
	}
	return len(missing) == 0, missing
}

func localRequirement(cfg settings.AiSettings) string {
	if strings.TrimSpace(cfg.LocalModelPath) == "" {
		return "needs local_model_path"
	}
	return "model file or runtime not ready"
}
