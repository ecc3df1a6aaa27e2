package engine

import (
	"github.com/jonathan/addrlens/internal/config"
	"github.com/jonathan/addrlens/internal/hover"
	"github.com/jonathan/addrlens/internal/logger"
	"github.com/jonathan/addrlens/internal/mutation"
)

// OptionsFromConfig maps the rescan and hover sections of cfg onto engine options.
// Zero values fall through to the package defaults.
func OptionsFromConfig(cfg *config.Config, log *logger.Logger) Options {
	if cfg == nil {
		return Options{Logger: log}
	}
	return Options{
		Mutation: mutation.Options{
			Window:   cfg.Rescan.Window.Duration,
			MaxDelay: cfg.Rescan.MaxDelay.Duration,
		},
		Hover: hover.Options{
			ShowDelay:     cfg.Hover.ShowDelay.Duration,
			HideDelay:     cfg.Hover.HideDelay.Duration,
			RecordTimeout: cfg.Hover.RecordTimeout.Duration,
			PanelSize:     hover.Size{Width: cfg.Hover.PanelWidth, Height: cfg.Hover.PanelHeight},
			Viewport:      hover.Size{Width: cfg.Hover.ViewportWidth, Height: cfg.Hover.ViewportHeight},
		},
		Logger: log,
	}
}
