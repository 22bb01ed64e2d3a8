package commands

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/harvest"
	"github.com/use-agent/harvest/jobs"
	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/navigator"
)

func newOrchestrator(hc config.HarvestConfig, m *metrics.Metrics) *harvest.Orchestrator {
	ctrl := navigator.New(hc, extractor.New(hc), m)
	return harvest.New(ctrl, hc, m)
}

func rodOptions(c *config.Config) browser.RodOptions {
	return browser.RodOptions{
		PollInterval:         c.Harvest.PollInterval,
		BlockedResourceTypes: c.Browser.BlockedResourceTypes,
		ExtraHeaders:         c.Browser.ExtraHeaders,
	}
}

// sessionFactory opens a fresh set of windows on the shared browser for
// every job.
func sessionFactory(b *rod.Browser, opts browser.RodOptions) jobs.SessionFactory {
	return func(ctx context.Context) (browser.Session, func(), error) {
		s, err := browser.NewRodSession(ctx, b, opts)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}
