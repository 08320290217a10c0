// Package runtime wires the long-lived services shared by the commands:
// the persistent store, the cloud lookup, the evaluation cache chain and
// the analysis service. Build metadata lives here too, injected at
// startup and not part of the configuration system.
package runtime

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chesscoach/chesscoach-go/internal/analysis"
	"github.com/chesscoach/chesscoach-go/internal/cloudeval"
	"github.com/chesscoach/chesscoach-go/internal/conf"
	"github.com/chesscoach/chesscoach-go/internal/datastore"
	"github.com/chesscoach/chesscoach-go/internal/evalcache"
	"github.com/chesscoach/chesscoach-go/internal/logging"
	"github.com/chesscoach/chesscoach-go/internal/observability"
)

// Context carries the wired services plus build metadata.
type Context struct {
	Settings *conf.Settings
	Metrics  *observability.Metrics
	Store    datastore.Interface
	Cloud    *cloudeval.Client
	Chain    *evalcache.Chain
	Analysis *analysis.Service

	Version   string
	BuildDate string
}

// Build constructs the service graph from settings. Optional tiers that
// fail to come up are logged and skipped; the evaluation chain degrades
// to the tiers that remain.
func Build(settings *conf.Settings, version, buildDate string) (*Context, error) {
	ctx := &Context{
		Settings:  settings,
		Version:   version,
		BuildDate: buildDate,
	}

	metrics, err := observability.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		logging.Warn("metrics registration failed, continuing without", "error", err)
	} else {
		ctx.Metrics = metrics
	}

	var store evalcache.PersistentStore
	if ds := datastore.New(settings); ds != nil {
		if err := ds.Open(); err != nil {
			logging.Warn("persistent cache unavailable", "error", err)
		} else {
			ctx.Store = ds
			store = ds
		}
	}

	var cloud evalcache.CloudLookup
	if settings.Cloud.Enabled {
		client, err := cloudeval.NewClient(settings.Cloud, ctx.Metrics)
		if err != nil {
			logging.Warn("cloud lookup unavailable", "error", err)
		} else {
			ctx.Cloud = client
			cloud = client
		}
	}

	// The engine slot stays empty; every analysis owns its own session.
	ctx.Chain = evalcache.NewChain(settings.Cache.MemoryEntries, settings.Cache.TrimBlock,
		store, cloud, nil, ctx.Metrics)
	ctx.Analysis = analysis.NewService(settings, ctx.Chain, ctx.Store, ctx.Metrics)
	return ctx, nil
}

// Close releases everything Build opened.
func (c *Context) Close() {
	if c.Cloud != nil {
		c.Cloud.Close()
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			logging.Warn("closing datastore", "error", err)
		}
	}
}
