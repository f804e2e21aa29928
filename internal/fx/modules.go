package fx

import (
	"github.com/meinjens/cstatsentry/internal/api"
	"github.com/meinjens/cstatsentry/internal/config"
	"github.com/meinjens/cstatsentry/internal/database"
	"github.com/meinjens/cstatsentry/internal/logger"
	"github.com/meinjens/cstatsentry/internal/metrics"
	"github.com/meinjens/cstatsentry/internal/provider"
	"github.com/meinjens/cstatsentry/internal/repository"
	"github.com/meinjens/cstatsentry/internal/scheduler"
	"github.com/meinjens/cstatsentry/internal/server"
	"github.com/meinjens/cstatsentry/internal/service"

	"go.uber.org/fx"
)

// ProvideProviders fixes the configured provider set. Priorities are
// unique by construction: steam 1, leetify 2.
func ProvideProviders(steam *provider.Steam, leetify *provider.Leetify) []provider.Provider {
	return []provider.Provider{steam, leetify}
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(metrics.Default),
	// repos
	fx.Provide(repository.NewUserRepository),
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewAnalysisRepository),
	fx.Provide(repository.NewSyncRunRepository),
	// api clients
	fx.Provide(api.NewSteamClient),
	fx.Provide(api.NewLeetifyClient),
	// providers
	fx.Provide(provider.NewSteam),
	fx.Provide(provider.NewLeetify),
	fx.Provide(ProvideProviders),
	// svc
	fx.Provide(service.NewSyncService),
	fx.Provide(service.NewProfileService),
	fx.Provide(service.NewAnalysisService),
	// scheduler + server
	fx.Provide(scheduler.New),
	fx.Provide(server.NewServer),
)
