package fx

import (
	"tournament-stats/internal/config"
	"tournament-stats/internal/database"
	"tournament-stats/internal/logger"
	"tournament-stats/internal/repository"
	"tournament-stats/internal/scheduler"
	"tournament-stats/internal/server"
	"tournament-stats/internal/service"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewIdentityRepository),
	fx.Provide(repository.NewMatchStatsRepository),
	fx.Provide(repository.NewAggregateRepository),
	fx.Provide(repository.NewTournamentRepository),
	fx.Provide(repository.NewAnomalyRepository),
	fx.Provide(repository.NewTrustRepository),
	fx.Provide(repository.NewPendingRepository),
	// svc
	fx.Provide(service.NewResolverService),
	fx.Provide(service.NewLifetimeService),
	fx.Provide(service.NewAnomalyService),
	fx.Provide(service.NewTournamentService),
	fx.Provide(service.NewIngestService),
	// scheduler
	fx.Provide(scheduler.New),
	// server
	fx.Provide(server.NewWebhookServer),
)
