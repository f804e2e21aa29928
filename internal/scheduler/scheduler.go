// Package scheduler runs the periodic background work: syncing all
// sync-enabled users and refreshing outdated ban state.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/meinjens/cstatsentry/internal/config"
	"github.com/meinjens/cstatsentry/internal/constants"
	"github.com/meinjens/cstatsentry/internal/repository"
	"github.com/meinjens/cstatsentry/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Scheduler struct {
	users      *repository.UserRepository
	syncSvc    *service.SyncService
	profileSvc *service.ProfileService
	cfg        *config.Config
	logger     zerolog.Logger

	cancel context.CancelFunc
	done   sync.WaitGroup
}

func New(
	users *repository.UserRepository,
	syncSvc *service.SyncService,
	profileSvc *service.ProfileService,
	cfg *config.Config,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		users:      users,
		syncSvc:    syncSvc,
		profileSvc: profileSvc,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start launches the periodic loops. Idempotent per process lifetime;
// stop with Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.done.Add(2)
	go s.loop(ctx, "sync", s.cfg.SyncInterval, s.syncAll)
	go s.loop(ctx, "ban_refresh", s.cfg.BanInterval, s.refreshBans)

	s.logger.Info().
		Dur("sync_interval", s.cfg.SyncInterval).
		Dur("ban_refresh_interval", s.cfg.BanInterval).
		Msg("scheduler started")
}

// Stop cancels the loops and waits for in-flight work to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.done.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, task func(context.Context)) {
	defer s.done.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logger.Debug().Str("task", name).Msg("scheduled task starting")
			task(ctx)
		}
	}
}

// syncAll runs a sync for every sync-enabled user with bounded
// parallelism. A user whose previous run is still active is skipped;
// the next tick picks them up again.
func (s *Scheduler) syncAll(ctx context.Context) {
	users, err := s.users.ListSyncEnabled(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list sync-enabled users")
		return
	}
	if len(users) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.SyncWorkers)
	for _, user := range users {
		g.Go(func() error {
			run, err := s.syncSvc.SyncUser(gctx, user.UserID)
			switch {
			case errors.Is(err, service.ErrRunActive):
				s.logger.Debug().Str("user_id", user.UserID).Msg("sync already active, skipping")
			case err != nil:
				s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("scheduled sync failed")
			default:
				s.logger.Debug().
					Str("user_id", user.UserID).
					Str("run_id", run.RunID).
					Str("status", run.Status).
					Msg("scheduled sync finished")
			}
			return nil
		})
	}
	g.Wait()

	s.logger.Info().Int("users", len(users)).Msg("scheduled sync pass finished")
}

func (s *Scheduler) refreshBans(ctx context.Context) {
	refreshed, err := s.profileSvc.RefreshOutdatedBans(ctx, constants.BanRefreshBatch)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled ban refresh failed")
		return
	}
	s.logger.Info().Int("refreshed", refreshed).Msg("scheduled ban refresh finished")
}
