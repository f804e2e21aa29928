package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/meinjens/cstatsentry/internal/constants"
	"github.com/meinjens/cstatsentry/internal/domain"
	"github.com/meinjens/cstatsentry/internal/metrics"
	"github.com/meinjens/cstatsentry/internal/provider"
	"github.com/meinjens/cstatsentry/internal/repository"
	"github.com/meinjens/cstatsentry/internal/sharecode"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// ErrRunActive is returned when a sync is requested for a user whose
// previous run has not finished.
var ErrRunActive = errors.New("sync run already active for this user")

// SyncService orchestrates match-history ingestion: one run fans out
// over all configured providers, normalizes their sessions into the
// canonical match shape and folds them into the store.
type SyncService struct {
	users     *repository.UserRepository
	matches   *repository.MatchRepository
	runs      *repository.SyncRunRepository
	providers []provider.Provider
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	locks *userLocks

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

func NewSyncService(
	users *repository.UserRepository,
	matches *repository.MatchRepository,
	runs *repository.SyncRunRepository,
	providers []provider.Provider,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *SyncService {
	return &SyncService{
		users:     users,
		matches:   matches,
		runs:      runs,
		providers: providers,
		metrics:   m,
		logger:    logger,
		locks:     newUserLocks(),
		active:    make(map[string]context.CancelFunc),
	}
}

// SyncUser runs one full sync for the user and blocks until it
// reaches a terminal state. At most one run per user is active at a
// time; a second request gets ErrRunActive after a bounded wait.
func (s *SyncService) SyncUser(ctx context.Context, userID string) (*domain.SyncRun, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !s.locks.acquire(userID, constants.RunLockWait) {
		return nil, ErrRunActive
	}
	defer s.locks.release(userID)

	// Store-side guard catches runs started by another process. Stale
	// running rows from a crash stop blocking after StaleRunAge.
	active, err := s.runs.HasActiveRun(ctx, userID, constants.StaleRunAge)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrRunActive
	}

	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}

	run := &domain.SyncRun{
		RunID:     runID,
		UserID:    userID,
		Status:    domain.RunQueued,
		Providers: make(map[string]domain.ProviderResult),
		StartedAt: time.Now().UTC(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, constants.SyncRunTimeout)
	defer cancel()
	s.registerCancel(userID, cancel)
	defer s.unregisterCancel(userID)

	run.Status = domain.RunRunning
	if err := s.runs.Update(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("run_id", runID).
		Str("user_id", userID).
		Int("providers", len(s.providers)).
		Msg("sync run started")

	var resultMu sync.Mutex
	g, gctx := errgroup.WithContext(runCtx)
	for _, p := range s.providers {
		g.Go(func() error {
			result := s.syncProvider(gctx, user, p)
			resultMu.Lock()
			run.Providers[p.Name()] = result
			resultMu.Unlock()
			// Provider failures are recorded, never propagated: one
			// source going down must not abort the others.
			return nil
		})
	}
	g.Wait()

	s.finalize(ctx, user, run, runCtx.Err())
	return run, nil
}

// CancelUser cancels the user's in-flight run, if any.
func (s *SyncService) CancelUser(userID string) bool {
	s.mu.Lock()
	cancel, ok := s.active[userID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// GetSyncStatus returns the user's latest run, repository.ErrNotFound
// when the user has never synced.
func (s *SyncService) GetSyncStatus(ctx context.Context, userID string) (*domain.SyncRun, error) {
	return s.runs.GetLatest(ctx, userID)
}

func (s *SyncService) registerCancel(userID string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.active[userID] = cancel
	s.mu.Unlock()
}

func (s *SyncService) unregisterCancel(userID string) {
	s.mu.Lock()
	delete(s.active, userID)
	s.mu.Unlock()
}

// syncProvider ingests one provider: list sessions newer than the
// stored cursor, fetch details with bounded concurrency, normalize,
// and merge the longest successful prefix in one transaction together
// with the cursor advance.
func (s *SyncService) syncProvider(ctx context.Context, user *domain.User, p provider.Provider) domain.ProviderResult {
	result := domain.ProviderResult{Status: domain.ProviderOK}
	logger := s.logger.With().Str("provider", p.Name()).Str("user_id", user.UserID).Logger()

	since, err := s.users.GetCursor(ctx, user.UserID, p.Name())
	if err != nil {
		return s.failProvider(logger, result, p, fmt.Errorf("failed to load cursor: %w", err))
	}

	var refs []provider.SessionRef
	err = s.withRetry(ctx, func(ctx context.Context) error {
		var listErr error
		refs, listErr = p.ListRecentSessions(ctx, user, since, constants.SessionListLimit)
		return listErr
	})
	if err != nil {
		return s.failProvider(logger, result, p, err)
	}
	result.SessionsListed = len(refs)

	if len(refs) == 0 {
		result.Cursor = since
		return result
	}

	// Fetch details concurrently; order is preserved in the slices so
	// the cursor can still advance over the longest successful prefix.
	details := make([]*provider.SessionRecord, len(refs))
	fetchErrs := make([]error, len(refs))
	fg, fctx := errgroup.WithContext(ctx)
	fg.SetLimit(constants.DetailFetchLimit)
	for i, ref := range refs {
		fg.Go(func() error {
			fetchErrs[i] = s.withRetry(fctx, func(ctx context.Context) error {
				var fetchErr error
				details[i], fetchErr = p.FetchSessionDetail(ctx, user, ref)
				return fetchErr
			})
			return nil
		})
	}
	fg.Wait()

	var records []repository.MergeRecord
	var cursor string
	var fetchFailure error
	for i, ref := range refs {
		if fetchErrs[i] != nil {
			var malformed *provider.MalformedError
			if errors.As(fetchErrs[i], &malformed) {
				logger.Warn().Err(fetchErrs[i]).Str("native_id", ref.NativeID).Msg("skipping malformed session")
				result.RecordsSkipped++
				s.metrics.RecordsSkipped.Inc()
				cursor = ref.Cursor
				continue
			}
			fetchFailure = fetchErrs[i]
			break
		}

		rec, err := s.normalize(p, details[i])
		if err != nil {
			logger.Warn().Err(err).Str("native_id", ref.NativeID).Msg("skipping unnormalizable session")
			result.RecordsSkipped++
			s.metrics.RecordsSkipped.Inc()
			cursor = ref.Cursor
			continue
		}

		records = append(records, rec)
		result.SessionsFetched++
		cursor = ref.Cursor
	}

	if len(records) > 0 || cursor != "" {
		stats, err := s.matches.MergeBatch(ctx, user, p.Name(), records, cursor)
		if err != nil {
			return s.failProvider(logger, result, p, fmt.Errorf("failed to merge batch: %w", err))
		}
		result.MatchesCreated = stats.Created
		result.MatchesEnriched = stats.Enriched
		result.Cursor = cursor
		s.metrics.MatchesCreated.Add(float64(stats.Created))
		s.metrics.MatchesEnriched.Add(float64(stats.Enriched))
	}

	if fetchFailure != nil {
		// The merged prefix stays committed; the failure only marks
		// the provider so the next run resumes from the new cursor.
		return s.failProvider(logger, result, p, fetchFailure)
	}

	logger.Info().
		Int("listed", result.SessionsListed).
		Int("fetched", result.SessionsFetched).
		Int("created", result.MatchesCreated).
		Int("enriched", result.MatchesEnriched).
		Int("skipped", result.RecordsSkipped).
		Msg("provider sync finished")
	return result
}

// withRetry retries transient provider failures with exponential
// backoff. Auth errors and malformed records are terminal for the
// attempt and returned as-is.
func (s *SyncService) withRetry(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(constants.RetryMaxAttempts-1), retry.NewExponential(constants.RetryBaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		var unavailable *provider.UnavailableError
		if errors.As(err, &unavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// normalize converts a provider record into the canonical merge shape.
// Identity preference: decoded sharecode match id, then the provider's
// native id; a record with neither is malformed.
func (s *SyncService) normalize(p provider.Provider, rec *provider.SessionRecord) (repository.MergeRecord, error) {
	var matchID string
	demoURL := rec.DemoURL

	switch {
	case rec.ShareCode != "":
		info, err := sharecode.Decode(rec.ShareCode)
		if err != nil {
			return repository.MergeRecord{}, &provider.MalformedError{Provider: p.Name(), Err: err}
		}
		matchID = strconv.FormatUint(info.MatchID, 10)
		if demoURL == "" {
			demoURL = sharecode.DemoURL(info, constants.DefaultReplayServer)
		}
	case rec.NativeID != "":
		matchID = rec.NativeID
	default:
		return repository.MergeRecord{}, &provider.MalformedError{Provider: p.Name(), Err: errors.New("session record carries no identity")}
	}

	match := domain.Match{
		MatchID:        matchID,
		ShareCode:      rec.ShareCode,
		MapName:        rec.MapName,
		MatchDate:      rec.StartedAt,
		ScoreTeam1:     rec.ScoreTeam1,
		ScoreTeam2:     rec.ScoreTeam2,
		DemoURL:        demoURL,
		GameType:       rec.GameType,
		SourcePriority: p.Priority(),
	}
	switch {
	case rec.ScoreTeam1 > rec.ScoreTeam2:
		match.WinningTeam = 1
	case rec.ScoreTeam2 > rec.ScoreTeam1:
		match.WinningTeam = 2
	}

	players := make([]domain.MatchPlayer, 0, len(rec.Players))
	for _, sp := range rec.Players {
		players = append(players, domain.MatchPlayer{
			MatchID:        matchID,
			SteamID:        sp.SteamID,
			Name:           sp.Name,
			Team:           sp.Team,
			Kills:          sp.Kills,
			Deaths:         sp.Deaths,
			Assists:        sp.Assists,
			Score:          sp.Score,
			Headshots:      sp.Headshots,
			HeadshotPct:    sp.HeadshotPct,
			ADR:            sp.ADR,
			Rating:         sp.Rating,
			MVPs:           sp.MVPs,
			SourcePriority: p.Priority(),
		})
	}

	return repository.MergeRecord{Match: match, Players: players}, nil
}

func (s *SyncService) failProvider(logger zerolog.Logger, result domain.ProviderResult, p provider.Provider, err error) domain.ProviderResult {
	kind := "unavailable"
	var authErr *provider.AuthError
	if errors.As(err, &authErr) {
		kind = "auth"
	}
	s.metrics.ProviderFailures.WithLabelValues(p.Name(), kind).Inc()
	logger.Error().Err(err).Str("kind", kind).Msg("provider sync failed")

	result.Status = domain.ProviderFailed
	result.Error = err.Error()
	return result
}

// finalize derives the run's terminal status from the per-provider
// results and persists it. A provider that failed mid-run but already
// committed a prefix still produced usable data, so failed is reserved
// for runs where nothing usable came out of any provider. runErr is
// the run context's error, recorded when a cancellation or timeout is
// what ended an unusable run.
func (s *SyncService) finalize(ctx context.Context, user *domain.User, run *domain.SyncRun, runErr error) {
	failCount := 0
	usable := false
	for _, r := range run.Providers {
		if r.Status == domain.ProviderOK {
			usable = true
			continue
		}
		failCount++
		if r.SessionsFetched > 0 || r.MatchesCreated+r.MatchesEnriched > 0 {
			usable = true
		}
	}

	switch {
	case failCount == 0:
		run.Status = domain.RunSuccess
	case usable:
		run.Status = domain.RunPartialSuccess
	default:
		run.Status = domain.RunFailed
		if runErr != nil {
			run.Error = runErr.Error()
		} else {
			run.Error = "no provider produced usable data"
		}
	}

	now := time.Now().UTC()
	run.FinishedAt = &now

	if err := s.runs.Update(ctx, run); err != nil {
		s.logger.Error().Err(err).Str("run_id", run.RunID).Msg("failed to persist run result")
	}

	if usable {
		if err := s.users.SetLastSync(ctx, user.UserID, now); err != nil {
			s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("failed to record last sync time")
		}
	}

	s.metrics.SyncRuns.WithLabelValues(run.Status).Inc()
	s.metrics.SyncDuration.Observe(now.Sub(run.StartedAt).Seconds())

	s.logger.Info().
		Str("run_id", run.RunID).
		Str("user_id", run.UserID).
		Str("status", run.Status).
		Dur("duration", now.Sub(run.StartedAt)).
		Msg("sync run finished")
}
