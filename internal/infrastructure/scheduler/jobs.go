package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
	"github.com/challengehub/challenge-hub/internal/infrastructure/persistence/redis"
	"github.com/challengehub/challenge-hub/internal/service"
	"github.com/challengehub/challenge-hub/pkg/circuitbreaker"
	"github.com/challengehub/challenge-hub/pkg/timeutil"
)

// Cron expressions for the worker's sweeps.
const (
	// SpecExpire runs the expire sweep every 5 minutes.
	SpecExpire = "*/5 * * * *"

	// SpecAutoStart runs the auto-start sweep every minute.
	SpecAutoStart = "* * * * *"

	// SpecTrending refreshes the trending cache every 10 minutes.
	SpecTrending = "*/10 * * * *"

	// SpecEndingSoon checks for ending challenges every 15 minutes.
	SpecEndingSoon = "*/15 * * * *"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE SWEEP
// ══════════════════════════════════════════════════════════════════════════════

// ExpireJob cancels open challenges whose end date passed before they ever
// started.
type ExpireJob struct {
	manager *service.ChallengeManager
	log     *logrus.Entry
}

// NewExpireJob creates an ExpireJob.
func NewExpireJob(manager *service.ChallengeManager, log *logrus.Entry) *ExpireJob {
	return &ExpireJob{manager: manager, log: log.WithField("job", "expire")}
}

// Name implements Job.
func (j *ExpireJob) Name() string { return "expire_challenges" }

// Run implements Job.
func (j *ExpireJob) Run(ctx context.Context) error {
	count, err := j.manager.ExpireOpenChallenges(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		j.log.WithField("expired", count).Info("expired stale challenges")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTO-START SWEEP
// ══════════════════════════════════════════════════════════════════════════════

// AutoStartJob activates open challenges whose start window arrived with
// enough participants.
type AutoStartJob struct {
	manager *service.ChallengeManager
	log     *logrus.Entry
}

// NewAutoStartJob creates an AutoStartJob.
func NewAutoStartJob(manager *service.ChallengeManager, log *logrus.Entry) *AutoStartJob {
	return &AutoStartJob{manager: manager, log: log.WithField("job", "autostart")}
}

// Name implements Job.
func (j *AutoStartJob) Name() string { return "autostart_challenges" }

// Run implements Job.
func (j *AutoStartJob) Run(ctx context.Context) error {
	count, err := j.manager.AutoStartChallenges(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		j.log.WithField("started", count).Info("auto-started challenges")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRENDING REFRESH
// ══════════════════════════════════════════════════════════════════════════════

// TrendingJob rescores public challenges and swaps the trending cache. The
// cache write runs behind a circuit breaker: discovery degrades to direct
// repository reads while Redis is down, so a refresh miss is harmless.
type TrendingJob struct {
	challenges  challenge.Repository
	matchmaking *service.MatchmakingService
	cache       *redis.LeaderboardCache
	breaker     *circuitbreaker.CircuitBreaker
	limit       int
	log         *logrus.Entry
	clock       func() time.Time
}

// NewTrendingJob creates a TrendingJob.
func NewTrendingJob(
	challenges challenge.Repository,
	matchmaking *service.MatchmakingService,
	cache *redis.LeaderboardCache,
	breaker *circuitbreaker.CircuitBreaker,
	log *logrus.Entry,
) *TrendingJob {
	return &TrendingJob{
		challenges:  challenges,
		matchmaking: matchmaking,
		cache:       cache,
		breaker:     breaker,
		limit:       100,
		log:         log.WithField("job", "trending"),
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// Name implements Job.
func (j *TrendingJob) Name() string { return "refresh_trending" }

// Run implements Job.
func (j *TrendingJob) Run(ctx context.Context) error {
	now := j.clock()

	opts := challenge.DefaultListOptions()
	opts.Limit = j.limit

	open, err := j.challenges.GetOpenPublic(ctx, now, opts)
	if err != nil {
		return fmt.Errorf("trending: list open: %w", err)
	}
	active, err := j.challenges.GetByStatus(ctx, challenge.StatusActive, opts)
	if err != nil {
		return fmt.Errorf("trending: list active: %w", err)
	}

	entries := make([]redis.TrendingChallenge, 0, len(open)+len(active))
	for _, c := range append(open, active...) {
		if !c.IsPublic {
			continue
		}
		entries = append(entries, redis.TrendingChallenge{
			ChallengeID: c.ID,
			Title:       c.Title,
			Category:    string(c.Category),
			Score:       j.matchmaking.TrendingScore(c, now),
		})
	}

	err = j.breaker.Execute(ctx, func(ctx context.Context) error {
		return j.cache.SetTrending(ctx, entries)
	})
	if err != nil {
		j.log.WithError(err).Warn("trending cache refresh skipped")
		return nil
	}

	j.log.WithField("challenges", len(entries)).Debug("trending cache refreshed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENDING-SOON REMINDERS
// ══════════════════════════════════════════════════════════════════════════════

// EndingSoonJob publishes one reminder per active challenge entering its
// final stretch. Reminders respect quiet hours and fire at most once per
// challenge per worker.
type EndingSoonJob struct {
	challenges challenge.Repository
	bus        shared.EventBus
	window     time.Duration
	log        *logrus.Entry
	clock      func() time.Time

	mu       sync.Mutex
	reminded map[string]struct{}
}

// NewEndingSoonJob creates an EndingSoonJob with a 6 hour reminder window.
func NewEndingSoonJob(challenges challenge.Repository, bus shared.EventBus, log *logrus.Entry) *EndingSoonJob {
	return &EndingSoonJob{
		challenges: challenges,
		bus:        bus,
		window:     6 * time.Hour,
		log:        log.WithField("job", "ending_soon"),
		clock:      func() time.Time { return time.Now().UTC() },
		reminded:   make(map[string]struct{}),
	}
}

// WithWindow overrides the reminder window.
func (j *EndingSoonJob) WithWindow(window time.Duration) *EndingSoonJob {
	if window > 0 {
		j.window = window
	}
	return j
}

// Name implements Job.
func (j *EndingSoonJob) Name() string { return "ending_soon_reminders" }

// Run implements Job.
func (j *EndingSoonJob) Run(ctx context.Context) error {
	now := j.clock()
	if timeutil.IsQuietHours(now) {
		return nil
	}

	opts := challenge.DefaultListOptions()
	opts.SortBy = "end_date"
	opts.SortDesc = false

	active, err := j.challenges.GetByStatus(ctx, challenge.StatusActive, opts)
	if err != nil {
		return fmt.Errorf("ending soon: list active: %w", err)
	}

	sent := 0
	for _, c := range active {
		remaining := timeutil.Remaining(now, c.EndDate)
		if remaining <= 0 || remaining > j.window {
			continue
		}
		if !j.markReminded(c.ID) {
			continue
		}

		participants := make([]string, 0, len(c.ParticipantIDs))
		for _, id := range c.ParticipantIDs {
			participants = append(participants, string(id))
		}

		event := shared.NewChallengeEndingSoonEvent(c.ID, participants, c.EndDate, timeutil.FormatRemaining(remaining))
		if err := j.bus.Publish(ctx, event); err != nil {
			j.log.WithError(err).WithField("challenge_id", c.ID).Warn("reminder publish failed")
			continue
		}
		sent++
	}

	if sent > 0 {
		j.log.WithField("reminders", sent).Info("ending-soon reminders sent")
	}
	return nil
}

// markReminded records the reminder; returns false if one was already sent.
func (j *EndingSoonJob) markReminded(challengeID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.reminded[challengeID]; ok {
		return false
	}
	j.reminded[challengeID] = struct{}{}
	return true
}
