package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/participant"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD SERVICE
// Computes credit and badge payouts for completed challenges and processes
// one-time claims. The claim itself is a compare-and-swap in the repository;
// this service never pre-reads the claimed flag to decide.
// ══════════════════════════════════════════════════════════════════════════════

// Badge names granted on top of the challenge's configured lists.
const (
	BadgeCompletionist  = "completionist"
	BadgeTopPerformer   = "top_performer"
	BadgeSocialChampion = "social_champion"
)

// Special achievements, each worth fixed bonus credits plus a badge of the
// same name. A challenge can override the credit amounts through
// Rewards.SpecialRewards.
const (
	SpecialPerfectScore    = "perfect_score"
	SpecialUnderdogVictory = "underdog_victory"
	SpecialSocialLeader    = "social_leader"
	SpecialSpeedDemon      = "speed_demon"
)

// defaultSpecialCredits are the bonus payouts when the challenge does not
// configure its own amounts.
var defaultSpecialCredits = map[string]int{
	SpecialPerfectScore:    50,
	SpecialUnderdogVictory: 75,
	SpecialSocialLeader:    40,
	SpecialSpeedDemon:      60,
}

// RewardService computes and pays out challenge rewards.
type RewardService struct {
	participants participant.Repository
	results      participant.ResultRepository
	events       shared.EventBus
	log          *logrus.Entry
	clock        func() time.Time
}

// NewRewardService creates a RewardService.
func NewRewardService(
	participants participant.Repository,
	results participant.ResultRepository,
	events shared.EventBus,
	log *logrus.Entry,
) *RewardService {
	return &RewardService{
		participants: participants,
		results:      results,
		events:       events,
		log:          log,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source for tests.
func (s *RewardService) WithClock(clock func() time.Time) *RewardService {
	s.clock = clock
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Grant computation
// ─────────────────────────────────────────────────────────────────────────────

// Grant is the computed payout for one participant.
type Grant struct {
	UserID challenge.UserID

	// Credits is the final credit amount including every bonus.
	Credits int

	// Badges are all badges earned, deduplicated.
	Badges []string

	// Specials are the special achievements that fired.
	Specials []string
}

// CalculateChallengeRewards computes the payout for every ranked result.
// Nothing is persisted or claimed here; the only read is the result history
// consulted for the underdog special.
func (s *RewardService) CalculateChallengeRewards(
	ctx context.Context,
	c *challenge.Challenge,
	results []*participant.Result,
	participants map[challenge.UserID]*participant.Participant,
) []Grant {
	grants := make([]Grant, 0, len(results))
	for _, res := range results {
		p := participants[res.UserID]
		grants = append(grants, s.calculateGrant(ctx, c, res, p))
	}
	return grants
}

func (s *RewardService) calculateGrant(ctx context.Context, c *challenge.Challenge, res *participant.Result, p *participant.Participant) Grant {
	isWinner := res.Rank == 1 || c.HasWinner(res.UserID)

	base := float64(c.Rewards.ParticipantCredits)
	if isWinner {
		base = float64(c.Rewards.WinnerCredits)
	}

	socialMult := 1 + res.SocialScore/100
	if socialMult > c.Rewards.SocialBonusMultiplier {
		socialMult = c.Rewards.SocialBonusMultiplier
	}
	credits := base * socialMult

	fullCompletion := p != nil && p.CompletionPercentage >= 100
	if fullCompletion {
		credits *= 1.20
	}
	if p != nil {
		credits += float64(10 * p.FriendsJoined)
	}

	badges := make([]string, 0, 4)
	if isWinner {
		badges = append(badges, c.Rewards.WinnerBadges...)
	} else {
		badges = append(badges, c.Rewards.ParticipantBadges...)
	}
	if fullCompletion {
		badges = append(badges, BadgeCompletionist)
	}
	if p != nil && p.BestRank > 0 && p.BestRank <= 3 {
		badges = append(badges, BadgeTopPerformer)
	}
	if p != nil {
		switch p.EngagementLevel() {
		case participant.EngagementHigh, participant.EngagementVeryHigh:
			badges = append(badges, BadgeSocialChampion)
		}
	}

	specials := s.specialAchievements(ctx, c, res, p, isWinner)
	for _, name := range specials {
		credits += float64(s.specialCredits(c, name))
		badges = append(badges, name)
	}

	return Grant{
		UserID:   res.UserID,
		Credits:  int(math.Round(credits)),
		Badges:   dedupe(badges),
		Specials: specials,
	}
}

// specialAchievements evaluates each special independently.
func (s *RewardService) specialAchievements(ctx context.Context, c *challenge.Challenge, res *participant.Result, p *participant.Participant, isWinner bool) []string {
	var specials []string

	// A normalized base of 100 means the raw value met the target.
	if res.BaseScore >= 100 && c.Rules.TargetValue > 0 {
		specials = append(specials, SpecialPerfectScore)
	}
	if isWinner && s.priorBestRank(ctx, res.UserID, res.ChallengeID) > 5 {
		specials = append(specials, SpecialUnderdogVictory)
	}
	if res.SocialScore > 50 {
		specials = append(specials, SpecialSocialLeader)
	}
	if isWinner && p != nil && p.CompletionPercentage >= 100 {
		specials = append(specials, SpecialSpeedDemon)
	}

	return specials
}

// priorBestRank returns the user's best rank across earlier challenges,
// excluding the one being rewarded. Returns 0 when there is no history,
// which never qualifies as an underdog.
func (s *RewardService) priorBestRank(ctx context.Context, userID challenge.UserID, excludeChallengeID string) int {
	history, err := s.results.GetByUser(ctx, userID, 20)
	if err != nil {
		return 0
	}

	best := 0
	for _, r := range history {
		if r.ChallengeID == excludeChallengeID || r.Rank <= 0 {
			continue
		}
		if best == 0 || r.Rank < best {
			best = r.Rank
		}
	}
	return best
}

func (s *RewardService) specialCredits(c *challenge.Challenge, name string) int {
	if amount, ok := c.Rewards.SpecialRewards[name]; ok {
		return amount
	}
	return defaultSpecialCredits[name]
}

// ─────────────────────────────────────────────────────────────────────────────
// Claiming
// ─────────────────────────────────────────────────────────────────────────────

// ClaimResult contains the claim outcome and the paid-out grant.
type ClaimResult struct {
	Outcome
	Grant Grant
}

// ClaimRewards pays out a participant's rewards exactly once. The repository
// compare-and-swap on the claimed flag is the only concurrency guard; a
// second claim comes back with ReasonRewardsClaimed and the stored credits
// unchanged.
func (s *RewardService) ClaimRewards(ctx context.Context, c *challenge.Challenge, userID challenge.UserID) (*ClaimResult, error) {
	now := s.clock()

	if c.Status != challenge.StatusCompleted {
		return &ClaimResult{Outcome: Rejected(ReasonNotOpen, "rewards are only claimable on completed challenges")}, nil
	}

	res, err := s.results.GetByChallengeAndUser(ctx, c.ID, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return &ClaimResult{Outcome: Rejected(ReasonNotFound, shared.ErrResultNotFound.Error())}, nil
		}
		return nil, fmt.Errorf("claim: load result: %w", err)
	}

	p, err := s.participants.GetByChallengeAndUser(ctx, c.ID, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return &ClaimResult{Outcome: Rejected(ReasonNotParticipant, shared.ErrNotAParticipant.Error())}, nil
		}
		return nil, fmt.Errorf("claim: load participant: %w", err)
	}

	grant := s.calculateGrant(ctx, c, res, p)

	if err := s.participants.ClaimRewards(ctx, p.ID, grant.Credits, grant.Badges, now); err != nil {
		if out, ok := outcomeFromDomainError(err); ok {
			return &ClaimResult{Outcome: out}, nil
		}
		return nil, fmt.Errorf("claim: persist: %w", err)
	}

	for _, badge := range grant.Badges {
		s.publish(ctx, shared.NewBadgeEarnedEvent(c.ID, string(userID), badge))
	}
	s.publish(ctx, shared.NewRewardsClaimedEvent(c.ID, string(userID), grant.Credits, grant.Badges))

	s.log.WithFields(logrus.Fields{
		"challenge_id": c.ID,
		"user_id":      userID,
		"credits":      grant.Credits,
		"badges":       len(grant.Badges),
	}).Info("rewards claimed")

	return &ClaimResult{Outcome: OK(), Grant: grant}, nil
}

func (s *RewardService) publish(ctx context.Context, event shared.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithField("event_type", event.EventType()).Warn("event publish failed")
	}
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
