package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/interaction"
	"github.com/challengehub/challenge-hub/internal/domain/participant"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
)

// In-memory repository fakes with the same atomicity contracts as the real
// postgres implementations. A single mutex per store stands in for the
// transactional guarantees.

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

// ─────────────────────────────────────────────────────────────────────────────
// challenge repository
// ─────────────────────────────────────────────────────────────────────────────

type memChallengeRepo struct {
	mu    sync.Mutex
	items map[string]*challenge.Challenge
}

func newMemChallengeRepo() *memChallengeRepo {
	return &memChallengeRepo{items: map[string]*challenge.Challenge{}}
}

func (r *memChallengeRepo) Create(_ context.Context, c *challenge.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[c.ID]; ok {
		return shared.ErrChallengeExists
	}
	r.items[c.ID] = c.Clone()
	return nil
}

func (r *memChallengeRepo) GetByID(_ context.Context, id string) (*challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return nil, shared.ErrChallengeNotFound
	}
	return c.Clone(), nil
}

func (r *memChallengeRepo) Update(_ context.Context, c *challenge.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[c.ID]
	if !ok {
		return shared.ErrChallengeNotFound
	}
	// Status transitions happen only through TransitionStatus; a full
	// update never regresses a final status.
	clone := c.Clone()
	if stored.Status.IsFinal() {
		clone.Status = stored.Status
	}
	r.items[c.ID] = clone
	return nil
}

func (r *memChallengeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *memChallengeRepo) list(filter func(*challenge.Challenge) bool) []*challenge.Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*challenge.Challenge
	for _, c := range r.items {
		if filter(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memChallengeRepo) GetByCreator(_ context.Context, creatorID challenge.UserID, _ challenge.ListOptions) ([]*challenge.Challenge, error) {
	return r.list(func(c *challenge.Challenge) bool { return c.CreatorID == creatorID }), nil
}

func (r *memChallengeRepo) GetByParticipant(_ context.Context, userID challenge.UserID, _ challenge.ListOptions) ([]*challenge.Challenge, error) {
	return r.list(func(c *challenge.Challenge) bool { return c.HasParticipant(userID) }), nil
}

func (r *memChallengeRepo) GetByStatus(_ context.Context, status challenge.Status, _ challenge.ListOptions) ([]*challenge.Challenge, error) {
	return r.list(func(c *challenge.Challenge) bool { return c.Status == status }), nil
}

func (r *memChallengeRepo) GetByCategory(_ context.Context, category challenge.Category, _ challenge.ListOptions) ([]*challenge.Challenge, error) {
	return r.list(func(c *challenge.Challenge) bool { return c.Category == category }), nil
}

func (r *memChallengeRepo) GetOpenPublic(_ context.Context, now time.Time, _ challenge.ListOptions) ([]*challenge.Challenge, error) {
	return r.list(func(c *challenge.Challenge) bool {
		return c.Status == challenge.StatusOpen && c.IsPublic && !c.IsExpired(now)
	}), nil
}

func (r *memChallengeRepo) Search(_ context.Context, query string, _ challenge.ListOptions) ([]*challenge.Challenge, error) {
	query = strings.ToLower(query)
	return r.list(func(c *challenge.Challenge) bool {
		return strings.Contains(strings.ToLower(c.Title), query) ||
			strings.Contains(strings.ToLower(c.Description), query)
	}), nil
}

func (r *memChallengeRepo) FindExpiredOpen(_ context.Context, now time.Time) ([]*challenge.Challenge, error) {
	return r.list(func(c *challenge.Challenge) bool {
		return c.Status == challenge.StatusOpen && c.IsExpired(now)
	}), nil
}

func (r *memChallengeRepo) FindStartable(_ context.Context, now time.Time) ([]*challenge.Challenge, error) {
	return r.list(func(c *challenge.Challenge) bool {
		return c.Status == challenge.StatusOpen && !c.IsExpired(now) &&
			c.CurrentParticipants >= c.Rules.MinParticipants
	}), nil
}

func (r *memChallengeRepo) AddParticipant(_ context.Context, challengeID string, userID challenge.UserID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[challengeID]
	if !ok {
		return shared.ErrChallengeNotFound
	}
	switch {
	case c.Status != challenge.StatusOpen:
		return shared.ErrChallengeNotOpen
	case c.IsExpired(now):
		return shared.ErrChallengeExpired
	case c.IsFull():
		return shared.ErrChallengeFull
	case c.HasParticipant(userID):
		return shared.ErrAlreadyJoined
	}
	return c.AddParticipant(userID, now)
}

func (r *memChallengeRepo) RemoveParticipant(_ context.Context, challengeID string, userID challenge.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[challengeID]
	if !ok {
		return shared.ErrChallengeNotFound
	}
	return c.RemoveParticipant(userID, time.Now().UTC())
}

func (r *memChallengeRepo) TransitionStatus(_ context.Context, challengeID string, from, to challenge.Status, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[challengeID]
	if !ok {
		return shared.ErrChallengeNotFound
	}
	if c.Status != from {
		return shared.ErrChallengeFinalized
	}
	c.Status = to
	c.UpdatedAt = now
	return nil
}

func (r *memChallengeRepo) UpdateLeaderboard(_ context.Context, challengeID string, entries []challenge.LeaderboardEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[challengeID]
	if !ok {
		return shared.ErrChallengeNotFound
	}
	c.Leaderboard = append([]challenge.LeaderboardEntry(nil), entries...)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// participant repository
// ─────────────────────────────────────────────────────────────────────────────

type memParticipantRepo struct {
	mu    sync.Mutex
	items map[string]*participant.Participant
}

func newMemParticipantRepo() *memParticipantRepo {
	return &memParticipantRepo{items: map[string]*participant.Participant{}}
}

func (r *memParticipantRepo) key(challengeID string, userID challenge.UserID) string {
	return challengeID + "/" + string(userID)
}

func (r *memParticipantRepo) Create(_ context.Context, p *participant.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.ChallengeID == p.ChallengeID && existing.UserID == p.UserID {
			return shared.ErrAlreadyJoined
		}
	}
	r.items[p.ID] = p.Clone()
	return nil
}

func (r *memParticipantRepo) GetByID(_ context.Context, id string) (*participant.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, shared.ErrParticipantNotFound
	}
	return p.Clone(), nil
}

func (r *memParticipantRepo) GetByChallengeAndUser(_ context.Context, challengeID string, userID challenge.UserID) (*participant.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.ChallengeID == challengeID && p.UserID == userID {
			return p.Clone(), nil
		}
	}
	return nil, shared.ErrParticipantNotFound
}

func (r *memParticipantRepo) Update(_ context.Context, p *participant.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[p.ID]
	if !ok {
		return shared.ErrParticipantNotFound
	}
	clone := p.Clone()
	// The claim flag only flips through ClaimRewards.
	clone.RewardsClaimed = stored.RewardsClaimed
	clone.RewardsClaimedAt = stored.RewardsClaimedAt
	if stored.RewardsClaimed {
		clone.CreditsEarned = stored.CreditsEarned
		clone.BadgesEarned = stored.BadgesEarned
	}
	r.items[p.ID] = clone
	return nil
}

func (r *memParticipantRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *memParticipantRepo) GetByChallenge(_ context.Context, challengeID string) ([]*participant.Participant, error) {
	return r.list(func(p *participant.Participant) bool { return p.ChallengeID == challengeID }), nil
}

func (r *memParticipantRepo) GetActiveByChallenge(_ context.Context, challengeID string) ([]*participant.Participant, error) {
	return r.list(func(p *participant.Participant) bool {
		return p.ChallengeID == challengeID && p.Status == participant.StatusActive
	}), nil
}

func (r *memParticipantRepo) GetByUser(_ context.Context, userID challenge.UserID, limit int) ([]*participant.Participant, error) {
	out := r.list(func(p *participant.Participant) bool { return p.UserID == userID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memParticipantRepo) CountByChallenge(_ context.Context, challengeID string) (int, error) {
	return len(r.list(func(p *participant.Participant) bool { return p.ChallengeID == challengeID })), nil
}

func (r *memParticipantRepo) list(filter func(*participant.Participant) bool) []*participant.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*participant.Participant
	for _, p := range r.items {
		if filter(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memParticipantRepo) IncrementUpdateCount(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return shared.ErrParticipantNotFound
	}
	p.UpdateCount++
	return nil
}

func (r *memParticipantRepo) IncrementSocialCounter(_ context.Context, id string, counter string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return shared.ErrParticipantNotFound
	}
	switch counter {
	case "cheers_given":
		p.RecordCheerGiven()
	case "cheers_received":
		p.RecordCheerReceived()
	case "comments_given":
		p.RecordCommentGiven()
	case "comments_received":
		p.RecordCommentReceived()
	}
	return nil
}

func (r *memParticipantRepo) ClaimRewards(_ context.Context, id string, credits int, badges []string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return shared.ErrParticipantNotFound
	}
	return p.ClaimRewards(credits, badges, now)
}

// ─────────────────────────────────────────────────────────────────────────────
// result repository
// ─────────────────────────────────────────────────────────────────────────────

type memResultRepo struct {
	mu    sync.Mutex
	items map[string]*participant.Result
}

func newMemResultRepo() *memResultRepo {
	return &memResultRepo{items: map[string]*participant.Result{}}
}

func (r *memResultRepo) Create(_ context.Context, res *participant.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.ChallengeID == res.ChallengeID && existing.UserID == res.UserID {
			return shared.ErrResultExists
		}
	}
	clone := *res
	r.items[res.ID] = &clone
	return nil
}

func (r *memResultRepo) GetByID(_ context.Context, id string) (*participant.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.items[id]
	if !ok {
		return nil, shared.ErrResultNotFound
	}
	clone := *res
	return &clone, nil
}

func (r *memResultRepo) GetByChallengeAndUser(_ context.Context, challengeID string, userID challenge.UserID) (*participant.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.items {
		if res.ChallengeID == challengeID && res.UserID == userID {
			clone := *res
			return &clone, nil
		}
	}
	return nil, shared.ErrResultNotFound
}

func (r *memResultRepo) GetByChallenge(_ context.Context, challengeID string) ([]*participant.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*participant.Result
	for _, res := range r.items {
		if res.ChallengeID == challengeID {
			clone := *res
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (r *memResultRepo) GetByUser(_ context.Context, userID challenge.UserID, limit int) ([]*participant.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*participant.Result
	for _, res := range r.items {
		if res.UserID == userID {
			clone := *res
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memResultRepo) Update(_ context.Context, res *participant.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[res.ID]; !ok {
		return shared.ErrResultNotFound
	}
	clone := *res
	r.items[res.ID] = &clone
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// interaction repository
// ─────────────────────────────────────────────────────────────────────────────

type memInteractionRepo struct {
	mu    sync.Mutex
	items map[string]*interaction.Interaction
}

func newMemInteractionRepo() *memInteractionRepo {
	return &memInteractionRepo{items: map[string]*interaction.Interaction{}}
}

func (r *memInteractionRepo) Create(_ context.Context, i *interaction.Interaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *i
	r.items[i.ID] = &clone
	return nil
}

func (r *memInteractionRepo) GetByID(_ context.Context, id string) (*interaction.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.items[id]
	if !ok {
		return nil, shared.ErrInteractionNotFound
	}
	clone := *i
	return &clone, nil
}

func (r *memInteractionRepo) Update(_ context.Context, i *interaction.Interaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[i.ID]; !ok {
		return shared.ErrInteractionNotFound
	}
	clone := *i
	r.items[i.ID] = &clone
	return nil
}

func (r *memInteractionRepo) GetByChallenge(_ context.Context, challengeID string, limit int) ([]*interaction.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*interaction.Interaction
	for _, i := range r.items {
		if i.ChallengeID == challengeID {
			clone := *i
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memInteractionRepo) GetByUser(_ context.Context, challengeID string, userID challenge.UserID) ([]*interaction.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*interaction.Interaction
	for _, i := range r.items {
		if i.ChallengeID == challengeID && i.FromUserID == userID {
			clone := *i
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memInteractionRepo) GetReceivedByUser(_ context.Context, challengeID string, userID challenge.UserID) ([]*interaction.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*interaction.Interaction
	for _, i := range r.items {
		if i.ChallengeID == challengeID && i.ToUserID == userID {
			clone := *i
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memInteractionRepo) CountByChallengeAndType(_ context.Context, challengeID string, t interaction.Type) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, i := range r.items {
		if i.ChallengeID == challengeID && i.Type == t {
			count++
		}
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// event bus
// ─────────────────────────────────────────────────────────────────────────────

type memBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func newMemBus() *memBus {
	return &memBus{}
}

func (b *memBus) Publish(_ context.Context, event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *memBus) Subscribe(shared.EventType, shared.EventHandler) error { return nil }
func (b *memBus) SubscribeAll(shared.EventHandler) error                { return nil }
func (b *memBus) Close() error                                          { return nil }

func (b *memBus) typesSeen() []shared.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]shared.EventType, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventType()
	}
	return out
}
