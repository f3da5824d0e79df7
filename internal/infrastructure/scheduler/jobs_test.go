package scheduler

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challengehub/challenge-hub/internal/domain/challenge"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
)

// stubChallengeRepo serves a fixed set of active challenges. Unused
// repository methods panic via the embedded nil interface.
type stubChallengeRepo struct {
	challenge.Repository
	active []*challenge.Challenge
}

func (s *stubChallengeRepo) GetByStatus(_ context.Context, status challenge.Status, _ challenge.ListOptions) ([]*challenge.Challenge, error) {
	if status != challenge.StatusActive {
		return nil, nil
	}
	return s.active, nil
}

type captureBus struct {
	events []shared.Event
}

func (b *captureBus) Publish(_ context.Context, event shared.Event) error {
	b.events = append(b.events, event)
	return nil
}

func (b *captureBus) Subscribe(shared.EventType, shared.EventHandler) error { return nil }
func (b *captureBus) SubscribeAll(shared.EventHandler) error               { return nil }
func (b *captureBus) Close() error                                         { return nil }

func quietLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func activeChallenge(id string, endsIn time.Duration, now time.Time) *challenge.Challenge {
	return &challenge.Challenge{
		ID:             id,
		Status:         challenge.StatusActive,
		IsPublic:       true,
		ParticipantIDs: []challenge.UserID{"user-a", "user-b"},
		StartDate:      now.Add(-time.Hour),
		EndDate:        now.Add(endsIn),
	}
}

func TestEndingSoonJob_PublishesWithinWindow(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := &stubChallengeRepo{active: []*challenge.Challenge{
		activeChallenge("ch-soon", 2*time.Hour, now),
		activeChallenge("ch-later", 48*time.Hour, now),
	}}
	bus := &captureBus{}

	job := NewEndingSoonJob(repo, bus, quietLogger())
	job.clock = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, bus.events, 1)
	event, ok := bus.events[0].(shared.ChallengeEndingSoonEvent)
	require.True(t, ok)
	assert.Equal(t, "ch-soon", event.AggregateID())
	assert.Equal(t, "2h", event.Remaining)
	assert.Equal(t, []string{"user-a", "user-b"}, event.ParticipantIDs)
}

func TestEndingSoonJob_RemindsOnce(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := &stubChallengeRepo{active: []*challenge.Challenge{
		activeChallenge("ch-soon", 2*time.Hour, now),
	}}
	bus := &captureBus{}

	job := NewEndingSoonJob(repo, bus, quietLogger())
	job.clock = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, bus.events, 1)
}

func TestEndingSoonJob_HoldsDuringQuietHours(t *testing.T) {
	night := time.Date(2024, 3, 15, 23, 30, 0, 0, time.UTC)
	repo := &stubChallengeRepo{active: []*challenge.Challenge{
		activeChallenge("ch-soon", 2*time.Hour, night),
	}}
	bus := &captureBus{}

	job := NewEndingSoonJob(repo, bus, quietLogger())
	job.clock = func() time.Time { return night }

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, bus.events)
}
