package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challengehub/challenge-hub/internal/domain/shared"
)

type captureSender struct {
	mu       sync.Mutex
	sent     []Notification
	failures int
}

func (s *captureSender) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("provider unavailable")
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *captureSender) delivered() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.sent...)
}

func TestNotifications_FanOutOnCompletion(t *testing.T) {
	sender := &captureSender{}
	svc := NewNotificationService(sender, testLogger())

	event := shared.NewChallengeCompletedEvent("ch-1", []string{"winner"}, []string{"winner", "runner"}, false)
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	sent := sender.delivered()
	require.Len(t, sent, 2)

	byRecipient := map[string]Notification{}
	for _, n := range sent {
		byRecipient[n.RecipientID] = n
	}
	assert.Contains(t, byRecipient["winner"].Body, "you won")
	assert.Contains(t, byRecipient["runner"].Body, "ended")
}

func TestNotifications_SelfInteractionSkipped(t *testing.T) {
	sender := &captureSender{}
	svc := NewNotificationService(sender, testLogger())

	event := shared.NewSocialInteractionEvent("ch-1", "int-1", "cheer", "alice", "alice")
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Empty(t, sender.delivered())

	event = shared.NewSocialInteractionEvent("ch-1", "int-2", "cheer", "alice", "bob")
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	sent := sender.delivered()
	require.Len(t, sent, 1)
	assert.Equal(t, "bob", sent[0].RecipientID)
}

func TestNotifications_RetriesTransientFailures(t *testing.T) {
	// Two failures, then success: within the retrier's attempt budget.
	sender := &captureSender{failures: 2}
	svc := NewNotificationService(sender, testLogger())

	event := shared.NewBadgeEarnedEvent("ch-1", "alice", "challenge_winner")
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	sent := sender.delivered()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice", sent[0].RecipientID)
	assert.Contains(t, sent[0].Body, "challenge_winner")
}

func TestNotifications_DropAfterExhaustedRetries(t *testing.T) {
	// More failures than attempts: the event handler still reports success.
	sender := &captureSender{failures: 100}
	svc := NewNotificationService(sender, testLogger())

	event := shared.NewBadgeEarnedEvent("ch-1", "alice", "challenge_winner")
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Empty(t, sender.delivered())
}
