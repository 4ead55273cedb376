package messages_test

import (
	"context"
	"errors"
	"io"
	"ms-booking/internal/apperr"
	"ms-booking/internal/database/dbtest"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/messages"
	"ms-booking/internal/messages/db"
	"ms-booking/internal/models"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishMessageSent(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []*models.Message
}

func (n *recordingNotifier) NotifyMessage(msg *models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func newService(t *testing.T) *messages.Service {
	return messages.NewService(&db.DB{Bun: dbtest.NewSQLite(t)}, kafka.NopPublisher{}, logger.NewConsoleLogger(io.Discard))
}

func TestSendMessageToOfflineReceiverIsStillStored(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, "alice", "bob", "  is the venue accessible?  ")
	require.NoError(t, err)
	assert.Equal(t, "is the venue accessible?", msg.Content)

	history, err := svc.GetConversationHistory(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)

	history, err = svc.GetConversationHistory(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSendMessageNotifiesRelay(t *testing.T) {
	svc := newService(t)
	n := &recordingNotifier{}
	svc.SetNotifier(n)

	msg, err := svc.SendMessage(context.Background(), "alice", "bob", "hello")
	require.NoError(t, err)
	require.Len(t, n.msgs, 1)
	assert.Equal(t, msg, n.msgs[0])
}

func TestSendMessageValidation(t *testing.T) {
	svc := newService(t)
	n := &recordingNotifier{}
	svc.SetNotifier(n)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "", "bob", "hello")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = svc.SendMessage(ctx, "alice", "bob", "   \n\t ")
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindInvalidInput, e.Kind)
	assert.Equal(t, "content", e.Field)

	_, err = svc.SendMessage(ctx, "alice", "", "hello")
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	assert.Empty(t, n.msgs)
	history, err := svc.GetConversationHistory(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	pub := &MockPublisher{}
	pub.On("PublishMessageSent", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	svc := messages.NewService(&db.DB{Bun: dbtest.NewSQLite(t)}, pub, logger.NewConsoleLogger(io.Discard))

	_, err := svc.SendMessage(context.Background(), "alice", "bob", "hello")
	require.NoError(t, err)
	svc.Flush()
	pub.AssertExpectations(t)
}

// stalledPublisher never completes until its context gives up.
type stalledPublisher struct {
	mu   sync.Mutex
	errs []error
}

func (p *stalledPublisher) PublishMessageSent(ctx context.Context, _ *models.Message) error {
	<-ctx.Done()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, ctx.Err())
	return ctx.Err()
}

func TestStalledBrokerDoesNotDelayDelivery(t *testing.T) {
	pub := &stalledPublisher{}
	svc := messages.NewService(&db.DB{Bun: dbtest.NewSQLite(t)}, pub, logger.NewConsoleLogger(io.Discard))
	svc.PublishTimeout = 50 * time.Millisecond
	n := &recordingNotifier{}
	svc.SetNotifier(n)

	start := time.Now()
	msg, err := svc.SendMessage(context.Background(), "alice", "bob", "hello")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, n.msgs, 1)
	assert.Equal(t, msg.ID, n.msgs[0].ID)

	svc.Flush()
	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.errs, 1)
	assert.ErrorIs(t, pub.errs[0], context.DeadlineExceeded)
}

func TestListConversationPartners(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "alice", "bob", "hi")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, "carol", "alice", "hey")
	require.NoError(t, err)

	partners, err := svc.ListConversationPartners(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, partners, 2)
	ids := []string{partners[0].UserID, partners[1].UserID}
	assert.ElementsMatch(t, []string{"bob", "carol"}, ids)

	_, err = svc.ListConversationPartners(ctx, "")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}
