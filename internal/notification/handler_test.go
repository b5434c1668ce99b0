package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/greenify/plant-store/internal/email"
	"github.com/greenify/plant-store/internal/events"
	"github.com/greenify/plant-store/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMail struct {
	to           string
	confirmation email.OrderConfirmation
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendOrderConfirmation(to string, c email.OrderConfirmation) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, confirmation: c})
	return nil
}

func encode(t *testing.T, eventType string, data any) []byte {
	t.Helper()

	env, err := events.NewEnvelope(eventType, "order-1", data)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func placed() events.OrderPlaced {
	return events.OrderPlaced{
		OrderID:       "order-1",
		UserID:        "user-1",
		CustomerName:  "Asha",
		CustomerEmail: "asha@example.com",
		Items: []model.OrderItem{
			{PlantID: "p1", Name: "Monstera", Quantity: 2, Price: 100},
		},
		Total: 200,
	}
}

func TestHandler_OrderPlacedSendsConfirmation(t *testing.T) {
	mailer := &fakeMailer{}
	h := NewHandler(mailer, zap.NewNop())

	require.NoError(t, h.HandleMessage(context.Background(), []byte("order-1"), encode(t, events.TypeOrderPlaced, placed())))

	require.Len(t, mailer.sent, 1)
	got := mailer.sent[0]
	assert.Equal(t, "asha@example.com", got.to)
	assert.Equal(t, "order-1", got.confirmation.OrderID)
	assert.Equal(t, "Asha", got.confirmation.CustomerName)
	assert.Equal(t, 200, got.confirmation.Total)
	assert.Equal(t, []email.OrderItem{{PlantID: "p1", Name: "Monstera", Quantity: 2, Price: 100}}, got.confirmation.Items)
}

func TestHandler_IgnoresOtherEvents(t *testing.T) {
	mailer := &fakeMailer{}
	h := NewHandler(mailer, zap.NewNop())

	for _, eventType := range []string{events.TypeOrderCancelled, events.TypeOrderStatusChanged, events.TypeRatingSubmitted} {
		require.NoError(t, h.HandleMessage(context.Background(), nil, encode(t, eventType, map[string]string{})))
	}
	assert.Empty(t, mailer.sent)
}

func TestHandler_MissingEmailIsSkipped(t *testing.T) {
	mailer := &fakeMailer{}
	h := NewHandler(mailer, zap.NewNop())

	e := placed()
	e.CustomerEmail = ""
	require.NoError(t, h.HandleMessage(context.Background(), nil, encode(t, events.TypeOrderPlaced, e)))
	assert.Empty(t, mailer.sent)
}

func TestHandler_Errors(t *testing.T) {
	t.Run("malformed envelope", func(t *testing.T) {
		h := NewHandler(&fakeMailer{}, zap.NewNop())
		err := h.HandleMessage(context.Background(), nil, []byte("{"))
		assert.ErrorIs(t, err, events.ErrMalformedEvent)
	})

	t.Run("malformed payload", func(t *testing.T) {
		h := NewHandler(&fakeMailer{}, zap.NewNop())
		err := h.HandleMessage(context.Background(), nil, encode(t, events.TypeOrderPlaced, "not an object"))
		assert.ErrorIs(t, err, events.ErrMalformedEvent)
	})

	t.Run("mail failure is returned", func(t *testing.T) {
		smtpDown := errors.New("smtp down")
		h := NewHandler(&fakeMailer{err: smtpDown}, zap.NewNop())
		err := h.HandleMessage(context.Background(), nil, encode(t, events.TypeOrderPlaced, placed()))
		assert.ErrorIs(t, err, smtpDown)
	})
}
