package controller

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"

	"peiplan_backend/internal/testutil"
	"peiplan_backend/pkg/apperr"
	"peiplan_backend/pkg/subscription"
)

func webhookEvent(eventType string, raw string) stripe.Event {
	return stripe.Event{
		Type: eventType,
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func TestDispatchWebhookEventRejectsMalformedPayload(t *testing.T) {
	eventTypes := []string{
		"customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted",
		"invoice.paid",
		"invoice.payment_succeeded",
		"invoice.payment_failed",
	}

	for _, eventType := range eventTypes {
		t.Run(eventType, func(t *testing.T) {
			err := dispatchWebhookEvent(webhookEvent(eventType, `{not json`))
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}
}

func TestDispatchWebhookEventIgnoresUnknownType(t *testing.T) {
	err := dispatchWebhookEvent(webhookEvent("customer.created", `{}`))
	assert.NoError(t, err)
}

func TestDispatchWebhookEventProcessingErrorIsNotValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	InitSubscriptionController(nil, subscription.NewReconciler(db, nil), nil)

	err := dispatchWebhookEvent(webhookEvent("customer.subscription.deleted", `{"id":"sub_unknown"}`))
	require.Error(t, err)
	assert.False(t, apperr.IsKind(err, apperr.KindValidation))
}
