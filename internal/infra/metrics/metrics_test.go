//go:build !integration

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"health-insurance-portal/internal/domain/model"
)

func TestPaymentCounters(t *testing.T) {
	before := testutil.ToFloat64(paymentTransitionsTotal.WithLabelValues("stripe", "success"))
	IncTransition("Stripe", "SUCCESS")
	assert.Equal(t, before+1, testutil.ToFloat64(paymentTransitionsTotal.WithLabelValues("stripe", "success")))

	IncCallback("paystack", "webhook", "duplicate")
	assert.GreaterOrEqual(t, testutil.ToFloat64(paymentCallbacksTotal.WithLabelValues("paystack", "webhook", "duplicate")), 1.0)
}

func TestObserveGatewayCall_NoResponse(t *testing.T) {
	ObserveGatewayCall("stripe", "confirm", 0, 10*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(gatewayRequestsTotal.WithLabelValues("stripe", "confirm", "error")), 1.0)
}

func TestSetTransactionsByStatus(t *testing.T) {
	SetTransactionsByStatus(map[model.TransactionStatus]int{model.TransactionStatusPending: 3})
	assert.Equal(t, 3.0, testutil.ToFloat64(transactionsByStatus.WithLabelValues("pending")))
	assert.Equal(t, 0.0, testutil.ToFloat64(transactionsByStatus.WithLabelValues("success")))
}

func TestMustRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}
