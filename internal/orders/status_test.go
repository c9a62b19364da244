package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{
	StatusPending, StatusPaid, StatusProcessing, StatusShipped,
	StatusDelivered, StatusCancelled, StatusRefunded,
}

func TestCanTransition_AllowedEdges(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusCancelled},
		{StatusPaid, StatusProcessing},
		{StatusPaid, StatusCancelled},
		{StatusPaid, StatusRefunded},
		{StatusProcessing, StatusShipped},
		{StatusProcessing, StatusCancelled},
		{StatusProcessing, StatusRefunded},
		{StatusShipped, StatusDelivered},
		{StatusShipped, StatusRefunded},
		{StatusDelivered, StatusRefunded},
	}
	for _, e := range allowed {
		assert.True(t, CanTransition(e.from, e.to), "%s -> %s should be allowed", e.from, e.to)
	}
}

// Every pair not in the table must be rejected, including self-loops and the
// payment edge (PENDING -> PAID belongs to reconciliation, not admin).
func TestCanTransition_EverythingElseRejected(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusCancelled}:    true,
		{StatusPaid, StatusProcessing}:      true,
		{StatusPaid, StatusCancelled}:       true,
		{StatusPaid, StatusRefunded}:        true,
		{StatusProcessing, StatusShipped}:   true,
		{StatusProcessing, StatusCancelled}: true,
		{StatusProcessing, StatusRefunded}:  true,
		{StatusShipped, StatusDelivered}:    true,
		{StatusShipped, StatusRefunded}:     true,
		{StatusDelivered, StatusRefunded}:   true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if allowed[[2]Status{from, to}] {
				continue
			}
			assert.False(t, CanTransition(from, to), "%s -> %s must be rejected", from, to)
		}
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	for _, from := range []Status{StatusCancelled, StatusRefunded} {
		for _, to := range allStatuses {
			assert.False(t, CanTransition(from, to), "terminal %s must not reach %s", from, to)
		}
	}
}

func TestReleasesStock(t *testing.T) {
	assert.True(t, ReleasesStock(StatusPending, StatusCancelled))
	assert.True(t, ReleasesStock(StatusPaid, StatusRefunded))
	assert.True(t, ReleasesStock(StatusShipped, StatusRefunded))
	assert.False(t, ReleasesStock(StatusPaid, StatusProcessing))
	assert.False(t, ReleasesStock(StatusShipped, StatusDelivered))
	assert.False(t, ReleasesStock(StatusCancelled, StatusRefunded))
}

func TestValid(t *testing.T) {
	for _, s := range allStatuses {
		assert.True(t, Valid(s))
	}
	assert.False(t, Valid(Status("SHIPPED_BACK")))
	assert.False(t, Valid(Status("")))
}
