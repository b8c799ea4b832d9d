// internal/models/rfq_test.go
package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func allRFQStatuses() []RFQStatus {
	return []RFQStatus{
		RFQStatusOpen, RFQStatusPendingReview, RFQStatusQuoted, RFQStatusNegotiating,
		RFQStatusAccepted, RFQStatusRejected, RFQStatusExpired, RFQStatusCancelled,
	}
}

func TestRFQTransitions(t *testing.T) {
	cases := []struct {
		from    RFQStatus
		to      RFQStatus
		allowed bool
	}{
		{RFQStatusOpen, RFQStatusQuoted, true},
		{RFQStatusOpen, RFQStatusCancelled, true},
		{RFQStatusOpen, RFQStatusAccepted, false},
		{RFQStatusOpen, RFQStatusRejected, false},
		{RFQStatusQuoted, RFQStatusAccepted, true},
		{RFQStatusQuoted, RFQStatusNegotiating, true},
		{RFQStatusQuoted, RFQStatusRejected, true},
		{RFQStatusNegotiating, RFQStatusQuoted, true},
		{RFQStatusNegotiating, RFQStatusAccepted, true},
		{RFQStatusPendingReview, RFQStatusAccepted, true},
		{RFQStatusAccepted, RFQStatusRejected, false},
		{RFQStatusCancelled, RFQStatusOpen, false},
	}

	for _, c := range cases {
		assert.Equalf(t, c.allowed, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTerminalStatesHaveNoSuccessors(t *testing.T) {
	terminals := []RFQStatus{RFQStatusAccepted, RFQStatusRejected, RFQStatusExpired, RFQStatusCancelled}

	for _, from := range terminals {
		assert.True(t, from.IsTerminal())
		for _, to := range allRFQStatuses() {
			assert.Falsef(t, from.CanTransition(to), "terminal %s must not reach %s", from, to)
		}
	}
}

func TestAcceptsQuotes(t *testing.T) {
	assert.True(t, RFQStatusOpen.AcceptsQuotes())
	assert.True(t, RFQStatusPendingReview.AcceptsQuotes())
	assert.True(t, RFQStatusQuoted.AcceptsQuotes())
	assert.True(t, RFQStatusNegotiating.AcceptsQuotes())

	assert.False(t, RFQStatusAccepted.AcceptsQuotes())
	assert.False(t, RFQStatusRejected.AcceptsQuotes())
	assert.False(t, RFQStatusExpired.AcceptsQuotes())
	assert.False(t, RFQStatusCancelled.AcceptsQuotes())
}

func TestRFQIsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	open := &RFQ{Status: RFQStatusOpen, ExpiresAt: &past}
	assert.True(t, open.IsExpired(now))

	fresh := &RFQ{Status: RFQStatusOpen, ExpiresAt: &future}
	assert.False(t, fresh.IsExpired(now))

	// No deadline means the RFQ stays open indefinitely
	unbounded := &RFQ{Status: RFQStatusOpen}
	assert.False(t, unbounded.IsExpired(now))

	// Terminal states never flip to expired, even past the deadline
	cancelled := &RFQ{Status: RFQStatusCancelled, ExpiresAt: &past}
	assert.False(t, cancelled.IsExpired(now))
	accepted := &RFQ{Status: RFQStatusAccepted, ExpiresAt: &past}
	assert.False(t, accepted.IsExpired(now))
}

func TestRFQIsTargeted(t *testing.T) {
	invited := uuid.New()
	stranger := uuid.New()

	open := &RFQ{}
	assert.True(t, open.IsTargeted(invited))
	assert.True(t, open.IsTargeted(stranger))

	targeted := &RFQ{TargetSellerIDs: []string{invited.String()}}
	assert.True(t, targeted.IsTargeted(invited))
	assert.False(t, targeted.IsTargeted(stranger))
}
