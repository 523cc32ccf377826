package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kiezrad/backend/pkg/queue"
)

func TestRenderKinds(t *testing.T) {
	base := queue.NotificationPayload{
		RecipientName: "Alex Doe",
		EventTitle:    "Tuesday Night Ride",
		LevelLabel:    "mellow",
		CancelURL:     "https://example.test/cancel?token=abc",
	}

	confirmed := base
	confirmed.Kind = queue.KindConfirmed
	msg := Render(confirmed)
	assert.Contains(t, msg.Subject, "registered")
	assert.Contains(t, msg.Subject, "Tuesday Night Ride")
	assert.Contains(t, msg.Text, base.CancelURL)
	assert.Contains(t, msg.HTML, base.CancelURL)

	waitlisted := base
	waitlisted.Kind = queue.KindWaitlisted
	msg = Render(waitlisted)
	assert.Contains(t, msg.Subject, "waitlist")
	assert.Contains(t, msg.Text, "waitlist")

	promoted := base
	promoted.Kind = queue.KindPromoted
	msg = Render(promoted)
	assert.Contains(t, msg.Subject, "spot opened up")
	assert.Contains(t, msg.Text, base.CancelURL)
}

func TestRenderFallbackTitle(t *testing.T) {
	msg := Render(queue.NotificationPayload{Kind: queue.KindConfirmed, RecipientName: "Alex"})
	assert.Contains(t, msg.Subject, "your ride")
}
