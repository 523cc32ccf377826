package notify

import (
	"fmt"

	"github.com/kiezrad/backend/pkg/queue"
)

// Message is a rendered notification mail.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// Render builds the mail for a notification payload.
func Render(p queue.NotificationPayload) Message {
	title := p.EventTitle
	if title == "" {
		title = "your ride"
	}

	switch p.Kind {
	case queue.KindWaitlisted:
		return Message{
			Subject: fmt.Sprintf("You're on the waitlist for %s", title),
			HTML: fmt.Sprintf(
				"<p>Hi %s,</p><p>%s (%s) is currently full, so we've added you to the waitlist. We'll email you as soon as a spot opens up.</p><p><a href=%q>Leave the waitlist</a></p>",
				p.RecipientName, title, p.LevelLabel, p.CancelURL),
			Text: fmt.Sprintf(
				"Hi %s,\n\n%s (%s) is currently full, so we've added you to the waitlist. We'll email you as soon as a spot opens up.\n\nLeave the waitlist: %s\n",
				p.RecipientName, title, p.LevelLabel, p.CancelURL),
		}
	case queue.KindPromoted:
		return Message{
			Subject: fmt.Sprintf("A spot opened up for %s", title),
			HTML: fmt.Sprintf(
				"<p>Hi %s,</p><p>Good news: a spot opened up for %s (%s) and you're now confirmed.</p><p><a href=%q>Cancel your registration</a></p>",
				p.RecipientName, title, p.LevelLabel, p.CancelURL),
			Text: fmt.Sprintf(
				"Hi %s,\n\nGood news: a spot opened up for %s (%s) and you're now confirmed.\n\nCancel your registration: %s\n",
				p.RecipientName, title, p.LevelLabel, p.CancelURL),
		}
	default:
		return Message{
			Subject: fmt.Sprintf("You're registered for %s", title),
			HTML: fmt.Sprintf(
				"<p>Hi %s,</p><p>You're registered for %s (%s). See you there!</p><p><a href=%q>Cancel your registration</a></p>",
				p.RecipientName, title, p.LevelLabel, p.CancelURL),
			Text: fmt.Sprintf(
				"Hi %s,\n\nYou're registered for %s (%s). See you there!\n\nCancel your registration: %s\n",
				p.RecipientName, title, p.LevelLabel, p.CancelURL),
		}
	}
}
