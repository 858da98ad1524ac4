package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/billing"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/outbox"
	"gymdesk/internal/domain/subscription"
)

// EmailPayload is the outbox payload for ActionTypeEmail. The body is
// markdown, rendered to HTML at delivery time.
type EmailPayload struct {
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	Markdown string   `json:"markdown"`
}

// upcomingInNotice is how many future renewal dates a signup notice lists.
const upcomingInNotice = 3

// composeNotice builds the subject and markdown body for a billing change.
func composeNotice(action audit.Action, m member.Member, s subscription.Subscription, graceDays int) (string, string) {
	expires := s.ExpiresAt.Format("Monday 2 January 2006")
	cadence := strings.ToLower(string(s.Cadence))
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", m.Name)

	var subject string
	switch action {
	case audit.ActionSignup:
		subject = "Welcome, your membership is active"
		fmt.Fprintf(&b, "Your **%s** membership is active until **%s**.\n\n", cadence, expires)
		if dates, err := billing.Schedule(s.Anchor, s.Cadence, s.ExpiresAt, upcomingInNotice); err == nil {
			b.WriteString("| Renewal | Runs until |\n|---|---|\n")
			for i, d := range dates {
				fmt.Fprintf(&b, "| %d | %s |\n", i+1, d.Format(time.DateOnly))
			}
			b.WriteString("\n")
		}
		if billing.Clamped(s.Anchor, s.ExpiresAt) {
			fmt.Fprintf(&b, "In shorter months your renewal falls on the last day of the month; otherwise it is always the %s.\n", ordinal(s.Anchor))
		}
	case audit.ActionRenew:
		subject = "Membership renewed"
		fmt.Fprintf(&b, "Thanks, your %s membership has been renewed and now runs until **%s**.\n", cadence, expires)
	case audit.ActionReactivate:
		subject = "Welcome back"
		fmt.Fprintf(&b, "Your membership is active again until **%s**. Future renewals fall on the %s of the month.\n", expires, ordinal(s.Anchor))
	case audit.ActionGrace:
		subject = "Your membership has expired"
		// Grace covers graceDays days starting on the expiry itself.
		lastDay := s.ExpiresAt.AddDate(0, 0, graceDays-1).Format("Monday 2 January 2006")
		fmt.Fprintf(&b, "Your membership expired on **%s**. You can keep training up to and including **%s**; renew by then to keep your renewal date.\n", expires, lastDay)
	case audit.ActionLapse:
		subject = "Your membership has lapsed"
		fmt.Fprintf(&b, "Your membership expired on **%s** and was not renewed. Any payment from now on starts a new cycle from that day.\n", expires)
	case audit.ActionCancel:
		subject = "Membership cancelled"
		fmt.Fprintf(&b, "Your membership has been cancelled. You keep access until **%s**.\n", expires)
	default:
		subject = "Membership update"
		fmt.Fprintf(&b, "Your membership now runs until **%s**.\n", expires)
	}
	return subject, b.String()
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// noticeDeps is what enqueueNotice needs.
type noticeDeps struct {
	Outbox     OutboxWriter
	GenerateID func() string
	Now        func() time.Time
	GraceDays  int
}

// enqueueNotice queues an email for the member. Failures are logged; the
// billing change itself has already been saved.
func enqueueNotice(ctx context.Context, deps noticeDeps, action audit.Action, m member.Member, s subscription.Subscription) {
	if deps.Outbox == nil {
		return
	}
	subject, body := composeNotice(action, m, s, deps.GraceDays)
	payload, err := json.Marshal(EmailPayload{To: []string{m.Email}, Subject: subject, Markdown: body})
	if err != nil {
		slog.Error("notice_encode_failed", "subscription_id", s.ID, "error", err)
		return
	}
	entry, err := outbox.NewEntry(deps.GenerateID(), outbox.ActionTypeEmail, string(payload), deps.Now())
	if err != nil {
		slog.Error("notice_build_failed", "subscription_id", s.ID, "error", err)
		return
	}
	if err := deps.Outbox.Save(ctx, entry); err != nil {
		slog.Error("notice_enqueue_failed", "subscription_id", s.ID, "action", action, "error", err)
		return
	}
	slog.Debug("notice_enqueued", "entry_id", entry.ID, "subscription_id", s.ID, "action", action)
}
