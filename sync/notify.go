package sync

import (
	"fmt"
	"html"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/mailer"
)

// mailNotifier sends the welcome email through the app's configured mailer
type mailNotifier struct {
	app       core.App
	portalURL string
}

// NewNotifier creates the mailer-backed welcome notifier
func NewNotifier(app core.App, portalURL string) Notifier {
	return &mailNotifier{app: app, portalURL: portalURL}
}

// SendWelcome dispatches the welcome email with portal credentials. It
// reports the outcome as a boolean; failures are logged by the caller and
// never affect the reconciliation result.
func (n *mailNotifier) SendWelcome(info StudentInfo, courseNames []string) bool {
	settings := n.app.Settings()

	message := &mailer.Message{
		From: mail.Address{
			Name:    settings.Meta.SenderName,
			Address: settings.Meta.SenderAddress,
		},
		To:      []mail.Address{{Name: info.FullName(), Address: info.Email}},
		Subject: "Welcome to your course enrollment",
		HTML:    n.welcomeBody(info, courseNames),
	}

	if err := n.app.NewMailClient().Send(message); err != nil {
		slog.Warn("Sending welcome email failed", "email", info.Email, "error", err)
		return false
	}

	slog.Info("Welcome email sent", "email", info.Email, "courses", len(courseNames))
	return true
}

// welcomeBody renders the welcome email. The password is included here and
// nowhere else; it is never persisted.
func (n *mailNotifier) welcomeBody(info StudentInfo, courseNames []string) string {
	var b strings.Builder

	name := info.FirstName
	if name == "" {
		name = "Student"
	}

	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(name))
	b.WriteString("<p>Your enrollment has been received for:</p><ul>")
	for _, course := range courseNames {
		fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(course))
	}
	b.WriteString("</ul>")

	if n.portalURL != "" {
		fmt.Fprintf(&b, "<p>Sign in to the student portal at <a href=%q>%s</a>.</p>", n.portalURL, n.portalURL)
	}
	fmt.Fprintf(&b, "<p>Username: %s</p>", html.EscapeString(info.Email))
	if info.Password != "" {
		fmt.Fprintf(&b, "<p>Temporary password: %s</p>", html.EscapeString(info.Password))
	}

	return b.String()
}
