// Package notify delivers password reset links.
package notify

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/url"
)

// Notifier sends a reset link to a recipient.
type Notifier interface {
	SendResetLink(ctx context.Context, to, link string) error
}

// ResetSubject is the subject line of the reset mail.
const ResetSubject = "Password Reset Link"

var resetTemplate = template.Must(template.New("reset").Parse(
	`<p>Hello,</p>` +
		`<p>You have requested to reset your password.</p>` +
		`<p>Use the link below to change your password:</p>` +
		`<p><a href="{{.}}">{{.}}</a></p>` +
		`<br>` +
		`<p>Ignore this email if you do remember your password, or you have not made the request.</p>`,
))

// ResetBody renders the HTML body for link.
func ResetBody(link string) (string, error) {
	var buf bytes.Buffer
	if err := resetTemplate.Execute(&buf, link); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ResetLink is base with path /api/v1/user/reset-password and the token as
// the resetToken query parameter.
func ResetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = "/api/v1/user/reset-password"
	u.RawQuery = url.Values{"resetToken": {token}}.Encode()
	return u.String(), nil
}

// LogNotifier writes reset links to the log instead of mailing them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) SendResetLink(ctx context.Context, to, link string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "password reset link", "to", to, "link", link)
	return nil
}
