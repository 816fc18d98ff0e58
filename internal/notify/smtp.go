package notify

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/wneessen/go-mail"

	"imagevault/internal/config"
)

const (
	smtpRetries = 3
	smtpBackoff = 200 * time.Millisecond
)

// sender is the part of *mail.Client used to deliver messages.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier mails reset links, retrying transient delivery failures.
type SMTPNotifier struct {
	client  sender
	from    string
	logger  *slog.Logger
	backoff func() retry.Backoff
}

// NewSMTPNotifier builds a go-mail client from cfg. Plain auth is used when a
// username is configured; TLS is opportunistic.
func NewSMTPNotifier(cfg config.SMTPConfig, logger *slog.Logger) (*SMTPNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(10 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.With("host", cfg.Host).Wrapf(err, "create smtp client")
	}
	return newSMTPNotifier(client, cfg.From, logger), nil
}

func newSMTPNotifier(client sender, from string, logger *slog.Logger) *SMTPNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPNotifier{
		client: client,
		from:   from,
		logger: logger,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(smtpRetries, retry.NewExponential(smtpBackoff))
		},
	}
}

func (n *SMTPNotifier) SendResetLink(ctx context.Context, to, link string) error {
	msg, err := n.message(to, link)
	if err != nil {
		return err
	}

	attempt := 0
	err = retry.Do(ctx, n.backoff(), func(ctx context.Context) error {
		attempt++
		if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
			n.logger.WarnContext(ctx, "reset mail delivery failed", "to", to, "attempt", attempt, "error", err)
			if temporary(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return oops.With("to", to, "attempts", attempt).Wrapf(err, "send reset mail")
	}
	return nil
}

// temporary reports whether a delivery failure is worth another attempt: a
// 4xx SMTP reply or a network failure. Permanent rejections are not retried.
func temporary(err error) bool {
	var sendErr *mail.SendError
	if stderrors.As(err, &sendErr) {
		return sendErr.IsTemp()
	}
	var netErr net.Error
	return stderrors.As(err, &netErr)
}

func (n *SMTPNotifier) message(to, link string) (*mail.Msg, error) {
	body, err := ResetBody(link)
	if err != nil {
		return nil, oops.Wrapf(err, "render reset mail")
	}
	msg := mail.NewMsg()
	if err := msg.FromFormat("Password Reset", n.from); err != nil {
		return nil, oops.With("from", n.from).Wrapf(err, "invalid sender")
	}
	if err := msg.To(to); err != nil {
		return nil, oops.With("to", to).Wrapf(err, "invalid recipient")
	}
	msg.Subject(ResetSubject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}
