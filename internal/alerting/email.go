package alerting

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"
)

// placeholderDomains are documentation domains that never receive mail.
var placeholderDomains = []string{"example.com", "example.org", "example.net", "test.com", "domain.com"}

// placeholderLocals are local parts left over from sample configs.
var placeholderLocals = []string{"your-email", "youremail", "your.email", "recipient", "changeme"}

// IsPlaceholderAddress reports whether addr is a sample or documentation
// address that must not be mailed.
func IsPlaceholderAddress(addr string) bool {
	parsed, err := mail.ParseAddress(strings.TrimSpace(addr))
	if err != nil {
		return true
	}
	at := strings.LastIndex(parsed.Address, "@")
	if at < 0 {
		return true
	}
	local := strings.ToLower(parsed.Address[:at])
	domain := strings.ToLower(parsed.Address[at+1:])
	for _, d := range placeholderDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	for _, l := range placeholderLocals {
		if local == l {
			return true
		}
	}
	return false
}

// EmailOptions parameterise SMTP delivery.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	// TLS is one of mandatory, opportunistic, none or ssl.
	TLS     string
	Timeout time.Duration
}

// EmailNotifier sends alerts over SMTP.
type EmailNotifier struct {
	opts       EmailOptions
	recipients []string
	logger     zerolog.Logger
	send       func(ctx context.Context, msg *gomail.Msg) error
}

// ErrEmailNotConfigured is returned when no usable sender or recipient is set.
var ErrEmailNotConfigured = errors.New("email channel not configured")

// NewEmailNotifier validates opts. Placeholder recipients are dropped; if
// none remain the channel is reported as not configured.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) (*EmailNotifier, error) {
	logger = logger.With().Str("component", "alert_email").Logger()
	if opts.Host == "" || opts.From == "" {
		return nil, fmt.Errorf("%w: host and from are required", ErrEmailNotConfigured)
	}
	if opts.Port <= 0 {
		opts.Port = 587
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	recipients := make([]string, 0, len(opts.To))
	for _, to := range opts.To {
		if IsPlaceholderAddress(to) {
			logger.Warn().Str("recipient", to).Msg("skipping placeholder recipient")
			continue
		}
		recipients = append(recipients, strings.TrimSpace(to))
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no deliverable recipient", ErrEmailNotConfigured)
	}

	n := &EmailNotifier{opts: opts, recipients: recipients, logger: logger}
	n.send = n.dialAndSend
	return n, nil
}

// Name identifies the channel.
func (n *EmailNotifier) Name() string { return "email" }

// Recipients returns the deliverable recipients.
func (n *EmailNotifier) Recipients() []string {
	return append([]string(nil), n.recipients...)
}

// Notify renders and sends the alert.
func (n *EmailNotifier) Notify(ctx context.Context, note Notification) error {
	msg, err := n.buildMessage(note)
	if err != nil {
		return err
	}
	if err := n.send(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	n.logger.Info().
		Str("status", string(note.Status)).
		Int64("total", note.Total).
		Strs("to", n.recipients).
		Msg("alert sent (email)")
	return nil
}

func (n *EmailNotifier) buildMessage(note Notification) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(n.opts.From); err != nil {
		return nil, fmt.Errorf("set email sender: %w", err)
	}
	if err := msg.To(n.recipients...); err != nil {
		return nil, fmt.Errorf("set email recipients: %w", err)
	}
	msg.Subject(renderSubject(note))
	msg.SetBodyString(gomail.TypeTextPlain, renderMessage(note))
	return msg, nil
}

func (n *EmailNotifier) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(n.opts.Port),
		gomail.WithTimeout(n.opts.Timeout),
	}
	switch strings.ToLower(n.opts.TLS) {
	case "ssl":
		opts = append(opts, gomail.WithSSL())
	case "mandatory":
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	case "none":
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	default:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if n.opts.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(n.opts.Username),
			gomail.WithPassword(n.opts.Password),
		)
	}

	client, err := gomail.NewClient(n.opts.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

var _ Notifier = (*EmailNotifier)(nil)
