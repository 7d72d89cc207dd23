package mail

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

type Config struct {
	SMTPHost string `mapstructure:"smtp_host" json:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" json:"smtp_port"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"-"`
	From     string `mapstructure:"from" json:"from"`
	// ResetURLBase is the frontend page the reset token is appended to.
	ResetURLBase string `mapstructure:"reset_url_base" json:"reset_url_base"`
}

type Mailer struct {
	client *mail.Client
	cfg    Config
}

func NewMailer(cfg Config) (*Mailer, error) {
	client, err := mail.NewClient(cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("mail.NewMailer: %w", err)
	}

	return &Mailer{client: client, cfg: cfg}, nil
}

// SendPasswordReset delivers the reset link. Callers treat failures as
// log-only: delivery must never leak whether the address exists.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, token string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("mail.SendPasswordReset: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mail.SendPasswordReset: %w", err)
	}
	msg.Subject("Reset your Crealith password")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"A password reset was requested for your account.\n\n"+
			"Follow this link within 24 hours to choose a new password:\n%s?token=%s\n\n"+
			"If you did not request a reset, you can ignore this message.",
		m.cfg.ResetURLBase, token))

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail.SendPasswordReset: %w", err)
	}

	return nil
}
