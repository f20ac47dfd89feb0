// Package notify delivers verification codes, reset links and invitations by e-mail and SMS.
// Delivery is best effort: failures are logged and counted, then reported as a boolean.
package notify

import (
	"context"
	"fmt"
	"html"
	"net/url"

	"go.uber.org/zap"

	"taskhub/internal/metrics"
)

// Mailer sends a single HTML e-mail.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// SMSSender sends a single text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Notifier renders messages and hands them to the configured transports.
type Notifier struct {
	mailer  Mailer
	sms     SMSSender
	appURL  string
	logger  *zap.Logger
	metrics metrics.Recorder
}

// New creates a Notifier. appURL is the public front-end base used in links.
func New(mailer Mailer, sms SMSSender, appURL string, logger *zap.Logger, rec metrics.Recorder) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = (*metrics.Collector)(nil)
	}
	return &Notifier{
		mailer:  mailer,
		sms:     sms,
		appURL:  appURL,
		logger:  logger.Named("notify"),
		metrics: rec,
	}
}

// VerificationEmail sends an e-mail verification code.
func (n *Notifier) VerificationEmail(ctx context.Context, to, code string) bool {
	body := fmt.Sprintf(
		`<p>Your TaskHub verification code is <strong>%s</strong>.</p><p>It expires in 15 minutes.</p>`,
		html.EscapeString(code))
	return n.email(ctx, to, "Verify your email", body)
}

// VerificationSMS sends a phone verification code.
func (n *Notifier) VerificationSMS(ctx context.Context, to, code string) bool {
	return n.text(ctx, to, fmt.Sprintf("Your TaskHub verification code is %s. It expires in 15 minutes.", code))
}

// LoginCodeEmail sends a two-factor login code by e-mail.
func (n *Notifier) LoginCodeEmail(ctx context.Context, to, code string) bool {
	body := fmt.Sprintf(
		`<p>Your TaskHub sign-in code is <strong>%s</strong>.</p><p>If this wasn't you, change your password.</p>`,
		html.EscapeString(code))
	return n.email(ctx, to, "Your sign-in code", body)
}

// LoginCodeSMS sends a two-factor login code by SMS.
func (n *Notifier) LoginCodeSMS(ctx context.Context, to, code string) bool {
	return n.text(ctx, to, fmt.Sprintf("Your TaskHub sign-in code is %s.", code))
}

// PasswordReset sends a reset link carrying token.
func (n *Notifier) PasswordReset(ctx context.Context, to, token string) bool {
	link := n.appURL + "/reset-password?token=" + url.QueryEscape(token)
	body := fmt.Sprintf(
		`<p>Someone asked to reset your TaskHub password.</p><p><a href="%s">Choose a new password</a></p><p>This link expires in 15 minutes.</p>`,
		html.EscapeString(link))
	return n.email(ctx, to, "Reset your password", body)
}

// PasswordResetSMS sends the reset link by SMS for phone-only accounts.
func (n *Notifier) PasswordResetSMS(ctx context.Context, to, token string) bool {
	link := n.appURL + "/reset-password?token=" + url.QueryEscape(token)
	return n.text(ctx, to, "Reset your TaskHub password: "+link)
}

// WorkspaceInvite sends an invitation link to join workspaceName.
func (n *Notifier) WorkspaceInvite(ctx context.Context, to, workspaceName, token string) bool {
	link := n.appURL + "/invite?token=" + url.QueryEscape(token)
	body := fmt.Sprintf(
		`<p>You have been invited to the <strong>%s</strong> workspace on TaskHub.</p><p><a href="%s">Accept invitation</a></p><p>The invitation expires in 7 days.</p>`,
		html.EscapeString(workspaceName), html.EscapeString(link))
	return n.email(ctx, to, "You're invited to "+workspaceName, body)
}

func (n *Notifier) email(ctx context.Context, to, subject, body string) bool {
	if n.mailer == nil || to == "" {
		return false
	}
	err := n.mailer.SendEmail(ctx, to, subject, body)
	n.metrics.RecordNotification("email", err == nil)
	if err != nil {
		n.logger.Warn("email delivery failed", zap.String("subject", subject), zap.Error(err))
		return false
	}
	return true
}

func (n *Notifier) text(ctx context.Context, to, body string) bool {
	if n.sms == nil || to == "" {
		return false
	}
	err := n.sms.SendSMS(ctx, to, body)
	n.metrics.RecordNotification("sms", err == nil)
	if err != nil {
		n.logger.Warn("sms delivery failed", zap.Error(err))
		return false
	}
	return true
}
