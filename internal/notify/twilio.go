package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TwilioSMS sends text messages through the Twilio Messages API.
type TwilioSMS struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

// NewTwilioSMS creates an SMS sender. baseURL defaults to https://api.twilio.com.
func NewTwilioSMS(accountSID, authToken, from, baseURL string) *TwilioSMS {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &TwilioSMS{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *TwilioSMS) SendSMS(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("twilio API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// LogTransport writes messages to the log instead of sending them. It is used when no
// provider credentials are configured.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport creates a transport that only logs.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger.Named("notify.log")}
}

func (t *LogTransport) SendEmail(_ context.Context, to, subject, htmlBody string) error {
	t.logger.Info("email", zap.String("to", to), zap.String("subject", subject), zap.String("body", htmlBody))
	return nil
}

func (t *LogTransport) SendSMS(_ context.Context, to, body string) error {
	t.logger.Info("sms", zap.String("to", to), zap.String("body", body))
	return nil
}
