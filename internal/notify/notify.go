// Package notify sends short text messages to phone numbers. Delivery is
// best-effort: callers dispatch in the background and discard failures.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Notifier attempts delivery of one message to one recipient.
type Notifier interface {
	Send(ctx context.Context, to, body string) error
}

// Noop is used when no delivery credentials are configured.
type Noop struct{}

// Send discards the message.
func (Noop) Send(context.Context, string, string) error { return nil }

// Twilio delivers messages through the Twilio REST API.
type Twilio struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
}

// NewTwilio constructs a client sending from the given phone number.
func NewTwilio(accountSID, authToken, from string) *Twilio {
	return &Twilio{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    "https://api.twilio.com",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message to the Messages endpoint. Any non-2xx response is
// an error; retrying is the caller's concern (in practice nobody retries,
// delivery is best-effort).
func (t *Twilio) Send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send sms: twilio returned %s", resp.Status)
	}
	return nil
}
