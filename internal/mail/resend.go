// Package mail provides email transports for order confirmations.
package mail

import (
	"context"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/resend/resend-go/v2"

	"github.com/xenking/bakery-storefront/internal/confirmation"
)

var _ confirmation.Mailer = (*Resend)(nil)

// Resend sends email through the Resend HTTP API.
type Resend struct {
	client *resend.Client
}

// NewResend returns a Resend mailer. baseURL overrides the API endpoint and
// may be empty.
func NewResend(apiKey, baseURL string) (*Resend, error) {
	if apiKey == "" {
		return nil, errors.New("resend api key is required")
	}

	client := resend.NewClient(apiKey)
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse resend base url")
		}
		client.BaseURL = u
	}
	return &Resend{client: client}, nil
}

// Send delivers m in a single API call.
func (r *Resend) Send(ctx context.Context, m confirmation.Message) error {
	resp, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.From,
		To:      []string{m.To},
		ReplyTo: m.ReplyTo,
		Subject: m.Subject,
		Html:    m.HTML,
	})
	if err != nil {
		return errors.Wrapf(err, "send %q", m.Subject)
	}
	if resp.Id == "" {
		return errors.Errorf("send %q: empty message id", m.Subject)
	}
	return nil
}
