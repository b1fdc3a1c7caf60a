package dispatch

import (
	"context"

	"github.com/resend/resend-go/v2"

	"github.com/cartpulse/cartpulse/internal/config"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/logger"
)

// EmailDispatcher delivers recovery messages over email using resend
type EmailDispatcher struct {
	client      *resend.Client
	enabled     bool
	fromAddress string
	replyTo     string
	logger      *logger.Logger
}

// NewEmailDispatcher creates an email dispatcher. A disabled or key-less
// configuration yields a dispatcher that rejects sends without calling out.
func NewEmailDispatcher(cfg *config.Configuration, logger *logger.Logger) *EmailDispatcher {
	if !cfg.Email.Enabled || cfg.Email.APIKey == "" {
		return &EmailDispatcher{enabled: false, logger: logger}
	}

	return &EmailDispatcher{
		client:      resend.NewClient(cfg.Email.APIKey),
		enabled:     true,
		fromAddress: cfg.Email.FromAddress,
		replyTo:     cfg.Email.ReplyTo,
		logger:      logger,
	}
}

// IsEnabled returns whether the email dispatcher is enabled
func (d *EmailDispatcher) IsEnabled() bool {
	return d.enabled
}

func (d *EmailDispatcher) Send(ctx context.Context, req *Request) (*Result, error) {
	if !d.enabled {
		d.logger.Warnw("email dispatch is disabled, skipping send",
			"to", req.Recipient,
			"template", req.TemplateID,
		)
		return &Result{Accepted: false}, nil
	}

	params := &resend.SendEmailRequest{
		From:    d.fromAddress,
		To:      []string{req.Recipient},
		Subject: req.Subject,
		Html:    req.Body,
	}
	if d.replyTo != "" {
		params.ReplyTo = d.replyTo
	}

	sent, err := d.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Failed to send email to %s", req.Recipient).
			Mark(ierr.ErrDispatch)
	}

	d.logger.Infow("email dispatched",
		"message_id", sent.Id,
		"to", req.Recipient,
		"template", req.TemplateID,
	)

	return &Result{MessageID: sent.Id, Accepted: true}, nil
}
