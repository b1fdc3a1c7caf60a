package dispatch

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cartpulse/cartpulse/internal/config"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/httpclient"
	"github.com/cartpulse/cartpulse/internal/logger"
)

// WhatsAppDispatcher delivers recovery messages through a whatsapp gateway
// over plain HTTP. The gateway owns delivery retries and status callbacks.
type WhatsAppDispatcher struct {
	client     httpclient.Client
	enabled    bool
	gatewayURL string
	apiKey     string
	logger     *logger.Logger
}

type whatsappPayload struct {
	To         string            `json:"to"`
	Body       string            `json:"body"`
	TemplateID string            `json:"template_id"`
	Variables  map[string]string `json:"variables,omitempty"`
}

type whatsappResponse struct {
	MessageID string `json:"message_id"`
}

// NewWhatsAppDispatcher creates a whatsapp dispatcher
func NewWhatsAppDispatcher(cfg *config.Configuration, client httpclient.Client, logger *logger.Logger) *WhatsAppDispatcher {
	return &WhatsAppDispatcher{
		client:     client,
		enabled:    cfg.WhatsApp.Enabled && cfg.WhatsApp.GatewayURL != "",
		gatewayURL: cfg.WhatsApp.GatewayURL,
		apiKey:     cfg.WhatsApp.APIKey,
		logger:     logger,
	}
}

// IsEnabled returns whether the whatsapp dispatcher is enabled
func (d *WhatsAppDispatcher) IsEnabled() bool {
	return d.enabled
}

func (d *WhatsAppDispatcher) Send(ctx context.Context, req *Request) (*Result, error) {
	if !d.enabled {
		d.logger.Warnw("whatsapp dispatch is disabled, skipping send",
			"to", req.Recipient,
			"template", req.TemplateID,
		)
		return &Result{Accepted: false}, nil
	}

	body, err := json.Marshal(whatsappPayload{
		To:         req.Recipient,
		Body:       req.Body,
		TemplateID: req.TemplateID,
		Variables:  req.Variables,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to marshal whatsapp payload").
			Mark(ierr.ErrSystem)
	}

	resp, err := d.client.Send(ctx, &httpclient.Request{
		Method: http.MethodPost,
		URL:    d.gatewayURL + "/v1/messages",
		Headers: map[string]string{
			"Authorization": "Bearer " + d.apiKey,
		},
		Body: body,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Failed to send whatsapp message to %s", req.Recipient).
			Mark(ierr.ErrDispatch)
	}

	var parsed whatsappResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		// the gateway accepted the message even if the body is opaque
		d.logger.Debugw("unparseable whatsapp gateway response", "error", err)
	}

	d.logger.Infow("whatsapp message dispatched",
		"message_id", parsed.MessageID,
		"to", req.Recipient,
		"template", req.TemplateID,
	)

	return &Result{MessageID: parsed.MessageID, Accepted: true}, nil
}
