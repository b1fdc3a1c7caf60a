package dispatch

import (
	"context"
	"strings"

	"github.com/cartpulse/cartpulse/internal/types"
)

// Request is a single message to deliver on one channel. Subject and Body
// are already rendered; TemplateID is carried for the recipient-side status
// callback to reference.
type Request struct {
	Recipient  string
	Channel    types.Channel
	TemplateID string
	Subject    string
	Body       string
	Variables  map[string]string
}

// Result reports the synchronous outcome of a dispatch. Delivery itself is
// asynchronous; the provider reports the final status later via callback.
type Result struct {
	MessageID string
	Accepted  bool
}

// Dispatcher hands a rendered message to an external delivery provider.
// Retry/backoff against the provider is the provider's concern, not ours.
type Dispatcher interface {
	Send(ctx context.Context, req *Request) (*Result, error)
}

// Render substitutes {{name}} placeholders in a template body with the
// given variables. Unknown placeholders are left untouched.
func Render(body string, variables map[string]string) string {
	rendered := body
	for name, value := range variables {
		rendered = strings.ReplaceAll(rendered, "{{"+name+"}}", value)
	}
	return rendered
}
