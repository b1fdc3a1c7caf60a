package template

import (
	"time"

	"github.com/cartpulse/cartpulse/internal/types"
)

// MessageTemplate is a channel-specific message skeleton. Templates are
// looked up by channel, category and the experiment-variant tags assigned to
// the customer (message style and discount offer for cart recovery).
type MessageTemplate struct {
	ID       string        `db:"id" json:"id"`
	Name     string        `db:"name" json:"name"`
	Channel  types.Channel `db:"channel" json:"channel"`
	Category string        `db:"category" json:"category"`

	// Tags qualify the template; a lookup matches only if the template
	// carries every requested tag
	Tags []string `json:"tags"`

	// Subject is used by the email channel only
	Subject string `db:"subject" json:"subject"`

	// Body holds {{placeholder}} variables substituted at dispatch time
	Body string `db:"body" json:"body"`

	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasTags reports whether the template carries every one of the given tags
func (t *MessageTemplate) HasTags(tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range t.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
