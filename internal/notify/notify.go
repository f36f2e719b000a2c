// Package notify posts short operational notices to chat platforms.
package notify

import (
	"context"
	"fmt"

	"github.com/mizajour/leadline/internal/models"
	"github.com/rs/zerolog"
)

// Notifier is the interface platform-specific implementations satisfy.
type Notifier interface {
	// Post delivers a plain-text notice to the platform's configured channel.
	Post(ctx context.Context, text string) error

	// Name identifies the platform, for logging.
	Name() string
}

// NewCustomerText formats the notice posted when a previously unseen contact
// messages in.
func NewCustomerText(c *models.Customer) string {
	name := c.Name
	if name == "" {
		name = "unknown contact"
	}
	return fmt.Sprintf("New lead: %s (+%s), status %q", name, c.ExternalID, c.LeadStatus)
}

// Multi fans a notice out to every configured platform. Delivery is
// best-effort: a platform failure is logged and does not affect the others
// or the caller.
type Multi struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewMulti creates a fan-out notifier. An empty notifier list is valid and
// makes Post a no-op.
func NewMulti(logger zerolog.Logger, notifiers ...Notifier) *Multi {
	return &Multi{
		notifiers: notifiers,
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// Post sends the text to all platforms.
func (m *Multi) Post(ctx context.Context, text string) {
	for _, n := range m.notifiers {
		if err := n.Post(ctx, text); err != nil {
			m.logger.Warn().Err(err).Str("platform", n.Name()).Msg("notification failed")
		}
	}
}

// Enabled reports whether any platform is configured.
func (m *Multi) Enabled() bool {
	return len(m.notifiers) > 0
}
