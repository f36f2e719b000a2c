package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mizajour/leadline/internal/directory"
	"github.com/mizajour/leadline/internal/events"
	"github.com/mizajour/leadline/internal/live"
	"github.com/mizajour/leadline/internal/models"
	"github.com/mizajour/leadline/internal/notify"
	"github.com/mizajour/leadline/internal/store"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Handler serves the provider webhook endpoints and runs the inbound
// pipeline: normalize, resolve customer, persist, broadcast.
type Handler struct {
	db          *gorm.DB
	verifyToken string
	registry    *live.Registry
	notifier    *notify.Multi
	publisher   events.Publisher
	logger      zerolog.Logger
}

// HandlerOpts holds parameters for creating a webhook Handler.
type HandlerOpts struct {
	DB          *gorm.DB
	VerifyToken string
	Registry    *live.Registry
	Notifier    *notify.Multi    // optional
	Publisher   events.Publisher // optional
	Logger      zerolog.Logger
}

// NewHandler creates a webhook Handler.
func NewHandler(opts HandlerOpts) (*Handler, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("webhook: db is required")
	}
	if opts.VerifyToken == "" {
		return nil, fmt.Errorf("webhook: verify token is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("webhook: registry is required")
	}
	return &Handler{
		db:          opts.DB,
		verifyToken: opts.VerifyToken,
		registry:    opts.Registry,
		notifier:    opts.Notifier,
		publisher:   opts.Publisher,
		logger:      opts.Logger.With().Str("component", "webhook").Logger(),
	}, nil
}

// Verify handles the provider's subscription handshake: echo the challenge
// when the caller's verify token matches, reject otherwise.
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		h.logger.Info().Msg("webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}
	h.logger.Warn().Str("mode", mode).Msg("webhook verification rejected")
	c.String(http.StatusForbidden, "verify token mismatch")
}

// Receive handles a provider delivery. The provider is always acknowledged
// with 200: an unusable payload is skipped, and a storage failure after a
// successful parse is logged and dropped (a provider retry would not help).
func (h *Handler) Receive(c *gin.Context) {
	var payload map[string]any
	if err := json.NewDecoder(c.Request.Body).Decode(&payload); err != nil {
		h.logger.Warn().Err(err).Msg("undecodable webhook body")
		c.Status(http.StatusOK)
		return
	}

	ev, ok := Normalize(payload)
	if !ok {
		h.logger.Debug().Msg("payload carried no usable message, skipping")
		c.Status(http.StatusOK)
		return
	}

	if err := h.processInbound(c.Request.Context(), ev); err != nil {
		h.logger.Error().Err(err).Str("sender", ev.SenderID).Msg("dropping inbound event")
	}
	c.Status(http.StatusOK)
}

// processInbound runs one normalized event through the pipeline.
func (h *Handler) processInbound(ctx context.Context, ev InboundEvent) error {
	customer, created, err := directory.Resolve(h.db, ev.SenderName, ev.SenderID)
	if err != nil {
		return err
	}
	conv, err := store.FindOrCreateConversation(h.db, customer.ID)
	if err != nil {
		return err
	}
	msg, err := store.AppendMessage(h.db, conv.ID, models.SenderCustomer, ev.Body, ev.Timestamp)
	if err != nil {
		return err
	}

	event := live.NewMessageEvent(customer.ID, msg)
	h.registry.Broadcast(event)
	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, "message.inbound", event); err != nil {
			h.logger.Warn().Err(err).Msg("event mirror publish failed")
		}
	}
	if created && h.notifier != nil && h.notifier.Enabled() {
		h.notifier.Post(ctx, notify.NewCustomerText(customer))
	}

	h.logger.Info().
		Uint("customer_id", customer.ID).
		Uint("message_id", msg.ID).
		Bool("new_customer", created).
		Msg("inbound message processed")
	return nil
}
