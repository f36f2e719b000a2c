package dashboard

import (
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mizajour/leadline/internal/directory"
	"github.com/mizajour/leadline/internal/live"
	"github.com/mizajour/leadline/internal/models"
	"github.com/mizajour/leadline/internal/store"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	// Embedded static assets (served from assets/ subdir of the embed.FS).
	staticFS, _ := fs.Sub(assetsFS, "assets")
	router.StaticFS("/static", http.FS(staticFS))

	// Provider webhook.
	router.GET("/webhook", opts.Webhook.Verify)
	router.POST("/webhook", opts.Webhook.Receive)

	// Pages.
	router.GET("/", handleIndex(opts.DB))
	router.GET("/customers/:id", handleConversation(opts.DB))

	// JSON API.
	router.GET("/api/customers", handleCustomerList(opts.DB))
	router.GET("/api/customers/:id/messages", handleCustomerMessages(opts.DB))
	router.PUT("/api/customers/:id/lead-status", handleLeadStatus(opts.DB))
	router.POST("/customers/:id/send-message", handleSendMessage(opts))

	// SSE stream.
	router.GET("/api/events", handleEvents(opts.Registry))
}

func handleIndex(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		customers, err := directory.List(db)
		if err != nil {
			c.String(http.StatusInternalServerError, "customer list unavailable")
			return
		}
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"Customers": customers,
			"Selected":  nil,
			"Messages":  nil,
		})
	}
}

func handleConversation(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := customerParam(c)
		if !ok {
			return
		}
		selected, err := directory.GetByID(db, id)
		if err != nil {
			c.String(http.StatusNotFound, "customer not found")
			return
		}
		customers, err := directory.List(db)
		if err != nil {
			c.String(http.StatusInternalServerError, "customer list unavailable")
			return
		}
		msgs, err := store.ListByCustomer(db, id)
		if err != nil {
			c.String(http.StatusInternalServerError, "conversation unavailable")
			return
		}
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"Customers": customers,
			"Selected":  selected,
			"Messages":  msgs,
		})
	}
}

func handleCustomerList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		customers, err := directory.List(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "customer list unavailable"})
			return
		}
		if customers == nil {
			customers = []models.Customer{}
		}
		c.JSON(http.StatusOK, customers)
	}
}

func handleCustomerMessages(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := customerParam(c)
		if !ok {
			return
		}
		if _, err := directory.GetByID(db, id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
			return
		}
		msgs, err := store.ListByCustomer(db, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "conversation unavailable"})
			return
		}
		if msgs == nil {
			msgs = []models.Message{}
		}
		c.JSON(http.StatusOK, msgs)
	}
}

// leadStatusRequest is the body for PUT /api/customers/:id/lead-status.
type leadStatusRequest struct {
	LeadStatus string `json:"lead_status" binding:"required"`
}

func handleLeadStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := customerParam(c)
		if !ok {
			return
		}
		var req leadStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lead_status is required"})
			return
		}
		if _, err := directory.GetByID(db, id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
			return
		}
		if err := directory.UpdateLeadStatus(db, id, req.LeadStatus); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lead status update failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// sendMessageRequest is the body for POST /customers/:id/send-message.
type sendMessageRequest struct {
	MessageBody string `json:"message_body" binding:"required"`
}

// handleSendMessage runs the reply flow: dispatch to the provider first, then
// persist and broadcast only after the provider accepts. A dispatch failure
// leaves no trace in storage.
func handleSendMessage(opts StartOpts) gin.HandlerFunc {
	logger := opts.Logger.With().Str("component", "dashboard").Logger()
	return func(c *gin.Context) {
		id, ok := customerParam(c)
		if !ok {
			return
		}
		customer, err := directory.GetByID(opts.DB, id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "customer not found"})
			return
		}
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "message_body is required"})
			return
		}
		if opts.Sender == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "outbound dispatch not configured"})
			return
		}

		receipt, err := opts.Sender.Send(c.Request.Context(), customer.ExternalID, req.MessageBody)
		if err != nil {
			logger.Warn().Err(err).Uint("customer_id", customer.ID).Msg("dispatch failed")
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "message not sent"})
			return
		}

		conv, err := store.FindOrCreateConversation(opts.DB, customer.ID)
		if err == nil {
			var msg *models.Message
			msg, err = store.AppendMessage(opts.DB, conv.ID, models.SenderAgent, req.MessageBody, time.Now().UTC())
			if err == nil {
				event := live.NewMessageEvent(customer.ID, msg)
				opts.Registry.Broadcast(event)
				if opts.Publisher != nil {
					if perr := opts.Publisher.Publish(c.Request.Context(), "message.outbound", event); perr != nil {
						logger.Warn().Err(perr).Msg("event mirror publish failed")
					}
				}
				c.JSON(http.StatusOK, gin.H{
					"success":             true,
					"message":             msg,
					"provider_message_id": receipt.MessageID,
				})
				return
			}
		}

		// The provider already accepted the message; storage is the only thing
		// that failed. Report it rather than pretending nothing was sent.
		logger.Error().Err(err).Uint("customer_id", customer.ID).Msg("persist after dispatch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "message sent but not recorded"})
	}
}

// customerParam parses the :id path segment. On garbage it writes the error
// response itself and reports false.
func customerParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer id"})
		return 0, false
	}
	return uint(id), true
}
