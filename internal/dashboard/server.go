// Package dashboard serves the agent-facing web surface: webhook endpoints,
// HTML conversation views, the JSON API, and the SSE event stream.
package dashboard

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mizajour/leadline/internal/events"
	"github.com/mizajour/leadline/internal/live"
	"github.com/mizajour/leadline/internal/webhook"
	"github.com/mizajour/leadline/internal/whatsapp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Sender dispatches outbound replies to the messaging provider.
type Sender interface {
	Send(ctx context.Context, to, body string) (*whatsapp.DeliveryReceipt, error)
}

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	DB        *gorm.DB
	Port      int
	Registry  *live.Registry
	Webhook   *webhook.Handler
	Sender    Sender           // optional; replies fail with 503 when absent
	Publisher events.Publisher // optional
	Logger    zerolog.Logger
	Out       io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := newRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// newRouter validates options and builds the gin router with all routes
// registered. Split from Start so tests can drive it with httptest.
func newRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("dashboard: db is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("dashboard: registry is required")
	}
	if opts.Webhook == nil {
		return nil, fmt.Errorf("dashboard: webhook handler is required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	registerRoutes(router, opts)
	return router, nil
}

// parseTemplates loads the embedded HTML templates.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"timeago": TimeAgo,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}
