package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"docportal/internal/http/middleware"
	"docportal/internal/service"
)

// Deps are the collaborators the HTTP handlers are built from.
type Deps struct {
	DB        *sql.DB
	Auth      service.AuthService
	Documents service.DocumentService
	Clients   service.ClientService
	// Metrics is served on /metrics when set.
	Metrics prometheus.Gatherer
	// Timeout bounds every backend call made while serving a request.
	Timeout time.Duration
	// KeepAlive is the comment interval on event streams. Zero means 15s.
	KeepAlive time.Duration
	Log       *zap.Logger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin: they parse input, call a service and render the result.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	stream := streamConfig{backend: d.Auth, timeout: d.Timeout, keepAlive: d.KeepAlive, log: d.Log}

	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())
	if d.Metrics != nil {
		app.Get("/metrics", middleware.MetricsHandler(d.Metrics))
	}

	requireAuth := middleware.Authenticate(d.Auth, d.Timeout)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", Register(d.Auth, d.Timeout))
	authGroup.Post("/login", Login(d.Auth, d.Timeout))
	authGroup.Post("/logout", requireAuth, Logout(d.Auth, d.Timeout))
	app.Get("/me", requireAuth, Me())

	// Static segments are registered before /:id so they are not shadowed.
	docs := app.Group("/documents", requireAuth)
	docs.Get("", ListDocuments(d.Documents, d.Timeout))
	docs.Post("", UploadDocument(d.Documents, d.Timeout))
	docs.Get("/export", ExportDocuments(d.Documents, d.Timeout))
	docs.Get("/stream", streamDocuments(d.Documents, stream))
	docs.Get("/:id", GetDocument(d.Documents, d.Timeout))
	docs.Get("/:id/download", DownloadDocument(d.Documents, d.Timeout))
	docs.Get("/:id/link", DocumentLink(d.Documents, d.Timeout))
	docs.Delete("/:id", DeleteDocument(d.Documents, d.Timeout))

	clients := app.Group("/clients", requireAuth)
	clients.Get("", ListClients(d.Clients, d.Timeout))
	clients.Get("/stream", streamClients(d.Clients, stream))
	clients.Get("/:clientId/documents", ListDocuments(d.Documents, d.Timeout))
	clients.Get("/:clientId/documents/export", ExportDocuments(d.Documents, d.Timeout))
	clients.Get("/:clientId/documents/stream", streamDocuments(d.Documents, stream))
	clients.Get("/:clientId/documents/:id", GetDocument(d.Documents, d.Timeout))
	clients.Get("/:clientId/documents/:id/download", DownloadDocument(d.Documents, d.Timeout))
	clients.Get("/:clientId/documents/:id/link", DocumentLink(d.Documents, d.Timeout))
}

// backendContext derives the context for backend calls of one request.
func backendContext(c *fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), timeout)
}

// ownerParam is the client namespace named in the path, or "" for the
// viewer's own documents.
func ownerParam(c *fiber.Ctx) string {
	return c.Params("clientId")
}
