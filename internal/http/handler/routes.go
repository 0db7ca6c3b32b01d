package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"docsearch/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// db may be nil when search history is kept in memory.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService) {
	app.Get("/", Welcome())
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Post("/documents", UploadDocuments(docSvc))
	app.Get("/documents", ListDocuments(docSvc))
	app.Post("/documents/search", SearchDocuments(docSvc))
	app.Post("/documents/brief", BriefDocuments(docSvc))
	app.Get("/documents/history", SearchHistory(docSvc))
	app.Get("/documents/:id/download", DownloadDocument(docSvc))
}
