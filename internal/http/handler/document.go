package handler

import (
	"context"
	"io"
	"mime"
	"time"

	"github.com/gofiber/fiber/v2"

	"docportal/internal/apperr"
	"docportal/internal/document"
	"docportal/internal/http/middleware"
	"docportal/internal/service"
)

// parseFilter reads q, sort and window from the query string.
func parseFilter(c *fiber.Ctx) (document.Filter, error) {
	order, err := document.ParseSortOrder(c.Query("sort"))
	if err != nil {
		return document.Filter{}, apperr.Validation("Ungültige Sortierung", err)
	}
	window, err := document.ParseDateWindow(c.Query("window"))
	if err != nil {
		return document.Filter{}, apperr.Validation("Ungültiger Zeitraum", err)
	}
	return document.Filter{Query: c.Query("q"), Sort: order, Window: window}, nil
}

// ListDocuments returns the filtered document list of the viewer, or of the
// client named by :clientId.
//
// @Summary List documents
// @Tags documents
// @Security BearerAuth
// @Produce json
// @Param q query string false "case-insensitive filename search"
// @Param sort query string false "newest|oldest"
// @Param window query string false "all|7days|30days"
// @Success 200 {object} service.DocumentListResult
// @Failure 400 {object} errorPayload
// @Router /documents [get]
func ListDocuments(svc service.DocumentService, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := parseFilter(c)
		if err != nil {
			return err
		}

		ctx, cancel := backendContext(c, timeout)
		defer cancel()

		res, err := svc.List(ctx, middleware.IdentityFrom(c), ownerParam(c), f)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// UploadDocument stores a PDF, JPEG or PNG file (multipart/form-data, field name: file).
//
// @Summary Upload a document
// @Tags documents
// @Security BearerAuth
// @Accept mpfd
// @Produce json
// @Param file formData file true "document"
// @Success 201 {object} model.Document
// @Failure 400 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /documents [post]
func UploadDocument(svc service.DocumentService, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "Bitte wählen Sie eine Datei aus")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "Die Datei konnte nicht gelesen werden")
		}
		defer f.Close()

		ct := fh.Header.Get(fiber.HeaderContentType)
		if ct == "" {
			ct = "application/octet-stream"
		}

		ctx, cancel := backendContext(c, timeout)
		defer cancel()

		doc, err := svc.Upload(ctx, middleware.IdentityFrom(c), service.UploadInput{
			Filename:    fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
			Body:        f,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// GetDocument returns one document's metadata.
//
// @Summary Get a document
// @Tags documents
// @Security BearerAuth
// @Produce json
// @Param id path string true "document id"
// @Success 200 {object} model.Document
// @Failure 404 {object} errorPayload
// @Router /documents/{id} [get]
func GetDocument(svc service.DocumentService, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := backendContext(c, timeout)
		defer cancel()

		doc, err := svc.Get(ctx, middleware.IdentityFrom(c), ownerParam(c), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(doc)
	}
}

// DocumentLink returns a presigned download URL.
//
// @Summary Presigned download link
// @Tags documents
// @Security BearerAuth
// @Produce json
// @Param id path string true "document id"
// @Success 200 {object} map[string]string
// @Router /documents/{id}/link [get]
func DocumentLink(svc service.DocumentService, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := backendContext(c, timeout)
		defer cancel()

		u, err := svc.DownloadURL(ctx, middleware.IdentityFrom(c), ownerParam(c), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"url": u})
	}
}

// cancelOnClose releases the backend context once the response body has been sent.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r cancelOnClose) Close() error {
	defer r.cancel()
	return r.ReadCloser.Close()
}

// DownloadDocument streams the stored file under its original name.
//
// @Summary Download a document
// @Tags documents
// @Security BearerAuth
// @Produce octet-stream
// @Param id path string true "document id"
// @Success 200 {file} binary
// @Router /documents/{id}/download [get]
func DownloadDocument(svc service.DocumentService, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := backendContext(c, timeout)

		rc, doc, err := svc.Download(ctx, middleware.IdentityFrom(c), ownerParam(c), c.Params("id"))
		if err != nil {
			cancel()
			return err
		}

		c.Set(fiber.HeaderContentType, doc.ContentType)
		c.Set(fiber.HeaderContentDisposition,
			mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
		return c.SendStream(cancelOnClose{ReadCloser: rc, cancel: cancel}, int(doc.Size))
	}
}

// DeleteDocument removes a document from storage and its metadata record.
//
// @Summary Delete a document
// @Tags documents
// @Security BearerAuth
// @Param id path string true "document id"
// @Success 204
// @Failure 404 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /documents/{id} [delete]
func DeleteDocument(svc service.DocumentService, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := backendContext(c, timeout)
		defer cancel()

		if err := svc.Delete(ctx, middleware.IdentityFrom(c), c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ExportDocuments renders the filtered list as an Excel workbook.
//
// @Summary Export documents to Excel
// @Tags documents
// @Security BearerAuth
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param q query string false "case-insensitive filename search"
// @Param sort query string false "newest|oldest"
// @Param window query string false "all|7days|30days"
// @Success 200 {file} binary
// @Failure 500 {object} errorPayload
// @Router /documents/export [get]
func ExportDocuments(svc service.DocumentService, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := parseFilter(c)
		if err != nil {
			return err
		}

		ctx, cancel := backendContext(c, timeout)
		defer cancel()

		res, err := svc.Export(ctx, middleware.IdentityFrom(c), ownerParam(c), f)
		if err != nil {
			return err
		}

		c.Attachment(res.FileName)
		c.Set(fiber.HeaderContentType, res.ContentType)
		return c.Send(res.Data.Bytes())
	}
}
