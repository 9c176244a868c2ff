package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docportal/internal/apperr"
	"docportal/internal/document"
	"docportal/internal/export"
	"docportal/internal/model"
	"docportal/internal/realtime"
	"docportal/internal/repository"
	"docportal/internal/storage"
)

// allowedContentTypes is the upload allow-list.
var allowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
}

var errDocumentNotFound = apperr.NotFound("Dokument nicht gefunden")

// UploadInput describes one uploaded file.
type UploadInput struct {
	Filename    string
	ContentType string
	// Size is the exact byte count, or -1 if unknown.
	Size int64
	Body io.Reader
}

// DocumentListResult is a filtered view over an owner's documents.
type DocumentListResult struct {
	Items  []model.Document `json:"data"`
	Total  int              `json:"total"`
	Filter document.Filter  `json:"filter"`
}

// ExportResult is a rendered spreadsheet ready for download.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        *bytes.Buffer
}

// DocumentService defines the document use cases. Every call takes the acting
// identity as viewer; nil means nobody is signed in.
type DocumentService interface {
	// Upload stores the file in the viewer's namespace and records its metadata.
	// If the metadata write fails the stored object is removed again.
	Upload(ctx context.Context, viewer *model.Identity, in UploadInput) (*model.Document, error)

	// Get returns one document of ownerID.
	Get(ctx context.Context, viewer *model.Identity, ownerID, id string) (*model.Document, error)

	// List returns ownerID's documents filtered and sorted by f.
	List(ctx context.Context, viewer *model.Identity, ownerID string, f document.Filter) (*DocumentListResult, error)

	// Watch opens a live list over ownerID's namespace. The caller must Close it.
	Watch(ctx context.Context, viewer *model.Identity, ownerID string) (*document.LiveList, error)

	// Delete removes the stored object first and the metadata record second.
	// Only the owner may delete.
	Delete(ctx context.Context, viewer *model.Identity, id string) error

	// Export renders the filtered view of ownerID's documents as a workbook.
	Export(ctx context.Context, viewer *model.Identity, ownerID string, f document.Filter) (*ExportResult, error)

	// DownloadURL returns a presigned link to the stored object.
	DownloadURL(ctx context.Context, viewer *model.Identity, ownerID, id string) (string, error)

	// Download streams the stored object.
	Download(ctx context.Context, viewer *model.Identity, ownerID, id string) (io.ReadCloser, *model.Document, error)

	// CanView reports whether viewer may read ownerID's namespace: its own, or
	// that of a client linked to the viewing firm.
	CanView(ctx context.Context, viewer *model.Identity, ownerID string) error
}

// DocumentOptions configures a DocumentService.
type DocumentOptions struct {
	MaxUploadBytes      int64
	PresignExpiry       time.Duration
	BackendTimeout      time.Duration
	ExportLocation      *time.Location
	ChronologicalExport bool
}

type documentService struct {
	store    storage.Storage
	repo     repository.DocumentRepository
	profiles repository.ProfileRepository
	notifier realtime.Notifier
	events   realtime.Subscriber
	opts     DocumentOptions
	log      *zap.Logger
	now      func() time.Time

	// deleting marks document ids with a delete in flight.
	deleting sync.Map
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(
	store storage.Storage,
	repo repository.DocumentRepository,
	profiles repository.ProfileRepository,
	notifier realtime.Notifier,
	events realtime.Subscriber,
	opts DocumentOptions,
	log *zap.Logger,
) DocumentService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = 24 * time.Hour
	}
	return &documentService{
		store:    store,
		repo:     repo,
		profiles: profiles,
		notifier: notifier,
		events:   events,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

func normalizeContentType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

// objectKey builds users/<owner>/<unix-millis>-<uuid><.ext>.
func objectKey(ownerID, filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("users/%s/%d-%s%s", ownerID, now.UnixMilli(), uuid.NewString(), ext)
}

func (s *documentService) Upload(ctx context.Context, viewer *model.Identity, in UploadInput) (*model.Document, error) {
	if viewer == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	contentType := normalizeContentType(in.ContentType)
	if _, ok := allowedContentTypes[contentType]; !ok {
		return nil, apperr.ErrUnsupportedFileType
	}
	if in.Body == nil || strings.TrimSpace(in.Filename) == "" {
		return nil, apperr.Validation("Bitte wählen Sie eine Datei aus", nil)
	}
	if s.opts.MaxUploadBytes > 0 && in.Size > s.opts.MaxUploadBytes {
		return nil, apperr.ErrFileTooLarge
	}

	key := objectKey(viewer.ID, in.Filename, s.now())
	info, err := s.store.Put(ctx, key, in.Body, storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": url.QueryEscape(in.Filename),
			"owner-id":          viewer.ID,
		},
	})
	if err != nil {
		return nil, apperr.Storage("Datei konnte nicht hochgeladen werden", err)
	}

	stored, err := s.repo.Create(ctx, &model.Document{
		ID:          uuid.NewString(),
		OwnerID:     viewer.ID,
		Filename:    in.Filename,
		StorageRef:  info.Key,
		ContentType: contentType,
		Size:        info.Size,
	})
	if err != nil {
		// Rollback: delete the object from storage. What survives is left to the reconciler.
		if delErr := s.store.Delete(ctx, info.Key); delErr != nil {
			s.log.Error("upload rollback failed", zap.String("key", info.Key), zap.Error(delErr))
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	s.notify(ctx, realtime.Event{Topic: realtime.DocumentsTopic(viewer.ID), Op: realtime.OpInsert, Subject: stored.ID})
	return stored, nil
}

func (s *documentService) CanView(ctx context.Context, viewer *model.Identity, ownerID string) error {
	if viewer == nil {
		return apperr.ErrNotAuthenticated
	}
	if ownerID == "" || viewer.ID == ownerID {
		return nil
	}
	if !viewer.IsFirm() {
		return apperr.ErrForbidden
	}

	client, err := s.profiles.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Mandant nicht gefunden")
		}
		return fmt.Errorf("find client profile: %w", err)
	}
	if client.Role != model.RoleClient || client.FirmID == nil || *client.FirmID != viewer.ID {
		return apperr.ErrForbidden
	}
	return nil
}

func ownerOrSelf(viewer *model.Identity, ownerID string) string {
	if ownerID == "" && viewer != nil {
		return viewer.ID
	}
	return ownerID
}

func (s *documentService) Get(ctx context.Context, viewer *model.Identity, ownerID, id string) (*model.Document, error) {
	if err := s.CanView(ctx, viewer, ownerID); err != nil {
		return nil, err
	}
	return s.find(ctx, ownerOrSelf(viewer, ownerID), id)
}

func (s *documentService) find(ctx context.Context, ownerID, id string) (*model.Document, error) {
	if id == "" {
		return nil, apperr.Validation("Dokument-ID fehlt", nil)
	}
	doc, err := s.repo.FindByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *documentService) List(ctx context.Context, viewer *model.Identity, ownerID string, f document.Filter) (*DocumentListResult, error) {
	if err := s.CanView(ctx, viewer, ownerID); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListByOwner(ctx, ownerOrSelf(viewer, ownerID), repository.OrderNewestFirst)
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{
		Items:  document.Apply(docs, f, s.now()),
		Total:  len(docs),
		Filter: f,
	}, nil
}

func (s *documentService) Watch(ctx context.Context, viewer *model.Identity, ownerID string) (*document.LiveList, error) {
	if err := s.CanView(ctx, viewer, ownerID); err != nil {
		return nil, err
	}
	load := func(ctx context.Context, owner string) ([]model.Document, error) {
		return s.repo.ListByOwner(ctx, owner, repository.OrderNewestFirst)
	}
	l := document.NewLiveList(load, s.events,
		document.WithTimeout(s.opts.BackendTimeout),
		document.WithClock(s.now),
		document.WithLogger(s.log),
	)
	l.SetOwner(ownerOrSelf(viewer, ownerID))
	return l, nil
}

func (s *documentService) Delete(ctx context.Context, viewer *model.Identity, id string) error {
	if viewer == nil {
		return apperr.ErrNotAuthenticated
	}
	if _, busy := s.deleting.LoadOrStore(id, struct{}{}); busy {
		return apperr.ErrDeleteInProgress
	}
	defer s.deleting.Delete(id)

	doc, err := s.find(ctx, viewer.ID, id)
	if err != nil {
		return err
	}

	// Storage first; a failure keeps the metadata record and its reference intact.
	if err := s.store.Delete(ctx, doc.StorageRef); err != nil {
		return apperr.Storage("Dokument konnte nicht gelöscht werden", err)
	}
	if err := s.repo.Delete(ctx, viewer.ID, id); err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}

	s.notify(ctx, realtime.Event{Topic: realtime.DocumentsTopic(viewer.ID), Op: realtime.OpDelete, Subject: id})
	return nil
}

func (s *documentService) Export(ctx context.Context, viewer *model.Identity, ownerID string, f document.Filter) (*ExportResult, error) {
	res, err := s.List(ctx, viewer, ownerID, f)
	if err != nil {
		return nil, err
	}

	buf, err := export.Build(res.Items, export.Options{
		Location:      s.opts.ExportLocation,
		Chronological: s.opts.ChronologicalExport,
		Link:          func(d model.Document) string { return s.link(ctx, d) },
	})
	if err != nil {
		return nil, apperr.Export(err)
	}
	return &ExportResult{
		FileName:    export.FileName(s.now()),
		ContentType: export.ContentType,
		Data:        buf,
	}, nil
}

// link presigns a download URL, falling back to the bare storage reference.
func (s *documentService) link(ctx context.Context, d model.Document) string {
	u, err := s.store.PresignGet(ctx, d.StorageRef, s.opts.PresignExpiry)
	if err != nil {
		s.log.Warn("presign failed", zap.String("key", d.StorageRef), zap.Error(err))
		return d.StorageRef
	}
	return u
}

func (s *documentService) DownloadURL(ctx context.Context, viewer *model.Identity, ownerID, id string) (string, error) {
	doc, err := s.Get(ctx, viewer, ownerID, id)
	if err != nil {
		return "", err
	}
	u, err := s.store.PresignGet(ctx, doc.StorageRef, s.opts.PresignExpiry)
	if err != nil {
		return "", apperr.Storage("Download-Link konnte nicht erstellt werden", err)
	}
	return u, nil
}

func (s *documentService) Download(ctx context.Context, viewer *model.Identity, ownerID, id string) (io.ReadCloser, *model.Document, error) {
	doc, err := s.Get(ctx, viewer, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, doc.StorageRef)
	if err != nil {
		return nil, nil, apperr.Storage("Datei konnte nicht geladen werden", err)
	}
	return rc, doc, nil
}

func (s *documentService) notify(ctx context.Context, ev realtime.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn("change notification failed", zap.String("topic", ev.Topic), zap.Error(err))
	}
}
