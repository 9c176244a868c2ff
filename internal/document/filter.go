// Package document derives the searchable, sortable view over an owner's documents.
package document

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"docportal/internal/model"
)

// SortOrder orders a view by upload timestamp.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// DateWindow restricts a view to recent uploads.
type DateWindow string

const (
	WindowAll        DateWindow = "all"
	WindowLast7Days  DateWindow = "7days"
	WindowLast30Days DateWindow = "30days"
)

const day = 24 * time.Hour

// Filter is the ephemeral per-session view state. It never mutates documents.
type Filter struct {
	Query  string     `json:"query"`
	Sort   SortOrder  `json:"sort"`
	Window DateWindow `json:"window"`
}

// DefaultFilter matches everything, newest first.
func DefaultFilter() Filter {
	return Filter{Sort: SortNewest, Window: WindowAll}
}

// ParseSortOrder accepts "newest" and "oldest"; empty means newest.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(s)) {
	case "", SortNewest:
		return SortNewest, nil
	case SortOldest:
		return SortOldest, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}

// ParseDateWindow accepts "all", "7days" and "30days"; empty means all.
func ParseDateWindow(s string) (DateWindow, error) {
	switch DateWindow(strings.ToLower(s)) {
	case "", WindowAll:
		return WindowAll, nil
	case WindowLast7Days:
		return WindowLast7Days, nil
	case WindowLast30Days:
		return WindowLast30Days, nil
	default:
		return "", fmt.Errorf("unknown date window %q", s)
	}
}

// Since returns the inclusive lower bound of the window relative to now.
// ok is false for WindowAll.
func (w DateWindow) Since(now time.Time) (since time.Time, ok bool) {
	switch w {
	case WindowLast7Days:
		return now.Add(-7 * day), true
	case WindowLast30Days:
		return now.Add(-30 * day), true
	default:
		return time.Time{}, false
	}
}

// Matches reports whether doc passes the text and date filters.
func (f Filter) Matches(doc model.Document, now time.Time) bool {
	if f.Query != "" && !strings.Contains(strings.ToLower(doc.Filename), strings.ToLower(f.Query)) {
		return false
	}
	if since, ok := f.Window.Since(now); ok && doc.UploadedAt.Before(since) {
		return false
	}
	return true
}

// Apply filters docs and then sorts the survivors by upload timestamp.
// Equal timestamps keep their input order. The input slice is not modified.
func Apply(docs []model.Document, f Filter, now time.Time) []model.Document {
	out := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if f.Matches(d, now) {
			out = append(out, d)
		}
	}

	oldest := f.Sort == SortOldest
	sort.SliceStable(out, func(i, j int) bool {
		if oldest {
			return out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}
