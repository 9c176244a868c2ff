// Package export renders a document view as an Excel workbook with a summary
// sheet per document type and a detail sheet per document.
package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"docportal/internal/document"
	"docportal/internal/model"
)

const (
	SummarySheet = "Übersicht"
	DetailSheet  = "Dokumente"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	dateLayout  = "02.01.2006, 15:04"
	unknownType = "Unbekannt"
)

var (
	summaryHeader = []interface{}{"Dokumententyp", "Anzahl", "Ältestes Dokument", "Neustes Dokument"}
	detailHeader  = []interface{}{"Dokumententyp", "Dateiname", "Hochgeladen am", "Download-Link", "Dateityp"}
	detailWidths  = []float64{15, 40, 20, 100, 10}
)

// Options tune the rendering.
type Options struct {
	// Location renders timestamps; nil means UTC.
	Location *time.Location
	// Chronological orders detail rows of one type by upload time instead of
	// by the formatted date text.
	Chronological bool
	// Link returns the download link of a document; nil uses the storage reference.
	Link func(model.Document) string
}

func (o Options) loc() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func (o Options) link(d model.Document) string {
	if o.Link == nil {
		return d.StorageRef
	}
	return o.Link(d)
}

// SummaryRow aggregates one document type.
type SummaryRow struct {
	Type   document.Type
	Count  int
	Oldest time.Time
	Newest time.Time
}

// DetailRow describes one document.
type DetailRow struct {
	Type       document.Type
	Filename   string
	UploadedAt time.Time
	Uploaded   string
	Link       string
	FileType   string
}

// FormatDate renders t as dd.MM.yyyy, HH:mm in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

// FileType returns the upper-cased text after the last dot, the whole name
// if there is no dot, or "Unbekannt" if that is empty.
func FileType(filename string) string {
	ext := filename
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = filename[i+1:]
	}
	if ext == "" {
		return unknownType
	}
	return strings.ToUpper(ext)
}

// FileName is the download name for an export created at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("dokumente_export_%s.xlsx", now.UTC().Format("2006-01-02"))
}

// Summarize groups docs by type in order of first appearance.
func Summarize(docs []model.Document) []SummaryRow {
	var rows []SummaryRow
	index := make(map[document.Type]int)
	for _, d := range docs {
		t := document.Classify(d.Filename)
		i, ok := index[t]
		if !ok {
			index[t] = len(rows)
			rows = append(rows, SummaryRow{Type: t, Oldest: d.UploadedAt, Newest: d.UploadedAt})
			i = len(rows) - 1
		}
		r := &rows[i]
		r.Count++
		if d.UploadedAt.Before(r.Oldest) {
			r.Oldest = d.UploadedAt
		}
		if d.UploadedAt.After(r.Newest) {
			r.Newest = d.UploadedAt
		}
	}
	return rows
}

// Details lists one row per document ordered by type, then by upload date.
func Details(docs []model.Document, opts Options) []DetailRow {
	loc := opts.loc()
	rows := make([]DetailRow, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, DetailRow{
			Type:       document.Classify(d.Filename),
			Filename:   d.Filename,
			UploadedAt: d.UploadedAt,
			Uploaded:   FormatDate(d.UploadedAt, loc),
			Link:       opts.link(d),
			FileType:   FileType(d.Filename),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if opts.Chronological {
			return a.UploadedAt.Before(b.UploadedAt)
		}
		return a.Uploaded < b.Uploaded
	})
	return rows
}

// Build renders docs into an xlsx workbook held in memory.
func Build(docs []model.Document, opts Options) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(DetailSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	loc := opts.loc()
	summary := [][]interface{}{summaryHeader}
	for _, r := range Summarize(docs) {
		summary = append(summary, []interface{}{
			string(r.Type), r.Count, FormatDate(r.Oldest, loc), FormatDate(r.Newest, loc),
		})
	}
	if err := writeRows(f, SummarySheet, summary); err != nil {
		return nil, err
	}

	detail := [][]interface{}{detailHeader}
	for _, r := range Details(docs, opts) {
		detail = append(detail, []interface{}{string(r.Type), r.Filename, r.Uploaded, r.Link, r.FileType})
	}
	if err := writeRows(f, DetailSheet, detail); err != nil {
		return nil, err
	}
	for i, w := range detailWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(DetailSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
