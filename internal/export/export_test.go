package export

import (
	"bytes"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"docportal/internal/document"
	"docportal/internal/model"
)

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func docs() []model.Document {
	at := func(s string) time.Time {
		ts, _ := time.Parse(time.RFC3339, s)
		return ts
	}
	return []model.Document{
		{ID: "1", Filename: "Rechnung_2024.pdf", StorageRef: "users/u1/1-a.pdf", UploadedAt: at("2024-03-02T09:30:00Z")},
		{ID: "2", Filename: "beleg_taxi.jpg", StorageRef: "users/u1/2-b.jpg", UploadedAt: at("2024-02-10T08:00:00Z")},
		{ID: "3", Filename: "urlaub.png", StorageRef: "users/u1/3-c.png", UploadedAt: at("2024-01-15T12:00:00Z")},
		{ID: "4", Filename: "invoice-jan.pdf", StorageRef: "users/u1/4-d.pdf", UploadedAt: at("2024-01-20T17:45:00Z")},
		{ID: "5", Filename: "rechnung", StorageRef: "users/u1/5-e", UploadedAt: at("2023-12-24T10:00:00Z")},
	}
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "02.03.2024, 10:30", FormatDate(ts, berlin(t)))
	assert.Equal(t, "02.03.2024, 09:30", FormatDate(ts, nil))
}

func TestFileType(t *testing.T) {
	assert.Equal(t, "PDF", FileType("Rechnung.2024.pdf"))
	assert.Equal(t, "RECHNUNG", FileType("rechnung"))
	assert.Equal(t, "Unbekannt", FileType("scan."))
	assert.Equal(t, "Unbekannt", FileType(""))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "dokumente_export_2024-03-15.xlsx", FileName(time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC)))
}

func TestSummarize(t *testing.T) {
	rows := Summarize(docs())
	require.Len(t, rows, 3)

	assert.Equal(t, document.TypeInvoice, rows[0].Type)
	assert.Equal(t, 3, rows[0].Count)
	assert.Equal(t, "2023-12-24", rows[0].Oldest.Format("2006-01-02"))
	assert.Equal(t, "2024-03-02", rows[0].Newest.Format("2006-01-02"))

	assert.Equal(t, document.TypeReceipt, rows[1].Type)
	assert.Equal(t, document.TypeOther, rows[2].Type)
}

func TestDetailsStringOrder(t *testing.T) {
	rows := Details(docs(), Options{Location: time.UTC})

	var got []string
	for _, r := range rows {
		got = append(got, string(r.Type)+" "+r.Uploaded)
	}
	// Dates compare as text: day first, so 02.03.2024 sorts before 20.01.2024 and 24.12.2023.
	assert.Equal(t, []string{
		"Beleg 10.02.2024, 08:00",
		"Rechnung 02.03.2024, 09:30",
		"Rechnung 20.01.2024, 17:45",
		"Rechnung 24.12.2023, 10:00",
		"Sonstiges 15.01.2024, 12:00",
	}, got)
}

func TestDetailsChronological(t *testing.T) {
	rows := Details(docs(), Options{Location: time.UTC, Chronological: true})

	var invoices []string
	for _, r := range rows {
		if r.Type == document.TypeInvoice {
			invoices = append(invoices, r.Filename)
		}
	}
	assert.Equal(t, []string{"rechnung", "invoice-jan.pdf", "Rechnung_2024.pdf"}, invoices)
}

func TestDetailsLink(t *testing.T) {
	rows := Details(docs()[:1], Options{Link: func(d model.Document) string { return "https://files/" + d.ID }})
	assert.Equal(t, "https://files/1", rows[0].Link)

	rows = Details(docs()[:1], Options{})
	assert.Equal(t, "users/u1/1-a.pdf", rows[0].Link)
}

func TestBuild(t *testing.T) {
	buf, err := Build(docs(), Options{Location: berlin(t)})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, DetailSheet}, f.GetSheetList())

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 4)
	assert.Equal(t, []string{"Dokumententyp", "Anzahl", "Ältestes Dokument", "Neustes Dokument"}, summary[0])
	assert.Equal(t, []string{"Rechnung", "3", "24.12.2023, 11:00", "02.03.2024, 10:30"}, summary[1])

	detail, err := f.GetRows(DetailSheet)
	require.NoError(t, err)
	require.Len(t, detail, 6)
	assert.Equal(t, []string{"Beleg", "beleg_taxi.jpg", "10.02.2024, 09:00", "users/u1/2-b.jpg", "JPG"}, detail[1])

	width, err := f.GetColWidth(DetailSheet, "D")
	require.NoError(t, err)
	assert.Equal(t, 100.0, width)
}

func TestBuildEmpty(t *testing.T) {
	buf, err := Build(nil, Options{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(DetailSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
