package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docportal/internal/model"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func doc(id, name string, age time.Duration) model.Document {
	return model.Document{ID: id, Filename: name, UploadedAt: now.Add(-age)}
}

func fixture() []model.Document {
	return []model.Document{
		doc("1", "Rechnung_März.pdf", time.Hour),
		doc("2", "beleg_taxi.jpg", 3*day),
		doc("3", "urlaub.png", 10*day),
		doc("4", "RECHNUNG_alt.pdf", 40*day),
	}
}

func ids(docs []model.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestApplyQuery(t *testing.T) {
	got := Apply(fixture(), Filter{Query: "rechnung", Sort: SortNewest, Window: WindowAll}, now)
	assert.Equal(t, []string{"1", "4"}, ids(got))

	got = Apply(fixture(), Filter{Query: "", Sort: SortNewest, Window: WindowAll}, now)
	assert.Len(t, got, 4)
}

func TestApplyWindow(t *testing.T) {
	tests := []struct {
		window DateWindow
		want   []string
	}{
		{WindowAll, []string{"1", "2", "3", "4"}},
		{WindowLast7Days, []string{"1", "2"}},
		{WindowLast30Days, []string{"1", "2", "3"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.window), func(t *testing.T) {
			got := Apply(fixture(), Filter{Sort: SortNewest, Window: tt.window}, now)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestApplyWindowBoundaryIsInclusive(t *testing.T) {
	docs := []model.Document{doc("edge", "a.pdf", 7*day), doc("out", "b.pdf", 7*day+time.Nanosecond)}
	got := Apply(docs, Filter{Sort: SortNewest, Window: WindowLast7Days}, now)
	assert.Equal(t, []string{"edge"}, ids(got))
}

func TestApplyIdempotent(t *testing.T) {
	f := Filter{Query: "e", Sort: SortOldest, Window: WindowLast30Days}
	once := Apply(fixture(), f, now)
	twice := Apply(once, f, now)
	assert.Equal(t, once, twice)
}

func TestSortOrdersAreReverses(t *testing.T) {
	newest := Apply(fixture(), Filter{Sort: SortNewest, Window: WindowAll}, now)
	oldest := Apply(fixture(), Filter{Sort: SortOldest, Window: WindowAll}, now)
	require.Len(t, oldest, len(newest))
	for i := range newest {
		assert.Equal(t, newest[i].ID, oldest[len(oldest)-1-i].ID)
	}
}

func TestApplyStableForTies(t *testing.T) {
	docs := []model.Document{doc("a", "x.pdf", day), doc("b", "y.pdf", day), doc("c", "z.pdf", 2*day)}

	assert.Equal(t, []string{"a", "b", "c"}, ids(Apply(docs, Filter{Sort: SortNewest}, now)))
	assert.Equal(t, []string{"c", "a", "b"}, ids(Apply(docs, Filter{Sort: SortOldest}, now)))
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	docs := fixture()
	Apply(docs, Filter{Sort: SortOldest}, now)
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(docs))
}

func TestParse(t *testing.T) {
	s, err := ParseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, SortNewest, s)

	s, err = ParseSortOrder("Oldest")
	require.NoError(t, err)
	assert.Equal(t, SortOldest, s)

	_, err = ParseSortOrder("random")
	assert.Error(t, err)

	w, err := ParseDateWindow("7days")
	require.NoError(t, err)
	assert.Equal(t, WindowLast7Days, w)

	w, err = ParseDateWindow("")
	require.NoError(t, err)
	assert.Equal(t, WindowAll, w)

	_, err = ParseDateWindow("90days")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := map[string]Type{
		"Rechnung_2024.pdf":   TypeInvoice,
		"invoice-42.PDF":      TypeInvoice,
		"rechnung_beleg.pdf":  TypeInvoice,
		"beleg_taxi.jpg":      TypeReceipt,
		"Quittung_Tanken.png": TypeReceiptSlip,
		"urlaub.png":          TypeOther,
		"":                    TypeOther,
	}
	for name, want := range tests {
		assert.Equal(t, want, Classify(name), name)
	}
}
