package extract

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/store-locator-crawler/internal/identifier"
	"github.com/JakeFAU/store-locator-crawler/internal/normalize"
	"github.com/JakeFAU/store-locator-crawler/internal/store"
)

const detailURL = "https://locations.levi.com/en-us/ca/san-francisco/815-market-st-1234.html"

const fullDetailPage = `<html><head>
<script type="application/ld+json">
[{
  "@context": "https://schema.org",
  "@type": "ClothingStore",
  "mainEntityOfPage": {
    "@type": "WebPage",
    "breadcrumb": {
      "@type": "BreadcrumbList",
      "itemListElement": [
        {"@type": "ListItem", "position": 1, "item": {"@id": "https://locations.levi.com/", "name": "Home"}},
        {"@type": "ListItem", "position": 2, "item": {"@id": "https://locations.levi.com/en-us/", "name": "United States"}},
        {"@type": "ListItem", "position": 3, "item": {"@id": "https://locations.levi.com/en-us/ca/", "name": "California"}},
        {"@type": "ListItem", "position": 4, "item": {"@id": "https://locations.levi.com/en-us/ca/san-francisco/", "name": "San Francisco"}},
        {"@type": "ListItem", "position": 5, "item": {"@id": "` + detailURL + `", "name": "Levi's Market Street"}}
      ]
    }
  },
  "geo": {"@type": "GeoCoordinates", "latitude": 37.78471, "longitude": "-122.40689"},
  "address": {
    "@type": "PostalAddress",
    "streetAddress": "815 Market St",
    "addressLocality": "San Francisco",
    "addressRegion": "CA",
    "postalCode": "94103",
    "addressCountry": "US",
    "telephone": "(415) 501-0100"
  },
  "openingHours": "Mo 10:00-20:00 Tu 10:00-20:00 Su 11:00-19:00",
  "hasMap": "https://maps.google.com/?cid=123"
}]
</script>
</head><body><h1>Levi's</h1></body></html>`

const noGeoPage = `<html><head>
<script type="application/ld+json">
[{
  "@type": "ClothingStore",
  "address": {
    "@type": "PostalAddress",
    "streetAddress": "1 Main St",
    "addressLocality": "Springfield",
    "addressRegion": "IL",
    "postalCode": "62701"
  },
  "openingHours": "Mo 9am-5pm Tu 10am-6pm"
}]
</script></head><body></body></html>`

type fakeArchive struct {
	mu    sync.Mutex
	puts  map[string][]byte
	err   error
	calls int
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{puts: make(map[string][]byte)}
}

func (f *fakeArchive) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.puts[path] = b
	return "/archive/" + path, nil
}

func newTestExtractor(t *testing.T, archive Archive) *Extractor {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.October, 16, 13, 0, 0, 0, time.UTC))
	ex, err := New(Config{
		ArchiveDir: "16_10_2026/locations_levi_com",
		Provider:   "Levi Strauss",
		Category:   "Apparel And Accessory Stores",
	}, archive, clock, nil)
	require.NoError(t, err)
	return ex
}

func TestNewRequiresArchive(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, nil, nil)
	require.Error(t, err)
}

func TestExtractFullPage(t *testing.T) {
	t.Parallel()

	archive := newFakeArchive()
	ex := newTestExtractor(t, archive)

	rec, err := ex.Extract(context.Background(), detailURL, []byte(fullDetailPage))
	require.NoError(t, err)

	wantPath := "16_10_2026/locations_levi_com/" + identifier.PageID(detailURL) + ".html.gz"
	assert.Equal(t, store.Record{
		StoreNo:      "1234",
		Name:         "Levi's Market Street",
		Latitude:     "37.78471",
		Longitude:    "-122.40689",
		Street:       "815 Market St, San Francisco, CA, 94103, US",
		City:         "San Francisco",
		State:        "CA",
		ZipCode:      "94103",
		County:       "N/A",
		Phone:        "(415) 501-0100",
		OpenHours:    "Monday: 10:00-20:00 | Tuesday: 10:00-20:00 | Sunday: 11:00-19:00",
		URL:          detailURL,
		Provider:     "Levi Strauss",
		Category:     "Apparel And Accessory Stores",
		UpdatedDate:  "16-10-2026",
		Country:      "USA",
		Status:       "Open",
		DirectionURL: "https://maps.google.com/?cid=123",
		PagesavePath: "/archive/" + wantPath,
	}, rec)

	require.Equal(t, 1, archive.calls)
	assert.Equal(t, []byte(fullDetailPage), archive.puts[wantPath])
}

func TestExtractMissingGeo(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(t, newFakeArchive())
	rec, err := ex.Extract(context.Background(), "https://x.com/store/04821.html", []byte(noGeoPage))
	require.NoError(t, err)

	assert.Empty(t, rec.Latitude)
	assert.Empty(t, rec.Longitude)
	assert.Empty(t, rec.Name)
	assert.Empty(t, rec.Phone)
	assert.Empty(t, rec.DirectionURL)
	assert.Equal(t, "1 Main St, Springfield, IL, 62701", rec.Street)
	assert.Equal(t, "Springfield", rec.City)
	assert.Equal(t, "Monday: 9am-5pm | Tuesday: 10am-6pm", rec.OpenHours)
	assert.Equal(t, "04821", rec.StoreNo)
	assert.NotEmpty(t, rec.PagesavePath)
}

func TestExtractWrongTypesFallBackPerField(t *testing.T) {
	t.Parallel()

	page := `<script type="application/ld+json">[{
		"geo": ["not", "an", "object"],
		"address": {"streetAddress": {"line": 1}, "addressLocality": "Austin", "addressRegion": 7},
		"openingHours": ["Mo 9-5"],
		"mainEntityOfPage": {"breadcrumb": {"itemListElement": [{"item": {"name": "Home"}}]}}
	}]</script>`

	ex := newTestExtractor(t, newFakeArchive())
	rec, err := ex.Extract(context.Background(), "https://x.com/store/info.html", []byte(page))
	require.NoError(t, err)

	assert.Empty(t, rec.Latitude)
	assert.Empty(t, rec.Street, "non-string address value poisons only the street line")
	assert.Equal(t, "Austin", rec.City)
	assert.Equal(t, "7", rec.State)
	assert.Empty(t, rec.OpenHours)
	assert.Empty(t, rec.Name, "breadcrumb shorter than the store crumb index")
	assert.Empty(t, rec.StoreNo)
	assert.Equal(t, "N/A", rec.County)
}

func TestExtractTopLevelObjectAndEmptyArray(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(t, newFakeArchive())

	rec, err := ex.Extract(context.Background(), detailURL,
		[]byte(`<script type="application/ld+json">{"address": {"addressRegion": "NY"}}</script>`))
	require.NoError(t, err)
	assert.Equal(t, "NY", rec.State)

	rec, err = ex.Extract(context.Background(), detailURL,
		[]byte(`<script type="application/ld+json">[]</script>`))
	require.NoError(t, err)
	assert.Empty(t, rec.State)
	assert.Equal(t, detailURL, rec.URL)
	assert.NotEmpty(t, rec.PagesavePath)
}

func TestExtractWithoutStructuredDataSkipsArchive(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"no script":      `<html><body><p>closed</p></body></html>`,
		"empty script":   `<script type="application/ld+json">   </script>`,
		"malformed json": `<script type="application/ld+json">[{"geo": </script>`,
		"scalar json":    `<script type="application/ld+json">42</script>`,
	}
	for name, page := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			archive := newFakeArchive()
			ex := newTestExtractor(t, archive)
			_, err := ex.Extract(context.Background(), detailURL, []byte(page))
			require.ErrorIs(t, err, ErrNoStructuredData)
			assert.Zero(t, archive.calls)
		})
	}
}

func TestExtractArchiveFailure(t *testing.T) {
	t.Parallel()

	archive := newFakeArchive()
	archive.err = errors.New("disk full")
	ex := newTestExtractor(t, archive)

	_, err := ex.Extract(context.Background(), detailURL, []byte(fullDetailPage))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoStructuredData)
	assert.Contains(t, err.Error(), "disk full")
}

func TestExtractUsesFirstScriptOnly(t *testing.T) {
	t.Parallel()

	page := `<script type="application/ld+json">[{"address": {"addressLocality": "First"}}]</script>
<script type="application/ld+json">[{"address": {"addressLocality": "Second"}}]</script>`
	ex := newTestExtractor(t, newFakeArchive())
	rec, err := ex.Extract(context.Background(), detailURL, []byte(page))
	require.NoError(t, err)
	assert.Equal(t, "First", rec.City)
}

func TestArchivePathIsStablePerURL(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(t, newFakeArchive())
	assert.Equal(t, ex.ArchivePath(detailURL), ex.ArchivePath(detailURL+"?utm=1"))
	assert.NotEqual(t, ex.ArchivePath(detailURL), ex.ArchivePath("https://x.com/store/1.html"))
}

func TestSubjectSelection(t *testing.T) {
	t.Parallel()

	wrap := func(js string) []byte {
		return []byte(`<script type="application/ld+json">` + js + `</script>`)
	}

	subj, err := subject(wrap(`[{"name": "first"}, {"name": "second"}]`))
	require.NoError(t, err)
	assert.Equal(t, "first", subj.Get("name").String())

	subj, err = subject(wrap(`{"name": "solo"}`))
	require.NoError(t, err)
	assert.Equal(t, "solo", subj.Get("name").String())

	subj, err = subject(wrap(`[]`))
	require.NoError(t, err)
	assert.False(t, subj.Exists())

	_, err = subject(wrap(`{"a": 1} {"b": 2}`))
	require.ErrorIs(t, err, ErrNoStructuredData, "trailing data is rejected")
}

func TestRulePathsAndScalars(t *testing.T) {
	t.Parallel()

	subj, err := subject([]byte(`<script type="application/ld+json">
{"geo": {"latitude": 37.784710, "longitude": null},
 "mainEntityOfPage": {"breadcrumb": {"itemListElement": [{}, {}, {}, {}, {"item": {"name": "Store"}}]}}}
</script>`))
	require.NoError(t, err)

	var rec store.Record
	assert.True(t, breadcrumbNameRule.apply(subj, &rec))
	assert.Equal(t, "Store", rec.Name)

	lat, ok := scalar(subj.Get("geo.latitude"))
	require.True(t, ok)
	assert.Equal(t, "37.784710", lat, "numbers keep their published text")

	_, ok = scalar(subj.Get("geo.longitude"))
	assert.False(t, ok)
	_, ok = scalar(subj.Get("geo"))
	assert.False(t, ok)
}

func TestStreetLineKeepsDocumentOrder(t *testing.T) {
	t.Parallel()

	subj, err := subject([]byte(`<script type="application/ld+json">
{"address": {"@type": "PostalAddress", "streetAddress": "815 Market St", "addressLocality": "San Francisco",
  "addressRegion": "CA", "postalCode": "94103", "addressCountry": "US", "telephone": "555"}}
</script>`))
	require.NoError(t, err)

	want, _ := streetLine(subj.Get("address"))
	got := normalize.JoinAddressParts([]normalize.Part{
		{Key: "streetAddress", Value: "815 Market St"},
		{Key: "addressLocality", Value: "San Francisco"},
		{Key: "addressRegion", Value: "CA"},
		{Key: "postalCode", Value: "94103"},
		{Key: "addressCountry", Value: "US"},
		{Key: "telephone", Value: "555"},
	})
	assert.Equal(t, got, want)
}
