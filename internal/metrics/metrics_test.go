package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Locations.Levi.com/en-us/", "locations.levi.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	first := crawlerPagesTotal
	Init()
	if crawlerPagesTotal == nil || crawlerPagesTotal != first {
		t.Fatal("Init() must build collectors exactly once")
	}
}

func TestObservePage(t *testing.T) {
	Init()
	pages := crawlerPagesTotal.WithLabelValues("pages.test", "store_list")
	bytes := crawlerBytesTotal.WithLabelValues("pages.test")
	beforePages := testutil.ToFloat64(pages)
	beforeBytes := testutil.ToFloat64(bytes)

	ObservePage("https://pages.test/en-us/ca/", "store_list", 512)
	ObservePage("https://pages.test/en-us/ny/", "store_list", 0)

	if got := testutil.ToFloat64(pages) - beforePages; got != 2 {
		t.Errorf("expected 2 pages, got %f", got)
	}
	if got := testutil.ToFloat64(bytes) - beforeBytes; got != 512 {
		t.Errorf("expected 512 bytes, got %f", got)
	}
}

func TestObserveRecordAndLinks(t *testing.T) {
	Init()
	stored := crawlerRecordsTotal.WithLabelValues(RecordStored)
	links := crawlerLinksTotal.WithLabelValues("store_detail")
	fetchErrs := crawlerFetchErrorsTotal.WithLabelValues("city_list", "404")
	beforeStored := testutil.ToFloat64(stored)
	beforeLinks := testutil.ToFloat64(links)
	beforeErrs := testutil.ToFloat64(fetchErrs)

	ObserveRecord(RecordStored)
	ObserveLinks("store_detail", 3)
	ObserveLinks("store_detail", 0)
	ObserveFetchError("city_list", 404)

	if got := testutil.ToFloat64(stored) - beforeStored; got != 1 {
		t.Errorf("expected 1 stored record, got %f", got)
	}
	if got := testutil.ToFloat64(links) - beforeLinks; got != 3 {
		t.Errorf("expected 3 links, got %f", got)
	}
	if got := testutil.ToFloat64(fetchErrs) - beforeErrs; got != 1 {
		t.Errorf("expected 1 fetch error, got %f", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://locations.levi.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
