// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/store-locator-crawler/internal/app"
	"github.com/JakeFAU/store-locator-crawler/internal/config"
	"github.com/JakeFAU/store-locator-crawler/internal/crawler"
	pubmemory "github.com/JakeFAU/store-locator-crawler/internal/publisher/memory"
	"github.com/JakeFAU/store-locator-crawler/internal/storage/memory"
	"github.com/JakeFAU/store-locator-crawler/internal/store"
)

// MockSink mocks the app.Sink interface.
type MockSink struct {
	mock.Mock

	mu      sync.Mutex
	records []store.Record
}

// EnsureTable satisfies app.Sink for the mock.
func (m *MockSink) EnsureTable(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Insert records the row and satisfies app.Sink for the mock.
func (m *MockSink) Insert(_ context.Context, rec store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Close satisfies app.Sink for the mock.
func (m *MockSink) Close() {
	m.Called()
}

func testConfig() config.Config {
	return config.Config{
		Crawl: config.CrawlConfig{
			StartURL:              "https://stores.example.com/us",
			StartID:               1,
			EndID:                 2,
			Concurrency:           2,
			UserAgent:             "test-agent",
			RequestTimeoutSeconds: 5,
		},
		Site: config.SiteConfig{
			Provider:       "Example Co",
			Category:       "Retail",
			RegionSelector: "a.region-list",
			CitySelector:   "a.city-list",
		},
		Archive: config.ArchiveConfig{Backend: config.ArchiveLocal, BaseDir: "unused"},
		DB:      config.DBConfig{Driver: config.DriverPostgres, DSN: "unused", MaxConns: 1},
		PubSub:  config.PubSubConfig{ProjectID: "proj", TopicName: "stores"},
	}
}

func html(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(http.StatusOK, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func TestAppRunsCrawlEndToEnd(t *testing.T) {
	t.Parallel()

	const storeURL = "https://stores.example.com/us/tx/austin/100-congress-ave-77.html"
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "https://stores.example.com/us",
		html(`<a class="region-list" href="/us/tx">Texas</a>`))
	transport.RegisterResponder(http.MethodGet, "https://stores.example.com/us/tx",
		html(`<a class="city-list" href="/us/tx/austin">Austin</a>`))
	transport.RegisterResponder(http.MethodGet, "https://stores.example.com/us/tx/austin",
		html(`<a href="`+storeURL+`">100 Congress Ave</a>`))
	transport.RegisterResponder(http.MethodGet, storeURL,
		html(`<script type="application/ld+json">[{"address": {"addressLocality": "Austin", "addressRegion": "TX"}}]</script>`))

	sink := new(MockSink)
	sink.On("EnsureTable", mock.Anything).Return(nil).Once()
	sink.On("Close").Return().Once()
	archive := memory.NewBlobStore()
	publisher := pubmemory.New()
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.October, 16, 8, 0, 0, 0, time.UTC))

	a, err := app.New(context.Background(), testConfig(), zap.NewNop(),
		app.WithClock(clock),
		app.WithArchive(archive),
		app.WithSink(sink),
		app.WithPublisher(publisher),
		app.WithTransport(transport),
	)
	require.NoError(t, err)

	run := a.Run()
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "stores_16_10_2026_USA", run.TableName)
	assert.Equal(t, 1, run.StartID)
	assert.Equal(t, 2, run.EndID)

	engine, err := a.Engine()
	require.NoError(t, err)
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)
	a.Close()

	assert.Equal(t, int64(4), summary.Pages)
	assert.Equal(t, int64(1), summary.Records)
	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, "77", rec.StoreNo)
	assert.Equal(t, "Example Co", rec.Provider)
	assert.Equal(t, "Austin", rec.City)
	assert.Equal(t, "USA", rec.Country)
	assert.Len(t, archive.Paths(), 1)

	msgs := publisher.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "stores", msgs[0].Topic)
	var note crawler.StoreNotification
	require.NoError(t, msgs[0].Decode(&note))
	assert.Equal(t, run.ID, note.RunID)
	assert.Equal(t, rec.PagesavePath, note.PagesavePath)
	assert.Equal(t, []string{"77"}, publisher.StoreNumbers("stores"))
	sink.AssertExpectations(t)
}

func TestNewRejectsRelativeStartURL(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Crawl.StartURL = "/us"

	sink := new(MockSink)
	_, err := app.New(context.Background(), cfg, nil, app.WithSink(sink), app.WithArchive(memory.NewBlobStore()))
	require.Error(t, err)
	sink.AssertNotCalled(t, "EnsureTable", mock.Anything)
}

func TestNewClosesSinkWhenTableFails(t *testing.T) {
	t.Parallel()

	sink := new(MockSink)
	sink.On("EnsureTable", mock.Anything).Return(errors.New("permission denied")).Once()
	sink.On("Close").Return().Once()

	_, err := app.New(context.Background(), testConfig(), nil,
		app.WithSink(sink),
		app.WithArchive(memory.NewBlobStore()),
		app.WithPublisher(pubmemory.New()),
	)
	require.ErrorContains(t, err, "permission denied")
	sink.AssertExpectations(t)
}

func TestNewBuildsLocalArchive(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Archive.BaseDir = t.TempDir()

	sink := new(MockSink)
	sink.On("EnsureTable", mock.Anything).Return(nil)
	sink.On("Close").Return()

	a, err := app.New(context.Background(), cfg, nil, app.WithSink(sink), app.WithPublisher(pubmemory.New()))
	require.NoError(t, err)
	defer a.Close()
	_, err = a.Engine()
	require.NoError(t, err)
}
