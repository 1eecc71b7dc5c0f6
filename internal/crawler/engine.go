package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/store-locator-crawler/internal/extract"
	"github.com/JakeFAU/store-locator-crawler/internal/metrics"
	"github.com/JakeFAU/store-locator-crawler/internal/store"
)

const kindKey = "page_kind"

var errSinkFailed = errors.New("sink insert failed")

// Extractor turns a store detail page into a record, archiving the page on success.
type Extractor interface {
	Extract(ctx context.Context, pageURL string, body []byte) (store.Record, error)
}

// Sink persists store records. Implementations must accept concurrent inserts.
type Sink interface {
	Insert(ctx context.Context, rec store.Record) error
}

// Publisher pushes a notification for every stored record.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Config holds the knobs the collector and link handlers need.
type Config struct {
	UserAgent      string
	Concurrency    int
	RequestTimeout time.Duration
	Delay          time.Duration
	RespectRobots  bool
	RegionSelector string
	CitySelector   string
	Topic          string
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.UserAgent == "" {
		return fmt.Errorf("user agent must be set")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be > 0")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be >= 0")
	}
	if strings.TrimSpace(c.RegionSelector) == "" || strings.TrimSpace(c.CitySelector) == "" {
		return fmt.Errorf("region and city selectors must be set")
	}
	return nil
}

// Page is one fetched response handed to the handler for its kind.
type Page struct {
	URL  string
	Kind PageKind
	Body []byte
}

// Handler processes one page and returns the links to fetch next.
type Handler func(ctx context.Context, page Page) ([]Follow, error)

// StoreNotification is published for every stored record when a topic is configured.
type StoreNotification struct {
	RunID        string `json:"run_id"`
	Table        string `json:"table"`
	StoreNo      string `json:"store_no"`
	URL          string `json:"url"`
	PagesavePath string `json:"pagesave_path"`
}

// Summary counts what a Run did.
type Summary struct {
	Pages        int64
	FetchErrors  int64
	Records      int64
	Skipped      int64
	ExtractFails int64
	SinkFailures int64
}

// Option customizes an Engine.
type Option func(*Engine)

// WithTransport replaces the collector's HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(e *Engine) { e.transport = rt }
}

// WithPublisher enables per-record notifications on cfg.Topic.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// Engine walks the locator from the run's start URL.
type Engine struct {
	cfg       Config
	run       Run
	extractor Extractor
	sink      Sink
	publisher Publisher
	transport http.RoundTripper
	logger    *zap.Logger
	handlers  map[PageKind]Handler
}

// NewEngine wires an Engine.
func NewEngine(cfg Config, run Run, extractor Extractor, sink Sink, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if run.StartURL == "" {
		return nil, fmt.Errorf("run start url is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:       cfg,
		run:       run,
		extractor: extractor,
		sink:      sink,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.handlers = map[PageKind]Handler{
		KindRoot:        e.handleRoot,
		KindCityList:    e.handleCityList,
		KindStoreList:   e.handleStoreList,
		KindStoreDetail: e.handleStoreDetail,
	}
	return e, nil
}

// Handler returns the handler registered for kind.
func (e *Engine) Handler(kind PageKind) (Handler, bool) {
	h, ok := e.handlers[kind]
	return h, ok
}

func (e *Engine) handleRoot(_ context.Context, page Page) ([]Follow, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}
	return follows(selectorLinks(doc, e.cfg.RegionSelector), KindCityList), nil
}

func (e *Engine) handleCityList(_ context.Context, page Page) ([]Follow, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}
	return follows(selectorLinks(doc, e.cfg.CitySelector), KindStoreList), nil
}

func (e *Engine) handleStoreList(_ context.Context, page Page) ([]Follow, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}
	return follows(storeLinks(doc, page.URL), KindStoreDetail), nil
}

// handleStoreDetail extracts, archives and persists one store. The extractor archives before
// returning, so the sink never sees a record whose page was not saved.
func (e *Engine) handleStoreDetail(ctx context.Context, page Page) ([]Follow, error) {
	rec, err := e.extractor.Extract(ctx, page.URL, page.Body)
	if err != nil {
		if errors.Is(err, extract.ErrNoStructuredData) {
			metrics.ObserveRecord(metrics.RecordNoStructuredData)
		} else {
			metrics.ObserveRecord(metrics.RecordExtractFailed)
		}
		return nil, err
	}
	if err := e.sink.Insert(ctx, rec); err != nil {
		metrics.ObserveRecord(metrics.RecordSinkFailed)
		return nil, fmt.Errorf("%w: %w", errSinkFailed, err)
	}
	metrics.ObserveRecord(metrics.RecordStored)
	e.notify(ctx, rec)
	return nil, nil
}

func (e *Engine) notify(ctx context.Context, rec store.Record) {
	if e.publisher == nil || e.cfg.Topic == "" {
		return
	}
	msg := StoreNotification{
		RunID:        e.run.ID,
		Table:        e.run.TableName,
		StoreNo:      rec.StoreNo,
		URL:          rec.URL,
		PagesavePath: rec.PagesavePath,
	}
	if _, err := e.publisher.Publish(ctx, e.cfg.Topic, msg); err != nil {
		e.logger.Warn("publish store notification failed", zap.String("url", rec.URL), zap.Error(err))
	}
}

func parseDocument(page Page) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s page %s: %w", page.Kind, page.URL, err)
	}
	return doc, nil
}

// walk is the state of a single Run.
type walk struct {
	engine    *Engine
	ctx       context.Context
	collector *colly.Collector

	pages        atomic.Int64
	fetchErrors  atomic.Int64
	records      atomic.Int64
	skipped      atomic.Int64
	extractFails atomic.Int64
	sinkFailures atomic.Int64
}

// Run crawls until every branch is exhausted or ctx is canceled.
// Cancellation stops new requests; pages already being handled finish their archive and insert.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	w := &walk{engine: e, ctx: ctx}
	collector, err := e.newCollector(w)
	if err != nil {
		return Summary{}, err
	}
	w.collector = collector

	e.logger.Info("crawl started",
		zap.String("run_id", e.run.ID),
		zap.String("start_url", e.run.StartURL),
		zap.String("table", e.run.TableName),
		zap.Int("start_id", e.run.StartID),
		zap.Int("end_id", e.run.EndID),
		zap.Int("concurrency", e.cfg.Concurrency),
	)

	if err := w.enqueue(e.run.StartURL, KindRoot); err != nil {
		return Summary{}, fmt.Errorf("visit start url: %w", err)
	}
	collector.Wait()

	summary := w.summary()
	e.logger.Info("crawl finished",
		zap.String("run_id", e.run.ID),
		zap.Int64("pages", summary.Pages),
		zap.Int64("fetch_errors", summary.FetchErrors),
		zap.Int64("records", summary.Records),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("extract_failures", summary.ExtractFails),
		zap.Int64("sink_failures", summary.SinkFailures),
	)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (e *Engine) newCollector(w *walk) (*colly.Collector, error) {
	collector := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(e.cfg.UserAgent),
	)
	collector.AllowURLRevisit = false
	collector.IgnoreRobotsTxt = !e.cfg.RespectRobots
	if e.transport != nil {
		collector.WithTransport(e.transport)
	}
	collector.SetRequestTimeout(e.cfg.RequestTimeout)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: e.cfg.Concurrency,
		Delay:       e.cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("set collector limits: %w", err)
	}

	collector.OnRequest(w.onRequest)
	collector.OnResponse(w.onResponse)
	collector.OnError(w.onError)
	return collector, nil
}

func (w *walk) enqueue(rawURL string, kind PageKind) error {
	if w.ctx.Err() != nil {
		return nil
	}
	cctx := colly.NewContext()
	cctx.Put(kindKey, string(kind))
	return w.collector.Request(http.MethodGet, rawURL, nil, cctx, nil)
}

func (w *walk) onRequest(r *colly.Request) {
	if w.ctx.Err() != nil {
		r.Abort()
	}
}

func (w *walk) onResponse(r *colly.Response) {
	e := w.engine
	kind := PageKind(r.Ctx.Get(kindKey))
	handler, ok := e.handlers[kind]
	if !ok {
		e.logger.Warn("response without page kind", zap.String("url", r.Request.URL.String()))
		return
	}
	page := Page{URL: r.Request.URL.String(), Kind: kind, Body: r.Body}
	w.pages.Add(1)
	metrics.ObservePage(page.URL, string(kind), len(r.Body))

	// Handlers get a context that outlives cancellation so archive writes and inserts complete.
	next, err := handler(context.WithoutCancel(w.ctx), page)
	if err != nil {
		w.recordFailure(page, err)
		return
	}
	if kind == KindStoreDetail {
		w.records.Add(1)
		return
	}
	if len(next) == 0 {
		e.logger.Debug("no links on list page", zap.String("url", page.URL), zap.String("kind", string(kind)))
		return
	}
	metrics.ObserveLinks(string(next[0].Kind), len(next))
	for _, f := range next {
		abs := r.Request.AbsoluteURL(f.URL)
		if abs == "" {
			e.logger.Debug("skipping unresolvable link", zap.String("href", f.URL), zap.String("page", page.URL))
			continue
		}
		if err := w.enqueue(abs, f.Kind); err != nil {
			if isAlreadyVisited(err) {
				e.logger.Debug("link already visited", zap.String("url", abs))
				continue
			}
			e.logger.Warn("failed to queue link", zap.String("url", abs), zap.Error(err))
		}
	}
}

// isAlreadyVisited matches colly's visited error by message; its error value changed across v2 releases.
func isAlreadyVisited(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already visited")
}

func (w *walk) recordFailure(page Page, err error) {
	logger := w.engine.logger.With(
		zap.String("url", page.URL),
		zap.String("kind", string(page.Kind)),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, extract.ErrNoStructuredData):
		w.skipped.Add(1)
		logger.Error("store page has no structured data; skipped")
	case errors.Is(err, errSinkFailed):
		w.sinkFailures.Add(1)
		logger.Error("failed to persist store record")
	case page.Kind == KindStoreDetail:
		w.extractFails.Add(1)
		logger.Error("failed to extract store page")
	default:
		logger.Warn("failed to handle page")
	}
}

func (w *walk) onError(r *colly.Response, err error) {
	w.fetchErrors.Add(1)
	kind := ""
	if r.Ctx != nil {
		kind = r.Ctx.Get(kindKey)
	}
	metrics.ObserveFetchError(kind, r.StatusCode)

	msg := "Request failed"
	switch r.StatusCode {
	case http.StatusTooManyRequests:
		msg = "Rate limited"
	case http.StatusForbidden:
		msg = "Forbidden"
	}
	w.engine.logger.Warn(msg,
		zap.String("url", r.Request.URL.String()),
		zap.String("kind", kind),
		zap.Int("status_code", r.StatusCode),
		zap.Error(err),
	)
}

func (w *walk) summary() Summary {
	return Summary{
		Pages:        w.pages.Load(),
		FetchErrors:  w.fetchErrors.Load(),
		Records:      w.records.Load(),
		Skipped:      w.skipped.Load(),
		ExtractFails: w.extractFails.Load(),
		SinkFailures: w.sinkFailures.Load(),
	}
}
