package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btiflix/catalog/internal/catalog"
	"github.com/btiflix/catalog/internal/fetcher"
	"github.com/btiflix/catalog/internal/store"
)

func sitemapXML(urls ...string) []byte {
	var b strings.Builder
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, u := range urls {
		fmt.Fprintf(&b, "<url><loc>%s</loc></url>", u)
	}
	b.WriteString("</urlset>")
	return []byte(b.String())
}

type fakeSource struct {
	files map[int][]byte
	errs  map[int]error
}

func (s *fakeSource) Load(_ context.Context, index int) ([]byte, error) {
	if err, ok := s.errs[index]; ok {
		return nil, err
	}
	data, ok := s.files[index]
	if !ok {
		return nil, fmt.Errorf("sitemap %d missing", index)
	}
	return data, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	errs  map[string]error
	calls []string
	// block, when non-nil, is received from before every fetch.
	block chan struct{}
	// onFetch runs before each fetch, for cancellation tests.
	onFetch func(url string)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (fetcher.Page, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return fetcher.Page{}, ctx.Err()
		}
	}
	if f.onFetch != nil {
		f.onFetch(url)
	}
	if err := ctx.Err(); err != nil {
		return fetcher.Page{}, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if err, ok := f.errs[url]; ok {
		return fetcher.Page{}, err
	}
	return fetcher.Page{URL: url, StatusCode: 200, Body: []byte("<html></html>")}, nil
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// urlExtractor keys records off the source URL's trailing segment.
type urlExtractor struct {
	degraded map[string]bool
}

func (e *urlExtractor) Extract(_ context.Context, _ []byte, sourceURL string) catalog.MovieRecord {
	rec := catalog.MovieRecord{
		ID:        "id-" + sourceURL[strings.LastIndex(sourceURL, "/")+1:],
		Title:     "Title " + sourceURL,
		Genre:     "Action",
		Quality:   "HD",
		Rating:    "7.0",
		WatchLink: sourceURL,
	}
	if e.degraded != nil && e.degraded[sourceURL] {
		rec.ID = catalog.PlaceholderID
	}
	return rec
}

type memMovies struct {
	mu      sync.Mutex
	records map[string]catalog.MovieRecord
	order   []string
	failID  string
}

func newMemMovies() *memMovies {
	return &memMovies{records: make(map[string]catalog.MovieRecord)}
}

func (m *memMovies) Upsert(_ context.Context, rec catalog.MovieRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == m.failID {
		return errors.New("storage unavailable")
	}
	if _, exists := m.records[rec.ID]; exists {
		return nil
	}
	m.records[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	return nil
}

func (m *memMovies) Search(context.Context, catalog.SearchQuery) ([]catalog.MovieRecord, error) {
	return nil, nil
}

func (m *memMovies) GetByTitle(context.Context, string) (catalog.MovieRecord, error) {
	return catalog.MovieRecord{}, store.ErrNotFound
}

func (m *memMovies) stored() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

type memProgress struct {
	mu        sync.Mutex
	index     int64
	running   bool
	regressed bool
}

func (p *memProgress) Progress(context.Context) (catalog.CrawlProgress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return catalog.CrawlProgress{LastProcessedIndex: p.index, IsRunning: p.running}, nil
}

func (p *memProgress) ClaimRun(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false, nil
	}
	p.running = true
	return true, nil
}

func (p *memProgress) EndRun(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	return nil
}

func (p *memProgress) SetLastProcessedIndex(_ context.Context, index int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < p.index {
		p.regressed = true
	}
	p.index = index
	return nil
}

func (p *memProgress) snapshot() catalog.CrawlProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return catalog.CrawlProgress{LastProcessedIndex: p.index, IsRunning: p.running}
}

func newTestCoordinator(cfg Config, source *fakeSource, fetch *fakeFetcher, movies *memMovies, progress *memProgress) *Coordinator {
	return New(cfg, source, fetch, &urlExtractor{}, movies, progress, nil)
}

func TestRunProcessesAllAndCheckpoints(t *testing.T) {
	t.Parallel()

	source := &fakeSource{files: map[int][]byte{
		1: sitemapXML("https://s.example/movie/watch-a-1", "https://s.example/movie/watch-b-2"),
		2: sitemapXML("https://s.example/movie/watch-c-3"),
	}}
	movies := newMemMovies()
	progress := &memProgress{}
	c := newTestCoordinator(Config{SitemapStart: 1, SitemapEnd: 2}, source, &fakeFetcher{}, movies, progress)

	result, err := c.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 3, result.Processed)
	require.EqualValues(t, 3, result.LastProcessedIndex)

	require.Equal(t, []string{"id-watch-a-1", "id-watch-b-2", "id-watch-c-3"}, movies.stored())

	final := progress.snapshot()
	require.EqualValues(t, 3, final.LastProcessedIndex)
	require.False(t, final.IsRunning)
}

func TestRunResumesFromIndex(t *testing.T) {
	t.Parallel()

	source := &fakeSource{files: map[int][]byte{
		1: sitemapXML(
			"https://s.example/movie/watch-a-1",
			"https://s.example/movie/watch-b-2",
			"https://s.example/movie/watch-c-3",
		),
	}}
	fetch := &fakeFetcher{}
	movies := newMemMovies()
	progress := &memProgress{index: 2}
	c := newTestCoordinator(Config{SitemapStart: 1, SitemapEnd: 1}, source, fetch, movies, progress)

	result, err := c.Run(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.EqualValues(t, 3, result.LastProcessedIndex)

	// Items before the cursor were never fetched.
	require.Equal(t, []string{"https://s.example/movie/watch-c-3"}, fetch.fetched())
	require.False(t, progress.regressed)
}

func TestRunItemLevelIsolation(t *testing.T) {
	t.Parallel()

	source := &fakeSource{files: map[int][]byte{
		1: sitemapXML(
			"https://s.example/movie/watch-a-1",
			"https://s.example/movie/watch-b-2",
			"https://s.example/movie/watch-c-3",
		),
	}}
	fetch := &fakeFetcher{errs: map[string]error{
		"https://s.example/movie/watch-b-2": &fetcher.StatusError{URL: "b", StatusCode: 503},
	}}
	movies := newMemMovies()
	progress := &memProgress{}
	c := newTestCoordinator(Config{SitemapStart: 1, SitemapEnd: 1}, source, fetch, movies, progress)

	result, err := c.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)
	require.Equal(t, []string{"id-watch-a-1", "id-watch-c-3"}, movies.stored())
	// Cursor still advanced past the failed item.
	require.EqualValues(t, 3, result.LastProcessedIndex)
}

func TestRunFileLevelIsolation(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		files: map[int][]byte{
			2: []byte("not xml at all"),
			3: sitemapXML("https://s.example/movie/watch-c-3"),
		},
		errs: map[int]error{1: errors.New("read failed")},
	}
	movies := newMemMovies()
	progress := &memProgress{}
	c := newTestCoordinator(Config{SitemapStart: 1, SitemapEnd: 3}, source, &fakeFetcher{}, movies, progress)

	result, err := c.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.Equal(t, []string{"id-watch-c-3"}, movies.stored())
}

func TestRunStoreFailureIsolation(t *testing.T) {
	t.Parallel()

	source := &fakeSource{files: map[int][]byte{
		1: sitemapXML("https://s.example/movie/watch-a-1", "https://s.example/movie/watch-b-2"),
	}}
	movies := newMemMovies()
	movies.failID = "id-watch-a-1"
	progress := &memProgress{}
	c := newTestCoordinator(Config{SitemapStart: 1, SitemapEnd: 1}, source, &fakeFetcher{}, movies, progress)

	result, err := c.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.Equal(t, []string{"id-watch-b-2"}, movies.stored())
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	progress := &memProgress{running: true, index: 7}
	c := newTestCoordinator(Config{SitemapStart: 1, SitemapEnd: 1}, &fakeSource{}, &fakeFetcher{}, newMemMovies(), progress)

	_, err := c.Run(context.Background(), 0)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	final := progress.snapshot()
	require.EqualValues(t, 7, final.LastProcessedIndex)
	require.True(t, final.IsRunning)
}

func TestRunSkipsDegradedRecords(t *testing.T) {
	t.Parallel()

	source := &fakeSource{files: map[int][]byte{
		1: sitemapXML("https://s.example/movie/watch-a-1", "https://s.example/movie/watch-b-2"),
	}}
	degraded := map[string]bool{"https://s.example/movie/watch-a-1": true}

	movies := newMemMovies()
	progress := &memProgress{}
	c := New(Config{SitemapStart: 1, SitemapEnd: 1}, source, &fakeFetcher{},
		&urlExtractor{degraded: degraded}, movies, progress, nil)

	result, err := c.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.Equal(t, []string{"id-watch-b-2"}, movies.stored())
}

func TestRunStoresDegradedRecordsWhenAccepted(t *testing.T) {
	t.Parallel()

	source := &fakeSource{files: map[int][]byte{
		1: sitemapXML("https://s.example/movie/watch-a-1"),
	}}
	degraded := map[string]bool{"https://s.example/movie/watch-a-1": true}

	movies := newMemMovies()
	c := New(Config{SitemapStart: 1, SitemapEnd: 1, AcceptDegradedIDs: true}, source, &fakeFetcher{},
		&urlExtractor{degraded: degraded}, movies, &memProgress{}, nil)

	result, err := c.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.Equal(t, []string{catalog.PlaceholderID}, movies.stored())
}

func TestRunReleasesFlagOnCancellation(t *testing.T) {
	t.Parallel()

	source := &fakeSource{files: map[int][]byte{
		1: sitemapXML("https://s.example/movie/watch-a-1", "https://s.example/movie/watch-b-2"),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	fetch := &fakeFetcher{}
	fetch.onFetch = func(url string) {
		if strings.HasSuffix(url, "watch-b-2") {
			cancel()
		}
	}
	movies := newMemMovies()
	progress := &memProgress{}
	c := newTestCoordinator(Config{SitemapStart: 1, SitemapEnd: 1}, source, fetch, movies, progress)

	_, err := c.Run(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)

	// The flag is released even though the context is dead.
	require.False(t, progress.snapshot().IsRunning)
	require.Equal(t, []string{"id-watch-a-1"}, movies.stored())
}

func TestStartHandleLifecycle(t *testing.T) {
	t.Parallel()

	source := &fakeSource{files: map[int][]byte{
		1: sitemapXML("https://s.example/movie/watch-a-1", "https://s.example/movie/watch-b-2"),
	}}
	block := make(chan struct{})
	fetch := &fakeFetcher{block: block}
	movies := newMemMovies()
	progress := &memProgress{}
	c := newTestCoordinator(Config{SitemapStart: 1, SitemapEnd: 1}, source, fetch, movies, progress)

	handle, err := c.Start(context.Background(), 0)
	require.NoError(t, err)

	// While the first run is blocked in its fetch, a second start
	// must be rejected without corrupting anything.
	_, err = c.Start(context.Background(), 0)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	block <- struct{}{}
	block <- struct{}{}
	result, err := handle.Wait()
	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)
	require.False(t, progress.snapshot().IsRunning)
	require.False(t, progress.regressed)
}

func TestHandleCancelStopsRun(t *testing.T) {
	t.Parallel()

	source := &fakeSource{files: map[int][]byte{
		1: sitemapXML("https://s.example/movie/watch-a-1", "https://s.example/movie/watch-b-2"),
	}}
	block := make(chan struct{})
	fetch := &fakeFetcher{block: block}
	progress := &memProgress{}
	c := newTestCoordinator(Config{SitemapStart: 1, SitemapEnd: 1, Delay: time.Minute}, source, fetch, newMemMovies(), progress)

	handle, err := c.Start(context.Background(), 0)
	require.NoError(t, err)

	handle.Cancel()
	_, err = handle.Wait()
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, progress.snapshot().IsRunning)
}
