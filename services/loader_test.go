package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bid-analytics/models"
	"bid-analytics/utils"
)

type stubFetcher struct {
	mu       sync.Mutex
	payloads map[string][]byte
	err      error
	calls    int
	started  chan struct{}
	release  chan struct{}
}

func (f *stubFetcher) Fetch(ctx context.Context, sourceID string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.payloads[sourceID]
	if !ok {
		return nil, &models.RetrievalError{SourceID: sourceID, StatusCode: 404}
	}
	return data, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		if e.Kind == EventLoading {
			out = append(out, fmt.Sprintf("loading=%t", e.Loading))
			continue
		}
		out = append(out, string(e.Kind))
	}
	return out
}

func payload(t *testing.T, bad int, good int) []byte {
	t.Helper()
	items := make([]map[string]any, 0, bad+good)
	for i := 0; i < good; i++ {
		items = append(items, rawBid(fmt.Sprintf("user%d", i), "Grid Co",
			time.Date(2023, 1, 1+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), 0.5))
	}
	for i := 0; i < bad; i++ {
		items = append(items, rawBid("x", "Grid Co", "2019-06-01", 0.5))
	}
	data, err := json.Marshal(map[string]any{"data": items})
	require.NoError(t, err)
	return data
}

func newTestLoader(f Fetcher, opts ...LoaderOption) *Loader {
	return NewLoader(f, newTestValidator(), newTestProcessor(), utils.NewNopLogger(), opts...)
}

func TestLoaderLoadAndCache(t *testing.T) {
	f := &stubFetcher{payloads: map[string][]byte{"bids.json": payload(t, 0, 3)}}
	l := newTestLoader(f)
	ctx := context.Background()

	first, err := l.Load(ctx, "bids.json", true)
	require.NoError(t, err)
	assert.Len(t, first, 3)
	assert.Equal(t, 1, f.callCount())

	second, err := l.Load(ctx, "bids.json", true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.callCount(), "cached load must not refetch")

	_, err = l.Load(ctx, "bids.json", false)
	require.NoError(t, err)
	assert.Equal(t, 2, f.callCount(), "useCache=false must refetch")
}

func TestLoaderReturnsCopies(t *testing.T) {
	f := &stubFetcher{payloads: map[string][]byte{"a": payload(t, 0, 2)}}
	l := newTestLoader(f)

	got, err := l.Load(context.Background(), "a", true)
	require.NoError(t, err)
	got[0].UserName = "mutated"

	cached, ok := l.Cached("a")
	require.True(t, ok)
	assert.Equal(t, "user0", cached[0].UserName)
}

func TestLoaderConcurrentLoad(t *testing.T) {
	f := &stubFetcher{
		payloads: map[string][]byte{"a": payload(t, 0, 2), "b": payload(t, 0, 1)},
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	rec := &eventRecorder{}
	l := newTestLoader(f, WithObserver(rec))

	type result struct {
		records []models.ProcessedRecord
		err     error
	}
	done := make(chan result, 1)
	go func() {
		records, err := l.Load(context.Background(), "a", true)
		done <- result{records, err}
	}()

	<-f.started
	assert.True(t, l.Loading())

	_, err := l.Load(context.Background(), "b", true)
	assert.ErrorIs(t, err, models.ErrConcurrentLoad)
	assert.Equal(t, []string{"loading=true", "error"}, rec.kinds(), "rejection reports an error without a loading transition")

	close(f.release)
	f.mu.Lock()
	f.started = nil
	f.mu.Unlock()

	res := <-done
	require.NoError(t, res.err)
	assert.Len(t, res.records, 2)
	assert.False(t, l.Loading())
	assert.Equal(t, []string{"loading=true", "error", "loaded", "loading=false"}, rec.kinds())

	rec.mu.Lock()
	rejected := rec.events[1]
	rec.mu.Unlock()
	assert.Equal(t, "b", rejected.SourceID)
	assert.Equal(t, models.ErrConcurrentLoad.Error(), rejected.Message)

	_, err = l.Load(context.Background(), "b", true)
	assert.NoError(t, err, "guard must be released after the first load")
}

func TestLoaderRetrievalError(t *testing.T) {
	rec := &eventRecorder{}
	f := &stubFetcher{err: errors.New("connection refused")}
	l := newTestLoader(f, WithObserver(rec))

	_, err := l.Load(context.Background(), "remote", true)
	var re *models.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "remote", re.SourceID)
	assert.False(t, l.Loading())
	assert.Equal(t, []string{"loading=true", "error", "loading=false"}, rec.kinds())
	assert.Equal(t, 0, l.CacheInfo().Count)
}

func TestLoaderKeepsStatusCode(t *testing.T) {
	l := newTestLoader(&stubFetcher{payloads: map[string][]byte{}})

	_, err := l.Load(context.Background(), "missing", true)
	var re *models.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 404, re.StatusCode)
}

func TestLoaderQualityGate(t *testing.T) {
	rec := &eventRecorder{}
	f := &stubFetcher{payloads: map[string][]byte{"a": payload(t, 3, 7)}}
	l := newTestLoader(f, WithObserver(rec))

	_, err := l.Load(context.Background(), "a", true)
	var dq *models.DataQualityError
	require.ErrorAs(t, err, &dq)
	assert.Equal(t, 0, l.CacheInfo().Count)
	assert.False(t, l.Loading())
	assert.Equal(t, []string{"loading=true", "error", "loading=false"}, rec.kinds())
}

func TestLoaderWarnsOnRejectedRecords(t *testing.T) {
	rec := &eventRecorder{}
	f := &stubFetcher{payloads: map[string][]byte{"a": payload(t, 2, 8)}}
	l := newTestLoader(f)
	l.Subscribe(rec)

	records, err := l.Load(context.Background(), "a", true)
	require.NoError(t, err)
	assert.Len(t, records, 8)
	assert.Equal(t, []string{"loading=true", "warning", "loaded", "loading=false"}, rec.kinds())

	rec.mu.Lock()
	warning := rec.events[1]
	rec.mu.Unlock()
	assert.Equal(t, 2, warning.Count)
	assert.Contains(t, warning.Message, "2 of 10")
	assert.NotEmpty(t, warning.LoadID)
}

func TestLoaderMalformedPayload(t *testing.T) {
	f := &stubFetcher{payloads: map[string][]byte{"a": []byte(`{"rows": []}`)}}
	l := newTestLoader(f)

	_, err := l.Load(context.Background(), "a", true)
	var m *models.MalformedDatasetError
	assert.ErrorAs(t, err, &m)
}

func TestLoaderCacheInfoAndClear(t *testing.T) {
	f := &stubFetcher{payloads: map[string][]byte{"b": payload(t, 0, 1), "a": payload(t, 0, 1)}}
	l := newTestLoader(f)
	ctx := context.Background()

	_, err := l.Load(ctx, "b", true)
	require.NoError(t, err)
	_, err = l.Load(ctx, "a", true)
	require.NoError(t, err)

	assert.Equal(t, models.CacheInfo{Count: 2, Keys: []string{"a", "b"}}, l.CacheInfo())

	l.ClearCache()
	assert.Equal(t, 0, l.CacheInfo().Count)
	_, ok := l.Cached("a")
	assert.False(t, ok)
}

func TestLoaderMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	f := &stubFetcher{payloads: map[string][]byte{"a": payload(t, 1, 9)}}
	l := newTestLoader(f, WithMetrics(m))
	ctx := context.Background()

	_, err = l.Load(ctx, "a", true)
	require.NoError(t, err)
	_, err = l.Load(ctx, "a", true)
	require.NoError(t, err)
	_, err = l.Load(ctx, "missing", true)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejectedRecords))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestChannelObserverDropsWhenFull(t *testing.T) {
	obs := NewChannelObserver(1)
	obs.Notify(Event{Kind: EventLoading, Loading: true})
	obs.Notify(Event{Kind: EventError})

	e := <-obs.Events()
	assert.Equal(t, EventLoading, e.Kind)
	select {
	case extra := <-obs.Events():
		t.Fatalf("unexpected buffered event %v", extra)
	default:
	}
}

func TestObserverFunc(t *testing.T) {
	var loaded []int
	f := &stubFetcher{payloads: map[string][]byte{"a": payload(t, 0, 4)}}
	l := newTestLoader(f, WithObserver(ObserverFunc(func(e Event) {
		if e.Kind == EventLoaded {
			loaded = append(loaded, e.Count)
		}
	})))

	_, err := l.Load(context.Background(), "a", false)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, loaded)
}
