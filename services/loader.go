package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"bid-analytics/models"
	"bid-analytics/utils"
)

// Fetcher retrieves the raw bytes of a source. Transport failures should
// be returned as *models.RetrievalError.
type Fetcher interface {
	Fetch(ctx context.Context, sourceID string) ([]byte, error)
}

// Loader fetches, validates and processes datasets, caching the result per
// source. At most one load runs at a time; a second caller gets
// models.ErrConcurrentLoad instead of waiting.
type Loader struct {
	fetcher   Fetcher
	validator *Validator
	processor *Processor
	logger    *utils.Logger
	metrics   *Metrics

	mu        sync.Mutex
	cache     map[string][]models.ProcessedRecord
	loading   bool
	observers []Observer
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMetrics records load metrics.
func WithMetrics(m *Metrics) LoaderOption {
	return func(l *Loader) { l.metrics = m }
}

// WithObserver registers an observer at construction.
func WithObserver(o Observer) LoaderOption {
	return func(l *Loader) { l.observers = append(l.observers, o) }
}

// NewLoader creates a Loader with an empty cache.
func NewLoader(fetcher Fetcher, validator *Validator, processor *Processor, logger *utils.Logger, opts ...LoaderOption) *Loader {
	l := &Loader{
		fetcher:   fetcher,
		validator: validator,
		processor: processor,
		logger:    logger.With("loader"),
		cache:     make(map[string][]models.ProcessedRecord),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Subscribe registers an observer for future events.
func (l *Loader) Subscribe(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

// Load returns the processed dataset for sourceID. With useCache a cached
// dataset is returned without refetching. The returned slice is a copy.
func (l *Loader) Load(ctx context.Context, sourceID string, useCache bool) ([]models.ProcessedRecord, error) {
	l.mu.Lock()
	if useCache {
		if cached, ok := l.cache[sourceID]; ok {
			l.mu.Unlock()
			l.metrics.observeCacheHit()
			l.logger.Debug("[loader] Cache hit for %s (%d records)", sourceID, len(cached))
			return slices.Clone(cached), nil
		}
	}
	if l.loading {
		l.mu.Unlock()
		l.metrics.observeLoad("concurrent", 0)
		l.logger.Warn("[loader] Rejected load of %s: another load is in progress", sourceID)
		l.emit(Event{Kind: EventError, SourceID: sourceID, Message: models.ErrConcurrentLoad.Error()})
		return nil, models.ErrConcurrentLoad
	}
	l.loading = true
	l.mu.Unlock()

	loadID := newLoadID()
	start := time.Now()
	l.emit(Event{Kind: EventLoading, LoadID: loadID, SourceID: sourceID, Loading: true})

	defer func() {
		l.mu.Lock()
		l.loading = false
		l.mu.Unlock()
		l.emit(Event{Kind: EventLoading, LoadID: loadID, SourceID: sourceID, Loading: false})
	}()

	records, err := l.run(ctx, loadID, sourceID)
	if err != nil {
		l.metrics.observeLoad("error", time.Since(start))
		l.logger.Error("[loader] Load of %s failed: %v", sourceID, err)
		l.emit(Event{Kind: EventError, LoadID: loadID, SourceID: sourceID, Message: err.Error()})
		return nil, err
	}

	l.mu.Lock()
	l.cache[sourceID] = records
	l.mu.Unlock()

	l.metrics.observeLoad("success", time.Since(start))
	l.logger.Info("[loader] Loaded %s: %d records in %v", sourceID, len(records), time.Since(start).Round(time.Millisecond))
	l.emit(Event{Kind: EventLoaded, LoadID: loadID, SourceID: sourceID, Count: len(records)})
	return slices.Clone(records), nil
}

func (l *Loader) run(ctx context.Context, loadID, sourceID string) ([]models.ProcessedRecord, error) {
	data, err := l.fetcher.Fetch(ctx, sourceID)
	if err != nil {
		var re *models.RetrievalError
		if !errors.As(err, &re) {
			err = &models.RetrievalError{SourceID: sourceID, Err: err}
		}
		return nil, err
	}

	validated, report, err := l.validator.DecodeDataset(data)
	if err != nil {
		return nil, err
	}

	if n := len(report.Rejected); n > 0 {
		l.metrics.observeRejected(n)
		for _, rej := range report.Rejected {
			l.logger.Debug("[loader] %s record %d rejected: %v", sourceID, rej.Index, rej.Err)
		}
		msg := fmt.Sprintf("%d of %d records failed validation and were skipped", n, report.Total)
		l.logger.Warn("[loader] %s: %s", sourceID, msg)
		l.emit(Event{Kind: EventWarning, LoadID: loadID, SourceID: sourceID, Message: msg, Count: n})
	}

	return l.processor.Process(validated)
}

// Cached returns a copy of the cached dataset for sourceID, if any. Callers
// use it as the fallback when a fresh load fails.
func (l *Loader) Cached(sourceID string) ([]models.ProcessedRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	records, ok := l.cache[sourceID]
	if !ok {
		return nil, false
	}
	return slices.Clone(records), true
}

// ClearCache evicts every cached dataset.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.cache)
	l.logger.Info("[loader] Cache cleared")
}

// CacheInfo reports the number of cached datasets and their sorted keys.
func (l *Loader) CacheInfo() models.CacheInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, len(l.cache))
	for k := range l.cache {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return models.CacheInfo{Count: len(keys), Keys: keys}
}

// Loading reports whether a load is in flight.
func (l *Loader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

func (l *Loader) emit(e Event) {
	e.Time = time.Now().UTC()
	l.mu.Lock()
	observers := slices.Clone(l.observers)
	l.mu.Unlock()
	for _, o := range observers {
		o.Notify(e)
	}
}
