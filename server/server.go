// Package server exposes processed bid datasets and their analytics over
// HTTP for the presentation layer, plus a websocket stream of loader events.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"bid-analytics/models"
	"bid-analytics/services"
	"bid-analytics/utils"
)

// DatasetLoader is the part of services.Loader the server needs.
type DatasetLoader interface {
	Load(ctx context.Context, sourceID string, useCache bool) ([]models.ProcessedRecord, error)
	Cached(sourceID string) ([]models.ProcessedRecord, bool)
	ClearCache()
	CacheInfo() models.CacheInfo
}

// Options configures a Server.
type Options struct {
	DefaultSource string
	UseCache      bool
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
}

// Server holds the HTTP handlers.
type Server struct {
	loader DatasetLoader
	hub    *Hub
	opts   Options
	logger *utils.Logger
}

// New creates a Server. hub may be nil to disable /ws.
func New(loader DatasetLoader, hub *Hub, opts Options, logger *utils.Logger) *Server {
	return &Server{loader: loader, hub: hub, opts: opts, logger: logger.With("server")}
}

// Routes returns the full router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}
	if s.hub != nil {
		r.Get("/ws", s.hub.ServeWS)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Route("/bids", func(r chi.Router) {
			r.Get("/", s.getBids)
			r.Get("/latest", s.getLatest)
			r.Get("/filter", s.getFiltered)
			r.Get("/summary", s.getSummary)
			r.Get("/trend", s.getTrend)
			r.Get("/colors", s.getColors)
			r.Get("/quarters", s.getQuarters)
			r.Get("/export", s.getExport)
		})

		r.Get("/cache", s.getCache)
		r.Delete("/cache", s.deleteCache)
	})
	return r
}

// StaleHeader is set on responses served from the cache after a failed refresh.
const StaleHeader = "X-Bids-Stale"

// dataset loads the dataset named by the request, honouring source= and
// refresh=. A retrieval failure falls back to the cached copy of the source.
func (s *Server) dataset(w http.ResponseWriter, r *http.Request) ([]models.ProcessedRecord, bool) {
	q := r.URL.Query()
	source := q.Get("source")
	if source == "" {
		source = s.opts.DefaultSource
	}
	useCache := s.opts.UseCache
	if refresh, err := strconv.ParseBool(q.Get("refresh")); err == nil && refresh {
		useCache = false
	}

	records, err := s.loader.Load(r.Context(), source, useCache)
	if err == nil {
		return records, true
	}

	var retrieval *models.RetrievalError
	if errors.As(err, &retrieval) {
		if cached, ok := s.loader.Cached(source); ok {
			s.logger.Warn("[server] Load of %s failed (%v); serving %d cached records", source, err, len(cached))
			w.Header().Set(StaleHeader, "true")
			return cached, true
		}
	}
	s.fail(w, r, err)
	return nil, false
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse(err)
	if resp.StatusCode >= http.StatusInternalServerError {
		s.logger.Error("[server] %s %s (request %s): %v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)
	}
	_ = render.Render(w, r, resp)
}

func (s *Server) getBids(w http.ResponseWriter, r *http.Request) {
	records, ok := s.dataset(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, records)
}

func (s *Server) getLatest(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			_ = render.Render(w, r, badRequest("n must be a positive integer"))
			return
		}
		n = v
	}
	records, ok := s.dataset(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, services.Latest(records, n))
}

func (s *Server) getFiltered(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		_ = render.Render(w, r, badRequest(err.Error()))
		return
	}
	records, ok := s.dataset(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, services.Filter(records, f))
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	records, ok := s.dataset(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, services.Summarize(records))
}

func (s *Server) getTrend(w http.ResponseWriter, r *http.Request) {
	records, ok := s.dataset(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, services.Trend(records))
}

func (s *Server) getColors(w http.ResponseWriter, r *http.Request) {
	records, ok := s.dataset(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, services.ColorPositions(records))
}

func (s *Server) getQuarters(w http.ResponseWriter, r *http.Request) {
	records, ok := s.dataset(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, map[string]any{
		"quarters":  services.GroupByQuarter(records),
		"companies": services.GroupByCompany(records),
	})
}

func (s *Server) getExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = services.FormatJSON
	}
	records, ok := s.dataset(w, r)
	if !ok {
		return
	}

	body, err := services.Export(format, records)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", services.ContentType(format))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="bids-%s.%s"`, time.Now().UTC().Format("20060102"), format))
	_, _ = w.Write([]byte(body))
}

func (s *Server) getCache(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.loader.CacheInfo())
}

func (s *Server) deleteCache(w http.ResponseWriter, r *http.Request) {
	s.loader.ClearCache()
	render.NoContent(w, r)
}

func parseFilter(r *http.Request) (models.Filter, error) {
	var f models.Filter
	q := r.URL.Query()

	for _, d := range []struct {
		param string
		dst   **time.Time
	}{{"start", &f.StartDate}, {"end", &f.EndDate}} {
		raw := q.Get(d.param)
		if raw == "" {
			continue
		}
		t, ok := services.ParseBidDate(raw)
		if !ok {
			return f, fmt.Errorf("%s must be an ISO-8601 date", d.param)
		}
		*d.dst = &t
	}

	for _, p := range []struct {
		param string
		dst   **float64
	}{{"min_price", &f.MinPrice}, {"max_price", &f.MaxPrice}} {
		raw := q.Get(p.param)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return f, fmt.Errorf("%s must be a number", p.param)
		}
		*p.dst = &v
	}

	f.UserName = q.Get("user")
	f.PowerCompany = q.Get("company")
	return f, nil
}
