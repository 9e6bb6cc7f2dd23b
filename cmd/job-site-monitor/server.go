package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/logging"
	"github.com/Sternrassler/job-site-monitor/pkg/metrics"
	"github.com/Sternrassler/job-site-monitor/pkg/sampling"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// requestTimeout bounds a single estimate; a cold boundary search walks
// dozens of pages.
const requestTimeout = 5 * time.Minute

type server struct {
	svc    *services
	logger zerolog.Logger
}

func newServer(svc *services) *server {
	return &server{svc: svc, logger: logging.NewLogger("server")}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(s.svc.rdb))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /estimate", s.estimateHandler)
	mux.HandleFunc("GET /regional", s.regionalHandler)
	mux.HandleFunc("GET /pages", s.pagesHandler)
	return mux
}

func (a *app) serveAction(c *cli.Context) error {
	svc, err := newServices(c.Context, a.cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := &http.Server{
		Addr:              c.String("addr"),
		Handler:           newServer(svc).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", srv.Addr).Bool("redis", svc.rdb != nil).Msg("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-c.Context.Done():
	}

	a.logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 while Redis is configured but unreachable.
func readyHandler(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func (s *server) estimateHandler(w http.ResponseWriter, r *http.Request) {
	period, err := queryPeriod(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, cached, err := s.svc.runner.Estimate(ctx, period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setCacheHeader(w, cached)
	s.respond(w, res)
}

func (s *server) regionalHandler(w http.ResponseWriter, r *http.Request) {
	period, err := queryPeriod(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pages, err := queryInt(r, "pages", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	region := r.URL.Query().Get("region")
	if region == "" {
		region = sampling.Regions[0].Code
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := s.svc.regional.Analyze(ctx, region, period, pages)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setCacheHeader(w, res.Cached)
	s.respond(w, res)
}

func (s *server) pagesHandler(w http.ResponseWriter, r *http.Request) {
	period, err := queryPeriod(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	from, err := queryInt(r, "from", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := queryInt(r, "to", from)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	stats, err := s.svc.regional.PageBreakdown(ctx, from, to, period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, stats)
}

func queryPeriod(r *http.Request) (client.Period, error) {
	v := r.URL.Query().Get("period")
	if v == "" {
		return client.PeriodAll, nil
	}
	return client.ParsePeriod(v)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", client.ErrInvalidQuery, name)
	}
	return n, nil
}

func setCacheHeader(w http.ResponseWriter, hit bool) {
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
}

// statusFor maps domain errors to HTTP status codes. Anything not caused by
// the request itself is an upstream failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, client.ErrInvalidQuery),
		errors.Is(err, sampling.ErrUnknownRegion),
		errors.Is(err, sampling.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = writeJSON(w, map[string]string{"error": err.Error()})
}

func (s *server) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := writeJSON(w, v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}
