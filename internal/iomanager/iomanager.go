// Package iomanager serves the Event-Manager over HTTP with gin.
//
// The service accepts envelopes on POST /eventmanager/event, reports its
// state on GET /eventmanager and exposes Prometheus metrics on
// GET /metrics. A site-tier manager replays its spool to the central
// facility in the background.
package iomanager

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/warno/warno/internal/ioclient"
	"github.com/warno/warno/internal/iospool"
	"github.com/warno/warno/pkg/config"
	"github.com/warno/warno/pkg/ingest"
	"github.com/warno/warno/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

const (
	// EventPath receives envelopes.
	EventPath = "/eventmanager/event"

	// BannerPath reports the state of the service.
	BannerPath = "/eventmanager"

	maxBody       = 16 << 20
	shutdownGrace = 10 * time.Second
)

// Manager is the HTTP face of an ingestion router.
type Manager struct {
	cfg      *config.Config
	router   *ingest.Router
	upstream protocol.Sender
	spool    *iospool.Spool
	reg      *prometheus.Registry
	metrics  *metrics
	engine   *gin.Engine
}

// New creates a manager. Upstream is nil at the central facility. Spool
// may be nil, then nothing is replayed.
func New(
	cfg *config.Config,
	router *ingest.Router,
	upstream protocol.Sender,
	spool *iospool.Spool,
) *Manager {
	res := &Manager{
		cfg:      cfg,
		router:   router,
		upstream: upstream,
		spool:    spool,
		reg:      prometheus.NewRegistry(),
	}
	res.metrics = newMetrics(res.reg, router, spool)
	res.engine = res.setupRouter()
	return res
}

// Handler returns the HTTP handler of the service.
func (m *Manager) Handler() http.Handler {
	return m.engine
}

func (m *Manager) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestID())

	r.POST(EventPath, m.event)
	r.GET(BannerPath, m.banner)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})))
	return r
}

// requestID keeps the request identifier of the caller, or makes a new
// one, and passes it to upstream calls.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(ioclient.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(ioclient.RequestIDHeader, id)
		ctx := ioclient.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (m *Manager) event(c *gin.Context) {
	start := time.Now()
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		m.metrics.observe(outcomeClientError, start)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := m.router.Handle(c.Request.Context(), raw)
	if err != nil {
		status, outcome := classify(err)
		m.metrics.observe(outcome, start)
		logAttrs := []any{
			"request_id", c.GetHeader(ioclient.RequestIDHeader),
			"status", status,
			"error", err,
		}
		if status == http.StatusBadRequest {
			slog.Warn("Rejected envelope", logAttrs...)
		} else {
			slog.Error("Cannot process envelope", logAttrs...)
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	m.metrics.observe(outcomeOK, start)
	c.Data(http.StatusOK, "application/json", res.Bytes())
}

func classify(err error) (int, string) {
	switch {
	case ingest.IsClientError(err):
		return http.StatusBadRequest, outcomeClientError
	case ingest.IsUpstreamError(err):
		return http.StatusBadGateway, outcomeUpstreamError
	default:
		return http.StatusInternalServerError, outcomeError
	}
}

// Banner describes the running service.
type Banner struct {
	Service    string       `json:"service"`
	Site       string       `json:"site"`
	Central    bool         `json:"central"`
	CPUPercent float64      `json:"cpu_percent"`
	Spooled    int          `json:"spooled"`
	Stats      ingest.Stats `json:"stats"`
}

func (m *Manager) banner(c *gin.Context) {
	ctx := c.Request.Context()
	res := Banner{
		Service: "WARNO Event-Manager",
		Site:    m.cfg.Site.Name,
		Central: m.router.IsCentral(),
		Stats:   m.router.Stats(),
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		res.CPUPercent = pct[0]
	}
	if m.spool != nil {
		if sum, err := m.spool.Summary(ctx); err == nil {
			res.Spooled = sum.Count
		}
	}
	c.JSON(http.StatusOK, res)
}

// Replay sends spooled envelopes upstream once.
func (m *Manager) Replay(ctx context.Context) (iospool.FlushResult, error) {
	if m.spool == nil || m.upstream == nil {
		return iospool.FlushResult{}, nil
	}
	return m.spool.Flush(ctx, m.upstream, iospool.FlushOptions{Jobs: m.cfg.JobsNumber})
}

func (m *Manager) replayLoop(ctx context.Context) {
	if m.spool == nil || m.upstream == nil || m.cfg.EventManager.ReplayInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.EventManager.ReplayInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Replay(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("Spool replay failed", "error", err)
			}
		}
	}
}

// Run listens on the configured address until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	addr := m.cfg.EventManager.Addr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return ListenError(addr, err)
	}
	return m.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is done, then shuts the server
// down gracefully.
func (m *Manager) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           m.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Event-Manager is listening",
			"addr", ln.Addr().String(),
			"site", m.cfg.Site.Name,
			"central", m.router.IsCentral(),
		)
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return ListenError(ln.Addr().String(), err)
		}
		return nil
	})
	g.Go(func() error {
		m.replayLoop(gCtx)
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), shutdownGrace)
		defer cancel()
		slog.Info("Shutting down Event-Manager")
		return srv.Shutdown(shutCtx)
	})
	return g.Wait()
}
