package ioagent

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warno/warno/pkg/errcode"
)

// Info is the answer of GET /agent.
type Info struct {
	State   string    `json:"state"`
	Site    string    `json:"site"`
	SiteID  int64     `json:"site_id"`
	Started time.Time `json:"started_at"`
	Running int       `json:"plugins_running"`
	Summary Summary   `json:"summary"`
}

func (a *Agent) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/agent", func(c *gin.Context) {
		c.JSON(http.StatusOK, Info{
			State:   a.State().String(),
			Site:    a.cfg.Site.Name,
			SiteID:  a.SiteID(),
			Started: a.started,
			Running: a.sup.Running(),
			Summary: a.Summary(),
		})
	})
	r.GET("/agent/plugins", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"plugins": a.sup.Status()})
	})
	r.POST("/agent/plugins/:name/stop", func(c *gin.Context) {
		name := c.Param("name")
		if err := a.sup.Stop(name); err != nil {
			status := http.StatusInternalServerError
			if errcode.Has(err, errcode.PluginUnknownError) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		slog.Info("Plugin stop requested", "plugin", name)
		c.JSON(http.StatusAccepted, gin.H{"stopping": name})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{})))
	return r
}

// serveStatus starts the status endpoint and returns its stop function.
func (a *Agent) serveStatus(ctx context.Context) func() {
	srv := &http.Server{
		Addr:              a.cfg.Agent.StatusAddr,
		Handler:           a.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Agent status endpoint is listening", "addr", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Agent status endpoint failed", "addr", srv.Addr, "error", err)
		}
	}()
	return func() {
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}
}

func (a *Agent) registerMetrics() {
	counter := func(name, help string, get func() int64) prometheus.Collector {
		return prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(get()) },
		)
	}
	a.reg.MustRegister(
		counter("warno_agent_forwarded_total", "Events delivered to the Event-Manager.",
			a.forwarded.Load),
		counter("warno_agent_spooled_total", "Events written to the agent spool.",
			a.spooled.Load),
		counter("warno_agent_dropped_total", "Malformed or lost events.",
			a.dropped.Load),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "warno_agent_state",
				Help: "Lifecycle stage: 0 init, 1 acquiring site id, 2 registering, 3 running, 4 shutting down.",
			},
			func() float64 { return float64(a.State()) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "warno_agent_plugins_running",
				Help: "Plugins that have not exited.",
			},
			func() float64 { return float64(a.sup.Running()) },
		),
	)
}
