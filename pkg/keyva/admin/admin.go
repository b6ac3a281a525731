// Package admin exposes a read-only HTTP surface over a keyva.DB for
// operational visibility: a liveness probe and a snapshot of the counters
// the background flush loop tracks. It does not expose Put/Get — this is
// an observability surface, not a data-plane API.
package admin

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/huynhanx03/keyva/pkg/keyva"
)

const codeSuccess = 0

// uptimeClock reports elapsed time without a time.Now() syscall on every
// /healthz request: a background ticker advances a cached timestamp once
// a second, and Elapsed just reads it back.
type uptimeClock struct {
	startedAt time.Time
	now       atomic.Value
	ticker    *time.Ticker
	done      chan struct{}
}

func newUptimeClock(step time.Duration) *uptimeClock {
	start := time.Now()
	c := &uptimeClock{
		startedAt: start,
		ticker:    time.NewTicker(step),
		done:      make(chan struct{}),
	}
	c.now.Store(start)
	go c.run(step)
	return c
}

func (c *uptimeClock) run(step time.Duration) {
	current := c.startedAt
	for {
		select {
		case <-c.ticker.C:
			current = current.Add(step)
			c.now.Store(current)
		case <-c.done:
			c.ticker.Stop()
			return
		}
	}
}

func (c *uptimeClock) Elapsed() time.Duration {
	return c.now.Load().(time.Time).Sub(c.startedAt)
}

type envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Code: codeSuccess, Message: "ok", Data: data})
}

// Router builds a gin.Engine exposing GET /healthz and GET /stats for db.
func Router(db *keyva.DB) *gin.Engine {
	clock := newUptimeClock(time.Second)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		ok(c, gin.H{
			"status":        "up",
			"uptime_second": clock.Elapsed().Seconds(),
		})
	})

	r.GET("/stats", func(c *gin.Context) {
		ok(c, db.Stats())
	})

	return r
}

// Serve starts the admin router on addr and blocks until the server stops.
// It returns nil on a clean shutdown (http.ErrServerClosed) and the
// server's error otherwise.
func Serve(addr string, db *keyva.DB) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: Router(db),
	}
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
