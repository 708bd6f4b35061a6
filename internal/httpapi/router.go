// Package httpapi exposes read-only introspection endpoints over one
// or more running connection engines, for operators who want to see
// engine state without a FreeSWITCH-side api command.
package httpapi

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/luma/eventsocket/client"
)

// NewRouter builds the debug HTTP surface. debug controls gin's
// logging verbosity; conns is keyed by a caller-chosen connection
// name (mirroring Config.Name) and may hold a single entry.
func NewRouter(debug bool, log *zap.Logger, conns map[string]*client.Conn) *gin.Engine {
	gin.DisableConsoleColor()
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(ginzap.Ginzap(log, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(log, true))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/debug/jobs", func(c *gin.Context) {
		writeStats(c, conns, func(s client.Stats) int { return s.Jobs })
	})

	r.GET("/debug/subscribers", func(c *gin.Context) {
		writeStats(c, conns, func(s client.Stats) int { return s.Subscribers })
	})

	r.GET("/debug/connections", func(c *gin.Context) {
		buf := []byte("{}")

		for name, conn := range conns {
			stats, err := conn.Stats()
			if err != nil {
				continue
			}

			var serr error
			buf, serr = sjson.SetBytes(buf, name+".phase", stats.Phase)
			if serr == nil {
				buf, serr = sjson.SetBytes(buf, name+".failureCount", stats.FailureCount)
			}
			if serr != nil {
				c.AbortWithError(http.StatusInternalServerError, serr)
				return
			}
		}

		c.Data(http.StatusOK, "application/json", buf)
	})

	return r
}

func writeStats(c *gin.Context, conns map[string]*client.Conn, field func(client.Stats) int) {
	buf := []byte("{}")

	for name, conn := range conns {
		stats, err := conn.Stats()
		if err != nil {
			continue
		}

		var serr error
		buf, serr = sjson.SetBytes(buf, name, field(stats))
		if serr != nil {
			c.AbortWithError(http.StatusInternalServerError, serr)
			return
		}
	}

	c.Data(http.StatusOK, "application/json", buf)
}
