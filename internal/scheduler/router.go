package scheduler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// trigger routes start a job in the background and reply right away.
var triggerRoutes = []struct {
	path  string
	job   string
	reply string
}{
	{"/startDataSearch", JobSyncPrices, "Price Search started!"},
	{"/startOldDataSearch", JobBackfillHistory, "Old Data Search started!"},
	{"/startUpdateStockPrices", JobCompactPrices, "Update Stock Prices started!"},
	{"/startDeleteStockPrices", JobPrunePrices, "Delete Stock Prices started!"},
	{"/startReindexDatabase", JobReindex, "Reindex Database started!"},
	{"/startSectorSearch", JobSyncSectors, "Sector Search started!"},
}

// Router returns the HTTP handler for health checks and manual job triggers.
func (s *Scheduler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	r.GET("/", func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.String(http.StatusOK, "Server is running with Time: %s!", s.now().Format(time.RFC1123Z))
	})

	for _, rt := range triggerRoutes {
		r.GET(rt.path, s.launchHandler(rt.job, rt.reply))
	}
	return r
}

func (s *Scheduler) launchHandler(name, reply string) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.Launch(name)
		switch {
		case err == nil:
			c.String(http.StatusOK, reply)
		case errors.Is(err, ErrJobRunning):
			c.String(http.StatusConflict, "%s is already running!", name)
		default:
			s.log.Error("launch job", zap.String("job", name), zap.Error(err))
			c.String(http.StatusInternalServerError, "%s", err.Error())
		}
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
