// Package httpapi exposes the request services over HTTP with gin.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tissuecore/internal/core"
)

// UserHeader names the user a request acts for. Authentication happens in
// front of this service.
const UserHeader = "X-Tissuecore-User"

// Options configures the router.
type Options struct {
	Logger *zap.SugaredLogger
	// Gatherer backs GET /metrics. Nil leaves the route out.
	Gatherer prometheus.Gatherer
	// CORSOrigins lists allowed browser origins. Empty disables CORS.
	CORSOrigins []string
}

type server struct {
	svc    *core.Service
	logger *zap.SugaredLogger
}

// NewRouter returns a gin engine serving svc under /api/v1.
func NewRouter(svc *core.Service, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	s := &server{svc: svc, logger: opts.Logger}

	g := gin.New()
	g.ContextWithFallback = true
	g.Use(gin.Recovery(), s.accessLog())
	if len(opts.CORSOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = opts.CORSOrigins
		cfg.AddAllowHeaders(UserHeader)
		g.Use(cors.New(cfg))
	}

	g.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if opts.Gatherer != nil {
		g.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := g.Group("/api/v1")
	{
		v1.POST("/release", s.release)
		v1.POST("/destroy", s.destroy)
		v1.POST("/clean-out", s.cleanOut)
		v1.POST("/slot-copy", s.slotCopy)
		v1.POST("/reagent-transfer", s.reagentTransfer)
		v1.POST("/plan", s.plan)
		v1.POST("/confirm-section", s.confirmSection)
		v1.POST("/labware/cleaned-out-slots", s.cleanedOutSlots)

		v1.GET("/works/:work/files", s.listFiles)
		v1.POST("/works/:work/files", s.uploadFile)
		v1.GET("/files/:id", s.downloadFile)
	}
	admin := v1.Group("/admin")
	registerAdmin(admin, "destinations", svc.Destinations, s)
	registerAdmin(admin, "recipients", svc.Recipients, s)
	registerAdmin(admin, "reasons", svc.Reasons, s)
	registerAdmin(admin, "operation-types", svc.OperationTypes, s)
	return g
}

func (s *server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debugw("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"user", c.GetHeader(UserHeader),
			"latency", time.Since(start),
		)
	}
}
