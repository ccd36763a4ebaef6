package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shiftbd/agenthub/internal/config"
	"github.com/shiftbd/agenthub/internal/notify"
	requestdomain "github.com/shiftbd/agenthub/internal/request/domain"
	voucherdomain "github.com/shiftbd/agenthub/internal/voucher/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewAuthenticator),
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	requestSvc requestdomain.Service
	voucherSvc voucherdomain.Service
	registry   *notify.Registry
	auth       notify.Authenticator
}

type ServerParams struct {
	fx.In

	Engine     *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	RequestSvc requestdomain.Service
	VoucherSvc voucherdomain.Service
	Registry   *notify.Registry
	Auth       notify.Authenticator
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Engine,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		requestSvc: p.RequestSvc,
		voucherSvc: p.VoucherSvc,
		registry:   p.Registry,
		auth:       p.Auth,
	}
}

func NewEngine(cfg config.Config, metrics *prometheus.Registry) *gin.Engine {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))

	return r
}

func registerRoutes(s *Server) {
	api := s.engine.Group("/api")

	api.POST("/requests", s.CreateRequest)
	api.GET("/requests", s.ListRequestsByOwner)
	api.GET("/requests/:kind/:id", s.GetRequest)
	api.POST("/requests/:kind/:id/status", s.ChangeRequestStatus)

	api.GET("/vouchers/:code", s.GetVoucher)
	api.POST("/vouchers/:code/redeem", s.RedeemVoucher)

	api.GET("/events/stream", s.StreamEvents)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
