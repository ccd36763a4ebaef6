package notify

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shiftbd/agenthub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notify",
	fx.Provide(func() *prometheus.Registry { return prometheus.NewRegistry() }),
	fx.Provide(func(reg *prometheus.Registry) *Metrics { return NewMetrics(reg) }),
	fx.Provide(newRegistry),
	fx.Provide(NewBroadcaster),
	fx.Invoke(registerShutdown),
)

func newRegistry(cfg config.Config, auth Authenticator, metrics *Metrics, log *zap.Logger) *Registry {
	return NewRegistry(auth, metrics, log, RegistryOptions{
		QueueSize:      cfg.OutboundQueueSize,
		HandshakeGrace: cfg.HandshakeGrace,
	})
}

func registerShutdown(lc fx.Lifecycle, registry *Registry) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			registry.Shutdown()
			return nil
		},
	})
}
