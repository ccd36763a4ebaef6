package voucher

import (
	"github.com/shiftbd/agenthub/internal/voucher/repository"
	"github.com/shiftbd/agenthub/internal/voucher/service"
	"go.uber.org/fx"
)

var Module = fx.Module("voucher.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
