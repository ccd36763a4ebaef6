package request

import (
	"github.com/shiftbd/agenthub/internal/request/repository"
	"github.com/shiftbd/agenthub/internal/request/service"
	"go.uber.org/fx"
)

var Module = fx.Module("request.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
