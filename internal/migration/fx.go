package migration

import (
	requestdomain "github.com/shiftbd/agenthub/internal/request/domain"
	voucherdomain "github.com/shiftbd/agenthub/internal/voucher/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module creates the engine's tables on startup so local and
// self-hosted environments work out of the box.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		return conn.AutoMigrate(
			&requestdomain.ServiceRequest{},
			&voucherdomain.Voucher{},
		)
	}),
)
