package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, voucher *Voucher) error
	FindBySource(ctx context.Context, db *gorm.DB, sourceKind string, sourceID snowflake.ID) (*Voucher, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Voucher, error)

	// MarkUsed flips is_used only if it is still false; it reports
	// whether a row was updated.
	MarkUsed(ctx context.Context, db *gorm.DB, code string, at time.Time) (bool, error)
}
