package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shiftbd/agenthub/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Kind   Kind
	Status Status
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, request *ServiceRequest) error
	FindByID(ctx context.Context, db *gorm.DB, kind Kind, id snowflake.ID) (*ServiceRequest, error)
	ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*ServiceRequest, error)

	// UpdateStatusCAS applies the status change only if the stored status
	// still equals expected; it reports whether a row was updated. This is
	// the serialization point for concurrent lifecycle changes.
	UpdateStatusCAS(ctx context.Context, db *gorm.DB, kind Kind, id snowflake.ID, expected, next Status, at time.Time) (bool, error)

	// AttachVoucher sets the voucher reference only if none is attached
	// yet; the reference is write-once.
	AttachVoucher(ctx context.Context, db *gorm.DB, kind Kind, id snowflake.ID, code string, at time.Time) (bool, error)
}
