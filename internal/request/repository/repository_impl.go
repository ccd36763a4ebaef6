package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shiftbd/agenthub/internal/request/domain"
	"github.com/shiftbd/agenthub/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, request *domain.ServiceRequest) error {
	return db.WithContext(ctx).Create(request).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, kind domain.Kind, id snowflake.ID) (*domain.ServiceRequest, error) {
	var request domain.ServiceRequest
	err := db.WithContext(ctx).
		Where("kind = ? AND id = ?", kind, id).
		Take(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repo) ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.ServiceRequest, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Where("owner_id = ?", ownerID)
	if filter.Kind != "" {
		stmt = stmt.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		if cursor.CreatedAt != "" && cursor.ID != "" {
			// Bind typed values so both dialects compare against the
			// column representation rather than the cursor's text form.
			createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
			if err != nil {
				return nil, err
			}
			id, err := snowflake.ParseString(cursor.ID)
			if err != nil {
				return nil, err
			}
			stmt = stmt.Where("(created_at, id) < (?, ?)", createdAt, id)
		}
	}

	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}

	var requests []*domain.ServiceRequest
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repo) UpdateStatusCAS(ctx context.Context, db *gorm.DB, kind domain.Kind, id snowflake.ID, expected, next domain.Status, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE service_requests SET status = ?, updated_at = ?
		 WHERE kind = ? AND id = ? AND status = ?`,
		next,
		at,
		kind,
		id,
		expected,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) AttachVoucher(ctx context.Context, db *gorm.DB, kind domain.Kind, id snowflake.ID, code string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE service_requests SET voucher_code = ?, updated_at = ?
		 WHERE kind = ? AND id = ? AND voucher_code IS NULL`,
		code,
		at,
		kind,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
