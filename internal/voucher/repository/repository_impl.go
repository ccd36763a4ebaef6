package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shiftbd/agenthub/internal/voucher/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, voucher *domain.Voucher) error {
	return db.WithContext(ctx).Create(voucher).Error
}

func (r *repo) FindBySource(ctx context.Context, db *gorm.DB, sourceKind string, sourceID snowflake.ID) (*domain.Voucher, error) {
	var voucher domain.Voucher
	err := db.WithContext(ctx).
		Where("source_report_kind = ? AND source_report_id = ?", sourceKind, sourceID).
		Take(&voucher).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Voucher, error) {
	var voucher domain.Voucher
	err := db.WithContext(ctx).Where("code = ?", code).Take(&voucher).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repo) MarkUsed(ctx context.Context, db *gorm.DB, code string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Voucher{}).
		Where("code = ? AND is_used = ?", code, false).
		Updates(map[string]any{"is_used": true, "used_at": at})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
