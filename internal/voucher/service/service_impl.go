package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shiftbd/agenthub/internal/voucher/domain"
	"github.com/shiftbd/agenthub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// codeAttempts bounds regeneration when a generated code collides with an
// existing one.
const codeAttempts = 5

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("voucher.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (domain.Voucher, error) {
	sourceKind := strings.TrimSpace(req.SourceReportKind)
	if sourceKind == "" || req.SourceReportID == 0 {
		return domain.Voucher{}, domain.ErrInvalidSource
	}
	if req.DiscountPercentage <= 0 || req.DiscountPercentage > 100 {
		return domain.Voucher{}, domain.ErrInvalidDiscount
	}

	existing, err := s.repo.FindBySource(ctx, s.db, sourceKind, req.SourceReportID)
	if err != nil {
		return domain.Voucher{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	now := time.Now().UTC()
	var validUntil *time.Time
	if req.ValidFor > 0 {
		until := now.Add(req.ValidFor)
		validUntil = &until
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		voucher := domain.Voucher{
			ID:                 s.genID.Generate(),
			Code:               newCode(),
			DiscountPercentage: req.DiscountPercentage,
			SourceReportKind:   sourceKind,
			SourceReportID:     req.SourceReportID,
			ValidUntil:         validUntil,
			CreatedAt:          now,
		}

		err := s.repo.Insert(ctx, s.db, &voucher)
		if err == nil {
			s.log.Info("voucher issued",
				zap.String("code", voucher.Code),
				zap.String("source_kind", sourceKind),
				zap.String("source_id", req.SourceReportID.String()),
			)
			return voucher, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return domain.Voucher{}, err
		}

		// The unique violation is either the source index (another issuer
		// won the race) or the code index (generator collision). Losing
		// the source race is success: return the winner's voucher.
		winner, findErr := s.repo.FindBySource(ctx, s.db, sourceKind, req.SourceReportID)
		if findErr != nil {
			return domain.Voucher{}, findErr
		}
		if winner != nil {
			return *winner, nil
		}
	}

	return domain.Voucher{}, domain.ErrCodeExhausted
}

func (s *Service) GetByCode(ctx context.Context, code string) (domain.Voucher, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Voucher{}, domain.ErrInvalidCode
	}

	voucher, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return domain.Voucher{}, err
	}
	if voucher == nil {
		return domain.Voucher{}, domain.ErrNotFound
	}
	return *voucher, nil
}

func (s *Service) Redeem(ctx context.Context, req domain.RedeemRequest) (domain.Voucher, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return domain.Voucher{}, domain.ErrInvalidCode
	}

	voucher, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return domain.Voucher{}, err
	}
	if voucher == nil {
		return domain.Voucher{}, domain.ErrNotFound
	}

	now := time.Now().UTC()
	if voucher.Expired(now) {
		return domain.Voucher{}, domain.ErrExpired
	}
	if voucher.IsUsed {
		return domain.Voucher{}, domain.ErrAlreadyUsed
	}

	updated, err := s.repo.MarkUsed(ctx, s.db, code, now)
	if err != nil {
		return domain.Voucher{}, err
	}
	if !updated {
		return domain.Voucher{}, domain.ErrAlreadyUsed
	}

	voucher.IsUsed = true
	voucher.UsedAt = &now
	return *voucher, nil
}

func newCode() string {
	return fmt.Sprintf("AGV-%s", ulid.Make().String())
}
