package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shiftbd/agenthub/internal/config"
	"github.com/shiftbd/agenthub/internal/notify"
	"github.com/shiftbd/agenthub/internal/ratelimit"
	"github.com/shiftbd/agenthub/internal/request/domain"
	voucherdomain "github.com/shiftbd/agenthub/internal/voucher/domain"
	"github.com/shiftbd/agenthub/pkg/db"
	"github.com/shiftbd/agenthub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// lockStripes sizes the keyed critical sections guarding ChangeStatus.
// Two calls for the same request id always serialize; calls for
// different ids proceed in parallel unless they hash to the same stripe.
const lockStripes = 64

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Vouchers    voucherdomain.Service
	Policy      *config.BenefitPolicyHolder
	Broadcaster *notify.Broadcaster
	Limiter     *ratelimit.SubmitLimiter `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	vouchers    voucherdomain.Service
	policy      *config.BenefitPolicyHolder
	broadcaster *notify.Broadcaster
	limiter     *ratelimit.SubmitLimiter

	locks [lockStripes]sync.Mutex
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("request.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		vouchers:    p.Vouchers,
		policy:      p.Policy,
		broadcaster: p.Broadcaster,
		limiter:     p.Limiter,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.ServiceRequest, error) {
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		return domain.ServiceRequest{}, err
	}

	ownerID, err := snowflake.ParseString(strings.TrimSpace(req.OwnerID))
	if err != nil || ownerID == 0 {
		return domain.ServiceRequest{}, domain.ErrInvalidOwner
	}

	if !s.limiter.Allow(ctx, ownerID.String()) {
		return domain.ServiceRequest{}, domain.ErrRateLimited
	}

	initial, err := domain.InitialStatus(kind)
	if err != nil {
		return domain.ServiceRequest{}, err
	}

	payload := datatypes.JSONMap{}
	for key, value := range req.Payload {
		payload[key] = value
	}

	var txnRef *string
	if ref := strings.TrimSpace(req.TransactionRef); ref != "" {
		txnRef = &ref
	}

	now := time.Now().UTC()
	record := domain.ServiceRequest{
		ID:             s.genID.Generate(),
		OwnerID:        ownerID,
		Kind:           kind,
		Status:         initial,
		Payload:        payload,
		TransactionRef: txnRef,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ServiceRequest{}, domain.ErrDuplicateTransaction
		}
		return domain.ServiceRequest{}, err
	}

	// Owners already know what they submitted; admins need to see the
	// new work item.
	s.broadcaster.Publish(notify.Event{
		Type:        notify.EventCreated,
		RequestKind: string(kind),
		RequestID:   record.ID.String(),
		OwnerID:     ownerID.String(),
		Status:      string(initial),
		Audience:    notify.AudienceAdmins,
	})

	s.log.Info("request created",
		zap.String("kind", string(kind)),
		zap.String("id", record.ID.String()),
		zap.String("owner_id", ownerID.String()),
	)
	return record, nil
}

func (s *Service) ChangeStatus(ctx context.Context, req domain.ChangeStatusRequest) (domain.ServiceRequest, error) {
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		return domain.ServiceRequest{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.ServiceRequest{}, domain.ErrInvalidID
	}

	requested := domain.Status(strings.TrimSpace(req.Status))
	if requested == "" {
		return domain.ServiceRequest{}, domain.ErrInvalidStatus
	}

	// Events are emitted inside this critical section, right after the
	// store write, so each connection observes per-id events in the
	// order the mutations committed.
	lock := &s.locks[uint64(id)%lockStripes]
	lock.Lock()
	defer lock.Unlock()

	record, err := s.repo.FindByID(ctx, s.db, kind, id)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if record == nil {
		return domain.ServiceRequest{}, domain.ErrNotFound
	}

	// Duplicate delivery of the same update is a no-op success, not an
	// error and not a second event.
	if record.Status == requested {
		return *record, nil
	}

	if err := domain.ValidateTransition(kind, record.Status, requested); err != nil {
		return domain.ServiceRequest{}, err
	}

	now := time.Now().UTC()
	updated, err := s.repo.UpdateStatusCAS(ctx, s.db, kind, id, record.Status, requested, now)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if !updated {
		// Lost the store race: the record moved (or vanished) between the
		// read and the write.
		current, err := s.repo.FindByID(ctx, s.db, kind, id)
		if err != nil {
			return domain.ServiceRequest{}, err
		}
		if current == nil {
			return domain.ServiceRequest{}, domain.ErrNotFound
		}
		return domain.ServiceRequest{}, domain.ErrConflict
	}

	record.Status = requested
	record.UpdatedAt = now

	var issued *notify.VoucherInfo
	if domain.VoucherEligible(kind, requested) && record.VoucherCode == nil {
		info, err := s.issueVoucher(ctx, kind, record, now)
		if err != nil {
			s.log.Error("voucher issuance failed",
				zap.String("kind", string(kind)),
				zap.String("id", record.ID.String()),
				zap.Error(err),
			)
		} else {
			issued = info
		}
	}

	s.broadcaster.Publish(notify.Event{
		Type:        notify.EventStatusChanged,
		RequestKind: string(kind),
		RequestID:   record.ID.String(),
		OwnerID:     record.OwnerID.String(),
		Status:      string(requested),
		Voucher:     issued,
		Audience:    notify.AudienceAll,
	})
	if issued != nil {
		s.broadcaster.Publish(notify.Event{
			Type:        notify.EventVoucherIssued,
			RequestKind: string(kind),
			RequestID:   record.ID.String(),
			OwnerID:     record.OwnerID.String(),
			Status:      string(requested),
			Voucher:     issued,
			Audience:    notify.AudienceAll,
		})
	}

	s.log.Info("status changed",
		zap.String("kind", string(kind)),
		zap.String("id", record.ID.String()),
		zap.String("status", string(requested)),
		zap.String("actor", strings.TrimSpace(req.Actor)),
	)
	return *record, nil
}

func (s *Service) issueVoucher(ctx context.Context, kind domain.Kind, record *domain.ServiceRequest, now time.Time) (*notify.VoucherInfo, error) {
	rule := s.policy.RuleFor(string(kind))
	if rule.DiscountPercentage <= 0 {
		return nil, nil
	}

	voucher, err := s.vouchers.Issue(ctx, voucherdomain.IssueRequest{
		SourceReportKind:   string(kind),
		SourceReportID:     record.ID,
		DiscountPercentage: rule.DiscountPercentage,
		ValidFor:           rule.Validity(),
	})
	if err != nil {
		return nil, err
	}

	attached, err := s.repo.AttachVoucher(ctx, s.db, kind, record.ID, voucher.Code, now)
	if err != nil {
		return nil, err
	}
	if !attached {
		// A reference is already in place; keep it, the write is once-only.
		current, err := s.repo.FindByID(ctx, s.db, kind, record.ID)
		if err != nil {
			return nil, err
		}
		if current != nil && current.VoucherCode != nil {
			record.VoucherCode = current.VoucherCode
		}
		return nil, nil
	}

	record.VoucherCode = &voucher.Code
	return &notify.VoucherInfo{
		Code:               voucher.Code,
		DiscountPercentage: voucher.DiscountPercentage,
		ValidUntil:         voucher.ValidUntil,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetRequest) (domain.ServiceRequest, error) {
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		return domain.ServiceRequest{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.ServiceRequest{}, domain.ErrInvalidID
	}

	record, err := s.repo.FindByID(ctx, s.db, kind, id)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if record == nil {
		return domain.ServiceRequest{}, domain.ErrNotFound
	}
	return *record, nil
}

func (s *Service) ListByOwner(ctx context.Context, req domain.ListByOwnerRequest) (domain.ListByOwnerResponse, error) {
	ownerID, err := snowflake.ParseString(strings.TrimSpace(req.OwnerID))
	if err != nil || ownerID == 0 {
		return domain.ListByOwnerResponse{}, domain.ErrInvalidOwner
	}

	filter := domain.ListFilter{}
	if raw := strings.TrimSpace(req.Kind); raw != "" {
		kind, err := domain.ParseKind(raw)
		if err != nil {
			return domain.ListByOwnerResponse{}, err
		}
		filter.Kind = kind
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		filter.Status = domain.Status(raw)
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.ListByOwner(ctx, s.db, ownerID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListByOwnerResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(request *domain.ServiceRequest) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        request.ID.String(),
			CreatedAt: request.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	requests := make([]domain.ServiceRequest, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		requests = append(requests, *item)
	}

	resp := domain.ListByOwnerResponse{Requests: requests}
	resp.PageInfo = *pageInfo
	return resp, nil
}
