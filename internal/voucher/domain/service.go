package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidSource   = errors.New("invalid_source")
	ErrInvalidDiscount = errors.New("invalid_discount")
	ErrInvalidCode     = errors.New("invalid_code")
	ErrNotFound        = errors.New("not_found")

	// ErrAlreadyUsed means the voucher was redeemed before.
	ErrAlreadyUsed = errors.New("already_used")

	// ErrExpired means the voucher is past its validity window.
	ErrExpired = errors.New("expired")

	// ErrCodeExhausted means code generation kept colliding and every
	// regeneration attempt was spent; this is the engine's only retried
	// operation.
	ErrCodeExhausted = errors.New("code_exhausted")
)

type IssueRequest struct {
	SourceReportKind   string
	SourceReportID     snowflake.ID
	DiscountPercentage int

	// ValidFor stamps valid_until relative to issuance; zero means the
	// voucher never expires.
	ValidFor time.Duration
}

type RedeemRequest struct {
	Code string
}

// Service issues and redeems vouchers. Issue is idempotent per source
// report: losing the insert race returns the winner's voucher instead of
// an error.
type Service interface {
	Issue(context.Context, IssueRequest) (Voucher, error)
	GetByCode(ctx context.Context, code string) (Voucher, error)
	Redeem(context.Context, RedeemRequest) (Voucher, error)
}
