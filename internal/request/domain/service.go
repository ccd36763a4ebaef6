package domain

import (
	"context"
	"errors"

	"github.com/shiftbd/agenthub/pkg/db/pagination"
)

var (
	ErrInvalidKind   = errors.New("invalid_kind")
	ErrInvalidOwner  = errors.New("invalid_owner")
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidStatus = errors.New("invalid_status")

	// ErrNotFound means the request id is unknown for the kind.
	ErrNotFound = errors.New("not_found")

	// ErrInvalidTransition means the requested status is not reachable
	// from the current one.
	ErrInvalidTransition = errors.New("invalid_transition")

	// ErrConflict means a concurrent change won the race on the record;
	// the caller should re-read and may retry.
	ErrConflict = errors.New("conflict")

	// ErrDuplicateTransaction means the external transaction reference is
	// already recorded on another request.
	ErrDuplicateTransaction = errors.New("duplicate_transaction")

	// ErrRateLimited means the owner exceeded the submission throttle.
	ErrRateLimited = errors.New("rate_limited")
)

type CreateRequest struct {
	Kind           string
	OwnerID        string
	Payload        map[string]any
	TransactionRef string
}

type ChangeStatusRequest struct {
	Kind   string
	ID     string
	Status string
	Actor  string
}

type GetRequest struct {
	Kind string
	ID   string
}

type ListByOwnerRequest struct {
	OwnerID   string
	Kind      string
	Status    string
	PageToken string
	PageSize  int
}

type ListByOwnerResponse struct {
	pagination.PageInfo
	Requests []ServiceRequest `json:"requests"`
}

// Service is the lifecycle orchestrator: the single entry point that
// sequences validation, persistence, voucher issuance and notification.
type Service interface {
	Create(context.Context, CreateRequest) (ServiceRequest, error)
	ChangeStatus(context.Context, ChangeStatusRequest) (ServiceRequest, error)
	GetByID(context.Context, GetRequest) (ServiceRequest, error)
	ListByOwner(context.Context, ListByOwnerRequest) (ListByOwnerResponse, error)
}
