package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Kind identifies one of the service request families sharing the
// lifecycle engine.
type Kind string

const (
	KindPayment         Kind = "Payment"
	KindFexiload        Kind = "FexiloadRequest"
	KindMobileRecharge  Kind = "MobileRechargeRequest"
	KindTrxRecharge     Kind = "TrxRechargeRequest"
	KindLocationTracker Kind = "LocationTrackerServiceRequest"
	KindMerchantIssue   Kind = "MerchantIssue"
	KindPenaltyReport   Kind = "PenaltyReport"
)

// Kinds lists every supported request kind.
func Kinds() []Kind {
	return []Kind{
		KindPayment,
		KindFexiload,
		KindMobileRecharge,
		KindTrxRecharge,
		KindLocationTracker,
		KindMerchantIssue,
		KindPenaltyReport,
	}
}

// Status is a lifecycle state. The report kinds keep their historical
// lower-case vocabulary, so values are compared verbatim.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"

	StatusReportPending  Status = "pending"
	StatusInProgress     Status = "in-progress"
	StatusResolved       Status = "resolved"
	StatusReportRejected Status = "rejected"
	StatusProcessed      Status = "processed"
)

// ServiceRequest is the uniform record every kind is tracked through.
// Payload carries the kind-specific fields and stays opaque to the
// lifecycle engine; TransactionRef is the only payload field the store
// constrains (unique when present).
type ServiceRequest struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	OwnerID        snowflake.ID      `gorm:"not null;index" json:"owner_id"`
	Kind           Kind              `gorm:"type:text;not null;index" json:"kind"`
	Status         Status            `gorm:"type:text;not null" json:"status"`
	Payload        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"payload,omitempty"`
	TransactionRef *string           `gorm:"type:text;uniqueIndex:ux_service_requests_txn_ref" json:"transaction_ref,omitempty"`
	VoucherCode    *string           `gorm:"type:text" json:"voucher_code,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ServiceRequest) TableName() string { return "service_requests" }

// ParseKind validates a raw kind tag.
func ParseKind(raw string) (Kind, error) {
	for _, kind := range Kinds() {
		if string(kind) == raw {
			return kind, nil
		}
	}
	return "", ErrInvalidKind
}
