package notify

import "time"

type EventType string

const (
	EventCreated       EventType = "created"
	EventStatusChanged EventType = "status-changed"
	EventVoucherIssued EventType = "voucher-issued"
)

// Audience is the routing hint deciding which identity classes receive
// an event.
type Audience string

const (
	AudienceAdmins Audience = "admins"
	AudienceOwner  Audience = "owner"
	AudienceAll    Audience = "owner+admins"
)

type VoucherInfo struct {
	Code               string     `json:"code"`
	DiscountPercentage int        `json:"discount_percentage"`
	ValidUntil         *time.Time `json:"valid_until,omitempty"`
}

// Event is a domain occurrence produced by the lifecycle orchestrator
// and consumed within one broadcast cycle.
type Event struct {
	Type        EventType
	RequestKind string
	RequestID   string
	OwnerID     string
	Status      string
	Voucher     *VoucherInfo
	Audience    Audience
}

// Envelope is the wire message delivered verbatim to every resolved
// recipient; one envelope per event.
type Envelope struct {
	Type        string       `json:"type"`
	RequestKind string       `json:"request_kind"`
	RequestID   string       `json:"request_id"`
	Status      string       `json:"status"`
	Voucher     *VoucherInfo `json:"voucher,omitempty"`
}

func (e Event) Envelope() Envelope {
	return Envelope{
		Type:        string(e.Type),
		RequestKind: e.RequestKind,
		RequestID:   e.RequestID,
		Status:      e.Status,
		Voucher:     e.Voucher,
	}
}
