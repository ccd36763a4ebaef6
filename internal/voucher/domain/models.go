package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Voucher is a redeemable benefit code issued at most once per resolved
// report. The (source kind, source id) pair is unique so a race between
// issuers can never mint two codes for one report.
type Voucher struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	Code               string       `gorm:"type:text;not null;uniqueIndex:ux_vouchers_code" json:"code"`
	DiscountPercentage int          `gorm:"not null" json:"discount_percentage"`
	SourceReportKind   string       `gorm:"type:text;not null;uniqueIndex:ux_vouchers_source,priority:1" json:"source_report_kind"`
	SourceReportID     snowflake.ID `gorm:"not null;uniqueIndex:ux_vouchers_source,priority:2" json:"source_report_id"`
	IsUsed             bool         `gorm:"not null;default:false" json:"is_used"`
	UsedAt             *time.Time   `gorm:"" json:"used_at,omitempty"`
	ValidUntil         *time.Time   `gorm:"" json:"valid_until,omitempty"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Voucher) TableName() string { return "vouchers" }

// Expired reports whether the voucher is past its validity window.
func (v Voucher) Expired(now time.Time) bool {
	return v.ValidUntil != nil && now.After(*v.ValidUntil)
}
