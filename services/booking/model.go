package booking

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Status is the booking lifecycle state.
type Status string

const (
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusActive          Status = "ACTIVE"
	StatusAwaitingProof   Status = "AWAITING_PROOF"
	StatusCompleted       Status = "COMPLETED"
	StatusRejected        Status = "REJECTED"
	StatusCancelled       Status = "CANCELLED"
)

// ProofStatus is the installation-proof sub-state, orthogonal to Status
// while a booking is awaiting proof review.
type ProofStatus string

const (
	ProofNone     ProofStatus = ""
	ProofApproved ProofStatus = "APPROVED"
	ProofRejected ProofStatus = "REJECTED"
)

// OpenStatuses are the in-progress states shown by the status listing.
var OpenStatuses = []Status{StatusPendingApproval, StatusActive, StatusAwaitingProof}

// Meta holds free-form structured metadata. Flags that queries depend on
// (is_simulation, closed) are real columns, not metadata.
type Meta struct {
	Source string `json:"source,omitempty"`
	Note   string `json:"note,omitempty"`
}

// Booking represents an advertiser's reservation of a physical ad space,
// carrying payment amounts and proof-of-installation sub-state. Amounts are
// integer cents; comparisons never go through floating point.
type Booking struct {
	ID               string                   `gorm:"column:id;primaryKey"`
	CampaignID       string                   `gorm:"column:campaign_id;index"`
	SpaceID          string                   `gorm:"column:space_id;index"`
	Status           Status                   `gorm:"column:status;index;not null"`
	ProofStatus      ProofStatus              `gorm:"column:proof_status"`
	TotalAmountCents int64                    `gorm:"column:total_amount_cents;not null"`
	PlatformFeeCents int64                    `gorm:"column:platform_fee_cents;not null"`
	OwnerAmountCents int64                    `gorm:"column:owner_amount_cents;not null"`
	ProofPhotos      datatypes.JSON           `gorm:"column:proof_photos"`
	ProofApprovedAt  *time.Time               `gorm:"column:proof_approved_at"`
	StartDate        time.Time                `gorm:"column:start_date"`
	EndDate          time.Time                `gorm:"column:end_date"`
	IsSimulation     bool                     `gorm:"column:is_simulation;index"`
	Closed           bool                     `gorm:"column:closed"`
	ClosedAt         *time.Time               `gorm:"column:closed_at"`
	Meta             datatypes.JSONType[Meta] `gorm:"column:meta"`
	Version          int64                    `gorm:"column:version;not null;default:0"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// Photos decodes the stored proof photo URIs.
func (b *Booking) Photos() []string {
	if len(b.ProofPhotos) == 0 {
		return nil
	}
	var photos []string
	if err := json.Unmarshal(b.ProofPhotos, &photos); err != nil {
		return nil
	}
	return photos
}

func EncodePhotos(photos []string) datatypes.JSON {
	b, _ := json.Marshal(photos)
	return datatypes.JSON(b)
}

// ShortID returns the truncated identifier surfaced in chat, the same
// 8-character prefix the dashboard shows.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// FormatUSD renders integer cents as a dollar amount.
func FormatUSD(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
