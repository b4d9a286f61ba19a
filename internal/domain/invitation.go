package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invitation statuses. Invitations are never deleted; a cascaded member
// removal flips its pending invitations to expired.
const (
	InvitationPending  = "pending"
	InvitationConsumed = "consumed"
	InvitationExpired  = "expired"
)

// Invitation is a single-use capability to register one member under the
// sponsor who issued it.
type Invitation struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Token       string     `gorm:"column:token;not null;uniqueIndex" json:"token"`
	SponsorID   uuid.UUID  `gorm:"column:sponsor_id;type:uuid;not null;index" json:"sponsor_id"`
	InviteeName string     `gorm:"column:invitee_name;not null" json:"invitee_name"`
	Status      string     `gorm:"column:status;not null;default:'pending'" json:"status"`
	ConsumedBy  *uuid.UUID `gorm:"column:consumed_by;type:uuid" json:"consumed_by"`
	ExpiresAt   time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Invitation) TableName() string {
	return "invitations"
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
