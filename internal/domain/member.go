package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Child slot positions under a sponsor. Every member holds at most two
// direct members, one per slot.
const (
	SlotNone   = 0 // root only
	SlotFirst  = 1
	SlotSecond = 2
)

// Member is one node of the referral tree.
type Member struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name         string     `gorm:"column:name;not null" json:"name"`
	Phone        string     `gorm:"column:phone;not null;uniqueIndex" json:"phone"`
	Email        *string    `gorm:"column:email;uniqueIndex" json:"email"`
	Address      *string    `gorm:"column:address" json:"address"`
	AadhaarID    *string    `gorm:"column:aadhaar_id;uniqueIndex" json:"aadhaar_id"`
	PasswordHash string     `gorm:"column:password_hash;not null" json:"-"`
	SponsorID    *uuid.UUID `gorm:"column:sponsor_id;type:uuid;index" json:"sponsor_id"`
	Slot         int        `gorm:"column:slot;not null;default:0" json:"slot"`
	Level        int        `gorm:"column:level;not null;default:0" json:"level"`
	Points       int        `gorm:"column:points;not null;default:0" json:"points"`
	IsOwner      bool       `gorm:"column:is_owner;not null;default:false" json:"is_owner"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Member) TableName() string {
	return "members"
}

// BeforeCreate sets UUID if not set (for DBs without gen_random_uuid).
func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
