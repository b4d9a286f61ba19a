package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Team event types recorded by the mutation coordinator.
const (
	EventMemberRegistered = "member_registered"
	EventMemberRemoved    = "member_removed"
	EventPointsUpdated    = "points_updated"
	EventInviteCreated    = "invite_created"
)

// TeamEvent is an append-only audit record of a team mutation.
type TeamEvent struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	EventType string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	ActorID   uuid.UUID      `gorm:"column:actor_id;type:uuid;not null" json:"actor_id"`
	MemberID  *uuid.UUID     `gorm:"column:member_id;type:uuid" json:"member_id"`
	EventData datatypes.JSON `gorm:"column:event_data" json:"event_data"`
	CreatedAt time.Time      `json:"created_at"`
}

func (TeamEvent) TableName() string {
	return "team_events"
}

func (e *TeamEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
