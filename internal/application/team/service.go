package team

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"khpl-backend/internal/application/auth"
	"khpl-backend/internal/application/hierarchy"
	"khpl-backend/internal/application/invitations"
	"khpl-backend/internal/application/stats"
	"khpl-backend/internal/domain"
	"khpl-backend/internal/pkg/apperr"
	"khpl-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service coordinates all tree mutations. A single write lock serializes
// structural changes; referral trees grow slowly, so one writer is enough.
// Each mutating sequence also runs in a database transaction, so a failure
// mid-sequence leaves no new member, no burned token and no partial
// removal.
type Service struct {
	DB          *gorm.DB
	Hierarchy   *hierarchy.Service
	Invitations *invitations.Service
	Stats       *stats.Service

	mu sync.Mutex
}

// RegisterInput is the registration-from-invitation request.
type RegisterInput struct {
	Token     string
	Name      string
	Phone     string
	Password  string
	AadhaarID string
	Email     string
	Address   string
}

// Register performs the invitation-gated registration sequence atomically:
// validate the token, check uniqueness, insert the member in the sponsor's
// free slot, consume the token. The sponsor's slots are re-validated here
// in case a concurrent invitation consumed the last one first.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.Member, error) {
	if err := validateRegistration(in); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var member *domain.Member
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, _, err := s.Invitations.Tx(tx).Lookup(ctx, in.Token)
		if err != nil {
			return err
		}
		if err := checkUniqueness(tx, in); err != nil {
			return err
		}

		data := hierarchy.NewMember{
			Name:         in.Name,
			Phone:        in.Phone,
			AadhaarID:    strPtr(in.AadhaarID),
			Email:        strPtr(in.Email),
			Address:      strPtr(in.Address),
			PasswordHash: hash,
		}
		member, err = s.Hierarchy.Tx(tx).InsertChild(ctx, inv.SponsorID, data)
		if err != nil {
			return err
		}
		if _, err := s.Invitations.Tx(tx).Consume(ctx, in.Token, time.Now(), member.ID); err != nil {
			return err
		}
		return recordEvent(tx, domain.EventMemberRegistered, inv.SponsorID, &member.ID, map[string]interface{}{
			"name": member.Name,
			"slot": member.Slot,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateUpward(ctx, member.ID)
	log.Info().Str("member_id", member.ID.String()).Int("level", member.Level).Msg("member registered")
	return member, nil
}

// CreateInvite issues an invitation token for the actor's next free slot.
func (s *Service) CreateInvite(ctx context.Context, actor *domain.Member, inviteeName string) (*domain.Invitation, error) {
	if !validation.IsValidName(inviteeName) {
		return nil, apperr.New(apperr.Invalid, "A valid name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var inv *domain.Invitation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inv, err = s.Invitations.Tx(tx).Create(ctx, actor.ID, inviteeName)
		if err != nil {
			return err
		}
		return recordEvent(tx, domain.EventInviteCreated, actor.ID, nil, map[string]interface{}{
			"invitee_name": inviteeName,
		})
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// RemoveMember cascades deletion of targetID's subtree. Owner only; the
// root itself is never removable. Returns the removed member count.
func (s *Service) RemoveMember(ctx context.Context, actor *domain.Member, targetID uuid.UUID) (int, error) {
	if !actor.IsOwner {
		return 0, apperr.New(apperr.Forbidden, "Only the owner can remove members")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The sponsor chain must be captured before the subtree is gone.
	ancestors, err := s.Stats.Ancestors(ctx, targetID)
	if err != nil {
		return 0, err
	}
	subtree, err := s.Hierarchy.Subtree(ctx, targetID)
	if err != nil {
		return 0, err
	}

	var removed int
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		removed, err = s.Hierarchy.Tx(tx).DeleteSubtree(ctx, targetID)
		if err != nil {
			return err
		}
		return recordEvent(tx, domain.EventMemberRemoved, actor.ID, &targetID, map[string]interface{}{
			"removed": removed,
		})
	})
	if err != nil {
		return 0, err
	}

	for _, m := range subtree {
		ancestors = append(ancestors, m.ID)
	}
	s.Stats.Invalidate(ctx, ancestors...)
	log.Info().Str("target_id", targetID.String()).Int("removed", removed).Msg("subtree removed")
	return removed, nil
}

// SetPoints writes an absolute points value for a member. Owner only.
func (s *Service) SetPoints(ctx context.Context, actor *domain.Member, targetID uuid.UUID, points int) error {
	if !actor.IsOwner {
		return apperr.New(apperr.Forbidden, "Only the owner can update points")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Hierarchy.Tx(tx).SetPoints(ctx, targetID, points); err != nil {
			return err
		}
		return recordEvent(tx, domain.EventPointsUpdated, actor.ID, &targetID, map[string]interface{}{
			"points": points,
		})
	})
	if err != nil {
		return err
	}

	s.invalidateUpward(ctx, targetID)
	return nil
}

// Activity returns the most recent team events. Owner only.
func (s *Service) Activity(ctx context.Context, actor *domain.Member, limit int) ([]domain.TeamEvent, error) {
	if !actor.IsOwner {
		return nil, apperr.New(apperr.Forbidden, "Only the owner can view team activity")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var events []domain.TeamEvent
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Service) invalidateUpward(ctx context.Context, id uuid.UUID) {
	ancestors, err := s.Stats.Ancestors(ctx, id)
	if err != nil {
		log.Warn().Err(err).Msg("ancestor walk for cache invalidation failed")
		return
	}
	s.Stats.Invalidate(ctx, ancestors...)
}

func validateRegistration(in RegisterInput) error {
	if !validation.IsValidName(in.Name) {
		return apperr.New(apperr.Invalid, "A valid name is required")
	}
	if !validation.IsValidPhone(in.Phone) {
		return apperr.New(apperr.Invalid, "A valid phone number is required")
	}
	if !validation.IsValidAadhaar(in.AadhaarID) {
		return apperr.New(apperr.Invalid, "Aadhaar ID must be exactly 12 digits")
	}
	if !validation.IsValidPassword(in.Password) {
		return apperr.New(apperr.Invalid, "Password must be at least 8 characters with letters and numbers")
	}
	if in.Email != "" && !validation.IsValidEmail(in.Email) {
		return apperr.New(apperr.Invalid, "A valid email is required")
	}
	return nil
}

func checkUniqueness(tx *gorm.DB, in RegisterInput) error {
	var n int64
	if err := tx.Model(&domain.Member{}).Where("phone = ?", in.Phone).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.New(apperr.Conflict, "User with this phone number already registered")
	}
	if err := tx.Model(&domain.Member{}).Where("aadhaar_id = ?", in.AadhaarID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.New(apperr.Conflict, "User with this Aadhaar ID already registered")
	}
	if in.Email != "" {
		if err := tx.Model(&domain.Member{}).Where("email = ?", in.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.New(apperr.Conflict, "User with this email already exists")
		}
	}
	return nil
}

func recordEvent(tx *gorm.DB, eventType string, actorID uuid.UUID, memberID *uuid.UUID, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Create(&domain.TeamEvent{
		EventType: eventType,
		ActorID:   actorID,
		MemberID:  memberID,
		EventData: datatypes.JSON(data),
	}).Error
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
