package invitations

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"khpl-backend/internal/application/hierarchy"
	"khpl-backend/internal/domain"
	"khpl-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const inviteExpiry = 7 * 24 * time.Hour

// Service owns the invitation lifecycle: create, lookup, consume, expire.
// An invitation reserves a potential slot only; the slot is re-validated
// when the token is consumed.
type Service struct {
	DB        *gorm.DB
	Hierarchy *hierarchy.Service
}

// Tx returns a Service bound to the given transaction handle.
func (s *Service) Tx(tx *gorm.DB) *Service {
	return &Service{DB: tx, Hierarchy: s.Hierarchy.Tx(tx)}
}

// Create issues a pending single-use token for one registration under
// sponsorID. Fails when the sponsor's slots are already full.
func (s *Service) Create(ctx context.Context, sponsorID uuid.UUID, inviteeName string) (*domain.Invitation, error) {
	n, err := s.Hierarchy.CountChildren(ctx, sponsorID)
	if err != nil {
		return nil, err
	}
	if n >= hierarchy.MaxChildren {
		return nil, apperr.New(apperr.Conflict, "You can only have a maximum of 2 direct team members")
	}

	inv := &domain.Invitation{
		Token:       randomToken(32),
		SponsorID:   sponsorID,
		InviteeName: inviteeName,
		Status:      domain.InvitationPending,
		ExpiresAt:   time.Now().Add(inviteExpiry),
	}
	if err := s.DB.WithContext(ctx).Create(inv).Error; err != nil {
		return nil, err
	}
	return inv, nil
}

// Lookup previews a pending invitation together with its sponsor, for the
// registration form. A pending invitation past its expiry is marked
// expired on the way out.
func (s *Service) Lookup(ctx context.Context, token string) (*domain.Invitation, *domain.Member, error) {
	var inv domain.Invitation
	if err := s.DB.WithContext(ctx).Where("token = ?", token).First(&inv).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, apperr.New(apperr.NotFound, "Invalid or expired invitation")
		}
		return nil, nil, err
	}
	if inv.Status != domain.InvitationPending {
		return nil, nil, apperr.New(apperr.NotFound, "Invalid or expired invitation")
	}
	if inv.ExpiresAt.Before(time.Now()) {
		inv.Status = domain.InvitationExpired
		s.DB.WithContext(ctx).Save(&inv)
		return nil, nil, apperr.New(apperr.Expired, "Invitation has expired")
	}

	sponsor, err := s.Hierarchy.GetMember(ctx, inv.SponsorID)
	if err != nil {
		return nil, nil, err
	}
	return &inv, sponsor, nil
}

// Consume transitions a pending token to consumed. Re-consuming is an
// error, never a no-op, so retried registrations cannot create a second
// account.
func (s *Service) Consume(ctx context.Context, token string, now time.Time, consumedBy uuid.UUID) (*domain.Invitation, error) {
	var inv domain.Invitation
	if err := s.DB.WithContext(ctx).Where("token = ?", token).First(&inv).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.New(apperr.NotFound, "Invalid or expired invitation")
		}
		return nil, err
	}

	switch inv.Status {
	case domain.InvitationConsumed:
		return nil, apperr.New(apperr.Conflict, "Invitation has already been used")
	case domain.InvitationExpired:
		return nil, apperr.New(apperr.Expired, "Invitation has expired")
	}

	if inv.ExpiresAt.Before(now) {
		inv.Status = domain.InvitationExpired
		s.DB.WithContext(ctx).Save(&inv)
		return nil, apperr.New(apperr.Expired, "Invitation has expired")
	}

	inv.Status = domain.InvitationConsumed
	inv.ConsumedBy = &consumedBy
	if err := s.DB.WithContext(ctx).Save(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListForSponsor returns the sponsor's invitation history, newest first.
func (s *Service) ListForSponsor(ctx context.Context, sponsorID uuid.UUID) ([]domain.Invitation, error) {
	var invs []domain.Invitation
	if err := s.DB.WithContext(ctx).
		Where("sponsor_id = ?", sponsorID).
		Order("created_at DESC").
		Find(&invs).Error; err != nil {
		return nil, err
	}
	return invs, nil
}

// ExpireSweep bulk-marks pending invitations past their expiry. Pure
// bookkeeping: Consume and Lookup already check expiry themselves.
func (s *Service) ExpireSweep(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&domain.Invitation{}).
		Where("status = ? AND expires_at < ?", domain.InvitationPending, now).
		Update("status", domain.InvitationExpired)
	return res.RowsAffected, res.Error
}

func randomToken(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
