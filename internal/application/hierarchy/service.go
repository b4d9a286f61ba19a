package hierarchy

import (
	"context"

	"khpl-backend/internal/domain"
	"khpl-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxChildren is the binary-tree invariant: at most two direct members
// per sponsor, one per slot.
const MaxChildren = 2

// Service owns all reads and structural writes of the member tree.
// Structural mutations must run under the team coordinator's write lock.
type Service struct {
	DB *gorm.DB
}

// Tx returns a Service bound to the given transaction handle, so the
// coordinator can compose tree mutations atomically.
func (s *Service) Tx(tx *gorm.DB) *Service {
	return &Service{DB: tx}
}

// NewMember carries the data for one insertion; slot and level are assigned
// by InsertChild.
type NewMember struct {
	Name         string
	Phone        string
	Email        *string
	Address      *string
	AadhaarID    *string
	PasswordHash string
}

func (s *Service) GetMember(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	var m domain.Member
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.New(apperr.NotFound, "Member not found")
		}
		return nil, err
	}
	return &m, nil
}

// GetChildren returns the direct members of id in slot order (first, second).
func (s *Service) GetChildren(ctx context.Context, id uuid.UUID) ([]domain.Member, error) {
	var children []domain.Member
	if err := s.DB.WithContext(ctx).
		Where("sponsor_id = ?", id).
		Order("slot ASC").
		Find(&children).Error; err != nil {
		return nil, err
	}
	return children, nil
}

func (s *Service) CountChildren(ctx context.Context, id uuid.UUID) (int, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Member{}).
		Where("sponsor_id = ?", id).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// InsertChild creates a member under sponsorID in the lower-numbered free
// slot. Level is derived from the sponsor.
func (s *Service) InsertChild(ctx context.Context, sponsorID uuid.UUID, data NewMember) (*domain.Member, error) {
	var sponsor domain.Member
	if err := s.DB.WithContext(ctx).Where("id = ?", sponsorID).First(&sponsor).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.New(apperr.NotFound, "Sponsor not found")
		}
		return nil, err
	}

	children, err := s.GetChildren(ctx, sponsorID)
	if err != nil {
		return nil, err
	}
	if len(children) >= MaxChildren {
		return nil, apperr.New(apperr.Conflict, "You can only have a maximum of 2 direct team members")
	}
	slot := domain.SlotFirst
	for _, c := range children {
		if c.Slot == slot {
			slot = domain.SlotSecond
		}
	}

	m := &domain.Member{
		Name:         data.Name,
		Phone:        data.Phone,
		Email:        data.Email,
		Address:      data.Address,
		AadhaarID:    data.AadhaarID,
		PasswordHash: data.PasswordHash,
		SponsorID:    &sponsor.ID,
		Slot:         slot,
		Level:        sponsor.Level + 1,
	}
	if err := s.DB.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// Subtree returns the members rooted at id in depth-first order, the
// first-slot subtree fully before the second. The tree visualizer depends
// on this ordering.
func (s *Service) Subtree(ctx context.Context, id uuid.UUID) ([]domain.Member, error) {
	root, err := s.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Member, 0, 1)
	stack := []domain.Member{*root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)

		children, err := s.GetChildren(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		// push in reverse so the first slot is visited first
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out, nil
}

// DeleteSubtree removes id and all descendants, returning the removed
// count. Pending invitations issued by removed members are expired, not
// deleted. The root owner is never removable.
func (s *Service) DeleteSubtree(ctx context.Context, id uuid.UUID) (int, error) {
	target, err := s.GetMember(ctx, id)
	if err != nil {
		return 0, err
	}
	if target.IsOwner {
		return 0, apperr.New(apperr.Forbidden, "The owner cannot be removed")
	}

	subtree, err := s.Subtree(ctx, id)
	if err != nil {
		return 0, err
	}
	ids := make([]uuid.UUID, len(subtree))
	for i, m := range subtree {
		ids[i] = m.ID
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id IN ?", ids).Delete(&domain.Member{}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Invitation{}).
			Where("sponsor_id IN ? AND status = ?", ids, domain.InvitationPending).
			Update("status", domain.InvitationExpired).Error
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// SetPoints writes the absolute points value for a member.
func (s *Service) SetPoints(ctx context.Context, id uuid.UUID, value int) error {
	if value < 0 {
		return apperr.New(apperr.Invalid, "Points cannot be negative")
	}
	res := s.DB.WithContext(ctx).Model(&domain.Member{}).
		Where("id = ?", id).
		Update("points", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "Member not found")
	}
	return nil
}
