package auth

import (
	"context"
	"time"

	"khpl-backend/internal/config"
	"khpl-backend/internal/domain"
	"khpl-backend/internal/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenTTL = 30 * time.Minute

// Service authenticates members and issues bearer access tokens. Members
// log in by phone number.
type Service struct {
	DB        *gorm.DB
	JWTSecret string
}

// Login finds a member by phone and verifies the password.
func (s *Service) Login(ctx context.Context, phone, password string) (*domain.Member, error) {
	if phone == "" || password == "" {
		return nil, apperr.New(apperr.Invalid, "Phone and password are required")
	}
	var m domain.Member
	if err := s.DB.WithContext(ctx).Where("phone = ?", phone).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			log.Warn().Str("phone", phone).Msg("login attempt with unknown phone")
			return nil, apperr.New(apperr.Unauthorized, "Invalid credentials. Please check your phone number and password.")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)); err != nil {
		log.Warn().Str("phone", phone).Msg("failed login attempt")
		return nil, apperr.New(apperr.Unauthorized, "Invalid credentials. Please check your phone number and password.")
	}
	return &m, nil
}

// IssueToken signs an HS256 access token with the member id as subject.
func (s *Service) IssueToken(memberID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   memberID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.JWTSecret))
}

// ParseToken validates an access token and returns the member id.
func (s *Service) ParseToken(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.New(apperr.Unauthorized, "Invalid authentication credentials")
		}
		return []byte(s.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apperr.New(apperr.Unauthorized, "Invalid authentication credentials")
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return uuid.Nil, apperr.New(apperr.Unauthorized, "Invalid authentication credentials")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperr.New(apperr.Unauthorized, "Invalid authentication credentials")
	}
	return id, nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EnsureOwner seeds the single root member on first boot. A tree always
// has exactly one owner; this is the only member created outside the
// invitation flow.
func (s *Service) EnsureOwner(ctx context.Context, cfg *config.Config) error {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Member{}).Where("is_owner = ?", true).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password := cfg.OwnerPassword
	if password == "" {
		password = "defaultpassword123"
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	email := cfg.OwnerEmail
	owner := &domain.Member{
		Name:         cfg.OwnerName,
		Phone:        cfg.OwnerPhone,
		Email:        &email,
		PasswordHash: hash,
		SponsorID:    nil,
		Slot:         domain.SlotNone,
		Level:        0,
		IsOwner:      true,
	}
	if err := s.DB.WithContext(ctx).Create(owner).Error; err != nil {
		return err
	}
	log.Info().Str("phone", owner.Phone).Msg("default owner created")
	return nil
}
