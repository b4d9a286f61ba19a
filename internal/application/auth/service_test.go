package auth

import (
	"context"
	"testing"

	"khpl-backend/internal/config"
	"khpl-backend/internal/domain"
	"khpl-backend/internal/pkg/apperr"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAuthTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Member{}))
	return &Service{DB: db, JWTSecret: "test-secret"}, db
}

func seedMember(t *testing.T, db *gorm.DB, phone, password string) *domain.Member {
	hash, err := HashPassword(password)
	require.NoError(t, err)
	m := &domain.Member{
		Name:         "Owner",
		Phone:        phone,
		PasswordHash: hash,
		IsOwner:      true,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func TestLogin_Succeeds(t *testing.T) {
	svc, db := setupAuthTest(t)
	seeded := seedMember(t, db, "9000000001", "password123")

	m, err := svc.Login(context.Background(), "9000000001", "password123")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, m.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, db := setupAuthTest(t)
	seedMember(t, db, "9000000001", "password123")

	_, err := svc.Login(context.Background(), "9000000001", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}

func TestLogin_UnknownPhone(t *testing.T) {
	svc, _ := setupAuthTest(t)

	_, err := svc.Login(context.Background(), "0000000000", "password123")
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}

func TestLogin_MissingFields(t *testing.T) {
	svc, _ := setupAuthTest(t)

	_, err := svc.Login(context.Background(), "", "")
	require.Error(t, err)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestTokenRoundTrip(t *testing.T) {
	svc, _ := setupAuthTest(t)
	id := uuid.New()

	token, err := svc.IssueToken(id)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestParseToken_Garbage(t *testing.T) {
	svc, _ := setupAuthTest(t)

	_, err := svc.ParseToken("not-a-jwt")
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}

func TestParseToken_WrongSecret(t *testing.T) {
	svc, _ := setupAuthTest(t)
	other := &Service{JWTSecret: "different-secret"}

	token, err := other.IssueToken(uuid.New())
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}

func TestEnsureOwner_SeedsOnce(t *testing.T) {
	svc, db := setupAuthTest(t)
	cfg := &config.Config{
		OwnerName:     "Root Owner",
		OwnerPhone:    "+91-9876543210",
		OwnerEmail:    "owner@khpl.app",
		OwnerPassword: "ownerpass1",
	}

	require.NoError(t, svc.EnsureOwner(context.Background(), cfg))
	require.NoError(t, svc.EnsureOwner(context.Background(), cfg))

	var owners []domain.Member
	require.NoError(t, db.Where("is_owner = ?", true).Find(&owners).Error)
	require.Len(t, owners, 1)
	assert.Equal(t, "Root Owner", owners[0].Name)
	assert.Nil(t, owners[0].SponsorID)
	assert.Equal(t, 0, owners[0].Level)

	// seeded owner can log in with the configured password
	_, err := svc.Login(context.Background(), "+91-9876543210", "ownerpass1")
	require.NoError(t, err)
}
