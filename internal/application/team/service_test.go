package team

import (
	"context"
	"testing"
	"time"

	"khpl-backend/internal/application/hierarchy"
	"khpl-backend/internal/application/invitations"
	"khpl-backend/internal/application/stats"
	"khpl-backend/internal/domain"
	"khpl-backend/internal/pkg/apperr"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTeamTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Member{}, &domain.Invitation{}, &domain.TeamEvent{}))

	tree := &hierarchy.Service{DB: db}
	inv := &invitations.Service{DB: db, Hierarchy: tree}
	st := &stats.Service{DB: db, Hierarchy: tree}
	return &Service{DB: db, Hierarchy: tree, Invitations: inv, Stats: st}, db
}

func seedOwner(t *testing.T, db *gorm.DB) *domain.Member {
	owner := &domain.Member{
		Name:         "Owner",
		Phone:        "+91-9876543210",
		PasswordHash: "hash",
		IsOwner:      true,
	}
	require.NoError(t, db.Create(owner).Error)
	return owner
}

func registerInput(token, name, phone, aadhaar string) RegisterInput {
	return RegisterInput{
		Token:     token,
		Name:      name,
		Phone:     phone,
		Password:  "password123",
		AadhaarID: aadhaar,
	}
}

func TestRegister_FullScenario(t *testing.T) {
	svc, db := setupTeamTest(t)
	owner := seedOwner(t, db)
	ctx := context.Background()

	// owner invites Alice, registration lands in the first slot
	invAlice, err := svc.CreateInvite(ctx, owner, "Alice")
	require.NoError(t, err)
	alice, err := svc.Register(ctx, registerInput(invAlice.Token, "Alice", "9000000001", "111122223333"))
	require.NoError(t, err)
	assert.Equal(t, 1, alice.Level)
	assert.Equal(t, domain.SlotFirst, alice.Slot)

	st, err := svc.Stats.StatsFor(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalDownline)

	// second invitation fills the second slot
	invBob, err := svc.CreateInvite(ctx, owner, "Bob")
	require.NoError(t, err)
	bob, err := svc.Register(ctx, registerInput(invBob.Token, "Bob", "9000000002", "444455556666"))
	require.NoError(t, err)
	assert.Equal(t, domain.SlotSecond, bob.Slot)

	st, err = svc.Stats.StatsFor(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalDownline)
	assert.Equal(t, 2, st.DirectChildren)

	// third invitation attempt from the owner fails
	_, err = svc.CreateInvite(ctx, owner, "Carol")
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestRegister_SlotsFilledAfterInviteCreation(t *testing.T) {
	svc, db := setupTeamTest(t)
	owner := seedOwner(t, db)
	ctx := context.Background()

	// three tokens issued while slots were open
	inv1, err := svc.CreateInvite(ctx, owner, "Alice")
	require.NoError(t, err)
	inv2, err := svc.CreateInvite(ctx, owner, "Bob")
	require.NoError(t, err)
	inv3, err := svc.CreateInvite(ctx, owner, "Carol")
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerInput(inv1.Token, "Alice", "9000000001", "111122223333"))
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerInput(inv2.Token, "Bob", "9000000002", "444455556666"))
	require.NoError(t, err)

	// the last token races in after both slots filled; re-validation wins
	_, err = svc.Register(ctx, registerInput(inv3.Token, "Carol", "9000000003", "777788889999"))
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	// the losing token is not burned
	var got domain.Invitation
	require.NoError(t, db.Where("token = ?", inv3.Token).First(&got).Error)
	assert.Equal(t, domain.InvitationPending, got.Status)

	// and no orphan member was created
	var n int64
	require.NoError(t, db.Model(&domain.Member{}).Count(&n).Error)
	assert.EqualValues(t, 3, n)
}

func TestRegister_DuplicatePhone(t *testing.T) {
	svc, db := setupTeamTest(t)
	owner := seedOwner(t, db)
	ctx := context.Background()

	inv1, err := svc.CreateInvite(ctx, owner, "Alice")
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerInput(inv1.Token, "Alice", "9000000001", "111122223333"))
	require.NoError(t, err)

	inv2, err := svc.CreateInvite(ctx, owner, "Bob")
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerInput(inv2.Token, "Bob", "9000000001", "444455556666"))
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	// failed registration must not burn the token
	var got domain.Invitation
	require.NoError(t, db.Where("token = ?", inv2.Token).First(&got).Error)
	assert.Equal(t, domain.InvitationPending, got.Status)
}

func TestRegister_DuplicateAadhaar(t *testing.T) {
	svc, db := setupTeamTest(t)
	owner := seedOwner(t, db)
	ctx := context.Background()

	inv1, err := svc.CreateInvite(ctx, owner, "Alice")
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerInput(inv1.Token, "Alice", "9000000001", "111122223333"))
	require.NoError(t, err)

	inv2, err := svc.CreateInvite(ctx, owner, "Bob")
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerInput(inv2.Token, "Bob", "9000000002", "111122223333"))
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, db := setupTeamTest(t)
	owner := seedOwner(t, db)
	ctx := context.Background()

	inv1, err := svc.CreateInvite(ctx, owner, "Alice")
	require.NoError(t, err)
	in1 := registerInput(inv1.Token, "Alice", "9000000001", "111122223333")
	in1.Email = "alice@example.com"
	_, err = svc.Register(ctx, in1)
	require.NoError(t, err)

	inv2, err := svc.CreateInvite(ctx, owner, "Bob")
	require.NoError(t, err)
	in2 := registerInput(inv2.Token, "Bob", "9000000002", "444455556666")
	in2.Email = "alice@example.com"
	_, err = svc.Register(ctx, in2)
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestRegister_EmptyEmailNotUniqueChecked(t *testing.T) {
	svc, db := setupTeamTest(t)
	owner := seedOwner(t, db)
	ctx := context.Background()

	inv1, err := svc.CreateInvite(ctx, owner, "Alice")
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerInput(inv1.Token, "Alice", "9000000001", "111122223333"))
	require.NoError(t, err)

	// two members without email are fine
	inv2, err := svc.CreateInvite(ctx, owner, "Bob")
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerInput(inv2.Token, "Bob", "9000000002", "444455556666"))
	require.NoError(t, err)
}

func TestRegister_ConsumedTokenRejected(t *testing.T) {
	svc, db := setupTeamTest(t)
	owner := seedOwner(t, db)
	ctx := context.Background()

	inv, err := svc.CreateInvite(ctx, owner, "Alice")
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerInput(inv.Token, "Alice", "9000000001", "111122223333"))
	require.NoError(t, err)

	// a retried request with the same token cannot create a second account
	_, err = svc.Register(ctx, registerInput(inv.Token, "Alice Again", "9000000009", "999988887777"))
	require.Error(t, err)

	var n int64
	require.NoError(t, db.Model(&domain.Member{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

func TestRegister_InvalidFields(t *testing.T) {
	svc, db := setupTeamTest(t)
	owner := seedOwner(t, db)
	ctx := context.Background()

	inv, err := svc.CreateInvite(ctx, owner, "Alice")
	require.NoError(t, err)

	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"bad aadhaar", registerInput(inv.Token, "Alice", "9000000001", "123")},
		{"bad name", registerInput(inv.Token, "Alice123", "9000000001", "111122223333")},
		{"bad phone", registerInput(inv.Token, "Alice", "abc", "111122223333")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.in)
			require.Error(t, err)
			assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
		})
	}

	weak := registerInput(inv.Token, "Alice", "9000000001", "111122223333")
	weak.Password = "short"
	_, err = svc.Register(ctx, weak)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestRemoveMember_CascadeAndTokenStaysConsumed(t *testing.T) {
	svc, db := setupTeamTest(t)
	owner := seedOwner(t, db)
	ctx := context.Background()

	invAlice, err := svc.CreateInvite(ctx, owner, "Alice")
	require.NoError(t, err)
	alice, err := svc.Register(ctx, registerInput(invAlice.Token, "Alice", "9000000001", "111122223333"))
	require.NoError(t, err)

	aliceMember, err := svc.Hierarchy.GetMember(ctx, alice.ID)
	require.NoError(t, err)
	invCarol, err := svc.CreateInvite(ctx, aliceMember, "Carol")
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerInput(invCarol.Token, "Carol", "9000000003", "777788889999"))
	require.NoError(t, err)

	st, err := svc.Stats.StatsFor(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalDownline)

	removed, err := svc.RemoveMember(ctx, owner, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	st, err = svc.Stats.StatsFor(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, st.TotalDownline)

	// consumed tokens are history, not resurrected
	var got domain.Invitation
	require.NoError(t, db.Where("token = ?", invCarol.Token).First(&got).Error)
	assert.Equal(t, domain.InvitationConsumed, got.Status)
}

func TestRemoveMember_NonOwnerForbidden(t *testing.T) {
	svc, db := setupTeamTest(t)
	owner := seedOwner(t, db)
	ctx := context.Background()

	inv, err := svc.CreateInvite(ctx, owner, "Alice")
	require.NoError(t, err)
	alice, err := svc.Register(ctx, registerInput(inv.Token, "Alice", "9000000001", "111122223333"))
	require.NoError(t, err)

	_, err = svc.RemoveMember(ctx, alice, owner.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestRemoveMember_RootForbidden(t *testing.T) {
	svc, db := setupTeamTest(t)
	owner := seedOwner(t, db)

	_, err := svc.RemoveMember(context.Background(), owner, owner.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestSetPoints_OwnerGated(t *testing.T) {
	svc, db := setupTeamTest(t)
	owner := seedOwner(t, db)
	ctx := context.Background()

	inv, err := svc.CreateInvite(ctx, owner, "Bob")
	require.NoError(t, err)
	bob, err := svc.Register(ctx, registerInput(inv.Token, "Bob", "9000000002", "444455556666"))
	require.NoError(t, err)

	require.NoError(t, svc.SetPoints(ctx, owner, bob.ID, 50))
	got, err := svc.Hierarchy.GetMember(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Points)

	err = svc.SetPoints(ctx, got, bob.ID, 60)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	err = svc.SetPoints(ctx, owner, bob.ID, -1)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	err = svc.SetPoints(ctx, owner, uuid.New(), 10)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestActivity_RecordsMutations(t *testing.T) {
	svc, db := setupTeamTest(t)
	owner := seedOwner(t, db)
	ctx := context.Background()

	inv, err := svc.CreateInvite(ctx, owner, "Alice")
	require.NoError(t, err)
	alice, err := svc.Register(ctx, registerInput(inv.Token, "Alice", "9000000001", "111122223333"))
	require.NoError(t, err)
	require.NoError(t, svc.SetPoints(ctx, owner, alice.ID, 10))

	events, err := svc.Activity(ctx, owner, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)

	types := make(map[string]bool, len(events))
	for _, e := range events {
		types[e.EventType] = true
	}
	assert.True(t, types[domain.EventInviteCreated])
	assert.True(t, types[domain.EventMemberRegistered])
	assert.True(t, types[domain.EventPointsUpdated])

	_, err = svc.Activity(ctx, alice, 0)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	// timestamps present for audit ordering
	assert.WithinDuration(t, time.Now(), events[0].CreatedAt, time.Minute)
}
