package auth

import (
	"time"

	authsvc "khpl-backend/internal/application/auth"
	"khpl-backend/internal/application/hierarchy"
	teamsvc "khpl-backend/internal/application/team"
	"khpl-backend/internal/domain"
	"khpl-backend/internal/middleware"
	"khpl-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for login, registration and /me.
type Handlers struct {
	Auth *authsvc.Service
	Team *teamsvc.Service
	Tree *hierarchy.Service
}

// LoginRequest body. Members log in by phone number.
type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// RegisterRequest body for invitation-gated registration.
type RegisterRequest struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	Address   string `json:"address"`
	AadhaarID string `json:"aadhaar_id"`
	Email     string `json:"email"`
}

// MemberResponse is the user object returned by auth endpoints.
type MemberResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	Email         *string    `json:"email"`
	Address       *string    `json:"address"`
	AadhaarID     *string    `json:"aadhaar_id"`
	SponsorID     *string    `json:"sponsor_id"`
	Slot          int        `json:"slot"`
	Level         int        `json:"level"`
	Points        int        `json:"points"`
	IsOwner       bool       `json:"is_owner"`
	ChildrenCount int        `json:"children_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Login POST /api/auth/login — verify phone+password, return bearer token.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Phone and password are required", fiber.StatusBadRequest, nil)
	}

	member, err := h.Auth.Login(c.Context(), req.Phone, req.Password)
	if err != nil {
		return response.AppError(c, err)
	}
	return h.tokenResponse(c, member)
}

// Register POST /api/auth/register — invitation-gated registration. On
// success the member lands, the token is consumed and a session is issued,
// all-or-nothing.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}

	member, err := h.Team.Register(c.Context(), teamsvc.RegisterInput{
		Token:     req.Token,
		Name:      req.Name,
		Phone:     req.Phone,
		Password:  req.Password,
		Address:   req.Address,
		AadhaarID: req.AadhaarID,
		Email:     req.Email,
	})
	if err != nil {
		return response.AppError(c, err)
	}
	log.Info().Str("member_id", member.ID.String()).Msg("registration completed")
	return h.tokenResponse(c, member)
}

// Me GET /api/auth/me — the authenticated member with live children count.
func (h *Handlers) Me(c *fiber.Ctx) error {
	member := middleware.GetMember(c)
	if member == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	resp, err := h.memberResponse(c, member)
	if err != nil {
		return response.AppError(c, err)
	}
	return c.JSON(resp)
}

func (h *Handlers) tokenResponse(c *fiber.Ctx, member *domain.Member) error {
	token, err := h.Auth.IssueToken(member.ID)
	if err != nil {
		return response.AppError(c, err)
	}
	user, err := h.memberResponse(c, member)
	if err != nil {
		return response.AppError(c, err)
	}
	return c.JSON(fiber.Map{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

func (h *Handlers) memberResponse(c *fiber.Ctx, m *domain.Member) (*MemberResponse, error) {
	n, err := h.Tree.CountChildren(c.Context(), m.ID)
	if err != nil {
		return nil, err
	}
	var sponsorID *string
	if m.SponsorID != nil {
		s := m.SponsorID.String()
		sponsorID = &s
	}
	return &MemberResponse{
		ID:            m.ID.String(),
		Name:          m.Name,
		Phone:         m.Phone,
		Email:         m.Email,
		Address:       m.Address,
		AadhaarID:     m.AadhaarID,
		SponsorID:     sponsorID,
		Slot:          m.Slot,
		Level:         m.Level,
		Points:        m.Points,
		IsOwner:       m.IsOwner,
		ChildrenCount: n,
		CreatedAt:     m.CreatedAt,
	}, nil
}
