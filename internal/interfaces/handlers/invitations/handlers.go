package invitations

import (
	invsvc "khpl-backend/internal/application/invitations"
	teamsvc "khpl-backend/internal/application/team"
	"khpl-backend/internal/middleware"
	"khpl-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers holds dependencies for invitation endpoints.
type Handlers struct {
	Invitations   *invsvc.Service
	Team          *teamsvc.Service
	InviteBaseURL string
}

// CreateInvite POST /api/invite — issue a single-use token for the caller's
// next free slot. The returned link is meant for out-of-band sharing.
func (h *Handlers) CreateInvite(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil || body.Name == "" {
		return response.Error(c, "Name is required", fiber.StatusBadRequest, nil)
	}

	actor := middleware.GetMember(c)
	if actor == nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	inv, err := h.Team.CreateInvite(c.Context(), actor, body.Name)
	if err != nil {
		return response.AppError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":          "Invitation created successfully",
		"invitation_token": inv.Token,
		"invite_link":      h.InviteBaseURL + "/register?token=" + inv.Token,
		"member_name":      body.Name,
		"expires_at":       inv.ExpiresAt,
	})
}

// LookupToken GET /api/invitation/:token — preview invitation details
// before registration. Public: the invitee is not authenticated yet.
func (h *Handlers) LookupToken(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return response.Error(c, "Invitation token is required", fiber.StatusBadRequest, nil)
	}

	inv, sponsor, err := h.Invitations.Lookup(c.Context(), token)
	if err != nil {
		return response.AppError(c, err)
	}
	return c.JSON(fiber.Map{
		"invitee_name":    inv.InviteeName,
		"invited_by_name": sponsor.Name,
		"expires_at":      inv.ExpiresAt,
		"valid":           true,
	})
}

// ListMine GET /api/invites — the caller's invitation history.
func (h *Handlers) ListMine(c *fiber.Ctx) error {
	actor := middleware.GetMember(c)
	if actor == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	invs, err := h.Invitations.ListForSponsor(c.Context(), actor.ID)
	if err != nil {
		return response.AppError(c, err)
	}
	return response.Success(c, "Invitations fetched successfully", invs, nil)
}
