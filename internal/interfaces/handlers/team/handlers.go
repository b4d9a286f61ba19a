package team

import (
	statssvc "khpl-backend/internal/application/stats"
	teamsvc "khpl-backend/internal/application/team"
	"khpl-backend/internal/middleware"
	"khpl-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers holds dependencies for team read and mutation endpoints.
type Handlers struct {
	Stats *statssvc.Service
	Team  *teamsvc.Service
}

// GetStats GET /api/stats — level, direct children and total downline for
// the caller.
func (h *Handlers) GetStats(c *fiber.Ctx) error {
	actor := middleware.GetMember(c)
	if actor == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	out, err := h.Stats.StatsFor(c.Context(), actor.ID)
	if err != nil {
		return response.AppError(c, err)
	}
	return c.JSON(out)
}

// MyTeam GET /api/my-team — the caller's direct members in slot order.
func (h *Handlers) MyTeam(c *fiber.Ctx) error {
	actor := middleware.GetMember(c)
	if actor == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	members, err := h.Stats.DirectMembers(c.Context(), actor.ID)
	if err != nil {
		return response.AppError(c, err)
	}
	return c.JSON(members)
}

// TeamTree GET /api/team-tree — the caller's subtree as nested nodes,
// first-slot children before second.
func (h *Handlers) TeamTree(c *fiber.Ctx) error {
	actor := middleware.GetMember(c)
	if actor == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	tree, err := h.Stats.TeamTree(c.Context(), actor.ID)
	if err != nil {
		return response.AppError(c, err)
	}
	return c.JSON(tree)
}

// SetPoints PUT /api/user/:id/points — owner sets an absolute points value.
func (h *Handlers) SetPoints(c *fiber.Ctx) error {
	actor := middleware.GetMember(c)
	if actor == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	targetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid member id", fiber.StatusBadRequest, nil)
	}
	var body struct {
		Points *int `json:"points"`
	}
	if err := c.BodyParser(&body); err != nil || body.Points == nil {
		return response.Error(c, "Points value is required", fiber.StatusBadRequest, nil)
	}

	if err := h.Team.SetPoints(c.Context(), actor, targetID, *body.Points); err != nil {
		return response.AppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Points updated successfully", "points": *body.Points})
}

// RemoveMember DELETE /api/user/:id — owner removes a member and their
// whole downline. Reports the removed count for display.
func (h *Handlers) RemoveMember(c *fiber.Ctx) error {
	actor := middleware.GetMember(c)
	if actor == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	targetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid member id", fiber.StatusBadRequest, nil)
	}

	removed, err := h.Team.RemoveMember(c.Context(), actor, targetID)
	if err != nil {
		return response.AppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Member removed successfully", "removed": removed})
}

// Activity GET /api/activity — owner-only audit trail of team mutations.
func (h *Handlers) Activity(c *fiber.Ctx) error {
	actor := middleware.GetMember(c)
	if actor == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	events, err := h.Team.Activity(c.Context(), actor, c.QueryInt("limit"))
	if err != nil {
		return response.AppError(c, err)
	}
	return response.Success(c, "Team activity fetched successfully", events, nil)
}
