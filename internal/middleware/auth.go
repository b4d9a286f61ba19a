package middleware

import (
	"strings"

	"khpl-backend/internal/application/auth"
	"khpl-backend/internal/application/hierarchy"
	"khpl-backend/internal/domain"
	"khpl-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const memberLocal = "member"

// BearerAuth parses the Authorization bearer token and loads the member it
// identifies into Locals. 401 on absent, malformed or stale tokens.
func BearerAuth(authSvc *auth.Service, tree *hierarchy.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return response.Unauthorized(c, "Invalid authentication credentials")
		}
		id, err := authSvc.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return response.Unauthorized(c, "Invalid authentication credentials")
		}
		member, err := tree.GetMember(c.Context(), id)
		if err != nil {
			// Token subject may have been removed from the tree since issuance.
			return response.Unauthorized(c, "User not found")
		}
		c.Locals(memberLocal, member)
		return c.Next()
	}
}

// RequireOwner rejects requests from non-owner members. Must run after
// BearerAuth.
func RequireOwner() fiber.Handler {
	return func(c *fiber.Ctx) error {
		member := GetMember(c)
		if member == nil {
			return response.Unauthorized(c, "Invalid authentication credentials")
		}
		if !member.IsOwner {
			return response.Error(c, "Only the owner can perform this action", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}

// GetMember returns the authenticated member from Locals (nil if absent).
func GetMember(c *fiber.Ctx) *domain.Member {
	m, _ := c.Locals(memberLocal).(*domain.Member)
	return m
}
