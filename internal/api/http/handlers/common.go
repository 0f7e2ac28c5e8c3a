package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/taskboard/internal/auth"
	"github.com/spec-kit/taskboard/internal/domain"
	apperrors "github.com/spec-kit/taskboard/pkg/util/errorutil"
)

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return principal.User, nil
}

// parseBody decodes a JSON body. Empty bodies are accepted when optional is set.
func parseBody(c *fiber.Ctx, out any, optional bool) error {
	if len(c.Body()) == 0 {
		if optional {
			return nil
		}
		return apperrors.NewValidationError("request body required", nil)
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"reason": err.Error()})
	}
	return nil
}

func pathID(c *fiber.Ctx, name string) (string, error) {
	id := c.Params(name)
	if id == "" {
		return "", apperrors.NewValidationError(name+" is required", nil)
	}
	return id, nil
}
