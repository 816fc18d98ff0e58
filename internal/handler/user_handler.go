package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"imagevault/internal/service"
)

// UserHandler serves the caller's own account data.
type UserHandler struct {
	authService service.AuthService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(authService service.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

// Me godoc
// @Summary Current user profile
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Profile
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /user/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	profile, err := h.authService.Profile(c.Request().Context(), bearer(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, profile)
}
