package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"imagevault/internal/errors"
)

// MessageResponse carries a human readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// toHTTPError maps a service error to an echo error. The cause is
// kept as Internal so the error handler can log it.
func toHTTPError(err error) *echo.HTTPError {
	mapped := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(mapped.StatusCode, mapped.ToErrorResponse()).SetInternal(err)
}

func badRequest(message, code string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}
	if err := c.Validate(req); err != nil {
		return badRequest(err.Error(), "VALIDATION_ERROR")
	}
	return nil
}

func bearer(c echo.Context) string {
	return c.Request().Header.Get(echo.HeaderAuthorization)
}

// origin is scheme://host of the current request.
func origin(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host
}
