package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskhub/internal/auth"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
	"taskhub/internal/policy"
)

const defaultActivityLimit = 50

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

var errAdminCaller = apperrors.NewHTTPError(http.StatusBadRequest, "this endpoint is only available to user accounts", "VALIDATION_ERROR")

func badRequest(msg string) error {
	return apperrors.NewHTTPError(http.StatusBadRequest, msg, "VALIDATION_ERROR")
}

// bind decodes the request and runs struct validation.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return badRequest(err.Error())
	}
	return nil
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, badRequest("invalid " + name)
	}
	return id, nil
}

func principal(c echo.Context) (policy.Principal, error) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return policy.Principal{}, apperrors.ErrUnauthorized
	}
	return p, nil
}

// currentUser returns the calling user; the master admin has no user row.
func currentUser(c echo.Context) (*model.User, error) {
	if u := auth.UserFrom(c); u != nil {
		return u, nil
	}
	if auth.AdminFrom(c) != nil {
		return nil, errAdminCaller
	}
	return nil, apperrors.ErrUnauthorized
}

func limitParam(c echo.Context) int {
	n, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || n <= 0 {
		return defaultActivityLimit
	}
	return n
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, badRequest("invalid " + field + ", expected YYYY-MM-DD")
}

func optionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	return parseDate(field, *s)
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}
