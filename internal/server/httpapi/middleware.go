package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/linkvault/internal/server/auth"
	"github.com/labstack/echo/v4"
)

const ownerKey = "owner_id"

// observe records request duration and response size per route.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		res := c.Response()
		d := time.Since(start)
		s.metrics.ObserveRequest(c.Request().Method, route, strconv.Itoa(res.Status), d, res.Size)
		s.logger.Debug(c.Request().Context(), "http request",
			"method", c.Request().Method, "route", route, "status", res.Status, "bytes", res.Size, "duration", d)
		return nil
	}
}

// requireBearer rejects requests without a valid access token and records
// the caller as the owner.
func (s *Server) requireBearer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authorization required"})
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization header"})
		}
		userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}

		c.Set(ownerKey, userID)
		return next(c)
	}
}

func owner(c echo.Context) string {
	id, _ := c.Get(ownerKey).(string)
	return id
}
