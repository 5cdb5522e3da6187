package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"healthlens/internal/persona"
	"healthlens/internal/records"
	"healthlens/internal/utility"

	"github.com/labstack/echo/v4"
)

// statusClientClosedRequest is written when the caller disconnected before
// the view was ready. Nobody reads it; it keeps access logs honest.
const statusClientClosedRequest = 499

/* ====================================================================
                   		Adaptive View Handlers
==================================================================== */

func (s *Server) adaptiveViewHandler(c echo.Context) error {
	logger := utility.Logger(c)

	userID := strings.TrimSpace(c.QueryParam("user_id"))
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}
	reportID := strings.TrimSpace(c.QueryParam("report_id"))

	resp, err := s.pipeline.AdaptiveView(c.Request().Context(), userID, reportID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "User not found"})
		}
		if errors.Is(err, context.Canceled) {
			return c.NoContent(statusClientClosedRequest)
		}
		logger.Error().Err(err).Str("user_id", userID).Msg("Adaptive view failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate adaptive view"})
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) invalidateCacheHandler(c echo.Context) error {
	userID := c.Param("user_id")
	removed := s.pipeline.Invalidate(c.Request().Context(), userID)
	return c.JSON(http.StatusOK, map[string]any{
		"user_id": userID,
		"removed": removed,
	})
}

// refreshSocketHandler keeps a connection open so cache invalidations can
// push "REFRESH" to the user's clients.
func (s *Server) refreshSocketHandler(c echo.Context) error {
	userID := c.Param("user_id")

	ws, err := utility.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	s.hub.Register(userID, ws)
	defer s.hub.Unregister(userID, ws)

	// Clients never send anything; reading detects the close.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	return nil
}

/* ====================================================================
                   		Record Handlers
==================================================================== */

func (s *Server) userProfileHandler(c echo.Context) error {
	profile, err := s.source.UserProfile(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return s.recordError(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) labResultsHandler(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("user_id")

	if _, err := s.source.UserProfile(ctx, userID); err != nil {
		return s.recordError(c, err)
	}
	findings, err := s.source.LabFindings(ctx, userID, c.QueryParam("report_id"))
	if err != nil {
		return s.recordError(c, err)
	}
	return c.JSON(http.StatusOK, findings)
}

func (s *Server) abnormalResultsHandler(c echo.Context) error {
	findings, err := s.source.AbnormalFindings(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return s.recordError(c, err)
	}
	return c.JSON(http.StatusOK, findings)
}

func (s *Server) userHistoryHandler(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("user_id")

	if _, err := s.source.UserProfile(ctx, userID); err != nil {
		return s.recordError(c, err)
	}
	history, err := s.source.UserHistory(ctx, userID)
	if err != nil {
		return s.recordError(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

func (s *Server) recordError(c echo.Context, err error) error {
	if errors.Is(err, records.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "User not found"})
	}
	utility.Logger(c).Error().Err(err).Str("path", c.Path()).Msg("Record lookup failed")
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load records"})
}

/* ====================================================================
                   		Analytics Handlers
==================================================================== */

func (s *Server) systemAnalyticsHandler(c echo.Context) error {
	hours, err := positiveQueryInt(c, "hours", 24)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, s.audit.SystemMetrics(time.Duration(hours)*time.Hour))
}

func (s *Server) personaAnalyticsHandler(c echo.Context) error {
	days, err := positiveQueryInt(c, "days", 30)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, s.behavior.PersonaAnalytics(time.Duration(days)*24*time.Hour))
}

// ContentEngagementRequest is the body of POST /analytics/engagement.
type ContentEngagementRequest struct {
	UserID      string `json:"user_id"`
	ContentType string `json:"content_type"`
	Persona     string `json:"persona"`
	EngagedMS   int64  `json:"engaged_ms"`
}

// contentEngagementHandler records how long a client spent on a piece of
// rendered content.
func (s *Server) contentEngagementHandler(c echo.Context) error {
	var req ContentEngagementRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if strings.TrimSpace(req.UserID) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}
	id, err := persona.Parse(req.Persona)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.EngagedMS < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "engaged_ms must not be negative"})
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = "adaptive_view"
	}

	s.behavior.TrackContentEngagement(req.UserID, contentType, id, time.Duration(req.EngagedMS)*time.Millisecond)
	return c.JSON(http.StatusOK, map[string]string{"status": "recorded"})
}

func positiveQueryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return v, nil
}
