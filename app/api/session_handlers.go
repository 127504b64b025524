package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/lawnmap/app/catalog"
	"github.com/lysyi3m/lawnmap/app/view"
)

func (h *Handler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	width := defaultViewSize
	if req.Width != nil {
		width = *req.Width
	}

	session := h.sessions.Create(width)
	if err := applySessionRequest(session, req, false); err != nil {
		h.sessions.Delete(session.ID())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slog.Debug("Session created", "session_id", session.ID(), "width", width)
	c.JSON(http.StatusCreated, session.Snapshot())
}

func (h *Handler) GetSession(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

// UpdateSession applies the events carried by the body in a fixed order:
// resize, layout, categories, duplicates, position, search, zoom.
func (h *Handler) UpdateSession(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := applySessionRequest(session, req, true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, session.Snapshot())
}

func (h *Handler) DeleteSession(c *gin.Context) {
	if !h.sessions.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ClickListRow(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	if err := session.ClickListRow(c.Param("item")); err != nil {
		respondClickError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (h *Handler) ClickMarker(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	if err := session.ClickMarker(c.Param("item")); err != nil {
		respondClickError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (h *Handler) lookupSession(c *gin.Context) (*view.Session, bool) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return session, true
}

func respondClickError(c *gin.Context, err error) {
	if errors.Is(err, view.ErrUnknownItem) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not visible"})
		return
	}
	slog.Error("Session event failed", "session_id", c.Param("id"), "item", c.Param("item"), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Session event failed"})
}

var errBadLayout = errors.New("layout must be list, map or both")

// validateSessionRequest rejects a request before any of it is applied.
func validateSessionRequest(req sessionRequest) error {
	switch view.Mode(req.Layout) {
	case "", view.ModeList, view.ModeMap, view.ModeBoth:
	default:
		return errBadLayout
	}
	if (req.Lat == nil) != (req.Lon == nil) {
		return errBadPosition
	}
	if req.Lat != nil && !(catalog.Position{Lat: *req.Lat, Lon: *req.Lon}).Valid() {
		return errBadPosition
	}
	return nil
}

func applySessionRequest(session *view.Session, req sessionRequest, resize bool) error {
	if err := validateSessionRequest(req); err != nil {
		return err
	}

	if resize && req.Width != nil {
		session.Resize(*req.Width)
	}
	if req.Layout != "" {
		session.SetLayout(view.Mode(req.Layout))
	}
	if req.Categories != nil {
		session.SetCategories(req.Categories)
	}
	if req.Toggle != "" {
		session.ToggleCategory(req.Toggle)
	}
	if req.DuplicatesOnly != nil {
		session.SetDuplicatesOnly(*req.DuplicatesOnly)
	}
	if req.Lat != nil {
		session.SetUserPosition(*req.Lat, *req.Lon)
	}
	if req.Query != nil {
		if *req.Query == "" {
			session.ClearSearch()
		} else {
			session.SetSearch(*req.Query)
		}
	}
	if req.FlushSearch {
		session.FlushSearch()
	}
	if req.Zoom != nil {
		session.SetZoom(*req.Zoom)
	}
	return nil
}
