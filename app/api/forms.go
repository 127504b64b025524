package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lysyi3m/lawnmap/app/database"
)

const maxFormBody = 1 << 20

// CreateLead stores whatever JSON the client sends. The response is ok even
// when the lead could not be stored.
func (h *Handler) CreateLead(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFormBody)
	body, err := c.GetRawData()
	if err != nil {
		slog.Warn("Lead body could not be read", "error", err)
	}

	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil {
		slog.Warn("Lead body is not a JSON object, storing empty payload", "error", err)
		fields = map[string]any{}
		body = []byte("{}")
	}

	lead := database.Lead{
		ID:        uuid.NewString(),
		Name:      formString(fields["name"]),
		Email:     formString(fields["email"]),
		Phone:     formString(fields["phone"]),
		Message:   formString(fields["message"]),
		PlaceID:   formString(fields["place_id"]),
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.leads.CreateLead(c.Request.Context(), lead); err != nil {
		slog.Error("Lead not persisted", "error", err, "payload", string(body))
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) CreateProposal(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFormBody)

	var req proposalRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Invalid proposal body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid_body"})
		return
	}

	title := formString(req.Title)
	website := formString(req.Website)
	if title == "" || website == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing_fields"})
		return
	}

	proposal := database.Proposal{
		ID:          strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + uuid.NewString()[:8],
		Title:       title,
		Website:     website,
		PriceFrom:   parsePrice(req.PriceFrom),
		Categories:  splitList(formString(req.Categories)),
		Description: formString(req.Description),
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.proposals.CreateProposal(c.Request.Context(), proposal); err != nil {
		slog.Error("Proposal not persisted", "title", title, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "persist_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "id": proposal.ID})
}

// formString renders a JSON value the way a form field would be read.
func formString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := formString(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// parsePrice reads the leading integer of the value ("1990 kr" is 1990).
func parsePrice(v any) *int {
	s := formString(v)
	if s == "" {
		return nil
	}

	end := 0
	if end < len(s) && (s[0] == '-' || s[0] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return nil
	}
	return &n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
