package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"meeting-resource-backend/internal/assistant"
	"meeting-resource-backend/internal/search"
)

// Search returns the rooms matching a structured request, unranked.
func (h *Handler) Search(c *gin.Context) {
	var req search.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cands, err := h.advisor.Match(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	if cands == nil {
		cands = []search.Candidate{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": cands})
}

type parseRequest struct {
	Text string `json:"text" binding:"required"`
}

// ParseRequest turns free text into a structured search request.
func (h *Handler) ParseRequest(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	parsed, err := h.parser.Parse(c.Request.Context(), req.Text, h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, parsed)
}

type recommendRequest struct {
	Text    string          `json:"text"`
	Request *search.Request `json:"request"`
}

type recommendResponse struct {
	Parsed *assistant.Parsed `json:"parsed,omitempty"`
	*search.Result
}

// Recommend matches and ranks rooms. Free text is parsed first; otherwise
// the structured request is used as given.
func (h *Handler) Recommend(c *gin.Context) {
	var body recommendRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	now := h.now()

	var resp recommendResponse
	var req search.Request
	switch {
	case strings.TrimSpace(body.Text) != "":
		parsed, err := h.parser.Parse(ctx, body.Text, now)
		if err != nil {
			h.fail(c, err)
			return
		}
		resp.Parsed = parsed
		req = parsed.Request
	case body.Request != nil:
		req = *body.Request
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "either text or request is required"})
		return
	}

	res, err := h.advisor.Recommend(ctx, req, now)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp.Result = res
	c.JSON(http.StatusOK, resp)
}
