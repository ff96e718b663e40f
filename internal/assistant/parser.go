package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"meeting-resource-backend/internal/logger"
	"meeting-resource-backend/internal/parse"
	"meeting-resource-backend/internal/schedule"
	"meeting-resource-backend/internal/search"
)

// Parsed is a structured meeting request read from free text.
type Parsed struct {
	Title   string         `json:"title,omitempty"`
	Note    string         `json:"note,omitempty"`
	Tags    []string       `json:"tags"`
	Request search.Request `json:"request"`
}

type parsedPayload struct {
	Title           *string  `json:"title"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	AttendeeCount   *int     `json:"attendee_count"`
	EquipmentTags   []string `json:"equipment_tags"`
	LocationKeyword *string  `json:"location_keyword"`
	Note            *string  `json:"note"`
}

var parseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":            map[string]any{"type": []string{"string", "null"}, "description": "Meeting title, if given."},
		"start":            map[string]any{"type": "string", "description": "Start time, YYYY-MM-DD HH:MM:SS."},
		"end":              map[string]any{"type": "string", "description": "End time, YYYY-MM-DD HH:MM:SS."},
		"attendee_count":   map[string]any{"type": []string{"integer", "null"}, "description": "Expected number of attendees."},
		"equipment_tags":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Equipment tags from the allowed list."},
		"location_keyword": map[string]any{"type": []string{"string", "null"}, "description": "Location keyword, if the user mentions one."},
		"note":             map[string]any{"type": []string{"string", "null"}, "description": "Any other remark."},
	},
	"required":             []string{"start", "end", "equipment_tags"},
	"additionalProperties": false,
}

// Parser turns a sentence like "tomorrow 9-10am, 8 people, need TV and zoom"
// into a search request.
type Parser struct {
	gen   Generator
	loc   *time.Location
	audit auditor
}

// NewParser builds a parser. A nil gen yields a parser that always returns
// ErrNotConfigured.
func NewParser(gen Generator, loc *time.Location, rec Recorder, log *logger.Logger) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{gen: gen, loc: loc, audit: auditor{rec: rec, log: logger.OrNop(log)}}
}

// Parse asks the model for the structured fields. Times come back as local
// wall-clock values and are converted to UTC here.
func (p *Parser) Parse(ctx context.Context, text string, now time.Time) (*Parsed, error) {
	if p == nil || p.gen == nil {
		return nil, ErrNotConfigured
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, schedule.Invalid(schedule.ConstraintField, "request text is required")
	}

	out, err := p.audit.generate(ctx, p.gen, KindParse, p.prompt(text, now), parseSchema)
	if err != nil {
		return nil, err
	}

	var payload parsedPayload
	if err := parse.DecodeObject(out, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v; text=%s", ErrMalformedResponse, err, logger.Excerpt(out, 200))
	}

	start, err := parse.ParseLocal(payload.Start, p.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrMalformedResponse, err)
	}
	end, err := parse.ParseLocal(payload.End, p.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: end: %v", ErrMalformedResponse, err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end %s is not after start %s", ErrMalformedResponse, payload.End, payload.Start)
	}

	res := &Parsed{
		Title: deref(payload.Title),
		Note:  deref(payload.Note),
		Tags:  payload.EquipmentTags,
		Request: search.Request{
			Start:     &start,
			End:       &end,
			Keyword:   strings.TrimSpace(deref(payload.LocationKeyword)),
			Equipment: parse.EquipmentCodes(payload.EquipmentTags),
		},
	}
	if res.Tags == nil {
		res.Tags = []string{}
	}
	if payload.AttendeeCount != nil && *payload.AttendeeCount > 0 {
		res.Request.Capacity = *payload.AttendeeCount
	}
	return res, nil
}

func (p *Parser) prompt(text string, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("You extract meeting room booking details from a user's request, which is usually written in Vietnamese.\n")
	sb.WriteString("Return JSON that follows the provided schema.\n\n")
	sb.WriteString("Time rules:\n")
	fmt.Fprintf(&sb, "- Current timezone: %s\n", p.loc.String())
	fmt.Fprintf(&sb, "- Current local time (to resolve 'today', 'tomorrow', weekdays): %s\n", parse.FormatLocal(now, p.loc))
	sb.WriteString("- Resolve relative expressions such as 'hôm nay', 'mai', 'chiều', 'sáng', 'thứ 2..CN', 'thứ 6 tuần này' to concrete dates.\n")
	sb.WriteString("- Return start/end as YYYY-MM-DD HH:MM:SS (24h) without a timezone.\n\n")
	sb.WriteString("Equipment rules:\n")
	fmt.Fprintf(&sb, "- Only use these tags in equipment_tags: %s\n", strings.Join(parse.AllowedTags, ", "))
	sb.WriteString("- When the user mentions zoom, meet, teams or an online meeting, use the tag video_conference.\n\n")
	sb.WriteString("User request:\n")
	sb.WriteString(text)
	sb.WriteString("\n")
	return sb.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
