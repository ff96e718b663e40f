package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"meeting-resource-backend/internal/logger"
	"meeting-resource-backend/internal/parse"
	"meeting-resource-backend/internal/search"
)

var rankSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"recommendations": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"room_id": map[string]any{"type": "integer"},
					"rank":    map[string]any{"type": "integer"},
					"reason":  map[string]any{"type": "string"},
				},
				"required":             []string{"room_id", "rank", "reason"},
				"additionalProperties": false,
			},
		},
		"note": map[string]any{"type": []string{"string", "null"}},
	},
	"required":             []string{"recommendations"},
	"additionalProperties": false,
}

var slotSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"alternatives": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start":  map[string]any{"type": "string"},
					"end":    map[string]any{"type": "string"},
					"reason": map[string]any{"type": "string"},
				},
				"required":             []string{"start", "end", "reason"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"alternatives"},
	"additionalProperties": false,
}

// Ranker implements search.Ranker and search.SlotPicker on top of a Generator.
type Ranker struct {
	gen   Generator
	loc   *time.Location
	audit auditor
}

var (
	_ search.Ranker     = (*Ranker)(nil)
	_ search.SlotPicker = (*Ranker)(nil)
)

func NewRanker(gen Generator, loc *time.Location, rec Recorder, log *logger.Logger) *Ranker {
	if loc == nil {
		loc = time.UTC
	}
	return &Ranker{gen: gen, loc: loc, audit: auditor{rec: rec, log: logger.OrNop(log)}}
}

type rankRequirements struct {
	AttendeeCount     int      `json:"attendee_count"`
	LocationKeyword   string   `json:"location_keyword"`
	RequiredEquipment []string `json:"required_equipment"`
	Start             string   `json:"start"`
	End               string   `json:"end"`
}

type rankCandidate struct {
	RoomID    int64    `json:"room_id"`
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Location  string   `json:"location"`
	Capacity  int      `json:"capacity"`
	Equipment []string `json:"equipment"`
}

type rankPayload struct {
	Recommendations []search.Pick `json:"recommendations"`
	Note            *string       `json:"note"`
}

func (r *Ranker) Rank(ctx context.Context, req search.Request, cands []search.Candidate) (*search.RankResult, error) {
	if r == nil || r.gen == nil {
		return nil, ErrNotConfigured
	}

	list := make([]rankCandidate, len(cands))
	for i, c := range cands {
		equipment := c.Equipment
		if equipment == nil {
			equipment = []string{}
		}
		list[i] = rankCandidate{
			RoomID:    c.Room.ID,
			Code:      c.Room.Code,
			Name:      c.Room.Name,
			Location:  c.Room.Location,
			Capacity:  c.Room.Capacity,
			Equipment: equipment,
		}
	}
	needs, err := json.Marshal(r.requirements(req))
	if err != nil {
		return nil, err
	}
	rooms, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}

	prompt := "You rank meeting rooms.\n" +
		"The input is the meeting's needs and rooms that already passed the schedule, capacity and equipment checks.\n" +
		"Pick the TOP 3 rooms and give a short reason for each.\n" +
		"Priorities: (1) capacity just large enough, with little waste, (2) equipment fit, (3) location keyword match if any.\n" +
		"Return only JSON that follows the schema.\n\n" +
		"Needs: " + string(needs) + "\n" +
		"Rooms: " + string(rooms)

	out, err := r.audit.generate(ctx, r.gen, KindRank, prompt, rankSchema)
	if err != nil {
		return nil, err
	}
	var payload rankPayload
	if err := parse.DecodeObject(out, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &search.RankResult{Picks: payload.Recommendations, Note: deref(payload.Note)}, nil
}

type slotOption struct {
	Start          string `json:"start"`
	End            string `json:"end"`
	AvailableRooms int    `json:"available_rooms_count"`
}

type slotPayload struct {
	Alternatives []struct {
		Start  string `json:"start"`
		End    string `json:"end"`
		Reason string `json:"reason"`
	} `json:"alternatives"`
}

// PickSlots asks for the best three options. Picks with unreadable times are
// skipped; the caller checks the rest against the offered options.
func (r *Ranker) PickSlots(ctx context.Context, req search.Request, options []search.SlotOption) ([]search.SlotPick, error) {
	if r == nil || r.gen == nil {
		return nil, ErrNotConfigured
	}

	list := make([]slotOption, len(options))
	for i, o := range options {
		list[i] = slotOption{
			Start:          parse.FormatLocal(o.Window.Start, r.loc),
			End:            parse.FormatLocal(o.Window.End, r.loc),
			AvailableRooms: len(o.FreeRooms),
		}
	}
	opts, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	needs := r.requirements(req)

	prompt := "You suggest alternative meeting times when no room is free at the requested time.\n" +
		"From the options that still have free rooms, choose the best 3.\n" +
		"Criteria: closest to the requested time, more free rooms, fits the needs.\n" +
		"Copy start and end exactly from the chosen options. Return only JSON that follows the schema.\n\n" +
		fmt.Sprintf("Requested time: %s - %s (%s)\n", needs.Start, needs.End, r.loc.String()) +
		"Options: " + string(opts)

	out, err := r.audit.generate(ctx, r.gen, KindSlots, prompt, slotSchema)
	if err != nil {
		return nil, err
	}
	var payload slotPayload
	if err := parse.DecodeObject(out, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	picks := make([]search.SlotPick, 0, len(payload.Alternatives))
	for _, a := range payload.Alternatives {
		start, err := parse.ParseLocal(a.Start, r.loc)
		if err != nil {
			continue
		}
		end, err := parse.ParseLocal(a.End, r.loc)
		if err != nil {
			continue
		}
		picks = append(picks, search.SlotPick{Start: start, End: end, Reason: a.Reason})
	}
	return picks, nil
}

func (r *Ranker) requirements(req search.Request) rankRequirements {
	out := rankRequirements{
		AttendeeCount:     req.Capacity,
		LocationKeyword:   req.Keyword,
		RequiredEquipment: req.Equipment,
	}
	if out.RequiredEquipment == nil {
		out.RequiredEquipment = []string{}
	}
	if req.Start != nil {
		out.Start = parse.FormatLocal(*req.Start, r.loc)
	}
	if req.End != nil {
		out.End = parse.FormatLocal(*req.End, r.loc)
	}
	return out
}
