// Package search finds rooms for a meeting request, ranks them and proposes
// nearby time slots when nothing is free.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/schedule"
	"meeting-resource-backend/internal/store"
)

// Request describes what a meeting needs. All fields are optional. The time
// window only applies when both Start and End are set.
type Request struct {
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	Capacity  int        `json:"capacity"`
	Keyword   string     `json:"keyword"`
	Equipment []string   `json:"equipment"`
}

// Window returns the requested window, if any.
func (r Request) Window() (schedule.Window, bool, error) {
	if r.Start == nil || r.End == nil {
		return schedule.Window{}, false, nil
	}
	w, err := schedule.NewWindow(*r.Start, *r.End)
	if err != nil {
		return schedule.Window{}, false, err
	}
	return w, true, nil
}

func (r Request) Validate() error {
	if r.Capacity < 0 {
		return schedule.Invalid(schedule.ConstraintField, "capacity must not be negative")
	}
	_, _, err := r.Window()
	return err
}

// Candidate is a room that passed every filter.
type Candidate struct {
	Room       model.Room `json:"room"`
	Equipment  []string   `json:"equipment"`
	KeywordHit bool       `json:"keywordHit"`
}

// Source is the read side of the store used by search.
type Source interface {
	ListRooms(ctx context.Context, f store.RoomFilter) ([]model.Room, error)
	RoomEquipmentTypes(ctx context.Context, roomIDs []int64) (map[int64][]string, error)
	BusyRoomIDs(ctx context.Context, w schedule.Window) (map[int64]bool, error)
	EquipmentTypesByCodes(ctx context.Context, codes []string) ([]model.EquipmentType, error)
}

type Matcher struct {
	src Source
}

func NewMatcher(src Source) *Matcher {
	return &Matcher{src: src}
}

// Match returns the active, available rooms that satisfy the request. Rooms
// with an active booking or room downtime in the window are left out.
func (m *Matcher) Match(ctx context.Context, req Request) ([]Candidate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	w, hasWindow, _ := req.Window()

	base, err := m.base(ctx, req)
	if err != nil {
		return nil, err
	}
	if !hasWindow || len(base) == 0 {
		return base, nil
	}

	busy, err := m.src.BusyRoomIDs(ctx, w)
	if err != nil {
		return nil, err
	}
	return freeIn(base, busy), nil
}

// base applies every filter except the time window.
func (m *Matcher) base(ctx context.Context, req Request) ([]Candidate, error) {
	rooms, err := m.src.ListRooms(ctx, store.RoomFilter{
		ActiveOnly:  true,
		State:       model.RoomAvailable,
		MinCapacity: req.Capacity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load rooms: %w", err)
	}

	kw := strings.ToLower(strings.TrimSpace(req.Keyword))
	filtered := rooms[:0]
	for _, r := range rooms {
		if kw == "" || keywordHit(r, kw) {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return []Candidate{}, nil
	}

	ids := make([]int64, len(filtered))
	for i, r := range filtered {
		ids[i] = r.ID
	}
	types, err := m.src.RoomEquipmentTypes(ctx, ids)
	if err != nil {
		return nil, err
	}

	required, err := m.known(ctx, normalizeCodes(req.Equipment))
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(filtered))
	for _, r := range filtered {
		if !hasAll(types[r.ID], required) {
			continue
		}
		out = append(out, Candidate{
			Room:       r,
			Equipment:  types[r.ID],
			KeywordHit: kw != "" && keywordHit(r, kw),
		})
	}
	return out, nil
}

// known keeps the codes that exist in the equipment catalog. A need nobody
// has ever catalogued cannot be met by any room, so it does not filter.
func (m *Matcher) known(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	types, err := m.src.EquipmentTypesByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve equipment codes: %w", err)
	}
	have := make(map[string]bool, len(types))
	for _, t := range types {
		have[strings.ToUpper(t.Code)] = true
	}
	out := codes[:0]
	for _, c := range codes {
		if have[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

// keywordHit matches kw, already lower-cased, against location or name.
func keywordHit(r model.Room, kw string) bool {
	return strings.Contains(strings.ToLower(r.Location), kw) || strings.Contains(strings.ToLower(r.Name), kw)
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func hasAll(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]bool, len(have))
	for _, c := range have {
		set[c] = true
	}
	for _, c := range want {
		if !set[c] {
			return false
		}
	}
	return true
}

func freeIn(cands []Candidate, busy map[int64]bool) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if !busy[c.Room.ID] {
			out = append(out, c)
		}
	}
	return out
}
