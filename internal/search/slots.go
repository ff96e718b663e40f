package search

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"meeting-resource-backend/internal/schedule"
)

const (
	maxSlotCandidates = 12
	maxAlternatives   = 3
	busyLookupWorkers = 4
)

var slotOffsets = []time.Duration{
	-120 * time.Minute, -90 * time.Minute, -60 * time.Minute, -30 * time.Minute,
	30 * time.Minute, 60 * time.Minute, 90 * time.Minute, 120 * time.Minute,
	24 * time.Hour,
}

// SlotOption is a shifted window with at least one free room.
type SlotOption struct {
	Window    schedule.Window `json:"window"`
	FreeRooms []int64         `json:"freeRooms"`
}

// SlotPick is a SlotPicker's choice. Start and End must match an offered option.
type SlotPick struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

// Alternative is a proposed slot.
type Alternative struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	FreeRooms int       `json:"freeRooms"`
	Reason    string    `json:"reason"`
}

// CandidateSlots shifts w by the fixed offsets, keeping its length. Slots
// starting before now are dropped.
func CandidateSlots(w schedule.Window, now time.Time) []schedule.Window {
	seen := make(map[int64]bool, len(slotOffsets))
	out := make([]schedule.Window, 0, len(slotOffsets))
	for _, off := range slotOffsets {
		s := w.Shift(off)
		key := s.Start.UnixNano()
		if seen[key] {
			continue
		}
		seen[key] = true
		if s.Start.Before(now) {
			continue
		}
		out = append(out, s)
		if len(out) == maxSlotCandidates {
			break
		}
	}
	return out
}

// Alternatives proposes up to three shifted windows in which at least one
// room matching the request is free. It returns nothing when the request has
// no window.
func (a *Advisor) Alternatives(ctx context.Context, req Request, now time.Time) ([]Alternative, error) {
	w, ok, err := req.Window()
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Alternative{}, nil
	}

	slots := CandidateSlots(w, now)
	base, err := a.matcher.base(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 || len(base) == 0 {
		return []Alternative{}, nil
	}

	free := make([][]int64, len(slots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(busyLookupWorkers)
	for i, slot := range slots {
		g.Go(func() error {
			busy, err := a.src.BusyRoomIDs(gctx, slot)
			if err != nil {
				return err
			}
			for _, c := range base {
				if !busy[c.Room.ID] {
					free[i] = append(free[i], c.Room.ID)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	options := make([]SlotOption, 0, len(slots))
	for i, slot := range slots {
		if len(free[i]) > 0 {
			options = append(options, SlotOption{Window: slot, FreeRooms: free[i]})
		}
	}
	if len(options) == 0 {
		return []Alternative{}, nil
	}
	if len(options) > maxAlternatives {
		if picked := a.pickedSlots(ctx, req, options); len(picked) > 0 {
			return picked, nil
		}
	}
	return NearestSlots(w.Start, options, maxAlternatives), nil
}

// pickedSlots asks the SlotPicker and keeps the picks that match an option.
func (a *Advisor) pickedSlots(ctx context.Context, req Request, options []SlotOption) []Alternative {
	if a.slots == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	picks, err := a.slots.PickSlots(cctx, req, options)
	if err != nil {
		a.log.Warn("slot collaborator failed, using nearest slots", "error", err)
		return nil
	}

	out := make([]Alternative, 0, maxAlternatives)
	used := make(map[int]bool)
	for _, p := range picks {
		idx := findOption(options, p)
		if idx < 0 || used[idx] {
			continue
		}
		used[idx] = true
		o := options[idx]
		out = append(out, Alternative{
			Start:     o.Window.Start,
			End:       o.Window.End,
			FreeRooms: len(o.FreeRooms),
			Reason:    truncate(p.Reason, maxReasonRunes),
		})
		if len(out) == maxAlternatives {
			break
		}
	}
	return out
}

func findOption(options []SlotOption, p SlotPick) int {
	for i, o := range options {
		if o.Window.Start.Equal(p.Start) && o.Window.End.Equal(p.End) {
			return i
		}
	}
	return -1
}

// NearestSlots returns up to n options closest to origin, nearest first.
// Equal distances go to the earlier start.
func NearestSlots(origin time.Time, options []SlotOption, n int) []Alternative {
	sorted := make([]SlotOption, len(options))
	copy(sorted, options)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := absDuration(sorted[i].Window.Start.Sub(origin)), absDuration(sorted[j].Window.Start.Sub(origin))
		if di != dj {
			return di < dj
		}
		return sorted[i].Window.Start.Before(sorted[j].Window.Start)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]Alternative, len(sorted))
	for i, o := range sorted {
		out[i] = Alternative{
			Start:     o.Window.Start,
			End:       o.Window.End,
			FreeRooms: len(o.FreeRooms),
			Reason:    FallbackSlotReason,
		}
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
