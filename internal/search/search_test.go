package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/schedule"
	"meeting-resource-backend/internal/store"
)

// fakeSource serves rooms from memory. A room is busy in w when one of its
// windows overlaps w.
type fakeSource struct {
	rooms     []model.Room
	equipment map[int64][]string
	catalog   []string
	busy      map[int64][]schedule.Window

	mu        sync.Mutex
	busyCalls int
}

func (f *fakeSource) ListRooms(_ context.Context, flt store.RoomFilter) ([]model.Room, error) {
	var out []model.Room
	for _, r := range f.rooms {
		if flt.ActiveOnly && !r.Active {
			continue
		}
		if flt.State != "" && r.State != flt.State {
			continue
		}
		if flt.MinCapacity > 0 && r.Capacity < flt.MinCapacity {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeSource) RoomEquipmentTypes(_ context.Context, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string)
	for _, id := range ids {
		if codes, ok := f.equipment[id]; ok {
			out[id] = codes
		}
	}
	return out, nil
}

// EquipmentTypesByCodes knows the codes in catalog plus every code a room has.
func (f *fakeSource) EquipmentTypesByCodes(_ context.Context, codes []string) ([]model.EquipmentType, error) {
	known := make(map[string]bool)
	for _, c := range f.catalog {
		known[c] = true
	}
	for _, cs := range f.equipment {
		for _, c := range cs {
			known[c] = true
		}
	}
	var out []model.EquipmentType
	for _, c := range codes {
		if known[c] {
			out = append(out, model.EquipmentType{Code: c, Name: c})
		}
	}
	return out, nil
}

func (f *fakeSource) BusyRoomIDs(_ context.Context, w schedule.Window) (map[int64]bool, error) {
	f.mu.Lock()
	f.busyCalls++
	f.mu.Unlock()
	out := make(map[int64]bool)
	for id, windows := range f.busy {
		for _, b := range windows {
			if b.Overlaps(w) {
				out[id] = true
			}
		}
	}
	return out, nil
}

type mockRanker struct {
	RankFunc      func(ctx context.Context, req Request, cands []Candidate) (*RankResult, error)
	PickSlotsFunc func(ctx context.Context, req Request, options []SlotOption) ([]SlotPick, error)
}

func (m *mockRanker) Rank(ctx context.Context, req Request, cands []Candidate) (*RankResult, error) {
	return m.RankFunc(ctx, req, cands)
}

func (m *mockRanker) PickSlots(ctx context.Context, req Request, options []SlotOption) ([]SlotPick, error) {
	return m.PickSlotsFunc(ctx, req, options)
}

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2026-03-02 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func window(from, to string) schedule.Window {
	return schedule.Window{Start: at(from), End: at(to)}
}

func room(id int64, name, location string, capacity int) model.Room {
	return model.Room{ID: id, Code: name, Name: name, Location: location, Capacity: capacity, State: model.RoomAvailable, Active: true}
}

func ids(cands []Candidate) []int64 {
	out := make([]int64, len(cands))
	for i, c := range cands {
		out[i] = c.Room.ID
	}
	return out
}

func TestMatch_Capacity(t *testing.T) {
	src := &fakeSource{rooms: []model.Room{room(1, "R1", "Floor 2", 10)}}
	m := NewMatcher(src)

	got, err := m.Match(context.Background(), Request{Capacity: 8})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))

	got, err = m.Match(context.Background(), Request{Capacity: 12})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatch_Equipment(t *testing.T) {
	src := &fakeSource{
		rooms: []model.Room{room(1, "X", "", 6), room(2, "Y", "", 6)},
		equipment: map[int64][]string{
			1: {"CAM", "MIC", "TV"},
			2: {"TV"},
		},
	}
	m := NewMatcher(src)

	got, err := m.Match(context.Background(), Request{Equipment: []string{"tv", "MIC"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))
	assert.Equal(t, []string{"CAM", "MIC", "TV"}, got[0].Equipment)

	unfiltered, err := m.Match(context.Background(), Request{})
	require.NoError(t, err)
	empty, err := m.Match(context.Background(), Request{Equipment: []string{}})
	require.NoError(t, err)
	assert.Equal(t, ids(unfiltered), ids(empty))
	assert.Equal(t, []int64{1, 2}, ids(empty))
}

func TestMatch_UncataloguedEquipmentIsIgnored(t *testing.T) {
	src := &fakeSource{
		rooms:     []model.Room{room(1, "X", "", 6), room(2, "Y", "", 6)},
		equipment: map[int64][]string{1: {"TV"}},
		catalog:   []string{"CAM"},
	}
	m := NewMatcher(src)
	ctx := context.Background()

	got, err := m.Match(ctx, Request{Equipment: []string{"PRJ"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(got))

	got, err = m.Match(ctx, Request{Equipment: []string{"prj", "tv"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got), "known codes still filter")

	got, err = m.Match(ctx, Request{Equipment: []string{"CAM"}})
	require.NoError(t, err)
	assert.Empty(t, got, "a catalogued code no room carries still filters")
}

func TestMatch_KeywordStateAndWindow(t *testing.T) {
	archived := room(3, "Lotus Annex", "Block B", 10)
	archived.Active = false
	closed := room(4, "Lotus Hall", "Block B", 10)
	closed.State = model.RoomMaintenance

	src := &fakeSource{
		rooms: []model.Room{
			room(1, "Lotus", "Block A", 10),
			room(2, "Orchid", "Tầng Sen", 10),
			archived,
			closed,
			room(5, "Cedar", "Block C", 10),
		},
		busy: map[int64][]schedule.Window{1: {window("09:00", "10:00")}},
	}
	m := NewMatcher(src)
	ctx := context.Background()

	got, err := m.Match(ctx, Request{Keyword: "LOTUS"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))
	assert.True(t, got[0].KeywordHit)

	got, err = m.Match(ctx, Request{Keyword: "tầng sen"})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(got), "keyword matches location too")

	start, end := at("09:30"), at("10:30")
	got, err = m.Match(ctx, Request{Start: &start, End: &end})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5}, ids(got))

	start, end = at("10:00"), at("11:00")
	got, err = m.Match(ctx, Request{Start: &start, End: &end})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 5}, ids(got), "touching windows do not overlap")

	onlyStart := at("09:30")
	got, err = m.Match(ctx, Request{Start: &onlyStart})
	require.NoError(t, err)
	assert.Len(t, got, 3, "half a window is ignored")

	start, end = at("10:00"), at("10:00")
	_, err = m.Match(ctx, Request{Start: &start, End: &end})
	assert.ErrorIs(t, err, schedule.ErrValidation)
}

func TestRank_Fallback(t *testing.T) {
	cands := []Candidate{
		{Room: room(1, "Big", "", 30)},
		{Room: room(2, "Snug", "", 8)},
		{Room: room(3, "Mid", "", 12)},
		{Room: room(4, "Also snug", "", 8)},
	}
	a := NewAdvisor(&fakeSource{}, Options{})

	res := a.Rank(context.Background(), Request{Capacity: 8}, cands)
	assert.Equal(t, RankedByFallback, res.RankedBy)
	require.Len(t, res.Rooms, 4)

	got := make([]int64, 0, 4)
	for _, r := range res.Rooms {
		got = append(got, r.Room.ID)
	}
	assert.Equal(t, []int64{2, 4, 3, 1}, got, "ties keep match order")
	assert.Equal(t, 1, res.Rooms[0].Rank)
	assert.Equal(t, FallbackRankReason, res.Rooms[0].Reason)
	assert.Equal(t, 3, res.Rooms[2].Rank)
	assert.Zero(t, res.Rooms[3].Rank)
	assert.Empty(t, res.Rooms[3].Reason)
}

func TestFallbackRank_KeywordHitDominates(t *testing.T) {
	cands := []Candidate{
		{Room: room(1, "Exact", "", 8)},
		{Room: room(2, "Hit", "", 40), KeywordHit: true},
	}
	picks := FallbackRank(Request{Capacity: 8}, cands)
	require.Len(t, picks, 2)
	assert.Equal(t, int64(2), picks[0].RoomID)
}

func TestRank_Assistant(t *testing.T) {
	cands := []Candidate{
		{Room: room(1, "A", "", 8)},
		{Room: room(2, "B", "", 8)},
		{Room: room(3, "C", "", 8)},
	}
	ranker := &mockRanker{
		RankFunc: func(ctx context.Context, req Request, got []Candidate) (*RankResult, error) {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return &RankResult{
				Note: "B has the best view",
				Picks: []Pick{
					{RoomID: 99, Rank: 1, Reason: "invented"},
					{RoomID: 2, Rank: 1, Reason: strings.Repeat("é", 250)},
					{RoomID: 3, Rank: 2, Reason: "fine"},
				},
			}, nil
		},
	}
	a := NewAdvisor(&fakeSource{}, Options{Ranker: ranker})

	res := a.Rank(context.Background(), Request{}, cands)
	assert.Equal(t, RankedByAssistant, res.RankedBy)
	assert.Equal(t, "B has the best view", res.Note)
	require.Len(t, res.Rooms, 3)
	assert.Equal(t, int64(2), res.Rooms[0].Room.ID)
	assert.Equal(t, 1, res.Rooms[0].Rank)
	assert.Equal(t, 200, len([]rune(res.Rooms[0].Reason)))
	assert.Equal(t, int64(3), res.Rooms[1].Room.ID)
	assert.Equal(t, 2, res.Rooms[1].Rank)
	assert.Zero(t, res.Rooms[2].Rank)
}

func TestRank_AssistantFailureFallsBack(t *testing.T) {
	cands := []Candidate{{Room: room(1, "A", "", 8)}}

	for name, fn := range map[string]func(context.Context, Request, []Candidate) (*RankResult, error){
		"error":         func(context.Context, Request, []Candidate) (*RankResult, error) { return nil, errors.New("http 503") },
		"unknown rooms": func(context.Context, Request, []Candidate) (*RankResult, error) { return &RankResult{Picks: []Pick{{RoomID: 7}}}, nil },
		"empty":         func(context.Context, Request, []Candidate) (*RankResult, error) { return &RankResult{}, nil },
	} {
		t.Run(name, func(t *testing.T) {
			a := NewAdvisor(&fakeSource{}, Options{Ranker: &mockRanker{RankFunc: fn}})
			res := a.Rank(context.Background(), Request{}, cands)
			assert.Equal(t, RankedByFallback, res.RankedBy)
			assert.Equal(t, FallbackRankReason, res.Rooms[0].Reason)
		})
	}
}

func TestRank_OnlyFirst25Shown(t *testing.T) {
	cands := make([]Candidate, 30)
	for i := range cands {
		cands[i] = Candidate{Room: room(int64(i+1), "R", "", 8)}
	}
	ranker := &mockRanker{
		RankFunc: func(_ context.Context, _ Request, got []Candidate) (*RankResult, error) {
			assert.Len(t, got, 25)
			return &RankResult{Picks: []Pick{{RoomID: 30, Rank: 1, Reason: "not shown"}}}, nil
		},
	}
	a := NewAdvisor(&fakeSource{}, Options{Ranker: ranker})
	res := a.Rank(context.Background(), Request{}, cands)
	assert.Equal(t, RankedByFallback, res.RankedBy)
}

func TestCandidateSlots(t *testing.T) {
	w := window("14:00", "15:00")

	slots := CandidateSlots(w, at("08:00"))
	require.Len(t, slots, 9)
	assert.Equal(t, at("12:00"), slots[0].Start)
	assert.Equal(t, at("13:00"), slots[0].End)
	assert.Equal(t, w.Start.Add(24*time.Hour), slots[8].Start)

	slots = CandidateSlots(w, at("13:15"))
	require.Len(t, slots, 6)
	assert.Equal(t, at("13:30"), slots[0].Start)
	for _, s := range slots {
		assert.Equal(t, time.Hour, s.Duration())
	}
}

// One room, busy 13:00-15:30; the request asks for 14:00-15:00.
func alternativesFixture() *fakeSource {
	return &fakeSource{
		rooms: []model.Room{room(1, "R1", "", 10)},
		busy:  map[int64][]schedule.Window{1: {window("13:00", "15:30")}},
	}
}

func TestRecommend_AlternativesNearest(t *testing.T) {
	src := alternativesFixture()
	a := NewAdvisor(src, Options{})
	start, end := at("14:00"), at("15:00")

	res, err := a.Recommend(context.Background(), Request{Start: &start, End: &end}, at("08:00"))
	require.NoError(t, err)
	assert.Empty(t, res.Rooms)
	require.Len(t, res.Alternatives, 3)

	assert.Equal(t, at("15:30"), res.Alternatives[0].Start)
	assert.Equal(t, at("12:00"), res.Alternatives[1].Start, "equal distance goes to the earlier start")
	assert.Equal(t, at("16:00"), res.Alternatives[2].Start)
	for _, alt := range res.Alternatives {
		assert.Equal(t, 1, alt.FreeRooms)
		assert.Equal(t, FallbackSlotReason, alt.Reason)
		assert.Equal(t, time.Hour, alt.End.Sub(alt.Start))
	}
	assert.Equal(t, 1+9, src.busyCalls, "one lookup for the match plus one per slot")
}

func TestRecommend_AlternativesPicked(t *testing.T) {
	src := alternativesFixture()
	picker := &mockRanker{
		PickSlotsFunc: func(_ context.Context, _ Request, options []SlotOption) ([]SlotPick, error) {
			assert.Len(t, options, 4)
			return []SlotPick{
				{Start: at("09:00"), End: at("10:00"), Reason: "not offered"},
				{Start: at("16:00").Add(22 * time.Hour), End: at("17:00").Add(22 * time.Hour), Reason: "tomorrow"},
				{Start: at("16:00"), End: at("17:00"), Reason: "later today"},
			}, nil
		},
	}
	a := NewAdvisor(src, Options{SlotPicker: picker})
	start, end := at("14:00"), at("15:00")

	res, err := a.Recommend(context.Background(), Request{Start: &start, End: &end}, at("08:00"))
	require.NoError(t, err)
	require.Len(t, res.Alternatives, 2)
	assert.Equal(t, at("14:00").Add(24*time.Hour), res.Alternatives[0].Start)
	assert.Equal(t, "tomorrow", res.Alternatives[0].Reason)
	assert.Equal(t, at("16:00"), res.Alternatives[1].Start)
}

func TestRecommend_AlternativesPickerFailure(t *testing.T) {
	picker := &mockRanker{
		PickSlotsFunc: func(context.Context, Request, []SlotOption) ([]SlotPick, error) {
			return nil, context.DeadlineExceeded
		},
	}
	a := NewAdvisor(alternativesFixture(), Options{SlotPicker: picker})
	start, end := at("14:00"), at("15:00")

	res, err := a.Recommend(context.Background(), Request{Start: &start, End: &end}, at("08:00"))
	require.NoError(t, err)
	require.Len(t, res.Alternatives, 3)
	assert.Equal(t, at("15:30"), res.Alternatives[0].Start)
}

func TestRecommend_FewOptionsSkipPicker(t *testing.T) {
	src := alternativesFixture()
	picker := &mockRanker{
		PickSlotsFunc: func(context.Context, Request, []SlotOption) ([]SlotPick, error) {
			t.Fatal("picker must not be called for three or fewer options")
			return nil, nil
		},
	}
	a := NewAdvisor(src, Options{SlotPicker: picker})
	start, end := at("14:00"), at("15:00")

	// From 13:15 only 15:30, 16:00 and tomorrow remain free.
	res, err := a.Recommend(context.Background(), Request{Start: &start, End: &end}, at("13:15"))
	require.NoError(t, err)
	require.Len(t, res.Alternatives, 3)
	assert.Equal(t, at("15:30"), res.Alternatives[0].Start)
	assert.Equal(t, at("16:00"), res.Alternatives[1].Start)
}

func TestRecommend_NoWindowNoAlternatives(t *testing.T) {
	a := NewAdvisor(&fakeSource{}, Options{})
	res, err := a.Recommend(context.Background(), Request{Capacity: 4}, at("08:00"))
	require.NoError(t, err)
	assert.Empty(t, res.Rooms)
	assert.Empty(t, res.Alternatives)
}

func TestRecommend_NothingFreeAnywhere(t *testing.T) {
	src := &fakeSource{
		rooms: []model.Room{room(1, "R1", "", 10)},
		busy:  map[int64][]schedule.Window{1: {{Start: at("00:00"), End: at("00:00").Add(72 * time.Hour)}}},
	}
	a := NewAdvisor(src, Options{})
	start, end := at("14:00"), at("15:00")

	res, err := a.Recommend(context.Background(), Request{Start: &start, End: &end}, at("08:00"))
	require.NoError(t, err)
	assert.Empty(t, res.Alternatives)
}
