package search

import (
	"context"
	"sort"
	"time"

	"meeting-resource-backend/internal/logger"
)

const (
	maxRankCandidates = 25
	maxRecommended    = 3
	maxReasonRunes    = 200
	keywordBonus      = 1000

	FallbackRankReason = "Fits capacity and equipment."
	FallbackSlotReason = "Nearest slot with free rooms."
)

// Ranking sources reported in Result.RankedBy.
const (
	RankedByAssistant = "assistant"
	RankedByFallback  = "fallback"
)

// Pick is one room chosen by a Ranker.
type Pick struct {
	RoomID int64  `json:"room_id"`
	Rank   int    `json:"rank"`
	Reason string `json:"reason"`
}

type RankResult struct {
	Picks []Pick
	Note  string
}

// Ranker orders candidates. It may fail; the advisor falls back to a fixed
// score when it does.
type Ranker interface {
	Rank(ctx context.Context, req Request, candidates []Candidate) (*RankResult, error)
}

// SlotPicker chooses the best few of many free slots.
type SlotPicker interface {
	PickSlots(ctx context.Context, req Request, options []SlotOption) ([]SlotPick, error)
}

// Recommendation is a matched room. Rank is 1..3 for the recommended rooms
// and 0 for the rest.
type Recommendation struct {
	Candidate
	Rank   int    `json:"rank"`
	Reason string `json:"reason,omitempty"`
}

// Result is the answer to a meeting request: ranked rooms when any match,
// otherwise alternative slots.
type Result struct {
	Rooms        []Recommendation `json:"rooms"`
	RankedBy     string           `json:"rankedBy,omitempty"`
	Note         string           `json:"note,omitempty"`
	Alternatives []Alternative    `json:"alternatives"`
}

type Options struct {
	Ranker     Ranker
	SlotPicker SlotPicker
	// Timeout bounds each collaborator call. Zero means 30s.
	Timeout time.Duration
	Logger  *logger.Logger
}

type Advisor struct {
	matcher *Matcher
	src     Source
	ranker  Ranker
	slots   SlotPicker
	timeout time.Duration
	log     *logger.Logger
}

func NewAdvisor(src Source, opts Options) *Advisor {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Advisor{
		matcher: NewMatcher(src),
		src:     src,
		ranker:  opts.Ranker,
		slots:   opts.SlotPicker,
		timeout: opts.Timeout,
		log:     logger.OrNop(opts.Logger),
	}
}

func (a *Advisor) Match(ctx context.Context, req Request) ([]Candidate, error) {
	return a.matcher.Match(ctx, req)
}

// Recommend matches rooms and ranks them. When nothing matches and the
// request has a window, nearby slots are proposed instead.
func (a *Advisor) Recommend(ctx context.Context, req Request, now time.Time) (*Result, error) {
	cands, err := a.matcher.Match(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(cands) > 0 {
		res := a.Rank(ctx, req, cands)
		return res, nil
	}

	alts, err := a.Alternatives(ctx, req, now)
	if err != nil {
		return nil, err
	}
	return &Result{Rooms: []Recommendation{}, Alternatives: alts}, nil
}

// Rank marks up to three candidates as recommended. Ranked rooms come first,
// in rank order; the rest keep their match order.
func (a *Advisor) Rank(ctx context.Context, req Request, cands []Candidate) *Result {
	res := &Result{Alternatives: []Alternative{}}
	if len(cands) == 0 {
		res.Rooms = []Recommendation{}
		return res
	}

	picks, note := a.assistantPicks(ctx, req, cands)
	if len(picks) > 0 {
		res.RankedBy = RankedByAssistant
		res.Note = note
	} else {
		picks = FallbackRank(req, cands)
		res.RankedBy = RankedByFallback
	}

	byRoom := make(map[int64]Pick, len(picks))
	for _, p := range picks {
		byRoom[p.RoomID] = p
	}
	ranked := make([]Recommendation, 0, len(cands))
	rest := make([]Recommendation, 0, len(cands))
	for _, c := range cands {
		if p, ok := byRoom[c.Room.ID]; ok {
			ranked = append(ranked, Recommendation{Candidate: c, Rank: p.Rank, Reason: p.Reason})
		} else {
			rest = append(rest, Recommendation{Candidate: c})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })
	res.Rooms = append(ranked, rest...)
	return res
}

// assistantPicks asks the Ranker and keeps only picks naming rooms it was
// shown. Any failure yields no picks.
func (a *Advisor) assistantPicks(ctx context.Context, req Request, cands []Candidate) ([]Pick, string) {
	if a.ranker == nil {
		return nil, ""
	}
	shown := cands
	if len(shown) > maxRankCandidates {
		shown = shown[:maxRankCandidates]
	}

	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	out, err := a.ranker.Rank(cctx, req, shown)
	if err != nil {
		a.log.Warn("ranking collaborator failed, using fallback", "error", err)
		return nil, ""
	}
	if out == nil {
		return nil, ""
	}

	known := make(map[int64]bool, len(shown))
	for _, c := range shown {
		known[c.Room.ID] = true
	}
	valid := make([]Pick, 0, maxRecommended)
	seen := make(map[int64]bool)
	for _, p := range out.Picks {
		if !known[p.RoomID] || seen[p.RoomID] {
			continue
		}
		seen[p.RoomID] = true
		p.Reason = truncate(p.Reason, maxReasonRunes)
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		return nil, ""
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Rank < valid[j].Rank })
	if len(valid) > maxRecommended {
		valid = valid[:maxRecommended]
	}
	for i := range valid {
		valid[i].Rank = i + 1
	}
	return valid, truncate(out.Note, 1000)
}

// FallbackRank scores rooms by keyword hit, then by how little capacity is
// wasted, and returns the top three.
func FallbackRank(req Request, cands []Candidate) []Pick {
	type scored struct {
		id    int64
		score int
	}
	list := make([]scored, len(cands))
	for i, c := range cands {
		list[i] = scored{id: c.Room.ID, score: score(req, c)}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].score > list[j].score })
	if len(list) > maxRecommended {
		list = list[:maxRecommended]
	}

	picks := make([]Pick, len(list))
	for i, s := range list {
		picks[i] = Pick{RoomID: s.id, Rank: i + 1, Reason: FallbackRankReason}
	}
	return picks
}

func score(req Request, c Candidate) int {
	gap := c.Room.Capacity - req.Capacity
	if gap < 0 {
		gap = 0
	}
	s := -gap
	if c.KeywordHit {
		s += keywordBonus
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
