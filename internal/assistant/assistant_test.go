package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-resource-backend/config"
	"meeting-resource-backend/internal/httpx"
	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/schedule"
	"meeting-resource-backend/internal/search"
)

var bangkok = time.FixedZone("Asia/Bangkok", 7*60*60)

type mockGenerator struct {
	GenerateJSONFunc func(ctx context.Context, prompt string, schema map[string]any) (string, error)
}

func (m *mockGenerator) GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error) {
	return m.GenerateJSONFunc(ctx, prompt, schema)
}

func (m *mockGenerator) Model() string { return "test-model" }

type recorder struct {
	mu    sync.Mutex
	calls []model.AssistantCall
}

func (r *recorder) RecordAssistantCall(_ context.Context, call *model.AssistantCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, *call)
	return nil
}

func answer(text string) *mockGenerator {
	return &mockGenerator{
		GenerateJSONFunc: func(context.Context, string, map[string]any) (string, error) { return text, nil },
	}
}

func geminiBody(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(b)
}

func newClient(t *testing.T, url string, retries int) *GeminiClient {
	t.Helper()
	c, err := NewGeminiClient(config.AssistantConfig{
		APIKey:     "secret",
		Model:      "gemini-test",
		BaseURL:    url,
		Timeout:    5 * time.Second,
		MaxRetries: retries,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestGeminiClient_GenerateJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))

		raw, _ := io.ReadAll(r.Body)
		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			GenerationConfig struct {
				ResponseMimeType   string         `json:"responseMimeType"`
				ResponseJSONSchema map[string]any `json:"responseJsonSchema"`
			} `json:"generationConfig"`
		}
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "hello", body.Contents[0].Parts[0].Text)
		assert.Equal(t, "application/json", body.GenerationConfig.ResponseMimeType)
		assert.Equal(t, "object", body.GenerationConfig.ResponseJSONSchema["type"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, geminiBody(`{"ok":true}`))
	}))
	defer server.Close()

	out, err := newClient(t, server.URL, 0).GenerateJSON(context.Background(), "hello", map[string]any{"type": "object"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
}

func TestGeminiClient_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, geminiBody(`{}`))
	}))
	defer server.Close()

	out, err := newClient(t, server.URL, 1).GenerateJSON(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, `{}`, out)
	assert.EqualValues(t, 2, hits.Load())
}

func TestGeminiClient_ClientErrorIsFinal(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"bad key"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newClient(t, server.URL, 3).GenerateJSON(context.Background(), "p", nil)
	require.Error(t, err)
	var httpErr *httpx.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.EqualValues(t, 1, hits.Load())
}

func TestGeminiClient_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	_, err := newClient(t, server.URL, 0).GenerateJSON(context.Background(), "p", nil)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(config.AssistantConfig{}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParser_Parse(t *testing.T) {
	rec := &recorder{}
	var prompt string
	gen := &mockGenerator{
		GenerateJSONFunc: func(_ context.Context, p string, schema map[string]any) (string, error) {
			prompt = p
			assert.Equal(t, []string{"start", "end", "equipment_tags"}, schema["required"])
			return `{"title":"Weekly sync","start":"2026-03-03 09:00:00","end":"2026-03-03T10:30",
				"attendee_count":8,"equipment_tags":["tv","zoom","whiteboard"],"location_keyword":" Tầng 2 ","note":null}`, nil
		},
	}
	p := NewParser(gen, bangkok, rec, nil)

	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	got, err := p.Parse(context.Background(), "Mai 9h-10h30 họp 8 người, cần TV và zoom, tầng 2", now)
	require.NoError(t, err)

	assert.Contains(t, prompt, "2026-03-02 10:00:00")
	assert.Contains(t, prompt, "Asia/Bangkok")
	assert.Contains(t, prompt, "Mai 9h-10h30")

	assert.Equal(t, "Weekly sync", got.Title)
	assert.Empty(t, got.Note)
	assert.Equal(t, time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC), *got.Request.Start)
	assert.Equal(t, time.Date(2026, 3, 3, 3, 30, 0, 0, time.UTC), *got.Request.End)
	assert.Equal(t, 8, got.Request.Capacity)
	assert.Equal(t, "Tầng 2", got.Request.Keyword)
	assert.Equal(t, []string{"CAM", "MIC", "SPK", "TV"}, got.Request.Equipment)
	assert.Equal(t, []string{"tv", "zoom", "whiteboard"}, got.Tags)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, KindParse, rec.calls[0].Kind)
	assert.Equal(t, "test-model", rec.calls[0].Model)
	assert.True(t, rec.calls[0].OK)
	assert.True(t, json.Valid(rec.calls[0].Request))
	assert.True(t, json.Valid(rec.calls[0].Response))
}

func TestParser_Failures(t *testing.T) {
	testCases := []struct {
		name string
		gen  *mockGenerator
		is   error
	}{
		{name: "prose only", gen: answer("I could not understand"), is: ErrMalformedResponse},
		{name: "bad start", gen: answer(`{"start":"tomorrow","end":"2026-03-03 10:00","equipment_tags":[]}`), is: ErrMalformedResponse},
		{name: "end before start", gen: answer(`{"start":"2026-03-03 10:00","end":"2026-03-03 09:00","equipment_tags":[]}`), is: ErrMalformedResponse},
		{name: "upstream", gen: &mockGenerator{GenerateJSONFunc: func(context.Context, string, map[string]any) (string, error) {
			return "", &httpx.HTTPError{StatusCode: 500}
		}}, is: ErrUnavailable},
		{name: "network", gen: &mockGenerator{GenerateJSONFunc: func(context.Context, string, map[string]any) (string, error) {
			return "", errors.New("dial tcp: connection refused")
		}}, is: ErrUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			_, err := NewParser(tc.gen, bangkok, rec, nil).Parse(context.Background(), "something", time.Now())
			require.Error(t, err)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
			require.Len(t, rec.calls, 1)
		})
	}

	t.Run("fenced answer", func(t *testing.T) {
		gen := answer("```json\n{\"start\":\"2026-03-03 09:00\",\"end\":\"2026-03-03 10:00\",\"equipment_tags\":[]}\n```")
		got, err := NewParser(gen, bangkok, nil, nil).Parse(context.Background(), "x", time.Now())
		require.NoError(t, err)
		assert.Empty(t, got.Request.Equipment)
		assert.Zero(t, got.Request.Capacity)
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewParser(nil, bangkok, nil, nil).Parse(context.Background(), "x", time.Now())
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := NewParser(answer("{}"), bangkok, nil, nil).Parse(context.Background(), "  ", time.Now())
		assert.ErrorIs(t, err, schedule.ErrValidation)
	})
}

func TestRanker_Rank(t *testing.T) {
	rec := &recorder{}
	gen := &mockGenerator{
		GenerateJSONFunc: func(_ context.Context, prompt string, _ map[string]any) (string, error) {
			assert.Contains(t, prompt, `"room_id":7`)
			assert.Contains(t, prompt, `"attendee_count":6`)
			return `{"recommendations":[{"room_id":7,"rank":1,"reason":"Right size"}],"note":"Only one fits well"}`, nil
		},
	}
	r := NewRanker(gen, bangkok, rec, nil)

	res, err := r.Rank(context.Background(), search.Request{Capacity: 6}, []search.Candidate{
		{Room: model.Room{ID: 7, Code: "R7", Name: "Lotus", Capacity: 6}, Equipment: []string{"TV"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []search.Pick{{RoomID: 7, Rank: 1, Reason: "Right size"}}, res.Picks)
	assert.Equal(t, "Only one fits well", res.Note)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, KindRank, rec.calls[0].Kind)
}

func TestRanker_PickSlots(t *testing.T) {
	gen := &mockGenerator{
		GenerateJSONFunc: func(_ context.Context, prompt string, _ map[string]any) (string, error) {
			assert.Contains(t, prompt, `"start":"2026-03-02 16:30:00"`)
			assert.Contains(t, prompt, `"available_rooms_count":2`)
			return `{"alternatives":[
				{"start":"2026-03-02 16:30:00","end":"2026-03-02 17:30:00","reason":"Soonest"},
				{"start":"later","end":"much later","reason":"unreadable"}]}`, nil
		},
	}
	r := NewRanker(gen, bangkok, nil, nil)

	start := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	picks, err := r.PickSlots(context.Background(), search.Request{}, []search.SlotOption{
		{Window: schedule.Window{Start: start, End: start.Add(time.Hour)}, FreeRooms: []int64{1, 2}},
	})
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.True(t, picks[0].Start.Equal(start))
	assert.True(t, picks[0].End.Equal(start.Add(time.Hour)))
	assert.Equal(t, "Soonest", picks[0].Reason)
}

func TestRanker_FailureIsAudited(t *testing.T) {
	rec := &recorder{}
	gen := &mockGenerator{
		GenerateJSONFunc: func(context.Context, string, map[string]any) (string, error) {
			return "", errors.New(strings.Repeat("x", 800))
		},
	}
	_, err := NewRanker(gen, bangkok, rec, nil).Rank(context.Background(), search.Request{}, nil)
	require.Error(t, err)
	require.Len(t, rec.calls, 1)
	assert.False(t, rec.calls[0].OK)
	assert.LessOrEqual(t, len([]rune(rec.calls[0].Error)), 503)
	assert.Nil(t, rec.calls[0].Response)
}

func TestParserWithGemini(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, geminiBody(`{"start":"2026-03-03 14:00","end":"2026-03-03 15:00","equipment_tags":["projector"]}`))
	}))
	defer server.Close()

	p := NewParser(newClient(t, server.URL, 0), bangkok, nil, nil)
	got, err := p.Parse(context.Background(), "chiều mai 2h-3h cần máy chiếu", time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC), *got.Request.Start)
	assert.Equal(t, []string{"PRJ"}, got.Request.Equipment)
}

func TestParserWithGemini_UpstreamRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"status":"PERMISSION_DENIED"}}`, http.StatusForbidden)
	}))
	defer server.Close()

	rec := &recorder{}
	p := NewParser(newClient(t, server.URL, 0), bangkok, rec, nil)
	_, err := p.Parse(context.Background(), "họp ngày mai", time.Now())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrMalformedResponse)
	var httpErr *httpx.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)

	require.Len(t, rec.calls, 1)
	assert.False(t, rec.calls[0].OK)
	assert.Equal(t, "gemini-test", rec.calls[0].Model)
}
