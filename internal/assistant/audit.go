package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"meeting-resource-backend/internal/logger"
	"meeting-resource-backend/internal/model"
)

// Call kinds stored in the audit log.
const (
	KindParse = "parse"
	KindRank  = "rank"
	KindSlots = "slots"
)

// Recorder stores audit rows. The store implements it.
type Recorder interface {
	RecordAssistantCall(ctx context.Context, call *model.AssistantCall) error
}

type auditor struct {
	rec Recorder
	log *logger.Logger
}

// generate calls gen and writes one audit row, whatever the outcome. A failed
// audit write is only logged. Errors that are neither ErrNotConfigured nor
// ErrMalformedResponse come back wrapped in ErrUnavailable.
func (a auditor) generate(ctx context.Context, gen Generator, kind, prompt string, schema map[string]any) (string, error) {
	start := time.Now()
	text, err := gen.GenerateJSON(ctx, prompt, schema)
	if a.rec != nil {
		a.record(ctx, gen, kind, prompt, text, err, time.Since(start))
	}
	return text, upstream(err)
}

func upstream(err error) error {
	if err == nil || errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrMalformedResponse) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (a auditor) record(ctx context.Context, gen Generator, kind, prompt, text string, err error, took time.Duration) {
	call := &model.AssistantCall{
		Kind:      kind,
		Model:     gen.Model(),
		OK:        err == nil,
		LatencyMS: took.Milliseconds(),
		Request:   jsonDoc(map[string]any{"prompt": prompt}),
	}
	if err != nil {
		call.Error = logger.Excerpt(err.Error(), 500)
	} else {
		call.Response = jsonDoc(text)
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if aerr := a.rec.RecordAssistantCall(actx, call); aerr != nil {
		a.log.Warn("failed to record assistant call", "kind", kind, "error", aerr)
	}
}

// jsonDoc stores v as a JSON column. Text that already is JSON is kept as is;
// anything else is wrapped so the column stays valid.
func jsonDoc(v any) datatypes.JSON {
	if s, ok := v.(string); ok {
		if json.Valid([]byte(s)) {
			return datatypes.JSON(s)
		}
		v = map[string]string{"text": s}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
