package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"meeting-resource-backend/internal/assistant"
	"meeting-resource-backend/internal/ledger"
	"meeting-resource-backend/internal/logger"
	"meeting-resource-backend/internal/registry"
	"meeting-resource-backend/internal/search"
	"meeting-resource-backend/internal/store"
)

// Deps are the services the API is built on. Parser may be nil when the
// assistant is disabled.
type Deps struct {
	Store    store.Store
	Registry *registry.Service
	Ledger   *ledger.Service
	Advisor  *search.Advisor
	Parser   *assistant.Parser
	WebPush  *webpush.Options
	Logger   *logger.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	registry *registry.Service
	ledger   *ledger.Service
	advisor  *search.Advisor
	parser   *assistant.Parser
	webpush  *webpush.Options
	log      *logger.Logger
	now      func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:    d.Store,
		registry: d.Registry,
		ledger:   d.Ledger,
		advisor:  d.Advisor,
		parser:   d.Parser,
		webpush:  d.WebPush,
		log:      logger.OrNop(d.Logger),
		now:      time.Now,
	}
}
