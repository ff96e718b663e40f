package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"meeting-resource-backend/internal/ledger"
	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/store"
)

// ListBookings filters by room_id, host_id, state (comma separated) and the
// from/to window the bookings overlap.
func (h *Handler) ListBookings(c *gin.Context) {
	var f store.BookingFilter
	var err error
	if f.RoomID, err = int64Query(c, "room_id"); err != nil {
		badRequest(c, err)
		return
	}
	if f.HostID, err = int64Query(c, "host_id"); err != nil {
		badRequest(c, err)
		return
	}
	for _, s := range splitList(c.Query("state")) {
		f.States = append(f.States, model.BookingState(s))
	}
	if f.From, err = optionalTime(c, "from"); err != nil {
		badRequest(c, err)
		return
	}
	if f.To, err = optionalTime(c, "to"); err != nil {
		badRequest(c, err)
		return
	}
	if v := c.Query("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			badRequest(c, err)
			return
		}
	}

	bookings, err := h.store.ListBookings(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var in ledger.BookingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.ledger.CreateBooking(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	b, err := h.store.GetBooking(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) UpdateBooking(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in ledger.BookingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.ledger.UpdateBooking(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type bookingTransition func(*ledger.Service, context.Context, int64) (*model.Booking, error)

// BookingTransition serves confirm, cancel and draft.
func (h *Handler) BookingTransition(move bookingTransition) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		b, err := move(h.ledger, c.Request.Context(), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func optionalTime(c *gin.Context, key string) (*time.Time, error) {
	if c.Query(key) == "" {
		return nil, nil
	}
	t, err := timeQuery(c, key, time.Time{})
	if err != nil {
		return nil, err
	}
	return &t, nil
}
