package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"meeting-resource-backend/internal/ledger"
	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/store"
)

func (h *Handler) ListMaintenance(c *gin.Context) {
	var f store.MaintenanceFilter
	var err error
	if f.RoomID, err = int64Query(c, "room_id"); err != nil {
		badRequest(c, err)
		return
	}
	if f.AssetID, err = int64Query(c, "asset_id"); err != nil {
		badRequest(c, err)
		return
	}
	for _, s := range splitList(c.Query("state")) {
		f.States = append(f.States, model.MaintenanceState(s))
	}
	if v := c.Query("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			badRequest(c, err)
			return
		}
	}

	requests, err := h.store.ListMaintenance(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *Handler) CreateMaintenance(c *gin.Context) {
	var in ledger.MaintenanceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.ledger.CreateMaintenance(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMaintenance(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	m, err := h.store.GetMaintenance(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) UpdateMaintenance(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in ledger.MaintenanceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.ledger.UpdateMaintenance(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type maintenanceTransition func(*ledger.Service, context.Context, int64) (*model.MaintenanceRequest, error)

// MaintenanceTransition serves submit, start, done, cancel and draft.
func (h *Handler) MaintenanceTransition(move maintenanceTransition) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		m, err := move(h.ledger, c.Request.Context(), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}
