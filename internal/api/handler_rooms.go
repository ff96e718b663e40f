package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/registry"
	"meeting-resource-backend/internal/schedule"
	"meeting-resource-backend/internal/store"
)

type roomResponse struct {
	model.Room
	LiveState schedule.LiveState `json:"liveState"`
}

// ListRooms returns rooms with their live state at ?at= (default now).
// Archived rooms are hidden unless include_inactive=true.
func (h *Handler) ListRooms(c *gin.Context) {
	f := store.RoomFilter{
		ActiveOnly: c.Query("include_inactive") != "true",
		State:      model.RoomState(c.Query("state")),
		Keyword:    c.Query("keyword"),
	}
	var err error
	if v := c.Query("min_capacity"); v != "" {
		if f.MinCapacity, err = strconv.Atoi(v); err != nil {
			badRequest(c, err)
			return
		}
	}
	if f.CompanyID, err = int64Query(c, "company_id"); err != nil {
		badRequest(c, err)
		return
	}
	if f.BranchID, err = int64Query(c, "branch_id"); err != nil {
		badRequest(c, err)
		return
	}
	at, err := timeQuery(c, "at", h.now())
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	rooms, err := h.registry.ListRooms(ctx, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	states, err := h.registry.LiveStates(ctx, rooms, at)
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]roomResponse, len(rooms))
	for i, r := range rooms {
		out[i] = roomResponse{Room: r, LiveState: states[r.ID]}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var in registry.RoomInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	room, err := h.registry.CreateRoom(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handler) GetRoom(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	detail, err := h.registry.RoomDetail(c.Request.Context(), id, h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) UpdateRoom(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in registry.RoomInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	room, err := h.registry.UpdateRoom(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.registry.DeleteRoom(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ArchiveRoom(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.registry.ArchiveRoom(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type roomStateRequest struct {
	State model.RoomState `json:"state" binding:"required"`
}

// SetRoomState sets the administrative state of a room.
func (h *Handler) SetRoomState(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req roomStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.registry.SetRoomState(c.Request.Context(), id, req.State); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetRoomLiveState answers the observed state of a room at ?at= (default now).
func (h *Handler) GetRoomLiveState(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	at, err := timeQuery(c, "at", h.now())
	if err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	room, err := h.registry.GetRoom(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	states, err := h.registry.LiveStates(ctx, []model.Room{*room}, at)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": id, "at": at, "liveState": states[id]})
}

type roomAssetsRequest struct {
	AssetIDs []int64 `json:"assetIds"`
}

// AttachRoomAssets replaces the assets attached to a room.
func (h *Handler) AttachRoomAssets(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req roomAssetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.registry.AttachAssets(c.Request.Context(), id, req.AssetIDs); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
