package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/registry"
	"meeting-resource-backend/internal/store"
)

func (h *Handler) ListAssets(c *gin.Context) {
	f := store.AssetFilter{
		ActiveOnly: c.Query("include_inactive") != "true",
		State:      model.AssetState(c.Query("state")),
	}
	var err error
	if f.CategoryID, err = int64Query(c, "category_id"); err != nil {
		badRequest(c, err)
		return
	}
	if f.EquipmentTypeID, err = int64Query(c, "equipment_type_id"); err != nil {
		badRequest(c, err)
		return
	}
	if f.RoomID, err = int64Query(c, "room_id"); err != nil {
		badRequest(c, err)
		return
	}
	assets, err := h.registry.ListAssets(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

func (h *Handler) CreateAsset(c *gin.Context) {
	var in registry.AssetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	asset, err := h.registry.CreateAsset(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

func (h *Handler) GetAsset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	detail, err := h.registry.AssetDetail(c.Request.Context(), id, h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) UpdateAsset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in registry.AssetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	asset, err := h.registry.UpdateAsset(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (h *Handler) DeleteAsset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.registry.DeleteAsset(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ArchiveAsset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.registry.ArchiveAsset(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type assetStateRequest struct {
	State model.AssetState `json:"state" binding:"required"`
}

func (h *Handler) SetAssetState(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req assetStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.registry.SetAssetState(c.Request.Context(), id, req.State); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetAssetDepreciation evaluates the depreciation schedule at ?at= without
// persisting anything.
func (h *Handler) GetAssetDepreciation(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	at, err := timeQuery(c, "at", h.now())
	if err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.registry.Depreciation(c.Request.Context(), id, at)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
