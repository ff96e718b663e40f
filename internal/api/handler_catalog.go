package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meeting-resource-backend/internal/model"
)

func (h *Handler) ListEquipmentTypes(c *gin.Context) {
	types, err := h.registry.ListEquipmentTypes(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

func (h *Handler) CreateEquipmentType(c *gin.Context) {
	var et model.EquipmentType
	if err := c.ShouldBindJSON(&et); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.registry.CreateEquipmentType(c.Request.Context(), &et); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, et)
}

func (h *Handler) ListAssetCategories(c *gin.Context) {
	categories, err := h.registry.ListAssetCategories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) CreateAssetCategory(c *gin.Context) {
	var cat model.AssetCategory
	if err := c.ShouldBindJSON(&cat); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.registry.CreateAssetCategory(c.Request.Context(), &cat); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// ListBranches lists the branches of ?company_id=, or all of them.
func (h *Handler) ListBranches(c *gin.Context) {
	companyID, err := int64Query(c, "company_id")
	if err != nil {
		badRequest(c, err)
		return
	}
	branches, err := h.registry.ListBranches(c.Request.Context(), companyID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, branches)
}

func (h *Handler) CreateBranch(c *gin.Context) {
	var b model.Branch
	if err := c.ShouldBindJSON(&b); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.registry.CreateBranch(c.Request.Context(), &b); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) CreateEmployee(c *gin.Context) {
	var e model.Employee
	if err := c.ShouldBindJSON(&e); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.registry.CreateEmployee(c.Request.Context(), &e); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) CreateDepartment(c *gin.Context) {
	var d model.Department
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.registry.CreateDepartment(c.Request.Context(), &d); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) CreateMaintenanceCategory(c *gin.Context) {
	var mc model.MaintenanceCategory
	if err := c.ShouldBindJSON(&mc); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.registry.CreateMaintenanceCategory(c.Request.Context(), &mc); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, mc)
}

func (h *Handler) CreateMaintenanceTeam(c *gin.Context) {
	var t model.MaintenanceTeam
	if err := c.ShouldBindJSON(&t); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.registry.CreateMaintenanceTeam(c.Request.Context(), &t); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}
