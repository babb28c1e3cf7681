package admin

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/siestaatnoon/abstract-cms-sub000/internal/config"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/entity"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/pkg/pagination"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RowDTO is the write payload for row endpoints: field values plus the
// ordered related ids of each relation field.
type RowDTO struct {
	Data      map[string]interface{} `json:"data" binding:"required"`
	Relations map[string][]int64     `json:"relations"`
}

// IDsDTO is the payload for batch row operations.
type IDsDTO struct {
	IDs []int64 `json:"ids" binding:"required"`
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	m := rg.Group("/modules")
	m.GET("", h.listModules)
	m.POST("", h.createModule)
	m.GET("/:module", h.getModule)
	m.PUT("/:module", h.updateModule)
	m.DELETE("/:module", h.deleteModule)

	d := rg.Group("/data/:module")
	d.GET("", h.list)
	d.GET("/:id", h.get)
	d.POST("", h.create)
	d.PUT("", h.update)
	d.DELETE("", h.delete)
	d.PATCH("/active", h.setActive)
	d.PATCH("/archive", h.setArchive)
	d.PATCH("/sort", h.setSort)
}

// GET /modules
func (h *Handler) listModules(c *gin.Context) {
	response.OK(c, h.svc.Modules())
}

// GET /modules/:module
func (h *Handler) getModule(c *gin.Context) {
	mc := h.svc.ModuleConfig(c.Param("module"))
	if mc == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, mc)
}

// POST /modules
func (h *Handler) createModule(c *gin.Context) {
	var mc config.ModuleConfig
	if err := c.ShouldBindJSON(&mc); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.CreateModule(mc); err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.Created(c, gin.H{"module": mc.Name})
}

// PUT /modules/:module
func (h *Handler) updateModule(c *gin.Context) {
	name := c.Param("module")
	if h.svc.ModuleConfig(name) == nil {
		response.NotFound(c)
		return
	}
	var mc config.ModuleConfig
	if err := c.ShouldBindJSON(&mc); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.UpdateModule(name, mc); err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.OK(c, gin.H{"module": mc.Name})
}

// DELETE /modules/:module
func (h *Handler) deleteModule(c *gin.Context) {
	name := c.Param("module")
	if h.svc.ModuleConfig(name) == nil {
		response.NotFound(c)
		return
	}
	if err := h.svc.DeleteModule(name); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// GET /data/:module?page=N&size=N&order_by=F&asc=1&archived=1&search=T
func (h *Handler) list(c *gin.Context) {
	module := c.Param("module")
	q := pagination.FromContext(c)

	params := ListParams{
		OrderBy:  c.Query("order_by"),
		IsAsc:    c.Query("asc") == "1",
		Archived: c.Query("archived") == "1",
	}
	if search := c.Query("search"); search != "" {
		if mc := h.svc.ModuleConfig(module); mc != nil && mc.TitleField != "" {
			params.Where = entity.Where{{
				Op:     entity.OpLike,
				Fields: []entity.Cond{{Field: mc.TitleField, Value: search}},
			}}
		}
	}

	rows, meta, err := h.svc.List(module, params, q)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Paged(c, rows, meta)
}

// GET /data/:module/:id (numeric id, or ?by_slug=1 for a slug lookup)
func (h *Handler) get(c *gin.Context) {
	module := c.Param("module")
	key := c.Param("id")

	var row entity.Row
	var err error
	if c.Query("by_slug") == "1" {
		row, err = h.svc.Get(module, key, true)
	} else {
		id, convErr := strconv.ParseInt(key, 10, 64)
		if convErr != nil {
			response.BadRequest(c, "invalid id")
			return
		}
		row, err = h.svc.Get(module, id, false)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if row == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, row)
}

// POST /data/:module
func (h *Handler) create(c *gin.Context) {
	var dto RowDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	id, err := h.svc.Create(c.Param("module"), dto.Data, dto.Relations)
	if err != nil {
		h.fail(c, err)
		return
	}
	if id == 0 {
		response.UnprocessableEntity(c, "no writable fields in payload")
		return
	}
	response.Created(c, gin.H{"id": id})
}

// PUT /data/:module
func (h *Handler) update(c *gin.Context) {
	var dto RowDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ok, err := h.svc.Update(c.Param("module"), dto.Data, dto.Relations)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		response.UnprocessableEntity(c, "missing id or no writable fields")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

// DELETE /data/:module
func (h *Handler) delete(c *gin.Context) {
	var dto IDsDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ok, err := h.svc.Delete(c.Param("module"), dto.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		response.NotFound(c)
		return
	}
	response.NoContent(c)
}

// PATCH /data/:module/active
func (h *Handler) setActive(c *gin.Context) {
	h.setFlag(c, func(module string, ids []int64, value bool) (bool, error) {
		return h.svc.SetActive(module, ids, value)
	})
}

// PATCH /data/:module/archive
func (h *Handler) setArchive(c *gin.Context) {
	h.setFlag(c, func(module string, ids []int64, value bool) (bool, error) {
		return h.svc.SetArchive(module, ids, value)
	})
}

func (h *Handler) setFlag(c *gin.Context, apply func(string, []int64, bool) (bool, error)) {
	var dto struct {
		IDs   []int64 `json:"ids" binding:"required"`
		Value bool    `json:"value"`
	}
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ok, err := apply(c.Param("module"), dto.IDs, dto.Value)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		response.UnprocessableEntity(c, "flag not enabled for module")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

// PATCH /data/:module/sort
func (h *Handler) setSort(c *gin.Context) {
	var dto IDsDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ok, err := h.svc.SetSortOrder(c.Param("module"), dto.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		response.UnprocessableEntity(c, "sorting not enabled for module")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, errUnknownModule) {
		response.NotFound(c)
		return
	}
	response.InternalError(c, err)
}
