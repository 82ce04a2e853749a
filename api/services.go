package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/freshfield/cleanbooking/internal/service/catalog"
)

type CatalogHandler struct {
	service catalog.CatalogUseCase
}

func NewCatalogHandler(service catalog.CatalogUseCase) *CatalogHandler {
	return &CatalogHandler{service: service}
}

func (h *CatalogHandler) Register(router *gin.RouterGroup) {
	router.GET("/services", h.listServices)
	router.GET("/services/:id", h.getService)
	router.GET("/extras", h.listExtras)
}

func (h *CatalogHandler) listServices(c *gin.Context) {
	services, err := h.service.ListServices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, services)
}

func (h *CatalogHandler) getService(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	service, err := h.service.GetService(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, service)
}

func (h *CatalogHandler) listExtras(c *gin.Context) {
	extras, err := h.service.ListExtras(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, extras)
}
