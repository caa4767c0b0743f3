package api

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"csgo-floatdb/internal/codec"
	"csgo-floatdb/internal/export"
	"csgo-floatdb/internal/logger"
	"csgo-floatdb/internal/services/floatdb"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type APIHandler struct {
	svc *floatdb.Service
	log *logrus.Entry
}

func SetupRoutes(r *gin.RouterGroup, svc *floatdb.Service) *APIHandler {
	handler := &APIHandler{
		svc: svc,
		log: logger.WithComponent("api"),
	}

	items := r.Group("/items")
	{
		items.POST("", handler.InsertItem)
		items.POST("/lookup", handler.LookupItems)

		items.GET("/:asset/rank", handler.GetRank)
		items.PUT("/:asset/price", handler.UpdatePrice)

		// Audit trail
		items.GET("/:asset/history", handler.GetHistory)
		items.GET("/:asset/history.xlsx", handler.ExportHistory)
	}

	return handler
}

// InsertItemRequest: POST /api/v1/items { item, price? }
type InsertItemRequest struct {
	Item  codec.RawItem `json:"item"`
	Price *int64        `json:"price,omitempty"`
}

// LookupRequest: POST /api/v1/items/lookup { requests: [{a}] }
type LookupRequest struct {
	Requests []floatdb.LookupRequest `json:"requests"`
}

// UpdatePriceRequest: PUT /api/v1/items/:asset/price { price }
type UpdatePriceRequest struct {
	Price *int64 `json:"price" binding:"required"`
}

func (h *APIHandler) InsertItem(c *gin.Context) {
	var req InsertItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Item.A == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing asset id"})
		return
	}
	if _, err := codec.ParseID(req.Item.A); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.InsertItemData(c.Request.Context(), req.Item, req.Price); err != nil {
		h.log.WithError(err).WithField("a", req.Item.A).Error("insert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "accepted", "data": gin.H{"a": req.Item.A}})
}

func (h *APIHandler) LookupItems(c *gin.Context) {
	var req LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := h.svc.GetItemData(c.Request.Context(), req.Requests)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "ok", "data": items})
}

func (h *APIHandler) GetRank(c *gin.Context) {
	rank, err := h.svc.GetItemRank(c.Request.Context(), c.Param("asset"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "ok", "data": rank})
}

func (h *APIHandler) UpdatePrice(c *gin.Context) {
	var req UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing price"})
		return
	}

	asset := c.Param("asset")
	if err := h.svc.UpdateItemPrice(c.Request.Context(), asset, *req.Price); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "ok", "data": gin.H{"a": asset, "price": *req.Price}})
}

func (h *APIHandler) GetHistory(c *gin.Context) {
	records, err := h.svc.GetItemHistory(c.Request.Context(), c.Param("asset"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "ok", "data": records})
}

func (h *APIHandler) ExportHistory(c *gin.Context) {
	asset := c.Param("asset")
	records, err := h.svc.GetItemHistory(c.Request.Context(), asset)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteHistoryXLSX(&buf, asset, records); err != nil {
		h.log.WithError(err).WithField("a", asset).Error("history export failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export error"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="history-`+asset+`.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *APIHandler) writeError(c *gin.Context, err error) {
	if errors.Is(err, codec.ErrInvalidID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
}

// RequestLogger logs one line per request through logrus.
func RequestLogger() gin.HandlerFunc {
	log := logger.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		entry := log.WithFields(logger.Fields{
			"method":      c.Request.Method,
			"route":       route,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Debug("request")
		}
	}
}
