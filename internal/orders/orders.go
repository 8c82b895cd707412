package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/autohaul/autohaul-api/internal/audit"
	"github.com/autohaul/autohaul-api/internal/idempotency"
	"github.com/autohaul/autohaul-api/internal/leads"
	"github.com/autohaul/autohaul-api/internal/types"
	"github.com/autohaul/autohaul-api/internal/webhook"
	"github.com/autohaul/autohaul-api/pkg/middleware"
	"github.com/autohaul/autohaul-api/pkg/response"
)

// Service handles order management
type Service struct {
	db    *Database
	leads *leads.Service
}

// NewService creates a new order service with the given database connection
func NewService(gormDB *gorm.DB, leadService *leads.Service) *Service {
	return &Service{db: NewDatabase(gormDB), leads: leadService}
}

func (s *Service) CreateOrder(order *types.Order) error {
	return s.db.CreateOrder(order)
}

func (s *Service) GetOrder(id uint) (*types.Order, error) {
	return s.db.GetOrder(id)
}

func (s *Service) ListOrders(filter ListFilter) ([]types.Order, error) {
	return s.db.ListOrders(filter)
}

func (s *Service) UpdateOrder(order *types.Order) error {
	return s.db.UpdateOrder(order)
}

func (s *Service) DeleteOrder(order *types.Order) error {
	return s.db.DeleteOrder(order)
}

func (s *Service) GetLead(id uint) (*types.Lead, error) {
	return s.leads.GetLead(id)
}

type createOrderRequest struct {
	LeadID    uint    `json:"lead_id" binding:"required"`
	BasePrice float64 `json:"base_price" binding:"gte=0"`
	Notes     string  `json:"notes"`
}

type updateOrderRequest struct {
	Status     *string  `json:"status"`
	FinalPrice *float64 `json:"final_price"`
	Notes      *string  `json:"notes"`
}

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service    *Service
	idem       *idempotency.Cache
	recorder   *audit.Recorder
	dispatcher *webhook.Dispatcher
	workers    *WorkerPool
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints
func NewGinHandlers(service *Service, idem *idempotency.Cache, recorder *audit.Recorder, dispatcher *webhook.Dispatcher, workers *WorkerPool) *GinHandlers {
	return &GinHandlers{
		service:    service,
		idem:       idem,
		recorder:   recorder,
		dispatcher: dispatcher,
		workers:    workers,
	}
}

// CreateOrderHandler handles POST requests to create an order for an owned
// lead. Supports idempotent retries via the Idempotency-Key header.
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			response.Unauthorized(c, "Missing authentication context")
			return
		}

		token := c.GetHeader("Idempotency-Key")
		if cached, err := h.idem.Lookup(c.Request.Context(), token); err != nil {
			log.Warn().Err(err).Str("component", "orders").Msg("idempotency lookup failed")
		} else if cached != nil {
			c.Data(http.StatusCreated, "application/json; charset=utf-8", cached)
			return
		}

		var in createOrderRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		lead, err := h.service.GetLead(in.LeadID)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		if lead == nil {
			response.NotFound(c, "Lead not found")
			return
		}
		if lead.CreatedBy != userID && !middleware.IsAdmin(c) {
			response.Forbidden(c, "Not authorized to access this lead")
			return
		}

		order := &types.Order{
			LeadID:    in.LeadID,
			Status:    types.OrderStatusDraft,
			BasePrice: in.BasePrice,
			Notes:     in.Notes,
			CreatedBy: userID,
		}
		if err := h.service.CreateOrder(order); err != nil {
			response.InternalError(c, err.Error())
			return
		}

		h.recorder.Record(c.Request.Context(), userID, audit.ActionCreateOrder, in)

		body, err := json.Marshal(response.Response{Success: true, Data: order})
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		if token != "" {
			if err := h.idem.Store(c.Request.Context(), token, body); err != nil {
				log.Warn().Err(err).Str("component", "orders").Msg("idempotency store failed")
			}
		}

		c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
	}
}

// ListOrdersHandler handles GET requests to list orders with optional
// status filtering and pagination
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			response.Unauthorized(c, "Missing authentication context")
			return
		}

		filter := ListFilter{
			Status: c.Query("status"),
			Limit:  parseBoundedInt(c.Query("limit"), 20, 1, 100),
			Offset: parseBoundedInt(c.Query("offset"), 0, 0, 1<<30),
		}
		if !middleware.IsAdmin(c) {
			filter.CreatedBy = &userID
		}

		orders, err := h.service.ListOrders(filter)
		response.Handle(c, orders, err)
	}
}

// GetOrderHandler handles GET requests for a single order
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := h.loadOwnedOrder(c)
		if !ok {
			return
		}
		response.Success(c, order)
	}
}

// UpdateOrderHandler handles PUT requests to modify an order. A status
// transition into quoted or booked fires a webhook event; delivery runs
// detached so a slow sink never delays the response.
func (h *GinHandlers) UpdateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := h.loadOwnedOrder(c)
		if !ok {
			return
		}

		var in updateOrderRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if in.Status != nil && !types.ValidOrderStatus(*in.Status) {
			response.BadRequest(c, "Invalid status. Must be one of draft, quoted, booked, delivered")
			return
		}

		oldStatus := order.Status
		if in.Status != nil {
			order.Status = *in.Status
		}
		if in.FinalPrice != nil {
			order.FinalPrice = in.FinalPrice
		}
		if in.Notes != nil {
			order.Notes = *in.Notes
		}

		if err := h.service.UpdateOrder(order); err != nil {
			response.InternalError(c, err.Error())
			return
		}

		userID, _ := middleware.UserID(c)
		h.recorder.Record(c.Request.Context(), userID, audit.ActionUpdateOrder, in)

		if oldStatus != order.Status && notifiableStatus(order.Status) {
			event := webhook.Event{
				OrderID:    order.ID,
				FinalPrice: order.BasePrice,
				Status:     order.Status,
			}
			if order.FinalPrice != nil {
				event.FinalPrice = *order.FinalPrice
			}
			// Detached from the request; an abandoned connection must not
			// cancel delivery
			go h.dispatcher.Deliver(context.Background(), event)
		}

		response.Success(c, order)
	}
}

// DeleteOrderHandler handles DELETE requests for an order
func (h *GinHandlers) DeleteOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := h.loadOwnedOrder(c)
		if !ok {
			return
		}

		if err := h.service.DeleteOrder(order); err != nil {
			response.InternalError(c, err.Error())
			return
		}

		userID, _ := middleware.UserID(c)
		h.recorder.Record(c.Request.Context(), userID, audit.ActionDeleteOrder, map[string]uint{"id": order.ID})

		response.Success(c, gin.H{"deleted": true})
	}
}

// RepriceOrderHandler handles POST requests to queue a background reprice
func (h *GinHandlers) RepriceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := h.loadOwnedOrder(c)
		if !ok {
			return
		}

		if !h.workers.Enqueue(order.ID) {
			response.InternalError(c, "Reprice queue is full")
			return
		}

		userID, _ := middleware.UserID(c)
		h.recorder.Record(c.Request.Context(), userID, audit.ActionRepriceOrder, map[string]uint{"id": order.ID})

		response.Success(c, gin.H{"status": "queued"})
	}
}

func notifiableStatus(status string) bool {
	return status == types.OrderStatusQuoted || status == types.OrderStatusBooked
}

// loadOwnedOrder fetches the order in the URL and enforces ownership. On
// failure it writes the response and returns ok=false.
func (h *GinHandlers) loadOwnedOrder(c *gin.Context) (*types.Order, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "Missing authentication context")
		return nil, false
	}

	id, err := strconv.ParseUint(c.Param("order_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "Invalid order ID")
		return nil, false
	}

	order, err := h.service.GetOrder(uint(id))
	if err != nil {
		response.InternalError(c, err.Error())
		return nil, false
	}
	if order == nil {
		response.NotFound(c, "Order not found")
		return nil, false
	}

	if order.CreatedBy != userID && !middleware.IsAdmin(c) {
		response.Forbidden(c, "Not authorized to access this order")
		return nil, false
	}
	return order, true
}

func parseBoundedInt(raw string, def, min, max int) int {
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < min {
		return def
	}
	if val > max {
		return max
	}
	return val
}
