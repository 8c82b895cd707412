package leads

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/autohaul/autohaul-api/internal/audit"
	"github.com/autohaul/autohaul-api/internal/idempotency"
	"github.com/autohaul/autohaul-api/internal/types"
	"github.com/autohaul/autohaul-api/pkg/middleware"
	"github.com/autohaul/autohaul-api/pkg/response"
)

// Service handles lead intake and management
type Service struct {
	db *Database
}

// NewService creates a new lead service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: NewDatabase(gormDB)}
}

func (s *Service) CreateLead(lead *types.Lead) error {
	return s.db.CreateLead(lead)
}

func (s *Service) GetLead(id uint) (*types.Lead, error) {
	return s.db.GetLead(id)
}

func (s *Service) ListLeads(filter ListFilter) ([]types.Lead, error) {
	return s.db.ListLeads(filter)
}

func (s *Service) UpdateLead(lead *types.Lead) error {
	return s.db.UpdateLead(lead)
}

func (s *Service) DeleteLead(lead *types.Lead) error {
	return s.db.DeleteLead(lead)
}

type createLeadRequest struct {
	Name        string `json:"name" binding:"required"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	OriginZip   string `json:"origin_zip" binding:"required"`
	DestZip     string `json:"dest_zip" binding:"required"`
	VehicleType string `json:"vehicle_type" binding:"required,oneof=sedan suv truck"`
	Operable    *bool  `json:"operable"`
}

type updateLeadRequest struct {
	Name        *string `json:"name"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	OriginZip   *string `json:"origin_zip"`
	DestZip     *string `json:"dest_zip"`
	VehicleType *string `json:"vehicle_type" binding:"omitempty,oneof=sedan suv truck"`
	Operable    *bool   `json:"operable"`
}

// GinHandlers contains HTTP handlers for lead endpoints
type GinHandlers struct {
	service  *Service
	idem     *idempotency.Cache
	recorder *audit.Recorder
}

// NewGinHandlers creates a new set of HTTP handlers for lead endpoints
func NewGinHandlers(service *Service, idem *idempotency.Cache, recorder *audit.Recorder) *GinHandlers {
	return &GinHandlers{service: service, idem: idem, recorder: recorder}
}

// CreateLeadHandler handles POST requests to create leads. When the client
// supplies an Idempotency-Key header, a retried request replays the first
// execution's exact response bytes instead of creating a second lead.
func (h *GinHandlers) CreateLeadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			response.Unauthorized(c, "Missing authentication context")
			return
		}

		token := c.GetHeader("Idempotency-Key")
		if cached, err := h.idem.Lookup(c.Request.Context(), token); err != nil {
			// Cache trouble degrades to a fresh execution
			log.Warn().Err(err).Str("component", "leads").Msg("idempotency lookup failed")
		} else if cached != nil {
			c.Data(http.StatusCreated, "application/json; charset=utf-8", cached)
			return
		}

		var in createLeadRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		operable := true
		if in.Operable != nil {
			operable = *in.Operable
		}

		lead := &types.Lead{
			Name:        in.Name,
			Phone:       in.Phone,
			Email:       in.Email,
			OriginZip:   in.OriginZip,
			DestZip:     in.DestZip,
			VehicleType: in.VehicleType,
			Operable:    operable,
			CreatedBy:   userID,
		}
		if err := h.service.CreateLead(lead); err != nil {
			response.InternalError(c, err.Error())
			return
		}

		h.recorder.Record(c.Request.Context(), userID, audit.ActionCreateLead, in)

		body, err := json.Marshal(response.Response{Success: true, Data: lead})
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		if token != "" {
			if err := h.idem.Store(c.Request.Context(), token, body); err != nil {
				log.Warn().Err(err).Str("component", "leads").Msg("idempotency store failed")
			}
		}

		c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
	}
}

// ListLeadsHandler handles GET requests to list leads. Agents see only
// their own leads; admins see all.
func (h *GinHandlers) ListLeadsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			response.Unauthorized(c, "Missing authentication context")
			return
		}

		filter := ListFilter{
			OriginZip: c.Query("origin_zip"),
			Limit:     parseBoundedInt(c.Query("limit"), 20, 1, 100),
			Offset:    parseBoundedInt(c.Query("offset"), 0, 0, 1<<30),
		}
		if !middleware.IsAdmin(c) {
			filter.CreatedBy = &userID
		}

		leads, err := h.service.ListLeads(filter)
		response.Handle(c, leads, err)
	}
}

// GetLeadHandler handles GET requests for a single lead
func (h *GinHandlers) GetLeadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lead, ok := h.loadOwnedLead(c)
		if !ok {
			return
		}
		response.Success(c, lead)
	}
}

// UpdateLeadHandler handles PUT requests to modify a lead
func (h *GinHandlers) UpdateLeadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lead, ok := h.loadOwnedLead(c)
		if !ok {
			return
		}

		var in updateLeadRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		applyLeadUpdate(lead, in)

		if err := h.service.UpdateLead(lead); err != nil {
			response.InternalError(c, err.Error())
			return
		}

		userID, _ := middleware.UserID(c)
		h.recorder.Record(c.Request.Context(), userID, audit.ActionUpdateLead, in)

		response.Success(c, lead)
	}
}

// DeleteLeadHandler handles DELETE requests for a lead
func (h *GinHandlers) DeleteLeadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lead, ok := h.loadOwnedLead(c)
		if !ok {
			return
		}

		if err := h.service.DeleteLead(lead); err != nil {
			response.InternalError(c, err.Error())
			return
		}

		userID, _ := middleware.UserID(c)
		h.recorder.Record(c.Request.Context(), userID, audit.ActionDeleteLead, map[string]uint{"id": lead.ID})

		response.Success(c, gin.H{"deleted": true})
	}
}

// loadOwnedLead fetches the lead in the URL and enforces ownership. On
// failure it writes the response and returns ok=false.
func (h *GinHandlers) loadOwnedLead(c *gin.Context) (*types.Lead, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "Missing authentication context")
		return nil, false
	}

	id, err := strconv.ParseUint(c.Param("lead_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "Invalid lead ID")
		return nil, false
	}

	lead, err := h.service.GetLead(uint(id))
	if err != nil {
		response.InternalError(c, err.Error())
		return nil, false
	}
	if lead == nil {
		response.NotFound(c, "Lead not found")
		return nil, false
	}

	if lead.CreatedBy != userID && !middleware.IsAdmin(c) {
		response.Forbidden(c, "Not authorized to access this lead")
		return nil, false
	}
	return lead, true
}

func applyLeadUpdate(lead *types.Lead, in updateLeadRequest) {
	if in.Name != nil {
		lead.Name = *in.Name
	}
	if in.Phone != nil {
		lead.Phone = *in.Phone
	}
	if in.Email != nil {
		lead.Email = *in.Email
	}
	if in.OriginZip != nil {
		lead.OriginZip = *in.OriginZip
	}
	if in.DestZip != nil {
		lead.DestZip = *in.DestZip
	}
	if in.VehicleType != nil {
		lead.VehicleType = *in.VehicleType
	}
	if in.Operable != nil {
		lead.Operable = *in.Operable
	}
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
