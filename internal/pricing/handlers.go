package pricing

import (
	"github.com/gin-gonic/gin"

	"github.com/autohaul/autohaul-api/pkg/response"
)

// quoteRequest is the HTTP shape of a quote calculation. Enum values are
// validated at binding so bad input never reaches the engine. Operable is a
// pointer so an omitted field defaults to true.
type quoteRequest struct {
	BasePrice   float64 `json:"base_price" binding:"gte=0"`
	DistanceKm  float64 `json:"distance_km" binding:"gte=0"`
	VehicleType string  `json:"vehicle_type" binding:"required,oneof=sedan suv truck"`
	SeasonBonus float64 `json:"season_bonus"`
	Operable    *bool   `json:"operable"`
}

// GinHandlers contains HTTP handlers for quote endpoints
type GinHandlers struct {
	cache *Cache
}

// NewGinHandlers creates a new set of HTTP handlers for quote endpoints
func NewGinHandlers(cache *Cache) *GinHandlers {
	return &GinHandlers{cache: cache}
}

// CalcQuoteHandler handles POST requests to price a shipment
func (h *GinHandlers) CalcQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in quoteRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		operable := true
		if in.Operable != nil {
			operable = *in.Operable
		}

		quote := h.cache.GetOrCompute(c.Request.Context(), Request{
			BasePrice:   in.BasePrice,
			DistanceKm:  in.DistanceKm,
			VehicleType: in.VehicleType,
			SeasonBonus: in.SeasonBonus,
			Operable:    operable,
		})

		response.Success(c, quote)
	}
}
