package pricing

// Request holds the inputs to a shipping quote
type Request struct {
	BasePrice   float64 `json:"base_price"`
	DistanceKm  float64 `json:"distance_km"`
	VehicleType string  `json:"vehicle_type"`
	SeasonBonus float64 `json:"season_bonus"`
	Operable    bool    `json:"operable"`
}

// Quote is a computed price with its itemized breakdown. The breakdown
// values always sum exactly to FinalPrice.
type Quote struct {
	FinalPrice float64            `json:"final_price"`
	Breakdown  map[string]float64 `json:"price_breakdown"`
}

const (
	distanceCoeff      = 1.5
	operableAdjustment = 15.0
)

var vehicleBonus = map[string]float64{
	"sedan": 10.0,
	"suv":   20.0,
	"truck": 30.0,
}

// Engine computes shipping prices. Compute is pure: identical requests
// always produce identical quotes.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Compute prices a request. Unknown vehicle types contribute a zero bonus;
// they are rejected by request validation upstream, never here.
func (e *Engine) Compute(req Request) Quote {
	operable := 0.0
	if req.Operable {
		operable = operableAdjustment
	}

	distance := req.DistanceKm * distanceCoeff
	bonus := vehicleBonus[req.VehicleType]

	breakdown := map[string]float64{
		"base_price":          req.BasePrice,
		"distance_cost":       distance,
		"vehicle_bonus":       bonus,
		"season_bonus":        req.SeasonBonus,
		"operable_adjustment": operable,
	}

	// Summed in a fixed order so identical requests give bit-identical prices
	final := req.BasePrice + distance + bonus + req.SeasonBonus + operable

	return Quote{FinalPrice: final, Breakdown: breakdown}
}
