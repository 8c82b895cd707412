package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autohaul/autohaul-api/internal/audit"
	"github.com/autohaul/autohaul-api/internal/auth"
	"github.com/autohaul/autohaul-api/internal/cache"
	"github.com/autohaul/autohaul-api/internal/database"
	"github.com/autohaul/autohaul-api/internal/idempotency"
	"github.com/autohaul/autohaul-api/internal/leads"
	"github.com/autohaul/autohaul-api/internal/orders"
	"github.com/autohaul/autohaul-api/internal/pricing"
	"github.com/autohaul/autohaul-api/internal/ratelimit"
	"github.com/autohaul/autohaul-api/internal/types"
	"github.com/autohaul/autohaul-api/internal/webhook"
	"github.com/autohaul/autohaul-api/pkg/middleware"
)

const (
	minLeads      = 15
	maxLeads      = 120
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
	sinkAddress   = ":9090"
)

var (
	vehicleTypes = []string{"sedan", "suv", "truck"}
	originZips   = []string{"30301", "60601", "73301", "85001", "98101"}
	destZips     = []string{"10001", "33101", "80201", "89101", "94101"}
)

// webhookDeliveries counts events received by the local webhook sink.
var webhookDeliveries int64

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the brokerage API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	mu        sync.Mutex
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It registers an agent account and keeps the issued token for later calls
func newSimulationClient() (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":         {name: "Authentication"},
			"create_lead":  {name: "Create Lead"},
			"quote":        {name: "Calculate Quote"},
			"create_order": {name: "Create Order"},
			"book_order":   {name: "Book Order"},
			"get_order":    {name: "Get Order"},
			"reprice":      {name: "Reprice Order"},
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// record tracks a single call against a route, guarding the shared stats map
// because worker goroutines report concurrently
func (sc *simulationClient) record(route string, start time.Time, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	rs := sc.stats[route]
	rs.addDuration(time.Since(start))
	if failed {
		rs.failures++
	}
}

// authenticate registers a fresh agent and returns its JWT
func (sc *simulationClient) authenticate() (token string, err error) {
	start := time.Now()
	defer func() {
		sc.record("auth", start, err != nil)
	}()

	credentials := map[string]string{
		"username": fmt.Sprintf("sim-agent-%s", uuid.New().String()[:8]),
		"password": "simulation-password",
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/register", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Data.AccessToken == "" {
		return "", fmt.Errorf("no access token in response")
	}

	return result.Data.AccessToken, nil
}

// doJSON sends an authenticated JSON request and decodes the success envelope
// into out. Create calls carry a fresh idempotency key.
func (sc *simulationClient) doJSON(method, path string, payload, out interface{}, idempotent bool) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotent {
		req.Header.Set("Idempotency-Key", uuid.New().String())
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w, body: %s", err, string(respBody))
	}

	return nil
}

// createLead submits a new shipping lead and returns it
func (sc *simulationClient) createLead(workerID int) (lead *types.Lead, err error) {
	start := time.Now()
	defer func() {
		sc.record("create_lead", start, err != nil)
	}()

	operable := rand.Intn(10) > 1
	payload := map[string]interface{}{
		"name":         fmt.Sprintf("Sim Customer %d-%d", workerID, rand.Intn(10000)),
		"phone":        fmt.Sprintf("555-01%02d", rand.Intn(100)),
		"email":        fmt.Sprintf("customer%d@example.com", rand.Intn(10000)),
		"origin_zip":   originZips[rand.Intn(len(originZips))],
		"dest_zip":     destZips[rand.Intn(len(destZips))],
		"vehicle_type": vehicleTypes[rand.Intn(len(vehicleTypes))],
		"operable":     operable,
	}

	lead = &types.Lead{}
	if err = sc.doJSON("POST", "/api/v1/leads", payload, lead, true); err != nil {
		return nil, err
	}
	if lead.ID == 0 {
		return nil, fmt.Errorf("no lead ID in response")
	}
	return lead, nil
}

// calcQuote asks the pricing engine for a quote matching the lead
func (sc *simulationClient) calcQuote(lead *types.Lead, basePrice float64) (quote *pricing.Quote, err error) {
	start := time.Now()
	defer func() {
		sc.record("quote", start, err != nil)
	}()

	payload := map[string]interface{}{
		"base_price":   basePrice,
		"distance_km":  float64(rand.Intn(2000) + 100),
		"vehicle_type": lead.VehicleType,
		"season_bonus": float64(rand.Intn(30)),
		"operable":     lead.Operable,
	}

	quote = &pricing.Quote{}
	if err = sc.doJSON("POST", "/api/v1/quotes/calc", payload, quote, false); err != nil {
		return nil, err
	}
	return quote, nil
}

// createOrder opens a draft order for a lead
func (sc *simulationClient) createOrder(lead *types.Lead, basePrice float64) (order *types.Order, err error) {
	start := time.Now()
	defer func() {
		sc.record("create_order", start, err != nil)
	}()

	payload := map[string]interface{}{
		"lead_id":    lead.ID,
		"base_price": basePrice,
		"notes":      fmt.Sprintf("%s to %s", lead.OriginZip, lead.DestZip),
	}

	order = &types.Order{}
	if err = sc.doJSON("POST", "/api/v1/orders", payload, order, true); err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, fmt.Errorf("no order ID in response")
	}
	return order, nil
}

// bookOrder moves an order to the quoted status, which fires a status webhook
func (sc *simulationClient) bookOrder(orderID uint, finalPrice float64) (err error) {
	start := time.Now()
	defer func() {
		sc.record("book_order", start, err != nil)
	}()

	payload := map[string]interface{}{
		"status":      types.OrderStatusQuoted,
		"final_price": finalPrice,
	}
	return sc.doJSON("PUT", fmt.Sprintf("/api/v1/orders/%d", orderID), payload, nil, false)
}

// getOrder retrieves the current state of an order
func (sc *simulationClient) getOrder(orderID uint) (order *types.Order, err error) {
	start := time.Now()
	defer func() {
		sc.record("get_order", start, err != nil)
	}()

	order = &types.Order{}
	if err = sc.doJSON("GET", fmt.Sprintf("/api/v1/orders/%d", orderID), nil, order, false); err != nil {
		return nil, err
	}
	return order, nil
}

// repriceOrder queues a background reprice for an order
func (sc *simulationClient) repriceOrder(orderID uint) (err error) {
	start := time.Now()
	defer func() {
		sc.record("reprice", start, err != nil)
	}()

	return sc.doJSON("POST", fmt.Sprintf("/api/v1/orders/%d/reprice", orderID), nil, nil, false)
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// simulatedOrder carries the state a worker hands back to the main loop
type simulatedOrder struct {
	OrderID     uint
	VehicleType string
	FinalPrice  float64
}

// main runs the brokerage intake simulation
// It starts a local API server plus a webhook sink and simulates concurrent agents
func main() {
	go startWebhookSink()

	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	targetLeads := rand.Intn(maxLeads-minLeads) + minLeads
	log.Info().Int("target_leads", targetLeads).Msg("Starting simulation")

	ordersChan := make(chan simulatedOrder, targetLeads)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			runIntake(workerID, targetLeads/numWorkers, simClient, ordersChan)
		}(i)
	}

	wg.Wait()
	close(ordersChan)

	var booked []simulatedOrder
	for o := range ordersChan {
		booked = append(booked, o)
	}

	log.Info().Int("orders_booked", len(booked)).Msg("All orders booked")

	stats := struct {
		TotalLeads     int
		BookedOrders   int
		RepricedOrders int
		FailedReprices int
		TotalValue     float64
		StartTime      time.Time
		Vehicles       map[string]int
	}{
		TotalLeads: targetLeads,
		StartTime:  time.Now(),
		Vehicles:   make(map[string]int),
	}
	stats.BookedOrders = len(booked)

	// Reprice every other booked order and verify the result landed
	for i, o := range booked {
		stats.TotalValue += o.FinalPrice
		stats.Vehicles[o.VehicleType]++

		if i%2 != 0 {
			continue
		}
		if err := simClient.repriceOrder(o.OrderID); err != nil {
			log.Error().Err(err).Uint("order_id", o.OrderID).Msg("Failed to queue reprice")
			stats.FailedReprices++
			continue
		}
		stats.RepricedOrders++
	}

	// Give the worker pool a moment to drain the reprice queue
	time.Sleep(2 * time.Second)

	for i, o := range booked {
		if i%2 != 0 {
			continue
		}
		order, err := simClient.getOrder(o.OrderID)
		if err != nil {
			log.Error().Err(err).Uint("order_id", o.OrderID).Msg("Failed to fetch repriced order")
			continue
		}
		if order.FinalPrice != nil {
			log.Info().
				Uint("order_id", order.ID).
				Float64("final_price", *order.FinalPrice).
				Msg("Order repriced")
		}
	}

	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚚 INTAKE SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Intake Statistics
-------------------
Target Leads:     %d
Booked Orders:    %d
Queued Reprices:  %d
Failed Reprices:  %d
Webhook Events:   %d
Total Value:      $%.2f
Duration:         %v

🚗 Vehicle Distribution
----------------------
`, stats.TotalLeads, stats.BookedOrders, stats.RepricedOrders, stats.FailedReprices,
		atomic.LoadInt64(&webhookDeliveries), stats.TotalValue, duration.Round(time.Millisecond))

	maxVehicleCount := 0
	for _, count := range stats.Vehicles {
		if count > maxVehicleCount {
			maxVehicleCount = count
		}
	}
	for vehicle, count := range stats.Vehicles {
		barLength := int(float64(count) / float64(maxVehicleCount) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-6s: %s (%d)\n", vehicle, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	successRate := float64(stats.BookedOrders) / float64(stats.TotalLeads) * 100
	log.Info().
		Float64("success_rate", successRate).
		Int("target_leads", stats.TotalLeads).
		Int("booked_orders", stats.BookedOrders).
		Float64("total_value", stats.TotalValue).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// runIntake drives the full agent flow for a batch of leads
// Runs as a worker goroutine, sending booked orders to ordersChan
func runIntake(workerID, numLeads int, simClient *simulationClient, ordersChan chan<- simulatedOrder) {
	for i := 0; i < numLeads; i++ {
		lead, err := simClient.createLead(workerID)
		if err != nil {
			log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to create lead")
			continue
		}

		basePrice := float64(rand.Intn(400) + 100)
		quote, err := simClient.calcQuote(lead, basePrice)
		if err != nil {
			log.Error().Err(err).Uint("lead_id", lead.ID).Msg("Failed to calculate quote")
			continue
		}

		order, err := simClient.createOrder(lead, basePrice)
		if err != nil {
			log.Error().Err(err).Uint("lead_id", lead.ID).Msg("Failed to create order")
			continue
		}

		if err := simClient.bookOrder(order.ID, quote.FinalPrice); err != nil {
			log.Error().Err(err).Uint("order_id", order.ID).Msg("Failed to book order")
			continue
		}

		ordersChan <- simulatedOrder{
			OrderID:     order.ID,
			VehicleType: lead.VehicleType,
			FinalPrice:  quote.FinalPrice,
		}
		log.Info().
			Int("worker_id", workerID).
			Uint("lead_id", lead.ID).
			Uint("order_id", order.ID).
			Str("vehicle_type", lead.VehicleType).
			Float64("final_price", quote.FinalPrice).
			Msg("Order booked")

		// Random sleep between leads
		time.Sleep(time.Duration(rand.Intn(300)) * time.Millisecond)
	}
}

// startWebhookSink runs a local receiver for outbound webhook events so the
// simulation can observe deliveries end to end
func startWebhookSink() {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		var event webhook.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		atomic.AddInt64(&webhookDeliveries, 1)
		log.Debug().
			Uint("order_id", event.OrderID).
			Str("status", event.Status).
			Float64("final_price", event.FinalPrice).
			Msg("Webhook received")
		w.WriteHeader(http.StatusOK)
	})
	if err := http.ListenAndServe(sinkAddress, mux); err != nil {
		log.Error().Err(err).Msg("Webhook sink stopped")
	}
}

// startServer initializes and starts the brokerage API server
// Sets up all required services, handlers and routes against a local database
func startServer() error {
	gin.SetMode(gin.ReleaseMode)

	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// The simulation runs self contained on the in-process store
	store := cache.NewMemoryStore()

	recorder := audit.NewRecorder(db)
	authService := auth.NewService(db, "simulation-secret-key", 24*time.Hour)
	authHandlers := auth.NewGinHandlers(authService, recorder)

	idemCache := idempotency.New(store, 5*time.Minute)
	limiter := ratelimit.New(store, 10000, 10*time.Minute)

	engine := pricing.NewEngine()
	quoteCache := pricing.NewCache(store, engine, time.Minute)
	quoteHandlers := pricing.NewGinHandlers(quoteCache)

	dispatcher := webhook.NewDispatcher(fmt.Sprintf("http://localhost%s/webhook", sinkAddress), 10*time.Second, 3)

	leadService := leads.NewService(db)
	leadHandlers := leads.NewGinHandlers(leadService, idemCache, recorder)

	orderService := orders.NewService(db, leadService)
	workerPool := orders.NewWorkerPool(orderService, engine, dispatcher, 4)
	workerPool.Start(context.Background())
	orderHandlers := orders.NewGinHandlers(orderService, idemCache, recorder, dispatcher, workerPool)

	router := gin.Default()
	setupRoutes(router, authService, limiter, authHandlers, leadHandlers, orderHandlers, quoteHandlers)

	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
func setupRoutes(
	router *gin.Engine,
	authService *auth.Service,
	limiter *ratelimit.Limiter,
	authHandlers *auth.GinHandlers,
	leadHandlers *leads.GinHandlers,
	orderHandlers *orders.GinHandlers,
	quoteHandlers *pricing.GinHandlers,
) {
	rateLimited := middleware.RateLimit(limiter)

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		leadGroup := v1.Group("/leads")
		leadGroup.Use(middleware.JWTAuth(authService))
		{
			leadGroup.POST("", rateLimited, leadHandlers.CreateLeadHandler())
			leadGroup.GET("", leadHandlers.ListLeadsHandler())
			leadGroup.GET("/:lead_id", leadHandlers.GetLeadHandler())
			leadGroup.PUT("/:lead_id", rateLimited, leadHandlers.UpdateLeadHandler())
			leadGroup.DELETE("/:lead_id", rateLimited, leadHandlers.DeleteLeadHandler())
		}

		orderGroup := v1.Group("/orders")
		orderGroup.Use(middleware.JWTAuth(authService))
		{
			orderGroup.POST("", rateLimited, orderHandlers.CreateOrderHandler())
			orderGroup.GET("", orderHandlers.ListOrdersHandler())
			orderGroup.GET("/:order_id", orderHandlers.GetOrderHandler())
			orderGroup.PUT("/:order_id", rateLimited, orderHandlers.UpdateOrderHandler())
			orderGroup.DELETE("/:order_id", rateLimited, orderHandlers.DeleteOrderHandler())
			orderGroup.POST("/:order_id/reprice", rateLimited, orderHandlers.RepriceOrderHandler())
		}

		quoteGroup := v1.Group("/quotes")
		quoteGroup.Use(middleware.JWTAuth(authService))
		{
			quoteGroup.POST("/calc", quoteHandlers.CalcQuoteHandler())
		}
	}
}
