package contracts

import "time"

// InsightOptions controls the inventory analysis stage.
type InsightOptions struct {
	LeadTimeDays   int     `json:"lead_time_days"`
	ServiceLevel   float64 `json:"service_level"`
	OrderCost      float64 `json:"order_cost"`
	HoldingCost    float64 `json:"holding_cost"`
	ABCAThreshold  float64 `json:"abc_a_threshold"`
	ABCBThreshold  float64 `json:"abc_b_threshold"`
	PeakMultiplier float64 `json:"peak_multiplier"`
}

// DefaultInsightOptions returns the inventory analysis defaults.
func DefaultInsightOptions() InsightOptions {
	return InsightOptions{
		LeadTimeDays:   7,
		ServiceLevel:   0.95,
		OrderCost:      50,
		HoldingCost:    2,
		ABCAThreshold:  0.80,
		ABCBThreshold:  0.95,
		PeakMultiplier: 1.5,
	}
}

// ABCClass is an inventory priority class by revenue contribution.
type ABCClass string

const (
	ClassA ABCClass = "A"
	ClassB ABCClass = "B"
	ClassC ABCClass = "C"
)

// ABCEntry is one product's revenue contribution and class.
type ABCEntry struct {
	ProductID    string   `json:"product_id"`
	Revenue      float64  `json:"revenue"`
	RevenueShare float64  `json:"revenue_share"`
	Cumulative   float64  `json:"cumulative_share"`
	Class        ABCClass `json:"class"`
}

// ReorderPlan holds the replenishment parameters derived from demand history.
type ReorderPlan struct {
	AvgDailyDemand float64 `json:"avg_daily_demand"`
	DemandStd      float64 `json:"demand_std"`
	LeadTimeDays   int     `json:"lead_time_days"`
	SafetyStock    float64 `json:"safety_stock"`
	ReorderPoint   float64 `json:"reorder_point"`
	AnnualDemand   float64 `json:"annual_demand"`
	EOQ            float64 `json:"eoq"`
	OrdersPerYear  float64 `json:"orders_per_year"`
}

// Priority ranks a recommendation's urgency.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Recommendation is one actionable suggestion with its expected impact.
type Recommendation struct {
	Priority Priority `json:"priority"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
	Impact   string   `json:"impact"`
}

// DemandProfile summarizes the historical demand behaviour the rules fire on.
type DemandProfile struct {
	Days        int     `json:"days"`
	AvgDaily    float64 `json:"avg_daily"`
	StdDaily    float64 `json:"std_daily"`
	Volatility  float64 `json:"volatility"`
	TrendSlope  float64 `json:"trend_slope"`
	TrendLabel  string  `json:"trend_label"`
	ForecastAvg float64 `json:"forecast_avg"`
}

// InsightSet is the output of the inventory analysis stage.
type InsightSet struct {
	SessionID       string           `json:"session_id"`
	Profile         DemandProfile    `json:"profile"`
	Reorder         ReorderPlan      `json:"reorder"`
	ABC             []ABCEntry       `json:"abc"`
	Recommendations []Recommendation `json:"recommendations"`
	Options         InsightOptions   `json:"options"`
	GeneratedAt     time.Time        `json:"generated_at"`
}
