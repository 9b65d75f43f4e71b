package insights

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/pkg/logger"
)

const stage = "insights"

// Engine derives inventory guidance from demand history and the forecast.
type Engine struct {
	log *logger.Logger
}

// NewEngine creates an Engine.
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{log: log.WithComponent("insight-engine")}
}

// Analyze builds the insight set for one session.
func (e *Engine) Analyze(ds *contracts.Dataset, cleaned *contracts.CleanedTable, fc *contracts.Forecast, opts contracts.InsightOptions) (*contracts.InsightSet, error) {
	if opts.LeadTimeDays < 1 {
		return nil, contracts.Validationf(stage, "lead time %d is not positive", opts.LeadTimeDays)
	}
	if opts.HoldingCost <= 0 || opts.OrderCost <= 0 {
		return nil, contracts.Validationf(stage, "order and holding costs must be positive")
	}
	days := len(cleaned.Demand)
	if days < opts.LeadTimeDays {
		return nil, contracts.InsufficientDataf(stage,
			"%d days of history, need at least the %d day lead time", days, opts.LeadTimeDays)
	}

	profile := buildProfile(cleaned, fc)
	plan := buildReorderPlan(profile, opts)
	abc := classifyABC(ds.Records, opts)

	set := &contracts.InsightSet{
		SessionID:       cleaned.SessionID,
		Profile:         profile,
		Reorder:         plan,
		ABC:             abc,
		Recommendations: recommend(profile, plan, abc, fc, opts),
		Options:         opts,
		GeneratedAt:     time.Now().UTC(),
	}

	e.log.WithField("session", cleaned.SessionID).
		WithField("recommendations", len(set.Recommendations)).
		Info("insights generated")

	return set, nil
}

func buildProfile(cleaned *contracts.CleanedTable, fc *contracts.Forecast) contracts.DemandProfile {
	demand := cleaned.Demand
	avg, std := stat.MeanStdDev(demand, nil)
	if math.IsNaN(std) {
		std = 0
	}

	xs := make([]float64, len(demand))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, demand, nil, false)

	p := contracts.DemandProfile{
		Days:       len(demand),
		AvgDaily:   avg,
		StdDaily:   std,
		TrendSlope: slope,
	}
	if avg > 0 {
		p.Volatility = std / avg
	}

	// A slope below 1% of average daily demand per day counts as flat.
	switch {
	case avg > 0 && slope > 0.01*avg:
		p.TrendLabel = "increasing"
	case avg > 0 && slope < -0.01*avg:
		p.TrendLabel = "decreasing"
	default:
		p.TrendLabel = "stable"
	}

	if fc != nil {
		p.ForecastAvg = fc.Summary.DailyMean
	}
	return p
}

func buildReorderPlan(p contracts.DemandProfile, opts contracts.InsightOptions) contracts.ReorderPlan {
	z := serviceZ(opts.ServiceLevel)
	safety := z * p.StdDaily * math.Sqrt(float64(opts.LeadTimeDays))
	annual := p.AvgDaily * 365

	plan := contracts.ReorderPlan{
		AvgDailyDemand: p.AvgDaily,
		DemandStd:      p.StdDaily,
		LeadTimeDays:   opts.LeadTimeDays,
		SafetyStock:    safety,
		ReorderPoint:   p.AvgDaily*float64(opts.LeadTimeDays) + safety,
		AnnualDemand:   annual,
		EOQ:            EOQ(annual, opts.OrderCost, opts.HoldingCost),
	}
	if plan.EOQ > 0 {
		plan.OrdersPerYear = annual / plan.EOQ
	}
	return plan
}

// EOQ is the economic order quantity for the given annual demand, fixed cost
// per order and yearly holding cost per unit.
func EOQ(annualDemand, orderCost, holdingCost float64) float64 {
	if annualDemand <= 0 || orderCost <= 0 || holdingCost <= 0 {
		return 0
	}
	return math.Sqrt(2 * annualDemand * orderCost / holdingCost)
}

// serviceZ maps a service level to its one-sided normal quantile.
func serviceZ(level float64) float64 {
	switch {
	case level >= 0.989:
		return 2.326
	case level >= 0.974:
		return 1.960
	case level >= 0.949:
		return 1.645
	case level >= 0.899:
		return 1.282
	default:
		return 1.645
	}
}

// classifyABC ranks products by revenue contribution. Revenue accumulates in
// decimals so many small transactions cannot drift the shares.
func classifyABC(records []contracts.RawRecord, opts contracts.InsightOptions) []contracts.ABCEntry {
	revenue := make(map[string]decimal.Decimal)
	for _, r := range records {
		if math.IsNaN(r.Quantity) || math.IsNaN(r.UnitPrice) {
			continue
		}
		id := r.ProductID
		if id == "" {
			id = "unclassified"
		}
		amount := decimal.NewFromFloat(r.Quantity).Mul(decimal.NewFromFloat(r.UnitPrice))
		revenue[id] = revenue[id].Add(amount)
	}
	if len(revenue) == 0 {
		return nil
	}

	total := decimal.Zero
	for _, v := range revenue {
		total = total.Add(v)
	}

	entries := make([]contracts.ABCEntry, 0, len(revenue))
	for id, v := range revenue {
		entries = append(entries, contracts.ABCEntry{ProductID: id, Revenue: v.InexactFloat64()})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Revenue != entries[j].Revenue {
			return entries[i].Revenue > entries[j].Revenue
		}
		return entries[i].ProductID < entries[j].ProductID
	})

	totalF := total.InexactFloat64()
	cum := 0.0
	for i := range entries {
		if totalF > 0 {
			entries[i].RevenueShare = entries[i].Revenue / totalF
		}
		cum += entries[i].RevenueShare
		entries[i].Cumulative = cum
		switch {
		case i == 0 || cum <= opts.ABCAThreshold:
			entries[i].Class = contracts.ClassA
		case cum <= opts.ABCBThreshold:
			entries[i].Class = contracts.ClassB
		default:
			entries[i].Class = contracts.ClassC
		}
	}
	return entries
}

// recommend walks the rule ladder from the most urgent condition down.
func recommend(p contracts.DemandProfile, plan contracts.ReorderPlan, abc []contracts.ABCEntry, fc *contracts.Forecast, opts contracts.InsightOptions) []contracts.Recommendation {
	var recs []contracts.Recommendation

	if p.Volatility > 0.5 {
		recs = append(recs, contracts.Recommendation{
			Priority: contracts.PriorityHigh,
			Category: "safety_stock",
			Message: fmt.Sprintf(
				"Demand volatility is high (CV %.2f). Hold safety stock of at least %.0f units.",
				p.Volatility, plan.SafetyStock),
			Impact: "Lowers stockout risk during demand swings.",
		})
	}

	if fc != nil && p.AvgDaily > 0 && fc.Summary.PeakValue > opts.PeakMultiplier*p.AvgDaily {
		recs = append(recs, contracts.Recommendation{
			Priority: contracts.PriorityHigh,
			Category: "capacity",
			Message: fmt.Sprintf(
				"A demand peak of %.0f units is expected on %s. Secure stock and staffing ahead of it.",
				fc.Summary.PeakValue, fc.Summary.PeakDate.Format("2006-01-02")),
			Impact: "Avoids lost sales on the busiest day of the horizon.",
		})
	}

	switch p.TrendLabel {
	case "increasing":
		recs = append(recs, contracts.Recommendation{
			Priority: contracts.PriorityMedium,
			Category: "replenishment",
			Message: fmt.Sprintf(
				"Demand is trending up. Raise the reorder point toward %.0f units.",
				plan.ReorderPoint),
			Impact: "Keeps service level steady while demand grows.",
		})
	case "decreasing":
		recs = append(recs, contracts.Recommendation{
			Priority: contracts.PriorityMedium,
			Category: "inventory_reduction",
			Message:  "Demand is trending down. Cut order sizes to avoid excess stock.",
			Impact:   "Frees working capital tied up in slow-moving inventory.",
		})
	}

	if nA := countClass(abc, contracts.ClassA); nA > 0 {
		recs = append(recs, contracts.Recommendation{
			Priority: contracts.PriorityLow,
			Category: "abc_focus",
			Message: fmt.Sprintf(
				"%d product(s) drive the bulk of revenue. Count and review class A items weekly.",
				nA),
			Impact: "Concentrates control effort where the money is.",
		})
	}

	if len(recs) == 0 {
		recs = append(recs, contracts.Recommendation{
			Priority: contracts.PriorityLow,
			Category: "steady_state",
			Message: fmt.Sprintf(
				"Demand is stable. Keep ordering %.0f units per order with a reorder point of %.0f.",
				plan.EOQ, plan.ReorderPoint),
			Impact: "Maintains the current cost-optimal policy.",
		})
	}

	return recs
}

func countClass(abc []contracts.ABCEntry, class contracts.ABCClass) int {
	n := 0
	for _, e := range abc {
		if e.Class == class {
			n++
		}
	}
	return n
}
