// Package metrics derives the presentation-ready figures from a
// completed aggregation pass. Every number here is a pure function of
// the accumulator; nothing is re-read from source files.
package metrics

import (
	"fmt"
	"sort"

	"github.com/nyxcore884/budgetlens/internal/aggregate"
)

// Driver is one top cost driver entry.
type Driver struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Percentage string  `json:"percentage"`
}

// Entry is one row of a full cost distribution.
type Entry struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Percentage string  `json:"percentage"`
}

// RevenueSplit carries the retail/wholesale division of total revenue.
// The two fields always sum to the aggregation's total revenue.
type RevenueSplit struct {
	Retail    float64 `json:"retailRevenue"`
	Wholesale float64 `json:"wholesaleRevenue"`
}

// DefaultSplit assigns all revenue to retail, the behavior when no
// classifier runs or classification is disabled.
func DefaultSplit(totalRevenue float64) RevenueSplit {
	return RevenueSplit{Retail: totalRevenue}
}

// DetailedBreakdown is the three-way cost view carried into the
// persisted snapshot.
type DetailedBreakdown struct {
	ByArticle map[string]float64 `json:"byArticle"`
	ByUnit    map[string]float64 `json:"byUnit"`
	ByRegion  map[string]float64 `json:"byRegion"`
}

// Verified is the trusted numeric summary persisted with a session
// result and handed to the narrative layer as ground truth.
type Verified struct {
	TotalRevenue     float64 `json:"totalRevenue"`
	TotalCosts       float64 `json:"totalCosts"`
	RetailRevenue    float64 `json:"retailRevenue"`
	WholesaleRevenue float64 `json:"wholesaleRevenue"`
	TransactionCount int     `json:"transactionCount"`

	TopCostDrivers       []Driver `json:"topCostDrivers"`
	HolderDistribution   []Entry  `json:"holderDistribution"`
	RegionalDistribution []Entry  `json:"regionalDistribution"`

	CostsByHolder map[string]float64 `json:"costsByHolder"`
	CostsByRegion map[string]float64 `json:"costsByRegion"`

	DetailedBreakdown DetailedBreakdown `json:"detailedBreakdown"`
}

// DefaultTopDrivers is how many cost drivers Derive keeps when the
// caller passes topN <= 0.
const DefaultTopDrivers = 5

// Derive computes the verified metrics for one aggregation state.
// Percentages are always shares of total costs, never of revenue, and
// render as "0.00%" when there are no costs at all.
func Derive(st *aggregate.State, split RevenueSplit, topN int) *Verified {
	if topN <= 0 {
		topN = DefaultTopDrivers
	}

	holders := rank(st.CostsByHolder, st.TotalCosts)
	regions := rank(st.CostsByRegion, st.TotalCosts)

	drivers := make([]Driver, 0, topN)
	for i, e := range holders {
		if i == topN {
			break
		}
		drivers = append(drivers, Driver(e))
	}

	return &Verified{
		TotalRevenue:         st.TotalRevenue,
		TotalCosts:           st.TotalCosts,
		RetailRevenue:        split.Retail,
		WholesaleRevenue:     split.Wholesale,
		TransactionCount:     st.TransactionCount,
		TopCostDrivers:       drivers,
		HolderDistribution:   holders,
		RegionalDistribution: regions,
		CostsByHolder:        st.CostsByHolder,
		CostsByRegion:        st.CostsByRegion,
		DetailedBreakdown: DetailedBreakdown{
			ByArticle: st.Detailed.ByArticle,
			ByUnit:    st.Detailed.ByUnit,
			ByRegion:  st.Detailed.ByRegion,
		},
	}
}

// rank sorts a cost map descending by amount, ties broken by name so
// equal inputs always produce identical output.
func rank(costs map[string]float64, totalCosts float64) []Entry {
	out := make([]Entry, 0, len(costs))
	for name, amount := range costs {
		out = append(out, Entry{
			Name:       name,
			Amount:     amount,
			Percentage: percent(amount, totalCosts),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func percent(amount, totalCosts float64) string {
	if totalCosts == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", amount/totalCosts*100)
}
