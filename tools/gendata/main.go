// Command gendata generates sample datasets in the columnar JSON format the
// worker loads at startup. It produces a simulated retail-bank customer base
// and a pre/post credit-card campaign panel suitable for difference-in-
// differences style questions.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

type column struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Values []any  `json:"values"`
}

type dataset struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Columns []column `json:"columns"`
}

type customer struct {
	id            string
	age           float64
	income        string
	incomeMissing bool
	tenure        float64
	creditTier    string
	numProducts   float64
	hasChecking   bool
	hasSavings    bool
	hasMortgage   bool
	hasAutoLoan   bool
	hasCard       bool
	balance       float64
	digital       bool
	digitalRaw    string
	segment       string
	inTreatment   bool
}

var incomeBrackets = []string{"<30K", "30-50K", "50-75K", "75-100K", "100-150K", ">150K"}
var incomeWeights = []float64{0.15, 0.25, 0.25, 0.18, 0.12, 0.05}

var creditTiers = []string{"Poor", "Fair", "Good", "Very Good", "Excellent"}
var creditWeights = []float64{0.10, 0.20, 0.35, 0.25, 0.10}

func main() {
	var (
		out       = flag.String("out", "data", "output directory for dataset files")
		customers = flag.Int("customers", 5000, "number of customers to generate")
		seed      = flag.Int64("seed", 42, "random seed")
		start     = flag.String("campaign-start", "2024-07-01", "campaign start date (YYYY-MM-DD)")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	campaignStart, err := time.Parse("2006-01-02", *start)
	if err != nil {
		logger.Fatal("Invalid campaign start date", zap.Error(err))
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		logger.Fatal("Create output directory", zap.Error(err))
	}

	rng := rand.New(rand.NewSource(*seed))

	base := generateCustomers(rng, *customers)
	if err := writeDataset(filepath.Join(*out, "customer_profiles.json"), customerDataset(base)); err != nil {
		logger.Fatal("Write customer profiles", zap.Error(err))
	}
	logger.Info("Dataset written",
		zap.String("id", "customer_profiles"),
		zap.Int("rows", len(base)))

	panel := campaignDataset(rng, base, campaignStart, 3, 3)
	rows := len(panel.Columns[0].Values)
	if err := writeDataset(filepath.Join(*out, "campaign_results.json"), panel); err != nil {
		logger.Fatal("Write campaign results", zap.Error(err))
	}
	logger.Info("Dataset written",
		zap.String("id", "campaign_results"),
		zap.Int("rows", rows))
}

func generateCustomers(rng *rand.Rand, n int) []customer {
	out := make([]customer, n)
	for i := range out {
		c := &out[i]
		c.id = fmt.Sprintf("CUST%06d", i+1)
		c.age = clamp(math.Round(rng.NormFloat64()*15+45), 22, 75)
		c.income = weightedChoice(rng, incomeBrackets, incomeWeights)
		// A few customers never declared income, so the profiler has real
		// missingness to report.
		c.incomeMissing = rng.Float64() < 0.03
		c.tenure = clamp(math.Round(rng.ExpFloat64()*48), 1, 240)
		c.creditTier = weightedChoice(rng, creditTiers, creditWeights)
		c.numProducts = clamp(float64(poisson(rng, 2.5)), 1, 6)
		c.hasChecking = rng.Float64() < 0.90
		c.hasSavings = rng.Float64() < 0.75
		c.hasMortgage = rng.Float64() < 0.35
		c.hasAutoLoan = rng.Float64() < 0.25
		c.hasCard = rng.Float64() < 0.60
		c.balance = round2(clamp(lognormal(rng, 8.5, 1.2), 500, 500000))
		c.digital = rng.Float64() < 0.65
		// Two upstream systems feed this flag with different encodings.
		c.digitalRaw = boolStr(c.digital)
		if rng.Float64() < 0.10 {
			if c.digital {
				c.digitalRaw = "1"
			} else {
				c.digitalRaw = "0"
			}
		}
		c.segment = segmentFor(c)
	}
	return out
}

func segmentFor(c *customer) string {
	goodCredit := c.creditTier == "Very Good" || c.creditTier == "Excellent"
	switch {
	case c.balance > 50000 && goodCredit:
		return "Premium"
	case c.balance > 15000 && c.numProducts >= 3:
		return "Growth"
	case c.tenure < 12:
		return "New"
	default:
		return "Standard"
	}
}

func customerDataset(base []customer) dataset {
	n := len(base)
	cols := []column{
		{Name: "customer_id", Kind: "categorical", Values: make([]any, n)},
		{Name: "age", Kind: "numeric", Values: make([]any, n)},
		{Name: "income_bracket", Kind: "categorical", Values: make([]any, n)},
		{Name: "account_tenure_months", Kind: "numeric", Values: make([]any, n)},
		{Name: "credit_score_tier", Kind: "categorical", Values: make([]any, n)},
		{Name: "num_products", Kind: "numeric", Values: make([]any, n)},
		{Name: "has_checking", Kind: "boolean", Values: make([]any, n)},
		{Name: "has_savings", Kind: "boolean", Values: make([]any, n)},
		{Name: "has_mortgage", Kind: "boolean", Values: make([]any, n)},
		{Name: "has_auto_loan", Kind: "boolean", Values: make([]any, n)},
		{Name: "has_credit_card", Kind: "boolean", Values: make([]any, n)},
		{Name: "avg_monthly_balance", Kind: "numeric", Values: make([]any, n)},
		{Name: "digital_user", Kind: "boolean", Values: make([]any, n)},
		{Name: "customer_segment", Kind: "categorical", Values: make([]any, n)},
	}
	for i, c := range base {
		var income any = c.income
		if c.incomeMissing {
			income = nil
		}
		vals := []any{
			c.id, c.age, income, c.tenure, c.creditTier, c.numProducts,
			boolStr(c.hasChecking), boolStr(c.hasSavings), boolStr(c.hasMortgage),
			boolStr(c.hasAutoLoan), boolStr(c.hasCard),
			c.balance, c.digitalRaw, c.segment,
		}
		for j := range cols {
			cols[j].Values[i] = vals[j]
		}
	}
	return dataset{ID: "customer_profiles", Name: "Customer profiles", Columns: cols}
}

// campaignDataset produces a monthly customer panel spanning monthsBefore
// months before the campaign start and monthsAfter after it. Treatment
// assignment is biased toward digitally active Premium and Growth customers,
// and post-campaign treatment rows get lifted engagement rates so the effect
// is recoverable by a difference-in-differences comparison.
func campaignDataset(rng *rand.Rand, base []customer, start time.Time, monthsBefore, monthsAfter int) dataset {
	for i := range base {
		p := 0.4
		if (base[i].segment == "Premium" || base[i].segment == "Growth") && base[i].digital {
			p = 0.6
		}
		base[i].inTreatment = rng.Float64() < p
	}

	cols := []column{
		{Name: "customer_id", Kind: "categorical"},
		{Name: "date", Kind: "datetime"},
		{Name: "campaign_group", Kind: "categorical"},
		{Name: "campaign_start_date", Kind: "datetime"},
		{Name: "email_opened", Kind: "boolean"},
		{Name: "clicked_offer", Kind: "boolean"},
		{Name: "applied_for_card", Kind: "boolean"},
		{Name: "card_activated", Kind: "boolean"},
		{Name: "monthly_card_spend", Kind: "numeric"},
		{Name: "revenue_generated", Kind: "numeric"},
	}
	appendRow := func(vals ...any) {
		for j := range cols {
			cols[j].Values = append(cols[j].Values, vals[j])
		}
	}

	startStr := start.Format("2006-01-02")
	for m := -monthsBefore; m <= monthsAfter; m++ {
		date := start.AddDate(0, 0, 30*m).Format("2006-01-02")
		post := m >= 0
		for i := range base {
			c := &base[i]
			group := "Control"
			if c.inTreatment {
				group = "Treatment"
			}

			openRate, clickRate := 0.08, 0.02
			if c.digital {
				openRate, clickRate = 0.15, 0.05
			}
			applyRate, activateRate := 0.01, 0.70
			if c.inTreatment && post {
				openRate *= 2.5
				clickRate *= 3.0
				applyRate *= 4.0
				activateRate *= 1.2
			}
			switch c.segment {
			case "Premium":
				applyRate *= 1.5
				activateRate *= 1.1
			case "Growth":
				applyRate *= 1.2
			}

			opened := c.inTreatment && rng.Float64() < openRate
			clicked := opened && rng.Float64() < clickRate
			applied := rng.Float64() < applyRate
			activated := applied && c.creditTier != "Poor" && rng.Float64() < activateRate

			spend, revenue := 0.0, 0.0
			if activated {
				switch c.segment {
				case "Premium":
					spend = lognormal(rng, 7.5, 0.8)
				case "Growth":
					spend = lognormal(rng, 6.8, 0.7)
				default:
					spend = lognormal(rng, 6.2, 0.6)
				}
				spend = round2(spend)
				revenue = round2(spend * 0.02)
			}

			appendRow(c.id, date, group, startStr,
				boolStr(opened), boolStr(clicked), boolStr(applied), boolStr(activated),
				spend, revenue)
		}
	}
	return dataset{ID: "campaign_results", Name: "Credit card campaign results", Columns: cols}
}

func writeDataset(path string, ds dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(ds); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func weightedChoice(rng *rand.Rand, options []string, weights []float64) string {
	r := rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return options[i]
		}
	}
	return options[len(options)-1]
}

func poisson(rng *rand.Rand, lambda float64) int {
	// Knuth's method; lambda is small here so the loop stays short.
	l := math.Exp(-lambda)
	k, p := 0, 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

func lognormal(rng *rand.Rand, mu, sigma float64) float64 {
	return math.Exp(rng.NormFloat64()*sigma + mu)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
