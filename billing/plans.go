package billing

import "strings"

// Plan is one subscription tier. Prices are IDR minor units, billed monthly.
type Plan struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
	Duration string `json:"duration"`
}

var Plans = []Plan{
	{ID: "starter", Name: "Starter Plan", Price: 99000, Currency: "IDR", Duration: "monthly"},
	{ID: "professional", Name: "Professional Plan", Price: 299000, Currency: "IDR", Duration: "monthly"},
	{ID: "enterprise", Name: "Enterprise Plan", Price: 999000, Currency: "IDR", Duration: "monthly"},
}

func PlanByID(id string) (Plan, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PlanFromOrderID recovers the plan from a merchant order id
// (OASIS-{PLAN}-{millis}-{random}). Used on the degraded fallback path where
// no transaction row exists.
func PlanFromOrderID(orderID string) (Plan, bool) {
	parts := strings.Split(orderID, "-")
	if len(parts) < 4 {
		return Plan{}, false
	}
	return PlanByID(parts[1])
}
