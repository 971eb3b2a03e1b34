package types

import "github.com/shopspring/decimal"

// ProjectAddon is an optional extra sold with a catalog project.
type ProjectAddon struct {
	ID    string          `json:"id"`
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

// ProjectAddons is stored as jsonb on the projects table.
type ProjectAddons []ProjectAddon

// Find returns the addon with the given id.
func (p ProjectAddons) Find(id string) (ProjectAddon, bool) {
	for _, addon := range p {
		if addon.ID == id {
			return addon, true
		}
	}
	return ProjectAddon{}, false
}

// OrderAddon is the catalog snapshot of an addon selected on an order.
type OrderAddon struct {
	ID    string          `json:"id"`
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

// OrderAddons is stored as jsonb on the orders table.
type OrderAddons []OrderAddon

// Sum adds up the addon prices.
func (o OrderAddons) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, addon := range o {
		total = total.Add(addon.Price)
	}
	return total
}
