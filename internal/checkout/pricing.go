package checkout

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	pkgerrors "github.com/josima5/venda-projetos-sub001/pkg/errors"
	"github.com/josima5/venda-projetos-sub001/pkg/types"
)

// Quote is the server-side price of a checkout.
type Quote struct {
	BasePrice   decimal.Decimal
	Addons      types.OrderAddons
	AddonsTotal decimal.Decimal
	Total       decimal.Decimal
}

// PriceProject prices the project with the selected add-ons using catalog
// prices only. Repeated ids count once; unknown ids are rejected.
func PriceProject(project *models.Project, addonIDs []string) (Quote, error) {
	seen := make(map[string]struct{}, len(addonIDs))
	selected := make(types.OrderAddons, 0, len(addonIDs))
	for _, raw := range addonIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		addon, ok := project.Addons.Find(id)
		if !ok {
			return Quote{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown addon %q", id).
				WithDetails(map[string]any{"addon_id": id})
		}
		selected = append(selected, types.OrderAddon{ID: addon.ID, Label: addon.Label, Price: addon.Price})
	}

	addonsTotal := selected.Sum()
	total := project.BasePrice.Add(addonsTotal)
	if !total.IsPositive() {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "order total must be greater than zero")
	}
	return Quote{
		BasePrice:   project.BasePrice,
		Addons:      selected,
		AddonsTotal: addonsTotal,
		Total:       total,
	}, nil
}

// Describe renders the preference item description.
func (q Quote) Describe(title string) string {
	if len(q.Addons) == 0 {
		return title
	}
	labels := make([]string, 0, len(q.Addons))
	for _, addon := range q.Addons {
		labels = append(labels, addon.Label)
	}
	return title + " + " + strings.Join(labels, ", ")
}
