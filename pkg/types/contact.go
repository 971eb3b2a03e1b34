package types

import "strings"

// ContactAddress is the structured postal address captured at checkout.
type ContactAddress struct {
	Zip        string `json:"zip,omitempty"`
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
}

// Merge returns a copy of prior where every non-blank field of next wins.
func (a ContactAddress) Merge(next ContactAddress) ContactAddress {
	return ContactAddress{
		Zip:        pick(next.Zip, a.Zip),
		Street:     pick(next.Street, a.Street),
		Number:     pick(next.Number, a.Number),
		Complement: pick(next.Complement, a.Complement),
		District:   pick(next.District, a.District),
		City:       pick(next.City, a.City),
		State:      pick(next.State, a.State),
	}
}

// IsZero reports whether no field carries a value.
func (a ContactAddress) IsZero() bool {
	return a == ContactAddress{}
}

func pick(next, prior string) string {
	if trimmed := strings.TrimSpace(next); trimmed != "" {
		return trimmed
	}
	return prior
}

// PickString returns next when it carries a value, prior otherwise.
func PickString(next, prior string) string {
	return pick(next, prior)
}
