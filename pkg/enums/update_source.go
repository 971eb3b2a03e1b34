package enums

// UpdateSource identifies which path produced an order write.
type UpdateSource string

const (
	UpdateSourceCheckout  UpdateSource = "checkout"
	UpdateSourceWebhook   UpdateSource = "webhook"
	UpdateSourceReconcile UpdateSource = "reconcile"
	UpdateSourceAdmin     UpdateSource = "admin"
	UpdateSourceOwner     UpdateSource = "owner"
)

func (s UpdateSource) String() string {
	return string(s)
}
