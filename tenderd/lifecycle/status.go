package lifecycle

const (
	TenderDraft     = "draft"
	TenderSubmitted = "submitted"
	TenderPending   = "pending"
	TenderWon       = "won"
	TenderLost      = "lost"
	TenderAwarded   = "awarded"
	TenderCancelled = "cancelled"
	TenderRejected  = "rejected"
)

func TenderStatuses() []string {
	return []string{
		TenderDraft,
		TenderSubmitted,
		TenderPending,
		TenderWon,
		TenderLost,
		TenderAwarded,
		TenderCancelled,
		TenderRejected,
	}
}

const (
	ProjectActive    = "active"
	ProjectOnHold    = "on_hold"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
)

func ProjectStatuses() []string {
	return []string{ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled}
}

const (
	PurchaseOrderDraft     = "draft"
	PurchaseOrderSent      = "sent"
	PurchaseOrderDelivered = "delivered"
)

func PurchaseOrderStatuses() []string {
	return []string{PurchaseOrderDraft, PurchaseOrderSent, PurchaseOrderDelivered}
}
