package purchaseorders

// POMergedEvent is published after a successful merge commit.
type POMergedEvent struct {
	POID          int64   `json:"po_id"`
	Number        string  `json:"po_number"`
	VendorID      int64   `json:"vendor_id"`
	OriginalPOIDs []int64 `json:"original_po_ids"`
	TotalAmount   float64 `json:"total_amount"`
	ActorID       int64   `json:"actor_id"`
}

// POCancelledEvent is published after a cancellation.
type POCancelledEvent struct {
	POID    int64  `json:"po_id"`
	Number  string `json:"po_number"`
	Reason  string `json:"reason"`
	ActorID int64  `json:"actor_id"`
}
