package api

// DonationsRequest represents the query parameters for GET /donations
type DonationsRequest struct {
	Owner   string `query:"owner"`    // Optional owner reference
	Status  string `query:"status"`   // Optional status: waiting, to_approve or committed
	Page    uint64 `query:"page"`     // Page number for pagination (default: 1)
	PerPage uint64 `query:"per_page"` // Number of items per page (default: 50, max: 100)
}

// Donation represents a single donation in the API response.
// Amounts are decimal strings; they exceed the range of JSON numbers.
type Donation struct {
	ID              string `json:"id"`
	TxHash          string `json:"txHash"`
	NoteID          string `json:"noteId"`
	Amount          string `json:"amount"`
	Owner           string `json:"owner"`
	OwnerID         string `json:"ownerId"`
	OwnerType       string `json:"ownerType"`
	Status          string `json:"status"`
	PaymentState    string `json:"paymentState"`
	ProposedProject string `json:"proposedProject,omitempty"`
	Delegate        string `json:"delegate,omitempty"`
	DonorAddress    string `json:"donorAddress"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt,omitempty"`
}

// DonationsResponse represents the API response format for GET /donations
type DonationsResponse struct {
	Data []Donation `json:"data"`
}

// HistoryRequest represents the path parameters for GET /donations/{id}/history
type HistoryRequest struct {
	DonationID string `path:"id"`
}

// HistoryEntry represents a single history entry in the API response
type HistoryEntry struct {
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

// HistoryResponse represents the API response format for GET /donations/{id}/history
type HistoryResponse struct {
	Data []HistoryEntry `json:"data"`
}
