package bind

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/screwyprof/pledger/reconciler"
	"github.com/screwyprof/pledger/web/api"
)

// MaxPage keeps the row offset well inside int64 at the largest page size
const MaxPage = 1_000_000

// Sentinel errors for request binding
var (
	ErrInvalidPage       = errors.New("invalid page parameter")
	ErrInvalidPerPage    = errors.New("invalid per_page parameter")
	ErrInvalidDonationID = errors.New("invalid donation id")

	// Specific page validation errors
	ErrPageNotNumeric  = errors.New("page must be numeric")
	ErrPageNotPositive = errors.New("page must be positive")
	ErrPageTooLarge    = fmt.Errorf("page must not exceed %d", MaxPage)

	// Specific per_page validation errors
	ErrPerPageNotNumeric  = errors.New("per_page must be numeric")
	ErrPerPageNotPositive = errors.New("per_page must be positive")
	ErrPerPageTooLarge    = errors.New("per_page must be between 1 and 100")
)

// GetDonationsRequest binds HTTP request to DonationsRequest with defaults.
// owner and status are passed through; the domain criteria validate them.
func GetDonationsRequest(r *http.Request) (api.DonationsRequest, error) {
	query := r.URL.Query()

	req := api.DonationsRequest{
		Owner:   query.Get("owner"),
		Status:  query.Get("status"),
		Page:    1,  // Default to first page
		PerPage: 50, // Default pagination size
	}

	// Parse page parameter
	if pageParam := query.Get("page"); pageParam != "" {
		page, err := parsePageNumber(pageParam)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidPage, err)
		}
		req.Page = page
	}

	// Parse per_page parameter
	if perPageParam := query.Get("per_page"); perPageParam != "" {
		perPage, err := parsePerPageLimit(perPageParam)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidPerPage, err)
		}
		req.PerPage = perPage
	}

	return req, nil
}

// GetHistoryRequest binds the donation id path value; it must be a UUID
func GetHistoryRequest(r *http.Request) (api.HistoryRequest, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return api.HistoryRequest{}, fmt.Errorf("%w: %w", ErrInvalidDonationID, err)
	}
	return api.HistoryRequest{DonationID: id.String()}, nil
}

// parsePageNumber validates that the page parameter is a positive integer
func parsePageNumber(pageParam string) (uint64, error) {
	page, err := strconv.ParseUint(pageParam, 10, 64)
	if err != nil {
		return 0, ErrPageNotNumeric
	}

	if page == 0 {
		return 0, ErrPageNotPositive
	}

	if page > MaxPage {
		return 0, ErrPageTooLarge
	}

	return page, nil
}

// parsePerPageLimit validates that the per_page parameter is within acceptable limits
func parsePerPageLimit(perPageParam string) (uint64, error) {
	perPage, err := strconv.ParseUint(perPageParam, 10, 64)
	if err != nil {
		return 0, ErrPerPageNotNumeric
	}

	if perPage == 0 {
		return 0, ErrPerPageNotPositive
	}

	if perPage > 100 {
		return 0, ErrPerPageTooLarge
	}

	return perPage, nil
}

// GetDonationsResponse binds domain donations to API response format
func GetDonationsResponse(donations []reconciler.Donation) api.DonationsResponse {
	data := make([]api.Donation, len(donations))
	for i, d := range donations {
		data[i] = api.Donation{
			ID:              d.ID,
			TxHash:          d.TxHash,
			NoteID:          string(d.NoteID),
			Amount:          d.Amount.String(),
			Owner:           d.Owner,
			OwnerID:         d.OwnerID,
			OwnerType:       string(d.OwnerType),
			Status:          string(d.Status),
			PaymentState:    string(d.PaymentState),
			ProposedProject: d.ProposedProject,
			Delegate:        d.Delegate,
			DonorAddress:    d.DonorAddress,
			CreatedAt:       d.CreatedAt.Format(time.RFC3339),
		}
		if !d.UpdatedAt.IsZero() {
			data[i].UpdatedAt = d.UpdatedAt.Format(time.RFC3339)
		}
	}

	return api.DonationsResponse{Data: data}
}

// GetHistoryResponse binds history entries to API response format
func GetHistoryResponse(entries []reconciler.HistoryEntry) api.HistoryResponse {
	data := make([]api.HistoryEntry, len(entries))
	for i, e := range entries {
		data[i] = api.HistoryEntry{
			Status:    string(e.Status),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}

	return api.HistoryResponse{Data: data}
}
