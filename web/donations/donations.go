// Package donations is the read side of the donation store: listing
// criteria, pagination and the finder the web handlers query.
package donations

import (
	"context"
	"errors"
	"fmt"

	"github.com/screwyprof/pledger/reconciler"
)

// Sentinel errors for criteria construction and lookups
var (
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidPerPage   = errors.New("invalid per_page")
	ErrDonationNotFound = errors.New("donation not found")
)

// Finder defines the interface for querying donations
type Finder interface {
	FindDonations(ctx context.Context, criteria Criteria) (*Page, error)
	// FindHistory returns the history of a donation, oldest first.
	// Unknown donations yield ErrDonationNotFound.
	FindHistory(ctx context.Context, donationID string) ([]reconciler.HistoryEntry, error)
}

// Criteria specifies criteria for listing donations
type Criteria struct {
	Owner  string                    // owner reference, empty means any
	Status reconciler.DonationStatus // empty means any
	Page   PageNumber
	Size   PerPage
}

// ItemsPerPage returns the number of items requested per page
func (c Criteria) ItemsPerPage() uint64 {
	return c.Size.Uint64()
}

// ItemsToSkip returns the number of items to skip for pagination
func (c Criteria) ItemsToSkip() uint64 {
	return (c.Page.Uint64() - 1) * c.Size.Uint64()
}

// NewCriteria creates Criteria with validation. Zero page and perPage fall
// back to their defaults.
func NewCriteria(owner, status string, page, perPage uint64) (Criteria, error) {
	s, err := parseStatus(status)
	if err != nil {
		return Criteria{}, fmt.Errorf("%w: %w", ErrInvalidStatus, err)
	}

	pp, err := ParsePerPageFromUint64(perPage)
	if err != nil {
		return Criteria{}, fmt.Errorf("%w: %w", ErrInvalidPerPage, err)
	}

	return Criteria{
		Owner:  owner,
		Status: s,
		Page:   ParsePageFromUint64(page),
		Size:   pp,
	}, nil
}

var errUnknownStatus = errors.New("status must be one of waiting, to_approve, committed")

func parseStatus(status string) (reconciler.DonationStatus, error) {
	switch s := reconciler.DonationStatus(status); s {
	case "", reconciler.StatusWaiting, reconciler.StatusToApprove, reconciler.StatusCommitted:
		return s, nil
	default:
		return "", errUnknownStatus
	}
}
