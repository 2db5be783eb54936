package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/screwyprof/pledger/pkg/httpkit"
	"github.com/screwyprof/pledger/web/api"
	"github.com/screwyprof/pledger/web/donations"
	"github.com/screwyprof/pledger/web/handler/bind"
)

const (
	GetDonationsRoute = http.MethodGet + " " + "/donations"
	GetHistoryRoute   = http.MethodGet + " " + "/donations/{id}/history"
)

// Sentinel errors
var (
	ErrQueryFailed = errors.New("failed to query donations")
)

type Donations struct {
	finder donations.Finder
}

func NewDonations(finder donations.Finder) *Donations {
	return &Donations{
		finder: finder,
	}
}

func (h *Donations) AddRoutes(m *http.ServeMux) {
	m.Handle(GetDonationsRoute, httpkit.HandlerFunc(h.GetDonations))
	m.Handle(GetHistoryRoute, httpkit.HandlerFunc(h.GetHistory))
}

func (h *Donations) GetDonations(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	req, err := bind.GetDonationsRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	criteria, err := donations.NewCriteria(req.Owner, req.Status, req.Page, req.PerPage)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	page, err := h.finder.FindDonations(r.Context(), criteria)
	if err != nil {
		return httpkit.JsonError(api.InternalServerError(fmt.Errorf("%w: %w", ErrQueryFailed, err)))
	}

	httpkit.SetLinks(w, buildPaginationLinks(page, r.URL))

	return httpkit.JSON(bind.GetDonationsResponse(page.Donations))
}

func (h *Donations) GetHistory(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	req, err := bind.GetHistoryRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	entries, err := h.finder.FindHistory(r.Context(), req.DonationID)
	switch {
	case errors.Is(err, donations.ErrDonationNotFound):
		return httpkit.JsonError(api.NotFound(err))
	case err != nil:
		return httpkit.JsonError(api.InternalServerError(fmt.Errorf("%w: %w", ErrQueryFailed, err)))
	}

	return httpkit.JSON(bind.GetHistoryResponse(entries))
}

// buildPaginationLinks returns GitHub-style prev/next links
func buildPaginationLinks(page *donations.Page, baseURL *url.URL) httpkit.Links {
	var links httpkit.Links

	// Keep existing query params such as the owner and status filters
	u := *baseURL
	query := u.Query()
	query.Set("per_page", strconv.FormatUint(uint64(page.Size), 10))

	if page.HasPrevious() {
		query.Set("page", strconv.FormatUint(uint64(page.Number-1), 10))
		u.RawQuery = query.Encode()
		links = append(links, httpkit.Link{URL: u.String(), Rel: "prev"})
	}

	// only if we know there are more pages
	if page.HasNext() {
		query.Set("page", strconv.FormatUint(uint64(page.Number+1), 10))
		u.RawQuery = query.Encode()
		links = append(links, httpkit.Link{URL: u.String(), Rel: "next"})
	}

	// first and last are omitted; last would need a count(*)

	return links
}
