package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/pledger/reconciler"
	"github.com/screwyprof/pledger/web/api"
	"github.com/screwyprof/pledger/web/donations"
	"github.com/screwyprof/pledger/web/handler"
)

const donationID = "6f1c1d2e-8a9b-4c3d-9e8f-0a1b2c3d4e5f"

func TestGetDonations(t *testing.T) {
	t.Parallel()

	t.Run("it returns donations with amounts as decimal strings", func(t *testing.T) {
		t.Parallel()

		// Arrange
		finder := &fakeFinder{page: &donations.Page{
			Donations: []reconciler.Donation{donation("1000000000000000000000")},
			Number:    1,
			Size:      50,
		}}

		// Act
		resp := serve(finder, "/donations")

		// Assert
		require.Equal(t, http.StatusOK, resp.Code)
		body := decode[api.DonationsResponse](t, resp)
		require.Len(t, body.Data, 1)
		assert.Equal(t, "1000000000000000000000", body.Data[0].Amount)
		assert.Equal(t, "committed", body.Data[0].Status)
		assert.Equal(t, "2024-01-01T00:00:00Z", body.Data[0].CreatedAt)
		assert.Empty(t, body.Data[0].UpdatedAt)
		assert.Empty(t, resp.Header().Get("Link"))
	})

	t.Run("it passes filters and paging to the finder", func(t *testing.T) {
		t.Parallel()

		// Arrange
		finder := &fakeFinder{page: &donations.Page{Number: 2, Size: 10}}

		// Act
		resp := serve(finder, "/donations?owner=7&status=to_approve&page=2&per_page=10")

		// Assert
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "7", finder.criteria.Owner)
		assert.Equal(t, reconciler.StatusToApprove, finder.criteria.Status)
		assert.Equal(t, uint64(2), finder.criteria.Page.Uint64())
		assert.Equal(t, uint64(10), finder.criteria.Size.Uint64())
	})

	t.Run("it links to neighbouring pages and keeps filters", func(t *testing.T) {
		t.Parallel()

		// Arrange
		finder := &fakeFinder{page: &donations.Page{Number: 2, Size: 10, HasMore: true}}

		// Act
		resp := serve(finder, "/donations?owner=7&page=2&per_page=10")

		// Assert
		link := resp.Header().Get("Link")
		assert.Contains(t, link, `page=1&per_page=10>; rel="prev"`)
		assert.Contains(t, link, `page=3&per_page=10>; rel="next"`)
		assert.Contains(t, link, "owner=7")
	})

	t.Run("it rejects invalid parameters", func(t *testing.T) {
		t.Parallel()

		testCases := []struct {
			name  string
			query string
		}{
			{name: "unknown status", query: "status=pending"},
			{name: "non numeric page", query: "page=abc"},
			{name: "zero page", query: "page=0"},
			{name: "page past the offset range", query: "page=18446744073709551615"},
			{name: "page just above maximum", query: "page=1000001"},
			{name: "per_page above maximum", query: "per_page=101"},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				// Act
				resp := serve(&fakeFinder{}, "/donations?"+tc.query)

				// Assert
				assert.Equal(t, http.StatusBadRequest, resp.Code)
			})
		}
	})

	t.Run("it hides finder failures", func(t *testing.T) {
		t.Parallel()

		// Arrange
		finder := &fakeFinder{err: errors.New("connection reset by peer")}

		// Act
		resp := serve(finder, "/donations")

		// Assert
		require.Equal(t, http.StatusInternalServerError, resp.Code)
		assert.NotContains(t, resp.Body.String(), "connection reset")
	})
}

func TestGetHistory(t *testing.T) {
	t.Parallel()

	t.Run("it returns the history of a donation", func(t *testing.T) {
		t.Parallel()

		// Arrange
		finder := &fakeFinder{history: []reconciler.HistoryEntry{
			{Status: reconciler.HistoryPaymentInitiated, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			{Status: reconciler.HistoryPaymentCompleted, CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		}}

		// Act
		resp := serve(finder, "/donations/"+donationID+"/history")

		// Assert
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, donationID, finder.historyID)
		body := decode[api.HistoryResponse](t, resp)
		require.Len(t, body.Data, 2)
		assert.Equal(t, "Payment Initiated", body.Data[0].Status)
		assert.Equal(t, "Payment Completed", body.Data[1].Status)
	})

	t.Run("it rejects malformed donation ids", func(t *testing.T) {
		t.Parallel()

		// Act
		resp := serve(&fakeFinder{}, "/donations/not-a-uuid/history")

		// Assert
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("it reports unknown donations as not found", func(t *testing.T) {
		t.Parallel()

		// Arrange
		finder := &fakeFinder{err: fmt.Errorf("%w: %s", donations.ErrDonationNotFound, donationID)}

		// Act
		resp := serve(finder, "/donations/"+donationID+"/history")

		// Assert
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

// Test helpers

func serve(finder donations.Finder, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	handler.NewDonations(finder).AddRoutes(mux)

	resp := httptest.NewRecorder()
	mux.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))

	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()

	var result T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result), "Response should be valid JSON")

	return result
}

func donation(amount string) reconciler.Donation {
	return reconciler.Donation{
		ID:           donationID,
		TxHash:       "0xabc",
		NoteID:       "42",
		Amount:       reconciler.MustParseAmount(amount),
		Owner:        "7",
		OwnerType:    reconciler.OwnerProject,
		Status:       reconciler.StatusCommitted,
		PaymentState: reconciler.PaymentNotPaid,
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Mock implementations

type fakeFinder struct {
	page      *donations.Page
	history   []reconciler.HistoryEntry
	err       error
	criteria  donations.Criteria
	historyID string
}

func (f *fakeFinder) FindDonations(_ context.Context, criteria donations.Criteria) (*donations.Page, error) {
	f.criteria = criteria
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeFinder) FindHistory(_ context.Context, id string) ([]reconciler.HistoryEntry, error) {
	f.historyID = id
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}
