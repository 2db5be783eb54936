// Package ledger is a client for the ledger gateway HTTP API: note state,
// delegation chains, block headers and the Transfer event log.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"
)

// Sentinel errors for client operations
var (
	ErrRequestFailed    = errors.New("ledger request failed")
	ErrNotFound         = errors.New("ledger resource not found")
	ErrUnexpectedStatus = errors.New("unexpected ledger response status")
	ErrDecodeFailed     = errors.New("decoding ledger response failed")
)

// Client represents a ledger gateway API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// Option configures the Client
type Option func(*Client)

// WithRateLimit caps outgoing requests to limit per second with the given burst
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// NewClient creates a new ledger API client with custom HTTP client and base URL.
// Requests are not rate limited unless WithRateLimit is given.
func NewClient(httpClient *http.Client, baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Note represents a note as returned by the gateway
type Note struct {
	ID              string `json:"id"`
	Owner           string `json:"owner"`
	PaymentState    string `json:"paymentState"`
	NDelegates      uint64 `json:"nDelegates"`
	ProposedProject string `json:"proposedProject"`
}

// Delegate represents an entry of a note's delegation chain
type Delegate struct {
	IDDelegate string `json:"idDelegate"`
}

// Block represents a block header; Timestamp is in unix seconds
type Block struct {
	Number    uint64 `json:"number"`
	Timestamp int64  `json:"timestamp"`
}

// TransferEvent represents a Transfer entry of the ledger event log
type TransferEvent struct {
	ID           int64  `json:"id"`
	Event        string `json:"event"`
	ReturnValues struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	} `json:"returnValues"`
	BlockNumber     uint64 `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
}

// TransfersRequest represents parameters for paging the event log
type TransfersRequest struct {
	AfterID int64 // only events with a greater id
	Limit   uint64
}

// GetNote retrieves a note by id
func (c *Client) GetNote(ctx context.Context, id string) (Note, error) {
	var note Note
	err := c.get(ctx, "/v1/notes/"+url.PathEscape(id), nil, &note)
	return note, err
}

// GetNoteDelegate retrieves the delegate at the 1-based index of a note's chain
func (c *Client) GetNoteDelegate(ctx context.Context, id string, index uint64) (Delegate, error) {
	var d Delegate
	err := c.get(ctx, "/v1/notes/"+url.PathEscape(id)+"/delegates/"+strconv.FormatUint(index, 10), nil, &d)
	return d, err
}

// GetBlock retrieves a block header by number
func (c *Client) GetBlock(ctx context.Context, number uint64) (Block, error) {
	var b Block
	err := c.get(ctx, "/v1/blocks/"+strconv.FormatUint(number, 10), nil, &b)
	return b, err
}

// GetTransfers retrieves Transfer events after req.AfterID, sorted by id
func (c *Client) GetTransfers(ctx context.Context, req TransfersRequest) ([]TransferEvent, error) {
	query := url.Values{}
	query.Set("id.gt", strconv.FormatInt(req.AfterID, 10))
	query.Set("sort.asc", "id")
	if req.Limit > 0 {
		query.Set("limit", strconv.FormatUint(req.Limit, 10))
	}

	var events []TransferEvent
	err := c.get(ctx, "/v1/events/transfers", query, &events)
	return events, err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: creating request: %w", ErrRequestFailed, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %d for %s", ErrUnexpectedStatus, resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}

	return nil
}
