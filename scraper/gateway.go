package scraper

import (
	"context"

	"github.com/screwyprof/pledger/pkg/ledger"
	"github.com/screwyprof/pledger/reconciler"
)

// LedgerAPI reads note state and block headers from the ledger gateway
type LedgerAPI interface {
	GetNote(ctx context.Context, id string) (ledger.Note, error)
	GetNoteDelegate(ctx context.Context, id string, index uint64) (ledger.Delegate, error)
	GetBlock(ctx context.Context, number uint64) (ledger.Block, error)
}

// Gateway adapts the ledger API to the reconciler's Ledger and BlockFetcher
type Gateway struct {
	api LedgerAPI
}

// NewGateway wraps api
func NewGateway(api LedgerAPI) *Gateway {
	return &Gateway{api: api}
}

// GetNote implements reconciler.Ledger
func (g *Gateway) GetNote(ctx context.Context, id reconciler.NoteID) (reconciler.Note, error) {
	n, err := g.api.GetNote(ctx, string(id))
	if err != nil {
		return reconciler.Note{}, err
	}
	return reconciler.Note{
		ID:              reconciler.NoteID(n.ID),
		Owner:           n.Owner,
		PaymentState:    n.PaymentState,
		NDelegates:      n.NDelegates,
		ProposedProject: n.ProposedProject,
	}, nil
}

// GetNoteDelegate implements reconciler.Ledger
func (g *Gateway) GetNoteDelegate(ctx context.Context, id reconciler.NoteID, index uint64) (reconciler.Delegate, error) {
	d, err := g.api.GetNoteDelegate(ctx, string(id), index)
	if err != nil {
		return reconciler.Delegate{}, err
	}
	return reconciler.Delegate{IDDelegate: d.IDDelegate}, nil
}

// GetBlock implements reconciler.BlockFetcher
func (g *Gateway) GetBlock(ctx context.Context, number uint64) (reconciler.Block, error) {
	b, err := g.api.GetBlock(ctx, number)
	if err != nil {
		return reconciler.Block{}, err
	}
	return reconciler.Block{Number: b.Number, Timestamp: b.Timestamp}, nil
}
