package scraper

import (
	"github.com/screwyprof/pledger/pkg/ledger"
	"github.com/screwyprof/pledger/reconciler"
)

// toTransferEvent converts an event log entry into the reconciler's form
func toTransferEvent(e ledger.TransferEvent) reconciler.TransferEvent {
	return reconciler.TransferEvent{
		ID:    e.ID,
		Event: e.Event,
		ReturnValues: reconciler.ReturnValues{
			From:   reconciler.NoteID(e.ReturnValues.From),
			To:     reconciler.NoteID(e.ReturnValues.To),
			Amount: e.ReturnValues.Amount,
		},
		BlockNumber:     e.BlockNumber,
		TransactionHash: e.TransactionHash,
	}
}
