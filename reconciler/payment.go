package reconciler

// PaymentState mirrors the payment state of a ledger note
type PaymentState string

const (
	PaymentNotPaid PaymentState = "NotPaid"
	PaymentPaying  PaymentState = "Paying"
	PaymentPaid    PaymentState = "Paid"
	PaymentUnknown PaymentState = "Unknown"
)

// PaymentStateFromCode maps a ledger payment-state code to a PaymentState.
// Unrecognised codes map to PaymentUnknown; the mapping never fails.
func PaymentStateFromCode(code string) PaymentState {
	switch code {
	case "0":
		return PaymentNotPaid
	case "1":
		return PaymentPaying
	case "2":
		return PaymentPaid
	default:
		return PaymentUnknown
	}
}

// historyStatusFor returns the history label for a payment state, if any.
// Cancelled vault payments and vetoed delegations have no entry.
func historyStatusFor(state PaymentState) (HistoryStatus, bool) {
	switch state {
	case PaymentPaying:
		return HistoryPaymentInitiated, true
	case PaymentPaid:
		return HistoryPaymentCompleted, true
	default:
		return "", false
	}
}
