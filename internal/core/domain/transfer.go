package domain

import "github.com/shopspring/decimal"

// TransferStatus tracks an outbox entry from enqueue to ledger delivery.
type TransferStatus string

const (
	TransferPending TransferStatus = "pending"
	TransferSent    TransferStatus = "sent"
)

// Transfer is an outbox entry for one payout. It is written in the same
// store transaction that marks its agreement settled and is handed to the
// ledger afterwards. Key is unique, so an agreement can never be paid
// twice.
type Transfer struct {
	Key         string          `json:"key"`
	AgreementID int64           `json:"agreement_id"`
	Recipient   string          `json:"recipient"`
	Amount      decimal.Decimal `json:"amount"`
	Status      TransferStatus  `json:"status"`
	Attempts    int             `json:"attempts"`
	CreatedAt   int64           `json:"created_at"`
	SentAt      *int64          `json:"sent_at,omitempty"`
}
