package engine

import (
	"github.com/shopspring/decimal"

	"txengine/internal/ledger"
)

// Kind names a transaction variant as it appears in the input stream.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindDispute    Kind = "dispute"
	KindResolve    Kind = "resolve"
	KindChargeback Kind = "chargeback"
)

// Kinds lists every transaction variant.
var Kinds = []Kind{KindDeposit, KindWithdrawal, KindDispute, KindResolve, KindChargeback}

// Transaction is one of Deposit, Withdrawal, Dispute, Resolve or Chargeback.
type Transaction interface {
	Kind() Kind
	ClientID() ledger.ClientID
	TxID() ledger.TxID
	isTransaction()
}

// Ref carries the fields shared by every variant.
type Ref struct {
	Client ledger.ClientID
	Tx     ledger.TxID
}

func (r Ref) ClientID() ledger.ClientID { return r.Client }
func (r Ref) TxID() ledger.TxID         { return r.Tx }
func (Ref) isTransaction()              {}

// Deposit credits Amount to the client's available funds.
type Deposit struct {
	Ref
	Amount decimal.Decimal
}

// Withdrawal debits Amount from the client's available funds.
type Withdrawal struct {
	Ref
	Amount decimal.Decimal
}

// Dispute opens a claim against the deposit Tx.
type Dispute struct{ Ref }

// Resolve closes a dispute and releases the held funds.
type Resolve struct{ Ref }

// Chargeback closes a dispute by reversing the deposit and locks the account.
type Chargeback struct{ Ref }

func (Deposit) Kind() Kind    { return KindDeposit }
func (Withdrawal) Kind() Kind { return KindWithdrawal }
func (Dispute) Kind() Kind    { return KindDispute }
func (Resolve) Kind() Kind    { return KindResolve }
func (Chargeback) Kind() Kind { return KindChargeback }
