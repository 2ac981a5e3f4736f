// internal/engine/engine.go

// Package engine 依序套用交易到 ledger，並推進存款爭議的狀態機：
//
//	Clean → Disputed → Resolved | ChargedBack
//
// 任何前置條件不成立的交易都只會被略過，不影響後續交易。
// Engine 為單一寫入者，不支援並行呼叫。
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"txengine/internal/ledger"
)

// Source 為 pull-based 的交易來源：依到達順序逐筆產生交易，
// 結束時回傳 io.EOF；只能走訪一次。
type Source interface {
	Next() (Transaction, error)
}

// Observer 在每筆交易套用後被呼叫；err 為 nil 代表已套用，否則為略過原因。
type Observer interface {
	Observe(tx Transaction, err error)
}

// Option 設定 Engine。
type Option func(*Engine)

// WithLogger 設定日誌；預設為 zap.NewNop()。
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithObserver 加入一個 Observer（例如 metrics）。
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// Engine 將交易套用到注入的 Ledger。
// - seen：已受理的 deposit / withdrawal 交易 ID，用於拒絕重複 ID。
type Engine struct {
	ledger    *ledger.Ledger
	seen      map[ledger.TxID]struct{}
	log       *zap.Logger
	observers []Observer
}

// New 建立綁定 l 的 Engine。
func New(l *ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger: l,
		seen:   make(map[ledger.TxID]struct{}),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply 套用單筆交易。回傳非 nil 代表該筆交易被略過（帳本不變），
// 呼叫端可繼續處理後續交易。
// 交易引用的客戶帳戶一律先建立，即使交易最終被略過。
func (e *Engine) Apply(tx Transaction) error {
	if tx == nil {
		return ErrUnsupported
	}
	e.ledger.GetOrCreate(tx.ClientID())

	err := e.apply(tx)
	for _, o := range e.observers {
		o.Observe(tx, err)
	}
	return err
}

func (e *Engine) apply(tx Transaction) error {
	switch tx := tx.(type) {
	case Deposit:
		return e.deposit(tx)
	case Withdrawal:
		return e.withdraw(tx)
	case Dispute:
		return e.transition(tx.Ref, ledger.Disputed, e.ledger.Hold)
	case Resolve:
		return e.transition(tx.Ref, ledger.Resolved, e.ledger.Release)
	case Chargeback:
		return e.transition(tx.Ref, ledger.ChargedBack, e.ledger.Forfeit)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupported, tx)
	}
}

func (e *Engine) deposit(tx Deposit) error {
	if _, ok := e.seen[tx.Tx]; ok {
		return ledger.ErrDuplicateTransaction
	}
	if err := e.ledger.Deposit(tx.Client, tx.Amount); err != nil {
		return err
	}
	if err := e.ledger.RecordDeposit(tx.Tx, tx.Client, tx.Amount); err != nil {
		return err
	}
	e.seen[tx.Tx] = struct{}{}
	return nil
}

func (e *Engine) withdraw(tx Withdrawal) error {
	if _, ok := e.seen[tx.Tx]; ok {
		return ledger.ErrDuplicateTransaction
	}
	if err := e.ledger.Withdraw(tx.Client, tx.Amount); err != nil {
		return err
	}
	e.seen[tx.Tx] = struct{}{}
	return nil
}

// transition 推進 ref 所指存款的爭議狀態：先檢查紀錄、客戶與狀態，
// 再以 move 變更餘額，成功後才寫入新狀態。
func (e *Engine) transition(ref Ref, next ledger.Status, move func(ledger.ClientID, decimal.Decimal) error) error {
	entry, ok := e.ledger.Entry(ref.Tx)
	if !ok {
		return ledger.ErrUnknownTransaction
	}
	if entry.Client != ref.Client {
		return ErrClientMismatch
	}
	if !entry.Status.CanTransition(next) {
		return ledger.ErrInvalidTransition
	}
	if err := move(entry.Client, entry.Amount); err != nil {
		return err
	}
	return e.ledger.SetStatus(ref.Tx, next)
}

// Summary 為一次 Run 的統計。
type Summary struct {
	Read    int
	Applied int
	Skipped map[string]int
}

// Run 從 src 逐筆拉取交易並套用，直到 io.EOF。
// 被略過的交易只記錄與計數；只有來源錯誤或 ctx 取消會中止並回傳錯誤。
func (e *Engine) Run(ctx context.Context, src Source) (Summary, error) {
	sum := Summary{Skipped: make(map[string]int)}
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		tx, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("engine: read transaction: %w", err)
		}
		sum.Read++

		if err := e.Apply(tx); err != nil {
			reason := Reason(err)
			sum.Skipped[reason]++
			e.log.Debug("transaction skipped",
				append(txFields(tx), zap.String("reason", reason), zap.Error(err))...)
			continue
		}
		sum.Applied++
	}

	e.log.Info("transaction stream processed",
		zap.Int("read", sum.Read),
		zap.Int("applied", sum.Applied),
		zap.Int("skipped", sum.Read-sum.Applied),
		zap.Int("accounts", e.ledger.Len()),
	)
	return sum, nil
}

func txFields(tx Transaction) []zap.Field {
	if tx == nil {
		return nil
	}
	return []zap.Field{
		zap.String("type", string(tx.Kind())),
		zap.Uint16("client", uint16(tx.ClientID())),
		zap.Uint32("tx", uint32(tx.TxID())),
	}
}
