// internal/engine/engine_test.go
//
// Engine 的單元測試：涵蓋爭議狀態機的每條轉移、所有略過情境、
// 以及 Run 對串流的處理（略過不中斷、來源錯誤中止、ctx 取消）。

package engine

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"txengine/internal/ledger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func deposit(c ledger.ClientID, tx ledger.TxID, amt string) Transaction {
	return Deposit{Ref: Ref{Client: c, Tx: tx}, Amount: dec(amt)}
}

func withdrawal(c ledger.ClientID, tx ledger.TxID, amt string) Transaction {
	return Withdrawal{Ref: Ref{Client: c, Tx: tx}, Amount: dec(amt)}
}

func dispute(c ledger.ClientID, tx ledger.TxID) Transaction    { return Dispute{Ref{c, tx}} }
func resolve(c ledger.ClientID, tx ledger.TxID) Transaction    { return Resolve{Ref{c, tx}} }
func chargeback(c ledger.ClientID, tx ledger.TxID) Transaction { return Chargeback{Ref{c, tx}} }

// sliceSource 為測試用的 Source：依序回傳交易，結束時回傳 io.EOF。
type sliceSource struct {
	txs []Transaction
	err error
}

func (s *sliceSource) Next() (Transaction, error) {
	if len(s.txs) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	tx := s.txs[0]
	s.txs = s.txs[1:]
	return tx, nil
}

// run 建立新帳本並套用 txs，回傳帳本。
func run(t *testing.T, txs ...Transaction) *ledger.Ledger {
	t.Helper()
	l := ledger.New()
	_, err := New(l).Run(context.Background(), &sliceSource{txs: txs})
	require.NoError(t, err)
	return l
}

func account(t *testing.T, l *ledger.Ledger, c ledger.ClientID) ledger.Account {
	t.Helper()
	a, ok := l.Get(c)
	require.True(t, ok, "account %d not found", c)
	return a
}

func assertView(t *testing.T, a ledger.Account, available, held, total string, locked bool) {
	t.Helper()
	assert.Equal(t, ledger.AccountView{
		Client:    a.Client,
		Available: available,
		Held:      held,
		Total:     total,
		Locked:    locked,
	}, a.View())
}

func TestScenarioA_Deposit(t *testing.T) {
	l := run(t, deposit(1, 1, "5.0"))
	assertView(t, account(t, l, 1), "5.0000", "0.0000", "5.0000", false)
}

func TestScenarioB_DepositWithdraw(t *testing.T) {
	l := run(t, deposit(1, 1, "5.0"), withdrawal(1, 2, "3.0"))
	assertView(t, account(t, l, 1), "2.0000", "0.0000", "2.0000", false)
}

func TestScenarioC_Dispute(t *testing.T) {
	l := run(t, deposit(1, 1, "5.0"), dispute(1, 1))
	assertView(t, account(t, l, 1), "0.0000", "5.0000", "5.0000", false)

	e, ok := l.Entry(1)
	require.True(t, ok)
	assert.Equal(t, ledger.Disputed, e.Status)
}

// TestScenarioD_DisputeAfterWithdrawal 驗證款項已被提走時，dispute 被略過，available 不會為負。
func TestScenarioD_DisputeAfterWithdrawal(t *testing.T) {
	l := ledger.New()
	e := New(l)
	require.NoError(t, e.Apply(deposit(1, 1, "5.0")))
	require.NoError(t, e.Apply(withdrawal(1, 2, "5.0")))
	require.ErrorIs(t, e.Apply(dispute(1, 1)), ledger.ErrInsufficientFunds)

	assertView(t, account(t, l, 1), "0.0000", "0.0000", "0.0000", false)
	entry, _ := l.Entry(1)
	assert.Equal(t, ledger.Clean, entry.Status)
}

func TestScenarioD_PartialWithdrawal(t *testing.T) {
	l := run(t, deposit(1, 1, "5.0"), withdrawal(1, 2, "0.0001"), dispute(1, 1))
	assertView(t, account(t, l, 1), "4.9999", "0.0000", "4.9999", false)
}

func TestScenarioE_ChargebackLocks(t *testing.T) {
	l := ledger.New()
	e := New(l)
	require.NoError(t, e.Apply(deposit(1, 1, "5.0")))
	require.NoError(t, e.Apply(dispute(1, 1)))
	require.NoError(t, e.Apply(chargeback(1, 1)))
	assertView(t, account(t, l, 1), "0.0000", "0.0000", "0.0000", true)

	require.ErrorIs(t, e.Apply(deposit(1, 3, "10.0")), ledger.ErrAccountLocked)
	require.ErrorIs(t, e.Apply(withdrawal(1, 4, "0")), ledger.ErrAccountLocked)
	assertView(t, account(t, l, 1), "0.0000", "0.0000", "0.0000", true)
}

func TestScenarioF_UnknownReference(t *testing.T) {
	l := ledger.New()
	e := New(l)
	require.ErrorIs(t, e.Apply(dispute(1, 99)), ledger.ErrUnknownTransaction)
	// 新客戶以零餘額建立
	assertView(t, account(t, l, 1), "0.0000", "0.0000", "0.0000", false)

	require.NoError(t, e.Apply(deposit(1, 1, "2")))
	require.ErrorIs(t, e.Apply(resolve(1, 99)), ledger.ErrUnknownTransaction)
	require.ErrorIs(t, e.Apply(chargeback(1, 99)), ledger.ErrUnknownTransaction)
	assertView(t, account(t, l, 1), "2.0000", "0.0000", "2.0000", false)
}

func TestResolveReleasesHeld(t *testing.T) {
	l := run(t, deposit(1, 1, "5.0"), dispute(1, 1), resolve(1, 1))
	assertView(t, account(t, l, 1), "5.0000", "0.0000", "5.0000", false)

	e, _ := l.Entry(1)
	assert.Equal(t, ledger.Resolved, e.Status)
}

// TestReplayIsIgnored 驗證重複的 resolve / chargeback 與一次套用效果相同。
func TestReplayIsIgnored(t *testing.T) {
	once := run(t, deposit(1, 1, "5"), deposit(1, 2, "1"), dispute(1, 1), resolve(1, 1))
	twice := run(t, deposit(1, 1, "5"), deposit(1, 2, "1"), dispute(1, 1), resolve(1, 1), resolve(1, 1))
	assert.Equal(t, once.Snapshot(), twice.Snapshot())

	once = run(t, deposit(1, 1, "5"), deposit(1, 2, "1"), dispute(1, 1), chargeback(1, 1))
	twice = run(t, deposit(1, 1, "5"), deposit(1, 2, "1"), dispute(1, 1), chargeback(1, 1), chargeback(1, 1))
	assert.Equal(t, once.Snapshot(), twice.Snapshot())
}

func TestInvalidTransitions(t *testing.T) {
	l := ledger.New()
	e := New(l)
	require.NoError(t, e.Apply(deposit(1, 1, "5")))

	// Clean 不可 resolve / chargeback
	require.ErrorIs(t, e.Apply(resolve(1, 1)), ledger.ErrInvalidTransition)
	require.ErrorIs(t, e.Apply(chargeback(1, 1)), ledger.ErrInvalidTransition)

	require.NoError(t, e.Apply(dispute(1, 1)))
	// Disputed 不可再 dispute
	require.ErrorIs(t, e.Apply(dispute(1, 1)), ledger.ErrInvalidTransition)

	require.NoError(t, e.Apply(resolve(1, 1)))
	// Resolved 為終態
	for _, tx := range []Transaction{dispute(1, 1), resolve(1, 1), chargeback(1, 1)} {
		require.ErrorIs(t, e.Apply(tx), ledger.ErrInvalidTransition, tx.Kind())
	}
	assertView(t, account(t, l, 1), "5.0000", "0.0000", "5.0000", false)
}

// TestChargedBackCannotBeRedisputed 驗證已 chargeback 的紀錄不可再次爭議。
func TestChargedBackCannotBeRedisputed(t *testing.T) {
	l := ledger.New()
	e := New(l)
	require.NoError(t, e.Apply(deposit(1, 1, "5")))
	require.NoError(t, e.Apply(dispute(1, 1)))
	require.NoError(t, e.Apply(chargeback(1, 1)))
	require.ErrorIs(t, e.Apply(dispute(1, 1)), ledger.ErrInvalidTransition)

	entry, _ := l.Entry(1)
	assert.Equal(t, ledger.ChargedBack, entry.Status)
}

func TestClientMismatchIgnored(t *testing.T) {
	l := ledger.New()
	e := New(l)
	require.NoError(t, e.Apply(deposit(1, 1, "5")))
	require.NoError(t, e.Apply(deposit(2, 2, "7")))

	require.ErrorIs(t, e.Apply(dispute(2, 1)), ErrClientMismatch)
	require.NoError(t, e.Apply(dispute(1, 1)))
	require.ErrorIs(t, e.Apply(resolve(2, 1)), ErrClientMismatch)
	require.ErrorIs(t, e.Apply(chargeback(2, 1)), ErrClientMismatch)

	assertView(t, account(t, l, 1), "0.0000", "5.0000", "5.0000", false)
	assertView(t, account(t, l, 2), "7.0000", "0.0000", "7.0000", false)
}

func TestDuplicateTransactionIDs(t *testing.T) {
	l := ledger.New()
	e := New(l)
	require.NoError(t, e.Apply(deposit(1, 1, "5")))
	require.ErrorIs(t, e.Apply(deposit(1, 1, "5")), ledger.ErrDuplicateTransaction)
	require.ErrorIs(t, e.Apply(withdrawal(1, 1, "1")), ledger.ErrDuplicateTransaction)

	require.NoError(t, e.Apply(withdrawal(1, 2, "1")))
	require.ErrorIs(t, e.Apply(deposit(1, 2, "100")), ledger.ErrDuplicateTransaction)

	// 失敗的提款不佔用交易 ID
	require.ErrorIs(t, e.Apply(withdrawal(1, 3, "100")), ledger.ErrInsufficientFunds)
	require.NoError(t, e.Apply(deposit(1, 3, "1")))

	assertView(t, account(t, l, 1), "5.0000", "0.0000", "5.0000", false)
}

func TestNegativeAmountIgnored(t *testing.T) {
	l := ledger.New()
	e := New(l)
	require.ErrorIs(t, e.Apply(deposit(1, 1, "-5")), ledger.ErrNegativeAmount)
	require.ErrorIs(t, e.Apply(withdrawal(1, 2, "-5")), ledger.ErrNegativeAmount)
	_, ok := l.Entry(1)
	assert.False(t, ok)
	assertView(t, account(t, l, 1), "0.0000", "0.0000", "0.0000", false)
}

// TestLockedAccountBlocksOtherDisputes 驗證帳戶凍結後，其他仍在爭議中的紀錄也無法 resolve。
func TestLockedAccountBlocksOtherDisputes(t *testing.T) {
	l := ledger.New()
	e := New(l)
	require.NoError(t, e.Apply(deposit(1, 1, "5")))
	require.NoError(t, e.Apply(deposit(1, 2, "3")))
	require.NoError(t, e.Apply(dispute(1, 1)))
	require.NoError(t, e.Apply(dispute(1, 2)))
	require.NoError(t, e.Apply(chargeback(1, 1)))

	require.ErrorIs(t, e.Apply(resolve(1, 2)), ledger.ErrAccountLocked)
	entry, _ := l.Entry(2)
	assert.Equal(t, ledger.Disputed, entry.Status)
	assertView(t, account(t, l, 1), "0.0000", "3.0000", "3.0000", true)
}

func TestFullPrecisionKeptInternally(t *testing.T) {
	l := run(t,
		deposit(1, 1, "0.00004"),
		deposit(1, 2, "0.00004"),
		deposit(1, 3, "0.00004"),
	)
	a := account(t, l, 1)
	assert.True(t, a.Total.Equal(dec("0.00012")))
	assert.Equal(t, "0.0001", a.View().Total)
}

// TestRandomStreamInvariants 以隨機交易串流驗證：
// 每筆交易後 available + held == total、held >= 0，且凍結帳戶不再變動。
func TestRandomStreamInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := ledger.New()
	e := New(l)
	frozen := map[ledger.ClientID]ledger.Account{}

	for i := 0; i < 5000; i++ {
		c := ledger.ClientID(rng.Intn(5) + 1)
		tx := ledger.TxID(rng.Intn(400) + 1)
		amt := decimal.New(rng.Int63n(100000), -4)
		var next Transaction
		switch rng.Intn(5) {
		case 0:
			next = Deposit{Ref{c, tx}, amt}
		case 1:
			next = Withdrawal{Ref{c, tx}, amt}
		case 2:
			next = dispute(c, tx)
		case 3:
			next = resolve(c, tx)
		default:
			next = chargeback(c, tx)
		}
		_ = e.Apply(next)

		for _, a := range l.Snapshot() {
			require.True(t, a.Available.Add(a.Held).Equal(a.Total), "step %d: %+v", i, a)
			require.False(t, a.Held.IsNegative(), "step %d: %+v", i, a)
			require.False(t, a.Available.IsNegative(), "step %d: %+v", i, a)
			if f, ok := frozen[a.Client]; ok {
				require.Equal(t, f, a, "locked account changed at step %d", i)
			} else if a.Locked {
				frozen[a.Client] = a
			}
		}
	}
}

type recordingObserver struct {
	reasons []string
}

func (r *recordingObserver) Observe(_ Transaction, err error) {
	r.reasons = append(r.reasons, Reason(err))
}

func TestRunSummaryAndObserver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	obs := &recordingObserver{}
	l := ledger.New()
	e := New(l, WithLogger(zap.New(core)), WithObserver(obs))

	sum, err := e.Run(context.Background(), &sliceSource{txs: []Transaction{
		deposit(1, 1, "5"),
		withdrawal(1, 2, "9"),
		dispute(1, 99),
		dispute(1, 1),
	}})
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Read)
	assert.Equal(t, 2, sum.Applied)
	assert.Equal(t, map[string]int{"insufficient_funds": 1, "unknown_transaction": 1}, sum.Skipped)
	assert.Equal(t, []string{"applied", "insufficient_funds", "unknown_transaction", "applied"}, obs.reasons)

	assert.Equal(t, 2, logs.FilterMessage("transaction skipped").Len())
	require.Equal(t, 1, logs.FilterMessage("transaction stream processed").Len())
	skipped := logs.FilterMessage("transaction skipped").All()[0].ContextMap()
	assert.Equal(t, "withdrawal", skipped["type"])
	assert.Equal(t, "insufficient_funds", skipped["reason"])
}

func TestRunStopsOnSourceError(t *testing.T) {
	boom := errors.New("boom")
	l := ledger.New()
	sum, err := New(l).Run(context.Background(), &sliceSource{
		txs: []Transaction{deposit(1, 1, "5")},
		err: boom,
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, sum.Applied)
}

func TestRunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := ledger.New()
	sum, err := New(l).Run(ctx, &sliceSource{txs: []Transaction{deposit(1, 1, "5")}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Read)
	assert.Zero(t, l.Len())
}

func TestApplyNil(t *testing.T) {
	e := New(ledger.New())
	require.ErrorIs(t, e.Apply(nil), ErrUnsupported)
	assert.Equal(t, "unsupported", Reason(e.Apply(nil)))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "applied", Reason(nil))
	assert.Equal(t, "account_locked", Reason(ledger.ErrAccountLocked))
	assert.Equal(t, "other", Reason(errors.New("x")))
}
