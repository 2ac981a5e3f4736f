// internal/txcsv/reader.go
//
// Package txcsv 為交易串流的 CSV 輸入與帳戶表的 CSV 輸出。
// Reader 實作 engine.Source：逐列讀取、驗證格式並轉成對應的交易型別；
// 格式錯誤的列絕不會送進 engine。
package txcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"txengine/internal/engine"
	"txengine/internal/ledger"
)

// ErrMalformed 代表該列無法解析為交易。
var ErrMalformed = errors.New("malformed record")

// 金額的可接受範圍：最多 28 位小數，係數不超過 96 bits。
// 超出範圍的指數（例如 1e2000000）會讓後續運算與輸出展開成巨大整數，一律視為格式錯誤。
const (
	maxScale        = 28
	maxMantissaBits = 96
)

const bom = "\ufeff"

// RowError 標示格式錯誤的列。
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("txcsv: line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// row 為單列的原始欄位，交由 validator 檢查形狀。
type row struct {
	Type   string `validate:"required,oneof=deposit withdrawal dispute resolve chargeback"`
	Client string `validate:"required,number"`
	Tx     string `validate:"required,number"`
	Amount string `validate:"required_if=Type deposit,required_if=Type withdrawal"`
}

// Option 設定 Reader。
type Option func(*Reader)

// SkipMalformed 為 true 時，格式錯誤的列記錄警告後略過，不回傳錯誤。
func SkipMalformed(skip bool) Option {
	return func(r *Reader) { r.skipMalformed = skip }
}

// WithLogger 設定日誌。
func WithLogger(log *zap.Logger) Option {
	return func(r *Reader) {
		if log != nil {
			r.log = log
		}
	}
}

// Reader 依序讀取 `type, client, tx, amount` 格式的交易。
// 欄位前後空白會被去除；type 必須為小寫；dispute / resolve / chargeback 可省略 amount 欄。
// 開頭的 UTF-8 BOM 會被忽略。
type Reader struct {
	csv           *csv.Reader
	validate      *validator.Validate
	skipMalformed bool
	log           *zap.Logger
	started       bool
	Malformed     int
}

var _ engine.Source = (*Reader)(nil)

// NewReader 建立讀取 r 的 Reader。
func NewReader(r io.Reader, opts ...Option) *Reader {
	c := csv.NewReader(r)
	c.FieldsPerRecord = -1
	c.TrimLeadingSpace = true
	c.ReuseRecord = true

	rd := &Reader{
		csv:      c,
		validate: validator.New(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// Next 回傳下一筆交易；讀完時回傳 io.EOF。
func (r *Reader) Next() (engine.Transaction, error) {
	for {
		tx, err := r.next()
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			r.Malformed++
			if r.skipMalformed {
				r.log.Warn("malformed record skipped", zap.Int("line", rowErr.Line), zap.Error(rowErr.Err))
				continue
			}
		}
		return tx, err
	}
}

func (r *Reader) next() (engine.Transaction, error) {
	for {
		rec, err := r.csv.Read()
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &RowError{Line: pe.Line, Err: fmt.Errorf("%w: %v", ErrMalformed, pe.Err)}
			}
			return nil, err
		}
		line, _ := r.csv.FieldPos(0)

		if !r.started {
			r.started = true
			if len(rec) > 0 {
				rec[0] = strings.TrimPrefix(rec[0], bom)
			}
			if isHeader(rec) {
				continue
			}
		}

		tx, err := r.parse(rec)
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		return tx, nil
	}
}

func isHeader(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "type")
}

func (r *Reader) parse(rec []string) (engine.Transaction, error) {
	if len(rec) < 3 || len(rec) > 4 {
		return nil, fmt.Errorf("%w: want 3 or 4 fields, got %d", ErrMalformed, len(rec))
	}
	raw := row{
		Type:   strings.TrimSpace(rec[0]),
		Client: strings.TrimSpace(rec[1]),
		Tx:     strings.TrimSpace(rec[2]),
	}
	if len(rec) == 4 {
		raw.Amount = strings.TrimSpace(rec[3])
	}
	if err := r.validate.Struct(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	client, err := strconv.ParseUint(raw.Client, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: client %q: %v", ErrMalformed, raw.Client, err)
	}
	id, err := strconv.ParseUint(raw.Tx, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: tx %q: %v", ErrMalformed, raw.Tx, err)
	}
	ref := engine.Ref{Client: ledger.ClientID(client), Tx: ledger.TxID(id)}

	switch engine.Kind(raw.Type) {
	case engine.KindDeposit, engine.KindWithdrawal:
		amt, err := decimal.NewFromString(raw.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: amount %q: %v", ErrMalformed, raw.Amount, err)
		}
		if amt.IsNegative() {
			return nil, fmt.Errorf("%w: negative amount %q", ErrMalformed, raw.Amount)
		}
		if !inRange(amt) {
			return nil, fmt.Errorf("%w: amount %q out of range", ErrMalformed, raw.Amount)
		}
		if engine.Kind(raw.Type) == engine.KindDeposit {
			return engine.Deposit{Ref: ref, Amount: amt}, nil
		}
		return engine.Withdrawal{Ref: ref, Amount: amt}, nil
	case engine.KindDispute:
		return engine.Dispute{Ref: ref}, nil
	case engine.KindResolve:
		return engine.Resolve{Ref: ref}, nil
	case engine.KindChargeback:
		return engine.Chargeback{Ref: ref}, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, raw.Type)
}

// inRange 回報 d 是否落在 maxScale / maxMantissaBits 之內。
// 先檢查指數，確保之後展開的整數最多約 10^28。
func inRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < -maxScale || exp > maxScale {
		return false
	}
	if exp > 0 {
		return d.BigInt().BitLen() <= maxMantissaBits
	}
	return d.Coefficient().BitLen() <= maxMantissaBits
}
