// internal/server/handler.go
//
// Package server 提供 HTTP 介面：上傳一份 CSV 交易串流，回傳處理後的帳戶表。
// 每個請求各自擁有一個 Ledger 與 Engine，請求之間不共享任何帳戶狀態。
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"txengine/internal/engine"
	"txengine/internal/ledger"
	"txengine/internal/metrics"
	"txengine/internal/txcsv"
)

// Options 為伺服器的行為設定。
type Options struct {
	MaxBodyBytes  int64
	SkipMalformed bool
}

// Server 為 HTTP 層核心結構。
// - registry：/metrics 對外輸出的 Prometheus registry。
// - recorder：所有請求共用的交易計數器。
type Server struct {
	opts     Options
	log      *zap.Logger
	registry *prometheus.Registry
	recorder *metrics.Recorder
}

// NewServer 建立新的 HTTP 伺服器，並在 reg 上註冊 metrics。
func NewServer(opts Options, log *zap.Logger, reg *prometheus.Registry) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return nil, err
	}
	return &Server{opts: opts, log: log, registry: reg, recorder: rec}, nil
}

// process 處理：POST /process
// body 為 `type, client, tx, amount` 格式的 CSV。
func (s *Server) process(c *gin.Context) {
	log := s.log.With(zap.String("request_id", requestID(c)))

	body := c.Request.Body
	if s.opts.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, s.opts.MaxBodyBytes)
	}
	src := txcsv.NewReader(body, txcsv.SkipMalformed(s.opts.SkipMalformed), txcsv.WithLogger(log))

	l := ledger.New()
	e := engine.New(l, engine.WithLogger(log), engine.WithObserver(s.recorder))
	sum, err := e.Run(c.Request.Context(), src)
	if err != nil {
		var rowErr *txcsv.RowError
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &rowErr):
			writeErr(c, http.StatusBadRequest, rowErr)
		case errors.As(err, &tooLarge):
			writeErr(c, http.StatusRequestEntityTooLarge, err)
		default:
			log.Warn("process failed", zap.Error(err))
			writeErr(c, http.StatusInternalServerError, err)
		}
		return
	}

	writeAccounts(c, l.Snapshot(), sum, src.Malformed)
}

// health 提供健康檢查端點：GET /health。
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
