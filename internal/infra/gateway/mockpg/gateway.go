// Package mockpg is an in-process payment processor used for local runs and
// tests. It keeps every authorization in memory so voids and status lookups
// behave like a real processor.
package mockpg

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

const (
	DefaultDeclinePrefix = "9999"
	declineReason        = "card limit exceeded"
)

// Config holds the simulated latency and decline rule of the gateway.
type Config struct {
	MinLatency    time.Duration
	MaxLatency    time.Duration
	DeclinePrefix string
}

type authorization struct {
	result ports.GatewayResult
	amount int64
	voided bool
}

// Gateway is an in-memory ports.PaymentGateway.
type Gateway struct {
	cfg Config

	mu          sync.Mutex
	byReference map[string]*authorization
	byTxn       map[string]*authorization

	// failVoid makes every Void report failure; tests flip it.
	failVoid bool
}

var _ ports.PaymentGateway = (*Gateway)(nil)

// New initializes a Gateway, filling latency and decline defaults.
func New(cfg Config) *Gateway {
	if cfg.DeclinePrefix == "" {
		cfg.DeclinePrefix = DefaultDeclinePrefix
	}
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency
	}
	return &Gateway{
		cfg:         cfg,
		byReference: make(map[string]*authorization),
		byTxn:       make(map[string]*authorization),
	}
}

// Authorize decides the outcome up front and records it under the reference
// before waiting out the simulated latency. A caller that times out can still
// learn the outcome through Status.
func (g *Gateway) Authorize(ctx context.Context, req ports.AuthorizeRequest) (ports.GatewayResult, error) {
	if req.Amount <= 0 {
		return ports.GatewayResult{}, fmt.Errorf("mockpg: invalid amount %d", req.Amount)
	}

	result := g.decide(req)

	g.mu.Lock()
	auth := &authorization{result: result, amount: req.Amount}
	g.byReference[req.Reference] = auth
	if result.Success {
		g.byTxn[result.TransactionID] = auth
	}
	g.mu.Unlock()

	slog.InfoContext(ctx, "mockpg authorize",
		"reference", req.Reference,
		"amount", req.Amount,
		"method", string(req.Method),
		"success", result.Success,
	)

	if err := g.sleep(ctx); err != nil {
		return ports.GatewayResult{}, err
	}
	return result, nil
}

// Void releases an approved authorization once.
func (g *Gateway) Void(ctx context.Context, transactionID string, amount int64, reason string) (bool, error) {
	if err := g.sleep(ctx); err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failVoid {
		return false, nil
	}
	auth, ok := g.byTxn[transactionID]
	if !ok {
		slog.WarnContext(ctx, "mockpg void for unknown transaction", "transaction_id", transactionID)
		return false, nil
	}
	if auth.voided {
		slog.WarnContext(ctx, "mockpg void for already voided transaction", "transaction_id", transactionID)
		return false, nil
	}
	if amount != auth.amount {
		return false, nil
	}
	auth.voided = true
	slog.InfoContext(ctx, "mockpg void", "transaction_id", transactionID, "amount", amount, "reason", reason)
	return true, nil
}

// Status returns the recorded outcome of a reference.
func (g *Gateway) Status(_ context.Context, reference string) (ports.GatewayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	auth, ok := g.byReference[reference]
	if !ok {
		return ports.GatewayResult{}, nil
	}
	if auth.voided {
		return ports.GatewayResult{TransactionID: auth.result.TransactionID, FailureReason: "voided"}, nil
	}
	return auth.result, nil
}

// SetVoidFailure forces subsequent voids to be refused.
func (g *Gateway) SetVoidFailure(fail bool) {
	g.mu.Lock()
	g.failVoid = fail
	g.mu.Unlock()
}

func (g *Gateway) decide(req ports.AuthorizeRequest) ports.GatewayResult {
	masked := ""
	if req.Method.IsCard() {
		masked = MaskCardNumber(req.Details.CardNumber)
		if strings.HasPrefix(req.Details.CardNumber, g.cfg.DeclinePrefix) {
			return ports.GatewayResult{MaskedInstrument: masked, FailureReason: declineReason}
		}
	}
	return ports.GatewayResult{
		Success:          true,
		TransactionID:    "txn_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		MaskedInstrument: masked,
	}
}

func (g *Gateway) sleep(ctx context.Context) error {
	d := g.cfg.MinLatency
	if spread := g.cfg.MaxLatency - g.cfg.MinLatency; spread > 0 {
		d += time.Duration(rand.Int64N(int64(spread)))
	}
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MaskCardNumber keeps only the last four digits: "**** **** **** 1234".
func MaskCardNumber(number string) string {
	digits := strings.ReplaceAll(strings.ReplaceAll(number, "-", ""), " ", "")
	if len(digits) < 4 {
		return "****"
	}
	return "**** **** **** " + digits[len(digits)-4:]
}
