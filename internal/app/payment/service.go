// Package payment settles orders against the payment gateway and keeps the
// payment and its order consistent.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/food-ordering/internal/coordinator"
	"github.com/jcmexdev/food-ordering/internal/coordinator/sagalog"
	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/core/events"
	"github.com/jcmexdev/food-ordering/internal/core/policy"
	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

const (
	DefaultGatewayTimeout = 5 * time.Second
	DefaultCancelReason   = "customer request"
)

// Config tunes how the engine talks to the gateway.
type Config struct {
	// GatewayTimeout bounds every gateway call.
	GatewayTimeout time.Duration
	// AllowRetry lets a FAILED payment be charged again.
	AllowRetry bool
}

// Service is the payment engine.
type Service struct {
	store     ports.Store
	catalog   ports.Catalog
	gateway   ports.PaymentGateway
	journal   sagalog.Repository
	publisher ports.EventPublisher
	cfg       Config
	ids       ports.IDGenerator
	clock     ports.Clock
	tracer    trace.Tracer
}

// NewService wires the engine. journal and publisher may be nil.
func NewService(
	store ports.Store,
	catalog ports.Catalog,
	gateway ports.PaymentGateway,
	journal sagalog.Repository,
	publisher ports.EventPublisher,
	cfg Config,
) *Service {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = DefaultGatewayTimeout
	}
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}
	return &Service{
		store:     store,
		catalog:   catalog,
		gateway:   gateway,
		journal:   journal,
		publisher: publisher,
		cfg:       cfg,
		ids:       ports.UUIDGenerator{},
		clock:     ports.SystemClock{},
		tracer:    otel.Tracer("github.com/jcmexdev/food-ordering/internal/app/payment"),
	}
}

// ChargeInput carries a charge request for one order.
type ChargeInput struct {
	OrderID string
	ActorID string
	Method  domain.PaymentMethod
	Details domain.InstrumentDetails
}

type settlementPayload struct {
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Method  string `json:"method"`
	Attempt int    `json:"attempt"`
}

// Charge pays a PENDING order.
//
// The payment row is reserved (PENDING, then PROCESSING) and committed before
// the gateway is called. On approval the payment becomes SUCCESS and the
// order CONFIRMED in one transaction. When the gateway does not answer within
// the configured timeout the payment is returned still PROCESSING and is left
// for Reconcile.
func (s *Service) Charge(ctx context.Context, in ChargeInput) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payment.Charge", trace.WithAttributes(
		attribute.String("order.id", in.OrderID),
		attribute.String("payment.method", string(in.Method)),
	))
	defer span.End()

	p, err := s.charge(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
	}
	if p != nil {
		span.SetAttributes(attribute.String("payment.id", p.ID), attribute.String("payment.status", string(p.Status)))
	}
	return p, err
}

func (s *Service) charge(ctx context.Context, in ChargeInput) (*domain.Payment, error) {
	if _, ok := domain.ParsePaymentMethod(string(in.Method)); !ok {
		return nil, domain.Errorf(domain.KindInvalidInput, "unsupported payment method %q", in.Method)
	}
	if in.Method.IsCard() && strings.TrimSpace(in.Details.CardNumber) == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, "card number is required for %s", in.Method)
	}

	order, err := s.store.Orders().Get(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanPayOrder(in.ActorID, order).Err(); err != nil {
		return nil, err
	}

	payment, err := s.reserve(ctx, in)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "payment processing",
		"payment_id", payment.ID, "order_id", payment.OrderID, "amount", payment.Amount, "attempt", payment.Attempts)

	auth := coordinator.NewAuthorizeStep(s.gateway, ports.AuthorizeRequest{
		Reference: payment.GatewayRef(),
		Amount:    payment.Amount,
		Method:    payment.Method,
		Details:   in.Details,
	}, s.cfg.GatewayTimeout)
	confirm := coordinator.NewConfirmStep(s.store, payment, auth, s.clock)

	saga := coordinator.NewOrchestrator(payment.ID, []coordinator.Step{auth, confirm}, s.journal).
		WithPayload(settlementPayload{
			OrderID: payment.OrderID,
			Amount:  payment.Amount,
			Method:  string(payment.Method),
			Attempt: payment.Attempts,
		})

	sagaErr := saga.Start(ctx)
	if sagaErr == nil {
		s.settled(ctx, payment, confirm.Order())
		return payment, nil
	}
	return s.settlementFailed(ctx, payment, auth.Result(), sagaErr)
}

// reserve creates the payment row, or re-arms a FAILED one, and moves it to
// PROCESSING in a single transaction.
func (s *Service) reserve(ctx context.Context, in ChargeInput) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Store) error {
		order, err := tx.Orders().Get(ctx, in.OrderID)
		if err != nil {
			return err
		}
		existing, err := tx.Payments().GetByOrder(ctx, order.ID)
		if err == nil && (existing.Status != domain.PaymentFailed || !s.cfg.AllowRetry) {
			return domain.Errorf(domain.KindAlreadyPaid, "order %s already has a %s payment", order.ID, existing.Status)
		}
		if order.Status != domain.OrderPending {
			return domain.Errorf(domain.KindOrderNotPayable, "order %s is %s and can no longer be paid", order.ID, order.Status)
		}

		now := s.clock.Now()
		switch {
		case err == nil:
			if err := existing.Rearm(in.Method, now); err != nil {
				return err
			}
			if err := existing.StartProcessing(now); err != nil {
				return err
			}
			if err := tx.Payments().Update(ctx, existing, domain.PaymentFailed); err != nil {
				if domain.IsKind(err, domain.KindInvalidStatusTransition) {
					return domain.Wrap(domain.KindAlreadyPaid, err, fmt.Sprintf("order %s is already being paid", order.ID))
				}
				return err
			}
			payment = existing
			return nil

		case domain.IsKind(err, domain.KindNotFound):
			p := &domain.Payment{
				ID:        s.ids.NewID(),
				OrderID:   order.ID,
				Amount:    order.PayableAmount(),
				Method:    in.Method,
				Status:    domain.PaymentPending,
				Attempts:  1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Payments().Create(ctx, p); err != nil {
				return err
			}
			if err := p.StartProcessing(now); err != nil {
				return err
			}
			if err := tx.Payments().Update(ctx, p, domain.PaymentPending); err != nil {
				return err
			}
			payment = p
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Service) settled(ctx context.Context, p *domain.Payment, order *domain.Order) {
	slog.InfoContext(ctx, "payment succeeded",
		"payment_id", p.ID, "order_id", p.OrderID, "transaction_id", p.TransactionID)

	now := s.clock.Now()
	s.publish(ctx, events.ForPayment(events.PaymentSucceeded, p, now))
	if order != nil {
		s.publish(ctx, events.ForOrder(events.OrderStatusChanged(order.Status), order, now))
	}
}

// settlementFailed decides what a failed saga means for the payment row.
func (s *Service) settlementFailed(ctx context.Context, p *domain.Payment, res ports.GatewayResult, sagaErr error) (*domain.Payment, error) {
	authorized := res.Success

	switch {
	case !authorized && isContextErr(sagaErr):
		// the outcome is unknown; leave PROCESSING for reconciliation
		slog.WarnContext(ctx, "gateway did not answer in time, payment left processing",
			"payment_id", p.ID, "order_id", p.OrderID, "error", sagaErr)
		return p, nil

	case !authorized && domain.IsKind(sagaErr, domain.KindPaymentDeclined):
		s.markFailed(ctx, p, res.FailureReason)
		return p, domain.Wrap(domain.KindPaymentDeclined, sagaErr, res.FailureReason)

	case !authorized:
		s.markFailed(ctx, p, sagaErr.Error())
		return p, domain.Wrap(domain.KindPaymentDeclined, sagaErr, "payment gateway error: "+rootMessage(sagaErr))

	default:
		// authorized but not confirmed; the saga already voided the authorization
		s.markFailed(ctx, p, "authorization voided: "+domain.MessageOf(sagaErr))
		if domain.IsKind(sagaErr, domain.KindOrderNotPayable) {
			return p, sagaErr
		}
		return p, fmt.Errorf("confirm payment %s: %w", p.ID, sagaErr)
	}
}

// markFailed records a failed attempt. It runs detached from ctx so the
// failure is stored even when the caller has gone away.
func (s *Service) markFailed(ctx context.Context, p *domain.Payment, reason string) {
	ctx = context.WithoutCancel(ctx)

	failed := *p
	if err := failed.Fail(reason, s.clock.Now()); err != nil {
		slog.ErrorContext(ctx, "cannot mark payment failed", "payment_id", p.ID, "error", err)
		return
	}
	if err := s.store.Payments().Update(ctx, &failed, domain.PaymentProcessing); err != nil {
		slog.ErrorContext(ctx, "failed to record payment failure", "payment_id", p.ID, "error", err)
		return
	}
	*p = failed

	slog.InfoContext(ctx, "payment failed", "payment_id", p.ID, "order_id", p.OrderID, "reason", reason)
	s.publish(ctx, events.ForPayment(events.PaymentFailed, p, p.UpdatedAt))
}

// postpone bumps updated_at of a still undecided payment so the next stale
// sweep reaches younger rows first.
func (s *Service) postpone(ctx context.Context, p *domain.Payment) {
	touched := *p
	touched.UpdatedAt = s.clock.Now()
	if err := s.store.Payments().Update(ctx, &touched, domain.PaymentProcessing); err != nil {
		slog.WarnContext(ctx, "failed to postpone reconciliation", "payment_id", p.ID, "error", err)
		return
	}
	*p = touched
}

// Cancel voids a successful payment at the gateway and cancels its order in
// the same transaction as the payment. A refused void changes nothing; when a
// concurrent cancel won the race the caller gets PAYMENT_NOT_CANCELLABLE.
func (s *Service) Cancel(ctx context.Context, paymentID, actorID, reason string) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payment.Cancel", trace.WithAttributes(attribute.String("payment.id", paymentID)))
	defer span.End()

	p, order, err := s.loadWithOrder(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	restaurant, err := s.restaurantOf(ctx, order)
	if err != nil {
		return nil, err
	}
	if err := policy.CanCancelPayment(actorID, order, restaurant).Err(); err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentSuccess {
		return nil, domain.Errorf(domain.KindPaymentNotCancellable, "payment %s is %s; only successful payments can be cancelled", p.ID, p.Status)
	}
	if order.Status == domain.OrderDelivered {
		return nil, domain.Errorf(domain.KindPaymentNotCancellable, "order %s is already delivered", order.ID)
	}
	if strings.TrimSpace(reason) == "" {
		reason = DefaultCancelReason
	}

	voidCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	ok, err := s.gateway.Void(voidCtx, p.TransactionID, p.Amount, reason)
	cancel()
	if err != nil || !ok {
		cause := err
		if cause == nil {
			cause = errors.New("void refused by gateway")
		}
		s.record(ctx, p.ID, "cancel", []string{cause.Error()})
		span.RecordError(cause)
		if cur, gerr := s.store.Payments().Get(ctx, p.ID); gerr == nil && cur.Status != domain.PaymentSuccess {
			return nil, domain.Errorf(domain.KindPaymentNotCancellable, "payment %s is %s; only successful payments can be cancelled", cur.ID, cur.Status)
		}
		return nil, domain.Wrap(domain.KindCancelFailed, cause, fmt.Sprintf("gateway could not cancel payment %s", p.ID))
	}

	now := s.clock.Now()
	var orderChanged bool
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Store) error {
		if err := p.Cancel(reason, now); err != nil {
			return err
		}
		if err := tx.Payments().Update(ctx, p, domain.PaymentSuccess); err != nil {
			return err
		}

		o, err := tx.Orders().Get(ctx, p.OrderID)
		if err != nil {
			return err
		}
		prev := o.Status
		if err := o.ForceCancel(reason, now); err != nil {
			return err
		}
		if prev != domain.OrderCancelled {
			if err := tx.Orders().UpdateStatus(ctx, o, prev); err != nil {
				return err
			}
			orderChanged = true
		}
		order = o
		return nil
	})
	if err != nil {
		// the gateway has voided but the local state did not follow
		slog.ErrorContext(ctx, "CRITICAL: payment voided at gateway but not recorded",
			"payment_id", p.ID, "transaction_id", p.TransactionID, "error", err)
		s.record(ctx, p.ID, "cancel", []string{"voided at gateway, local update failed: " + err.Error()})
		return nil, err
	}

	s.record(ctx, p.ID, "cancel", nil)
	slog.InfoContext(ctx, "payment cancelled", "payment_id", p.ID, "order_id", p.OrderID, "reason", reason)
	s.publish(ctx, events.ForPayment(events.PaymentCancelled, p, now))
	if orderChanged {
		s.publish(ctx, events.ForOrder(events.OrderStatusChanged(domain.OrderCancelled), order, now))
		s.publish(ctx, events.ForOrder(events.OrderCancelled, order, now))
	}
	return p, nil
}

// Reconcile settles a PROCESSING payment whose gateway call timed out. An
// approval completes exactly like a synchronous success and a recorded
// decline marks the payment FAILED, which reopens the order for a retry.
// While the gateway has no outcome the payment stays PROCESSING and moves to
// the back of the stale queue.
func (s *Service) Reconcile(ctx context.Context, paymentID string) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payment.Reconcile", trace.WithAttributes(attribute.String("payment.id", paymentID)))
	defer span.End()

	p, err := s.store.Payments().Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentProcessing {
		return p, nil
	}

	statusCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	res, err := s.gateway.Status(statusCtx, p.GatewayRef())
	cancel()
	if err != nil {
		return nil, fmt.Errorf("gateway status of %s: %w", p.ID, err)
	}
	if !res.Success {
		if res.FailureReason != "" {
			s.markFailed(ctx, p, res.FailureReason)
			s.record(ctx, p.ID, "reconcile", []string{res.FailureReason})
			return p, nil
		}
		slog.InfoContext(ctx, "reconcile found no outcome yet", "payment_id", p.ID)
		s.postpone(ctx, p)
		return p, nil
	}

	auth := coordinator.NewRecordedAuthorizationStep(s.gateway, res, p.Amount)
	confirm := coordinator.NewConfirmStep(s.store, p, auth, s.clock)
	sagaErr := coordinator.NewOrchestrator(p.ID, []coordinator.Step{auth, confirm}, s.journal).
		WithPayload(settlementPayload{OrderID: p.OrderID, Amount: p.Amount, Method: string(p.Method), Attempt: p.Attempts}).
		Start(ctx)
	if sagaErr != nil {
		span.RecordError(sagaErr)
		return s.settlementFailed(ctx, p, res, sagaErr)
	}

	slog.InfoContext(ctx, "payment reconciled", "payment_id", p.ID)
	s.settled(ctx, p, confirm.Order())
	return p, nil
}

// ReconcileStale reconciles payments that have been PROCESSING for longer
// than olderThan. It returns how many of them became SUCCESS.
func (s *Service) ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := s.store.Payments().ListStale(ctx, domain.PaymentProcessing, s.clock.Now().Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, p := range stale {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		got, err := s.Reconcile(ctx, p.ID)
		if err != nil {
			slog.WarnContext(ctx, "reconcile failed", "payment_id", p.ID, "error", err)
			continue
		}
		if got.Status == domain.PaymentSuccess {
			settled++
		}
	}
	return settled, nil
}

// Get returns a payment visible to actorID.
func (s *Service) Get(ctx context.Context, paymentID, actorID string) (*domain.Payment, error) {
	p, order, err := s.loadWithOrder(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, actorID, order); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByOrder returns the payment of an order visible to actorID.
func (s *Service) GetByOrder(ctx context.Context, orderID, actorID string) (*domain.Payment, error) {
	order, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, actorID, order); err != nil {
		return nil, err
	}
	return s.store.Payments().GetByOrder(ctx, orderID)
}

// History lists the user's payments created in [from, to), newest first.
func (s *Service) History(ctx context.Context, userID string, from, to time.Time, page ports.Page) ([]*domain.Payment, error) {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, domain.Errorf(domain.KindInvalidInput, "from must be before to")
	}
	return s.store.Payments().History(ctx, ports.PaymentQuery{UserID: userID, From: from, To: to, Page: page})
}

func (s *Service) loadWithOrder(ctx context.Context, paymentID string) (*domain.Payment, *domain.Order, error) {
	p, err := s.store.Payments().Get(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	order, err := s.store.Orders().Get(ctx, p.OrderID)
	if err != nil {
		return nil, nil, err
	}
	return p, order, nil
}

func (s *Service) restaurantOf(ctx context.Context, order *domain.Order) (*domain.Restaurant, error) {
	r, err := s.catalog.GetRestaurant(ctx, order.RestaurantID)
	if domain.IsKind(err, domain.KindNotFound) {
		return nil, nil
	}
	return r, err
}

func (s *Service) canView(ctx context.Context, actorID string, order *domain.Order) error {
	if order.IsOwnedBy(actorID) {
		return nil
	}
	restaurant, err := s.restaurantOf(ctx, order)
	if err != nil {
		return err
	}
	return policy.CanViewOrder(actorID, order, restaurant).Err()
}

func (s *Service) record(ctx context.Context, paymentID, step string, errs []string) {
	if s.journal == nil {
		return
	}
	entry := sagalog.NewEntry(ctx, paymentID, sagalog.StatusRecorded, step, nil, errs)
	if err := s.journal.Save(context.WithoutCancel(ctx), entry); err != nil {
		slog.ErrorContext(ctx, "failed to write settlement journal", "payment_id", paymentID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, ev ports.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "event publish failed", "routing_key", ev.RoutingKey, "error", err)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
