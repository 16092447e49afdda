package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

const rollbackReason = "settlement rolled back"

// Authorization is a step that ends up holding a gateway result.
type Authorization interface {
	Step
	Result() ports.GatewayResult
}

// --- AuthorizeStep ---

// AuthorizeStep asks the gateway to authorize the charge. Compensation voids
// the authorization.
type AuthorizeStep struct {
	gateway ports.PaymentGateway
	request ports.AuthorizeRequest
	timeout time.Duration
	result  ports.GatewayResult
}

func NewAuthorizeStep(gateway ports.PaymentGateway, request ports.AuthorizeRequest, timeout time.Duration) *AuthorizeStep {
	return &AuthorizeStep{gateway: gateway, request: request, timeout: timeout}
}

func (s *AuthorizeStep) Name() string { return "authorize" }

// Execute bounds the gateway call by the step timeout. A declined
// authorization is reported as PAYMENT_DECLINED; a gateway error, including
// the deadline, is wrapped as is.
func (s *AuthorizeStep) Execute(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.gateway.Authorize(ctx, s.request)
	if err != nil {
		return fmt.Errorf("gateway authorize %s: %w", s.request.Reference, err)
	}
	s.result = res
	if !res.Success {
		return domain.Errorf(domain.KindPaymentDeclined, "%s", res.FailureReason)
	}
	return nil
}

func (s *AuthorizeStep) Compensate(ctx context.Context) error {
	return void(ctx, s.gateway, s.result, s.request.Amount)
}

func (s *AuthorizeStep) Result() ports.GatewayResult { return s.result }

// --- RecordedAuthorizationStep ---

// RecordedAuthorizationStep stands in for an authorization the gateway
// already approved, as found by a status lookup. Execute does nothing;
// compensation voids it like AuthorizeStep does.
type RecordedAuthorizationStep struct {
	gateway ports.PaymentGateway
	result  ports.GatewayResult
	amount  int64
}

func NewRecordedAuthorizationStep(gateway ports.PaymentGateway, result ports.GatewayResult, amount int64) *RecordedAuthorizationStep {
	return &RecordedAuthorizationStep{gateway: gateway, result: result, amount: amount}
}

func (s *RecordedAuthorizationStep) Name() string { return "recorded_authorization" }

func (s *RecordedAuthorizationStep) Execute(context.Context) error {
	if !s.result.Success {
		return domain.Errorf(domain.KindPaymentDeclined, "%s", s.result.FailureReason)
	}
	return nil
}

func (s *RecordedAuthorizationStep) Compensate(ctx context.Context) error {
	return void(ctx, s.gateway, s.result, s.amount)
}

func (s *RecordedAuthorizationStep) Result() ports.GatewayResult { return s.result }

func void(ctx context.Context, gateway ports.PaymentGateway, result ports.GatewayResult, amount int64) error {
	if !result.Success {
		return nil
	}
	ok, err := gateway.Void(ctx, result.TransactionID, amount, rollbackReason)
	if err != nil {
		return fmt.Errorf("void %s: %w", result.TransactionID, err)
	}
	if !ok {
		return fmt.Errorf("void %s refused by gateway", result.TransactionID)
	}
	return nil
}

// --- ConfirmStep ---

// ConfirmStep records the approved authorization: in one transaction the
// payment becomes SUCCESS and its order CONFIRMED. It fails with
// ORDER_NOT_PAYABLE when the order left PENDING in the meantime.
type ConfirmStep struct {
	store   ports.Store
	payment *domain.Payment
	auth    Authorization
	clock   ports.Clock
	order   *domain.Order
}

// NewConfirmStep confirms payment using the result held by auth. payment is
// updated in place once the transaction commits.
func NewConfirmStep(store ports.Store, payment *domain.Payment, auth Authorization, clock ports.Clock) *ConfirmStep {
	return &ConfirmStep{store: store, payment: payment, auth: auth, clock: clock}
}

func (s *ConfirmStep) Name() string { return "confirm" }

func (s *ConfirmStep) Execute(ctx context.Context) error {
	res := s.auth.Result()
	now := s.clock.Now()

	confirmed := *s.payment
	if err := confirmed.Complete(res.TransactionID, res.MaskedInstrument, now); err != nil {
		return err
	}

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Store) error {
		err := tx.Payments().Update(ctx, &confirmed, domain.PaymentProcessing)
		if domain.IsKind(err, domain.KindInvalidStatusTransition) {
			// settled by a concurrent reconciliation with the same authorization
			current, getErr := tx.Payments().Get(ctx, confirmed.ID)
			if getErr != nil {
				return getErr
			}
			if current.Status != domain.PaymentSuccess || current.TransactionID != res.TransactionID {
				return err
			}
			confirmed = *current
			order, err = tx.Orders().Get(ctx, confirmed.OrderID)
			return err
		}
		if err != nil {
			return err
		}

		o, err := tx.Orders().Get(ctx, confirmed.OrderID)
		if err != nil {
			return err
		}
		prev := o.Status
		if prev != domain.OrderPending {
			return domain.Errorf(domain.KindOrderNotPayable, "order %s is %s and can no longer be paid", o.ID, prev)
		}
		if err := o.Transition(domain.OrderConfirmed, now); err != nil {
			return err
		}
		if err := tx.Orders().UpdateStatus(ctx, o, prev); err != nil {
			if domain.IsKind(err, domain.KindInvalidStatusTransition) {
				return domain.Wrap(domain.KindOrderNotPayable, err, fmt.Sprintf("order %s changed while being paid", o.ID))
			}
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return err
	}

	*s.payment = confirmed
	s.order = order
	return nil
}

// Compensate is a no-op: confirm is the last step and commits atomically.
func (s *ConfirmStep) Compensate(context.Context) error { return nil }

// Order returns the confirmed order after a successful Execute.
func (s *ConfirmStep) Order() *domain.Order { return s.order }
