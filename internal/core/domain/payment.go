package domain

import (
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentPending          PaymentStatus = "PENDING"
	PaymentProcessing       PaymentStatus = "PROCESSING"
	PaymentSuccess          PaymentStatus = "SUCCESS"
	PaymentFailed           PaymentStatus = "FAILED"
	PaymentCancelled        PaymentStatus = "CANCELLED"
	PaymentPartialCancelled PaymentStatus = "PARTIAL_CANCELLED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing},
	PaymentProcessing: {PaymentSuccess, PaymentFailed},
	PaymentSuccess:    {PaymentCancelled, PaymentPartialCancelled},
	// a failed attempt may be re-armed for a retry
	PaymentFailed: {PaymentPending},
}

func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	MethodCreditCard   PaymentMethod = "CREDIT_CARD"
	MethodDebitCard    PaymentMethod = "DEBIT_CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodKakaoPay     PaymentMethod = "KAKAO_PAY"
	MethodNaverPay     PaymentMethod = "NAVER_PAY"
	MethodToss         PaymentMethod = "TOSS"
	MethodCash         PaymentMethod = "CASH"
	MethodPoint        PaymentMethod = "POINT"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodCreditCard, MethodDebitCard, MethodBankTransfer, MethodKakaoPay,
		MethodNaverPay, MethodToss, MethodCash, MethodPoint:
		return m, true
	}
	return "", false
}

func (m PaymentMethod) IsCard() bool {
	return m == MethodCreditCard || m == MethodDebitCard
}

// InstrumentDetails is whatever the gateway needs to charge the method.
// It is never persisted.
type InstrumentDetails struct {
	CardNumber    string
	CardCVC       string
	CardExpiry    string
	BankCode      string
	AccountNumber string
	EasyPayToken  string
}

// Payment is the single settlement record of an order.
type Payment struct {
	ID               string
	OrderID          string
	Amount           int64
	Method           PaymentMethod
	Status           PaymentStatus
	Attempts         int
	TransactionID    string
	MaskedInstrument string
	FailureReason    string
	CancelReason     string
	PaidAt           *time.Time
	CancelledAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// GatewayRef is the reference sent to the gateway with every attempt so an
// in-flight authorization can be looked up before a transaction id is known.
func (p *Payment) GatewayRef() string {
	return p.ID
}

func (p *Payment) move(to PaymentStatus, now time.Time) error {
	if !p.Status.CanTransitionTo(to) {
		return Errorf(KindInvalidStatusTransition, "payment %s cannot move from %s to %s", p.ID, p.Status, to)
	}
	p.Status = to
	p.UpdatedAt = now
	return nil
}

func (p *Payment) StartProcessing(now time.Time) error {
	return p.move(PaymentProcessing, now)
}

func (p *Payment) Complete(transactionID, masked string, now time.Time) error {
	if err := p.move(PaymentSuccess, now); err != nil {
		return err
	}
	p.TransactionID = transactionID
	p.MaskedInstrument = masked
	p.FailureReason = ""
	p.PaidAt = &now
	return nil
}

func (p *Payment) Fail(reason string, now time.Time) error {
	if err := p.move(PaymentFailed, now); err != nil {
		return err
	}
	p.FailureReason = reason
	return nil
}

func (p *Payment) Cancel(reason string, now time.Time) error {
	if p.Status != PaymentSuccess {
		return Errorf(KindPaymentNotCancellable, "payment %s is %s; only successful payments can be cancelled", p.ID, p.Status)
	}
	if err := p.move(PaymentCancelled, now); err != nil {
		return err
	}
	p.CancelReason = reason
	p.CancelledAt = &now
	return nil
}

// Rearm resets a failed attempt so the order can be charged again.
func (p *Payment) Rearm(method PaymentMethod, now time.Time) error {
	if err := p.move(PaymentPending, now); err != nil {
		return err
	}
	p.Method = method
	p.Attempts++
	return nil
}
