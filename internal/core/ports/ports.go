package ports

import (
	"context"
	"time"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
)

// Catalog resolves restaurants and menu items. Owned by another bounded context.
type Catalog interface {
	GetMenuItem(ctx context.Context, menuItemID string) (*domain.MenuItem, error)
	GetRestaurant(ctx context.Context, restaurantID string) (*domain.Restaurant, error)
}

// UserDirectory resolves the delivery profile of a user.
type UserDirectory interface {
	GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
}

// MaxPageNumber is the last page a listing can be asked for.
const MaxPageNumber = 100_000

// Page is a zero-based page request.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps Number to [0, MaxPageNumber] and falls back to a size of
// 20 when Size is out of (0, 100].
func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Number > MaxPageNumber {
		p.Number = MaxPageNumber
	}
	if p.Size <= 0 || p.Size > 100 {
		p.Size = 20
	}
	return p
}

// Offset is the number of rows a normalized page skips.
func (p Page) Offset() int {
	return p.Number * p.Size
}

type CartRepository interface {
	// GetByUser returns NOT_FOUND when the user never had a cart.
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	// Save upserts the cart and replaces its lines.
	Save(ctx context.Context, cart *domain.Cart) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, page Page) ([]*domain.Order, error)
	// UpdateStatus persists order's status fields only if the stored status
	// still equals expected. It reports INVALID_STATUS_TRANSITION otherwise.
	UpdateStatus(ctx context.Context, order *domain.Order, expected domain.OrderStatus) error
}

// PaymentQuery filters payment history.
type PaymentQuery struct {
	UserID string
	From   time.Time
	To     time.Time
	Page   Page
}

type PaymentRepository interface {
	// Create fails with ALREADY_PAID when the order already has a payment.
	Create(ctx context.Context, payment *domain.Payment) error
	Get(ctx context.Context, paymentID string) (*domain.Payment, error)
	GetByOrder(ctx context.Context, orderID string) (*domain.Payment, error)
	// Update is a guarded write: it applies only while the stored status is expected.
	Update(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) error
	History(ctx context.Context, q PaymentQuery) ([]*domain.Payment, error)
	ListStale(ctx context.Context, status domain.PaymentStatus, updatedBefore time.Time, limit int) ([]*domain.Payment, error)
}

// Store is the unit of work over all aggregates.
type Store interface {
	Carts() CartRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	// WithinTx runs fn against a transactional view of the store. Nested calls
	// join the outer transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type AuthorizeRequest struct {
	// Reference identifies the attempt so its outcome can be queried later.
	Reference string
	Amount    int64
	Method    domain.PaymentMethod
	Details   domain.InstrumentDetails
}

// GatewayResult is the outcome of an authorization. A failed result with a
// FailureReason is a final decline; a zero result means no outcome is known.
type GatewayResult struct {
	Success          bool
	TransactionID    string
	MaskedInstrument string
	FailureReason    string
}

// PaymentGateway is the external payment processor. Implementations must be
// safe for concurrent use.
type PaymentGateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (GatewayResult, error)
	// Void reports false when the transaction is unknown, already voided or
	// the amount does not match.
	Void(ctx context.Context, transactionID string, amount int64, reason string) (bool, error)
	// Status returns the recorded outcome of a reference. A reference the
	// gateway never saw yields a zero result. A voided authorization reads
	// as a decline.
	Status(ctx context.Context, reference string) (GatewayResult, error)
}

type Event struct {
	RoutingKey string
	Payload    any
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

type IDGenerator interface {
	NewID() string
}

type Clock interface {
	Now() time.Time
}
