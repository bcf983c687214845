package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/domain/inventory"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/example/ec-checkout/internal/domain/user"
	"go.uber.org/zap"
)

// Settler commits a settlement all-or-nothing: the stock deductions and the
// order in one unit. It returns order.ErrDuplicateSettlement when an order
// already exists for the session and product.ErrProductNotFound when a line
// references a product that no longer exists. Either way nothing is written.
type Settler interface {
	Settle(ctx context.Context, s order.Settlement) ([]inventory.Adjustment, error)
}

// Notifier delivers order confirmations. Failures never undo a settlement.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, c order.Confirmation) error
}

type Config struct {
	// CallTimeout bounds every store, ledger and notifier call.
	CallTimeout time.Duration
	// ClaimTTL is how long a ledger claim outlives a crashed worker.
	ClaimTTL time.Duration
}

type Option func(*Processor)

func WithLedger(l Ledger) Option {
	return func(p *Processor) { p.ledger = l }
}

// WithOutcomeHook registers a callback run once per delivery, e.g. for metrics.
func WithOutcomeHook(fn func(Outcome)) Option {
	return func(p *Processor) { p.onOutcome = fn }
}

func withClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// Processor turns payment confirmations into orders. Settle is safe to call
// concurrently and any number of times for the same session.
type Processor struct {
	orders    order.Store
	settler   Settler
	users     user.Directory
	notifier  Notifier
	ledger    Ledger
	cfg       Config
	logger    *zap.Logger
	onOutcome func(Outcome)
	now       func() time.Time
}

func NewProcessor(orders order.Store, settler Settler, users user.Directory, notifier Notifier, cfg Config, logger *zap.Logger, opts ...Option) *Processor {
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 5 * time.Minute
	}
	p := &Processor{
		orders:    orders,
		settler:   settler,
		users:     users,
		notifier:  notifier,
		ledger:    NopLedger{},
		cfg:       cfg,
		logger:    logger,
		onOutcome: func(Outcome) {},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Settle processes one delivery of a payment confirmation.
//
// A nil error means the delivery is finished and must not be retried: the
// order exists (created now or earlier). A non-nil error always comes with
// OutcomeAborted and no stock or order change; IsRetryable tells the caller
// whether redelivering could succeed.
func (p *Processor) Settle(ctx context.Context, ev Event) (Outcome, error) {
	outcome, err := p.settle(ctx, ev)
	p.onOutcome(outcome)
	return outcome, err
}

func (p *Processor) settle(ctx context.Context, ev Event) (Outcome, error) {
	log := p.logger.With(zap.String("session_id", ev.SessionID))

	if ev.SessionID == "" {
		log.Error("settlement event without session id")
		return OutcomeAborted, fmt.Errorf("%w: missing session id", ErrMalformedMetadata)
	}

	// Fast path: the unique constraint below is what actually prevents a
	// second order; this only avoids needless work on redelivery.
	exists, err := p.orderExists(ctx, ev.SessionID)
	if err != nil {
		log.Error("failed to look up existing order", zap.Error(err))
		return OutcomeAborted, retryable(err)
	}
	if exists {
		log.Info("settlement already recorded, skipping")
		return OutcomeDeduplicated, nil
	}

	md, err := cart.ParseMetadata(ev.Metadata)
	if err != nil {
		log.Error("invalid settlement metadata", zap.Error(err))
		return OutcomeAborted, err
	}
	log = log.With(zap.String("user_id", md.UserID))

	token, err := p.claim(ctx, ev.SessionID)
	if err != nil {
		log.Error("failed to claim session", zap.Error(err))
		return OutcomeAborted, retryable(err)
	}
	if token == "" {
		if exists, err := p.orderExists(ctx, ev.SessionID); err == nil && exists {
			return OutcomeDeduplicated, nil
		}
		log.Warn("session claimed by another worker")
		return OutcomeAborted, retryable(ErrSettlementInFlight)
	}

	o, buyer, err := p.commit(ctx, log, ev, md)
	if errors.Is(err, order.ErrDuplicateSettlement) {
		p.complete(ctx, log, ev.SessionID)
		log.Info("concurrent delivery already created the order")
		return OutcomeDeduplicated, nil
	}
	if err != nil {
		p.release(ctx, log, ev.SessionID, token)
		return OutcomeAborted, err
	}
	p.complete(ctx, log, ev.SessionID)

	log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("total", o.Total.String()),
		zap.Int("items", len(o.Items)))

	return p.notify(ctx, log, o, buyer), nil
}

// commit loads the buyer and writes stock and order together.
func (p *Processor) commit(ctx context.Context, log *zap.Logger, ev Event, md cart.Metadata) (*order.Order, *user.User, error) {
	buyer, err := p.findUser(ctx, md.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			log.Error("buyer not found")
			return nil, nil, err
		}
		log.Error("failed to load buyer", zap.Error(err))
		return nil, nil, retryable(err)
	}

	items := make([]order.LineItem, len(md.Items))
	deductions := make([]order.Deduction, len(md.Items))
	for i, item := range md.Items {
		items[i] = order.LineItem{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Price:        item.UnitPrice,
			Quantity:     item.Quantity,
			VariantID:    item.VariantID,
			VariantValue: item.VariantValue,
		}
		deductions[i] = order.Deduction{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		}
	}

	o, err := order.NewPaid(md.UserID, ev.SessionID, items, ev.AmountTotal, shippingAddress(buyer, ev.Shipping), p.now())
	if err != nil {
		log.Error("cannot build order", zap.Error(err))
		return nil, nil, err
	}

	callCtx, cancel := p.bounded(ctx)
	defer cancel()

	adjustments, err := p.settler.Settle(callCtx, order.Settlement{Order: o, Deductions: deductions})
	switch {
	case err == nil:
	case errors.Is(err, order.ErrDuplicateSettlement):
		return nil, nil, err
	case errors.Is(err, product.ErrProductNotFound):
		log.Error("product missing, settlement rolled back", zap.Error(err))
		return nil, nil, err
	default:
		log.Error("settlement transaction failed", zap.Error(err))
		return nil, nil, retryable(err)
	}

	for _, adj := range adjustments {
		log.Debug("stock deducted",
			zap.Int64("product_id", adj.ProductID),
			zap.String("variant_id", adj.VariantID),
			zap.Int("before", adj.Before),
			zap.Int("after", adj.After))
	}

	return o, buyer, nil
}

// notify is best-effort: errors and panics are logged and swallowed.
func (p *Processor) notify(ctx context.Context, log *zap.Logger, o *order.Order, buyer *user.User) (outcome Outcome) {
	if buyer.Email == "" {
		log.Warn("buyer has no email, skipping confirmation", zap.String("order_id", o.ID))
		return OutcomeNotifySkipped
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("notifier panicked", zap.String("order_id", o.ID), zap.Any("panic", r))
			outcome = OutcomeNotifyFailed
		}
	}()

	callCtx, cancel := p.bounded(ctx)
	defer cancel()

	if err := p.notifier.SendOrderConfirmation(callCtx, order.NewConfirmation(o, buyer.Email, buyer.Name)); err != nil {
		log.Error("failed to send order confirmation", zap.String("order_id", o.ID), zap.Error(err))
		return OutcomeNotifyFailed
	}
	return OutcomeNotified
}

func (p *Processor) orderExists(ctx context.Context, sessionID string) (bool, error) {
	callCtx, cancel := p.bounded(ctx)
	defer cancel()

	_, err := p.orders.FindBySessionID(callCtx, sessionID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, order.ErrOrderNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (p *Processor) findUser(ctx context.Context, id string) (*user.User, error) {
	callCtx, cancel := p.bounded(ctx)
	defer cancel()
	return p.users.FindUser(callCtx, id)
}

func (p *Processor) claim(ctx context.Context, sessionID string) (string, error) {
	callCtx, cancel := p.bounded(ctx)
	defer cancel()
	return p.ledger.Claim(callCtx, sessionID, p.cfg.ClaimTTL)
}

func (p *Processor) release(ctx context.Context, log *zap.Logger, sessionID, token string) {
	callCtx, cancel := p.bounded(ctx)
	defer cancel()
	if err := p.ledger.Release(callCtx, sessionID, token); err != nil {
		log.Warn("failed to release claim", zap.Error(err))
	}
}

func (p *Processor) complete(ctx context.Context, log *zap.Logger, sessionID string) {
	callCtx, cancel := p.bounded(ctx)
	defer cancel()
	if err := p.ledger.Complete(callCtx, sessionID); err != nil {
		log.Warn("failed to mark claim complete", zap.Error(err))
	}
}

func (p *Processor) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.CallTimeout)
}

// shippingAddress prefers the buyer's stored address and falls back to what
// the payment provider collected.
func shippingAddress(u *user.User, collected *order.ShippingAddress) order.ShippingAddress {
	if !u.Address.IsZero() {
		return order.ShippingAddress{
			Name:     u.Name,
			Address1: u.Address.Street,
			City:     u.Address.City,
			State:    u.Address.State,
			Zip:      u.Address.Zip,
		}
	}
	if collected != nil {
		return *collected
	}
	return order.ShippingAddress{Name: u.Name}
}
