package cartclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	apperrors "github.com/ssnivlek/kelvo-ecomm/pkg/errors"
	"github.com/ssnivlek/kelvo-ecomm/pkg/pricing"
)

// Notification levels.
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Messages used when the server gave none.
const (
	MessageOffline        = "Cart service unavailable; showing your local cart"
	MessageCouponFailed   = "Could not apply coupon code"
	MessageRemoveFailed   = "Could not remove coupon"
	MessageCartNotChanged = "Cart could not be updated"
)

// Notification is a user-facing message produced by a Mirror action.
type Notification struct {
	Level   string
	Message string
}

// Notifier receives user-facing notifications, typically rendered as toasts.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

// State is the Mirror's view of the cart.
type State struct {
	Items           []Item
	Totals          pricing.Totals
	Coupon          string
	DiscountPercent float64
	DiscountLabel   string
	IsLoading       bool
}

func (s State) clone() State {
	s.Items = append([]Item{}, s.Items...)
	return s
}

// Mirror keeps an optimistic local copy of one session's cart.
//
// Item mutations are applied locally first, with the same totals code the
// server uses, and then sent to the server. A server response always replaces
// the local state. If the server cannot be reached the local state is kept
// and the Mirror reports itself degraded; if the server rejects the change
// the previous state is restored and the error returned.
//
// Coupon changes need server-side validation, so they are never applied
// optimistically: on failure the state is left as it was and an error
// notification is sent.
//
// Actions are serialised; state reads never wait for the network.
type Mirror struct {
	backend   Backend
	sessionID string
	notifier  Notifier
	logger    *slog.Logger

	opMu sync.Mutex

	mu       sync.RWMutex
	state    State
	degraded bool
}

// NewMirror creates a Mirror for the session held in sessions. notifier and
// logger may be nil.
func NewMirror(backend Backend, sessions SessionStore, notifier Notifier, logger *slog.Logger) *Mirror {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		backend:   backend,
		sessionID: SessionID(sessions),
		notifier:  notifier,
		logger:    logger,
		state:     State{Items: []Item{}, Totals: pricing.Zero()},
	}
}

// SessionID returns the session this Mirror tracks.
func (m *Mirror) SessionID() string {
	return m.sessionID
}

// State returns a copy of the current state.
func (m *Mirror) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// Degraded reports whether the last item action or load fell back to local
// state because the server was unreachable.
func (m *Mirror) Degraded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degraded
}

// ItemCount is the total quantity across all lines.
func (m *Mirror) ItemCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, it := range m.state.Items {
		n += it.Quantity
	}
	return n
}

// Load replaces the local state with the server's cart.
func (m *Mirror) Load(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.setLoading(true)
	snap, err := m.backend.GetCart(ctx, m.sessionID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.IsLoading = false
	if err != nil {
		m.degraded = true
		m.logger.WarnContext(ctx, "cart load failed, keeping local cart",
			slog.String("session_id", m.sessionID),
			slog.String("error", err.Error()),
		)
		return err
	}
	m.state = fromSnapshot(snap)
	m.degraded = false
	return nil
}

// AddItem adds it to the cart, merging with an existing line for the same
// product. A zero quantity adds one.
func (m *Mirror) AddItem(ctx context.Context, it Item) error {
	if it.Quantity == 0 {
		it.Quantity = 1
	}
	return m.mutateItems(ctx, "addItem",
		func(s State) State { return addLocal(s, it) },
		func(ctx context.Context) (Mutation, error) {
			return m.backend.AddItem(ctx, AddItemRequest{
				SessionID:   m.sessionID,
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				Price:       it.Price,
				Quantity:    it.Quantity,
				ImageURL:    it.ImageURL,
			})
		},
	)
}

// UpdateQuantity sets the quantity of a line. A quantity below one removes
// the line.
func (m *Mirror) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return m.RemoveItem(ctx, productID)
	}
	return m.mutateItems(ctx, "updateQuantity",
		func(s State) State { return updateLocal(s, productID, quantity) },
		func(ctx context.Context) (Mutation, error) {
			return m.backend.UpdateQuantity(ctx, m.sessionID, productID, quantity)
		},
	)
}

// RemoveItem deletes a line.
func (m *Mirror) RemoveItem(ctx context.Context, productID string) error {
	return m.mutateItems(ctx, "removeItem",
		func(s State) State { return removeLocal(s, productID) },
		func(ctx context.Context) (Mutation, error) {
			return m.backend.RemoveItem(ctx, m.sessionID, productID)
		},
	)
}

// ClearCart empties the cart and drops any coupon.
func (m *Mirror) ClearCart(ctx context.Context) error {
	return m.mutateItems(ctx, "clearCart",
		func(State) State { return clearLocal() },
		func(ctx context.Context) (Mutation, error) {
			return m.backend.ClearCart(ctx, m.sessionID)
		},
	)
}

// ApplyCoupon asks the server to validate and apply code.
func (m *Mirror) ApplyCoupon(ctx context.Context, code string) error {
	return m.couponAction(ctx, "applyCoupon", MessageCouponFailed,
		func(ctx context.Context) (Mutation, error) {
			return m.backend.ApplyCoupon(ctx, m.sessionID, code)
		},
	)
}

// RemoveCoupon asks the server to drop the applied coupon.
func (m *Mirror) RemoveCoupon(ctx context.Context) error {
	return m.couponAction(ctx, "removeCoupon", MessageRemoveFailed,
		func(ctx context.Context) (Mutation, error) {
			return m.backend.RemoveCoupon(ctx, m.sessionID)
		},
	)
}

func (m *Mirror) mutateItems(
	ctx context.Context,
	action string,
	local func(State) State,
	call func(context.Context) (Mutation, error),
) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	prev := m.state.clone()
	optimistic := local(m.state.clone())
	optimistic.IsLoading = true
	m.state = optimistic
	m.mu.Unlock()

	res, err := call(ctx)

	var n Notification
	m.mu.Lock()
	switch {
	case err == nil:
		m.state = fromSnapshot(res.Cart)
		m.degraded = false
		n = Notification{Level: LevelSuccess, Message: res.Message}

	case rejected(err):
		prev.IsLoading = false
		m.state = prev
		n = Notification{Level: LevelError, Message: userMessage(err, MessageCartNotChanged)}

	default:
		optimistic.IsLoading = false
		m.state = optimistic
		m.degraded = true
		n = Notification{Level: LevelWarning, Message: MessageOffline}
		m.logger.WarnContext(ctx, "cart service unreachable, keeping local cart",
			slog.String("action", action),
			slog.String("session_id", m.sessionID),
			slog.String("error", err.Error()),
		)
		err = nil
	}
	m.mu.Unlock()

	if n.Message != "" {
		m.notifier.Notify(n)
	}
	return err
}

func (m *Mirror) couponAction(
	ctx context.Context,
	action, failure string,
	call func(context.Context) (Mutation, error),
) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.setLoading(true)
	res, err := call(ctx)

	m.mu.Lock()
	if err != nil {
		m.state.IsLoading = false
		m.mu.Unlock()
		m.logger.WarnContext(ctx, "coupon action failed",
			slog.String("action", action),
			slog.String("session_id", m.sessionID),
			slog.String("error", err.Error()),
		)
		m.notifier.Notify(Notification{Level: LevelError, Message: userMessage(err, failure)})
		return err
	}
	m.state = fromSnapshot(res.Cart)
	m.degraded = false
	m.mu.Unlock()

	m.notifier.Notify(Notification{Level: LevelSuccess, Message: res.Message})
	return nil
}

func (m *Mirror) setLoading(loading bool) {
	m.mu.Lock()
	m.state.IsLoading = loading
	m.mu.Unlock()
}

// rejected reports whether the server refused the change, as opposed to not
// being reachable at all.
func rejected(err error) bool {
	status := apperrors.HTTPStatus(err)
	return status >= 400 && status < 500
}

// userMessage returns the server's message for a rejected request, or
// fallback for anything else.
func userMessage(err error, fallback string) string {
	var appErr *apperrors.AppError
	if rejected(err) && errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

func fromSnapshot(s Snapshot) State {
	st := State{
		Items:           append([]Item{}, s.Items...),
		Totals:          s.Totals,
		DiscountPercent: s.DiscountPercent,
		DiscountLabel:   s.DiscountLabel,
	}
	if s.Coupon != nil {
		st.Coupon = *s.Coupon
	}
	return st
}

func findItem(items []Item, productID string) int {
	for i, it := range items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func addLocal(s State, it Item) State {
	if i := findItem(s.Items, it.ProductID); i >= 0 {
		it.Quantity += s.Items[i].Quantity
		s.Items[i] = it
	} else {
		s.Items = append(s.Items, it)
	}
	return recompute(s)
}

func updateLocal(s State, productID string, quantity int) State {
	if i := findItem(s.Items, productID); i >= 0 {
		s.Items[i].Quantity = quantity
	}
	return recompute(s)
}

func removeLocal(s State, productID string) State {
	if i := findItem(s.Items, productID); i >= 0 {
		s.Items = append(s.Items[:i], s.Items[i+1:]...)
	}
	return recompute(s)
}

func clearLocal() State {
	return State{Items: []Item{}, Totals: pricing.Zero()}
}

func recompute(s State) State {
	lines := make([]pricing.Line, len(s.Items))
	for i, it := range s.Items {
		lines[i] = pricing.Line{Price: it.Price, Quantity: it.Quantity}
	}
	s.Totals = pricing.ComputeTotals(lines, s.DiscountPercent)
	return s
}
