package cartclient

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ssnivlek/kelvo-ecomm/internal/coupon"
	handler "github.com/ssnivlek/kelvo-ecomm/internal/handler/http"
	"github.com/ssnivlek/kelvo-ecomm/internal/repository/memory"
	"github.com/ssnivlek/kelvo-ecomm/internal/service"
	apperrors "github.com/ssnivlek/kelvo-ecomm/pkg/errors"
	"github.com/ssnivlek/kelvo-ecomm/pkg/health"
	"github.com/ssnivlek/kelvo-ecomm/pkg/httpclient"
	"github.com/ssnivlek/kelvo-ecomm/pkg/logger"
	"github.com/ssnivlek/kelvo-ecomm/pkg/pricing"
)

// ============================================================================
// Helpers
// ============================================================================

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) last(t *testing.T) Notification {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1]
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) GetCart(ctx context.Context, sessionID string) (Snapshot, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(Snapshot), args.Error(1)
}

func (m *mockBackend) AddItem(ctx context.Context, req AddItemRequest) (Mutation, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(Mutation), args.Error(1)
}

func (m *mockBackend) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (Mutation, error) {
	args := m.Called(ctx, sessionID, productID, quantity)
	return args.Get(0).(Mutation), args.Error(1)
}

func (m *mockBackend) RemoveItem(ctx context.Context, sessionID, productID string) (Mutation, error) {
	args := m.Called(ctx, sessionID, productID)
	return args.Get(0).(Mutation), args.Error(1)
}

func (m *mockBackend) ClearCart(ctx context.Context, sessionID string) (Mutation, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(Mutation), args.Error(1)
}

func (m *mockBackend) ApplyCoupon(ctx context.Context, sessionID, code string) (Mutation, error) {
	args := m.Called(ctx, sessionID, code)
	return args.Get(0).(Mutation), args.Error(1)
}

func (m *mockBackend) RemoveCoupon(ctx context.Context, sessionID string) (Mutation, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(Mutation), args.Error(1)
}

// newCartServer serves the real cart API over an in-memory store.
func newCartServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := logger.Discard()
	repo := memory.NewCartRepository(0, time.Hour)
	carts := service.NewCartService(repo, nil, log)
	coupons := service.NewCouponService(repo, coupon.DefaultRegistry(), nil, log)
	router := handler.NewRouter(carts, coupons, coupon.DefaultRegistry(), health.NewHandler(), log, handler.DefaultRouterConfig())

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func newAPI(baseURL string) *API {
	return NewAPI(httpclient.New(httpclient.Config{Timeout: 2 * time.Second}), baseURL+DefaultPrefix)
}

func newMirror(t *testing.T, b Backend) (*Mirror, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	return NewMirror(b, NewMemorySessionStore(), n, logger.Discard()), n
}

var trailRunner = Item{ProductID: "sku-1", ProductName: "Trail Runner", Price: 30}

// ============================================================================
// Session tests
// ============================================================================

func TestSessionID_GeneratedOnceAndReused(t *testing.T) {
	store := NewMemorySessionStore()

	first := SessionID(store)
	_, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, first, SessionID(store))

	stored, ok := store.Load(SessionKey)
	assert.True(t, ok)
	assert.Equal(t, first, stored)
}

func TestSessionID_KeepsExistingValue(t *testing.T) {
	store := NewMemorySessionStore()
	store.Store(SessionKey, "existing-session")

	m := NewMirror(&mockBackend{}, store, nil, nil)
	assert.Equal(t, "existing-session", m.SessionID())
}

// ============================================================================
// Mirror tests against the cart API
// ============================================================================

func TestMirror_InitialState(t *testing.T) {
	m, _ := newMirror(t, &mockBackend{})

	s := m.State()
	assert.Empty(t, s.Items)
	assert.Equal(t, pricing.Zero(), s.Totals)
	assert.Empty(t, s.Coupon)
	assert.False(t, s.IsLoading)
	assert.False(t, m.Degraded())
	assert.Zero(t, m.ItemCount())
}

func TestMirror_AddItem_ServerWins(t *testing.T) {
	srv := newCartServer(t)
	m, n := newMirror(t, newAPI(srv.URL))

	require.NoError(t, m.AddItem(context.Background(), trailRunner))
	require.NoError(t, m.AddItem(context.Background(), Item{ProductID: "sku-1", ProductName: "Trail Runner", Price: 30, Quantity: 2}))

	s := m.State()
	require.Len(t, s.Items, 1)
	assert.Equal(t, 3, s.Items[0].Quantity)
	assert.Equal(t, pricing.Totals{Subtotal: 90, Tax: 7.65, Total: 97.65}, s.Totals)
	assert.Equal(t, 3, m.ItemCount())
	assert.False(t, m.Degraded())
	assert.Equal(t, Notification{Level: LevelSuccess, Message: "Item added to cart"}, n.last(t))
}

func TestMirror_Load(t *testing.T) {
	srv := newCartServer(t)
	api := newAPI(srv.URL)
	m, _ := newMirror(t, api)

	_, err := api.AddItem(context.Background(), AddItemRequest{
		SessionID:   m.SessionID(),
		ProductID:   "sku-9",
		ProductName: "Rain Jacket",
		Price:       49.99,
		Quantity:    1,
	})
	require.NoError(t, err)

	require.NoError(t, m.Load(context.Background()))
	s := m.State()
	require.Len(t, s.Items, 1)
	assert.Equal(t, "sku-9", s.Items[0].ProductID)
	assert.Equal(t, 5.99, s.Totals.Shipping)
	assert.Equal(t, 1, m.ItemCount())
}

func TestMirror_Load_Unreachable(t *testing.T) {
	srv := newCartServer(t)
	srv.Close()
	m, _ := newMirror(t, newAPI(srv.URL))

	err := m.Load(context.Background())
	require.Error(t, err)
	assert.True(t, m.Degraded())
	assert.False(t, m.State().IsLoading)
}

func TestMirror_ItemMutation_DegradesWhenUnreachable(t *testing.T) {
	srv := newCartServer(t)
	srv.Close()
	m, n := newMirror(t, newAPI(srv.URL))

	require.NoError(t, m.AddItem(context.Background(), Item{ProductID: "sku-1", ProductName: "Trail Runner", Price: 25, Quantity: 2}))

	s := m.State()
	require.Len(t, s.Items, 1)
	assert.Equal(t, pricing.ComputeTotals([]pricing.Line{{Price: 25, Quantity: 2}}, 0), s.Totals)
	assert.False(t, s.IsLoading)
	assert.True(t, m.Degraded())
	assert.Equal(t, Notification{Level: LevelWarning, Message: MessageOffline}, n.last(t))

	require.NoError(t, m.RemoveItem(context.Background(), "sku-1"))
	assert.Empty(t, m.State().Items)

	require.NoError(t, m.ClearCart(context.Background()))
	assert.Equal(t, pricing.Zero(), m.State().Totals)
}

func TestMirror_ItemMutation_RejectedRestoresState(t *testing.T) {
	srv := newCartServer(t)
	m, n := newMirror(t, newAPI(srv.URL))
	require.NoError(t, m.AddItem(context.Background(), trailRunner))
	before := m.State()

	err := m.UpdateQuantity(context.Background(), "sku-1", math.MaxInt32+1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Equal(t, before, m.State())
	assert.False(t, m.Degraded())
	assert.Equal(t, Notification{Level: LevelError, Message: "quantity must not exceed 2147483647"}, n.last(t))
}

func TestMirror_RemoveMissingItem_ShowsServerMessage(t *testing.T) {
	srv := newCartServer(t)
	m, n := newMirror(t, newAPI(srv.URL))
	require.NoError(t, m.AddItem(context.Background(), trailRunner))
	before := m.State()

	err := m.RemoveItem(context.Background(), "sku-404")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, before, m.State())
	assert.Equal(t, Notification{Level: LevelError, Message: "cart item with id sku-404 not found"}, n.last(t))
}

func TestMirror_ApplyCoupon(t *testing.T) {
	srv := newCartServer(t)
	m, n := newMirror(t, newAPI(srv.URL))
	require.NoError(t, m.AddItem(context.Background(), Item{ProductID: "sku-1", ProductName: "Trail Runner", Price: 100}))

	require.NoError(t, m.ApplyCoupon(context.Background(), "save10"))

	s := m.State()
	assert.Equal(t, "SAVE10", s.Coupon)
	assert.Equal(t, 10.0, s.DiscountPercent)
	assert.Equal(t, pricing.Totals{Subtotal: 90, Discount: 10, Tax: 7.65, Total: 97.65}, s.Totals)
	assert.Equal(t, Notification{Level: LevelSuccess, Message: "Coupon applied: 10% off"}, n.last(t))

	require.NoError(t, m.RemoveCoupon(context.Background()))
	s = m.State()
	assert.Empty(t, s.Coupon)
	assert.Zero(t, s.Totals.Discount)
}

func TestMirror_ApplyCoupon_InvalidLeavesStateUnchanged(t *testing.T) {
	srv := newCartServer(t)
	m, n := newMirror(t, newAPI(srv.URL))
	require.NoError(t, m.AddItem(context.Background(), trailRunner))
	require.NoError(t, m.ApplyCoupon(context.Background(), "KELVO10"))
	before := m.State()

	err := m.ApplyCoupon(context.Background(), "BOGUS99")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCoupon))
	assert.Equal(t, before, m.State())
	last := n.last(t)
	assert.Equal(t, LevelError, last.Level)
	assert.NotEqual(t, MessageCouponFailed, last.Message)
}

func TestMirror_CouponActions_UnreachableSurfaceError(t *testing.T) {
	srv := newCartServer(t)
	srv.Close()
	m, n := newMirror(t, newAPI(srv.URL))

	err := m.ApplyCoupon(context.Background(), "SAVE10")
	require.Error(t, err)
	assert.Equal(t, Notification{Level: LevelError, Message: MessageCouponFailed}, n.last(t))
	assert.Empty(t, m.State().Coupon)
	assert.False(t, m.State().IsLoading)
	assert.False(t, m.Degraded())

	err = m.RemoveCoupon(context.Background())
	require.Error(t, err)
	assert.Equal(t, Notification{Level: LevelError, Message: MessageRemoveFailed}, n.last(t))
}

// ============================================================================
// Mirror tests against a mock backend
// ============================================================================

func TestMirror_UpdateQuantityBelowOneRemoves(t *testing.T) {
	b := &mockBackend{}
	m, _ := newMirror(t, b)

	b.On("RemoveItem", mock.Anything, m.SessionID(), "sku-1").
		Return(Mutation{Cart: Snapshot{Items: []Item{}}, Message: "Item removed from cart"}, nil).Once()

	require.NoError(t, m.UpdateQuantity(context.Background(), "sku-1", 0))

	b.AssertExpectations(t)
	b.AssertNotCalled(t, "UpdateQuantity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMirror_AddItem_DefaultsQuantityToOne(t *testing.T) {
	b := &mockBackend{}
	m, _ := newMirror(t, b)

	b.On("AddItem", mock.Anything, mock.MatchedBy(func(req AddItemRequest) bool {
		return req.Quantity == 1 && req.SessionID == m.SessionID()
	})).Return(Mutation{}, errors.New("connection refused")).Once()

	require.NoError(t, m.AddItem(context.Background(), Item{ProductID: "sku-1", ProductName: "Trail Runner", Price: 10}))

	b.AssertExpectations(t)
	assert.Equal(t, 1, m.ItemCount())
}

func TestMirror_IsLoadingDuringCall(t *testing.T) {
	b := &mockBackend{}
	m, _ := newMirror(t, b)

	var during State
	b.On("ClearCart", mock.Anything, m.SessionID()).
		Run(func(mock.Arguments) { during = m.State() }).
		Return(Mutation{Cart: Snapshot{Items: []Item{}}}, nil).Once()

	require.NoError(t, m.ClearCart(context.Background()))
	assert.True(t, during.IsLoading)
	assert.False(t, m.State().IsLoading)
}

func TestMirror_ActionsAreSerialised(t *testing.T) {
	srv := newCartServer(t)
	m, _ := newMirror(t, newAPI(srv.URL))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.AddItem(context.Background(), Item{ProductID: "sku-1", ProductName: "Trail Runner", Price: 5}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, m.ItemCount())
	assert.Equal(t, 50.0, m.State().Totals.Subtotal)
}

func TestAPI_NotFound(t *testing.T) {
	srv := newCartServer(t)
	api := newAPI(srv.URL)

	_, err := api.RemoveItem(context.Background(), "s-empty", "sku-404")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(err))
}
