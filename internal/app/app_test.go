package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssnivlek/kelvo-ecomm/internal/config"
	"github.com/ssnivlek/kelvo-ecomm/internal/coupon"
	"github.com/ssnivlek/kelvo-ecomm/pkg/health"
	"github.com/ssnivlek/kelvo-ecomm/pkg/logger"
)

type snapshot struct {
	Items    []map[string]any `json:"items"`
	Coupon   *string          `json:"coupon"`
	Subtotal float64          `json:"subtotal"`
	Discount float64          `json:"discount"`
	Total    float64          `json:"total"`
}

type mutation struct {
	Cart    snapshot `json:"cart"`
	Message string   `json:"message"`
}

func newTestApp(t *testing.T, env map[string]string) *App {
	t.Helper()
	cfg, err := config.LoadFrom(env)
	require.NoError(t, err)

	a, err := NewApp(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(a.closeResources)
	return a
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func addItem(t *testing.T, h http.Handler, sessionID string, price float64) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/cart/add", map[string]any{
		"sessionId":   sessionID,
		"productId":   "sku-1",
		"productName": "Trail Runner",
		"price":       price,
		"quantity":    1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func applyCoupon(t *testing.T, h http.Handler, sessionID, code string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, h, http.MethodPost, "/cart/apply-coupon", map[string]any{
		"sessionId":  sessionID,
		"couponCode": code,
	})
}

func readiness(t *testing.T, h http.Handler) (int, health.Response) {
	t.Helper()
	rec := do(t, h, http.MethodGet, "/health/ready", nil)
	var resp health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestNewApp_MemoryStoreStaticCoupons(t *testing.T) {
	a := newTestApp(t, map[string]string{"CART_STORE": "memory"})
	h := a.Handler()

	addItem(t, h, "s-1", 100)
	rec := applyCoupon(t, h, "s-1", "save10")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var m mutation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	require.NotNil(t, m.Cart.Coupon)
	assert.Equal(t, "SAVE10", *m.Cart.Coupon)
	assert.Equal(t, 10.0, m.Cart.Discount)
	assert.Equal(t, 97.65, m.Cart.Total)

	code, resp := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, health.StatusUp, resp.Status)
	assert.Equal(t, ServiceName, resp.Service)
}

func TestNewApp_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newTestApp(t, map[string]string{
		"REDIS_ADDR":        mr.Addr(),
		"REDIS_MAX_RETRIES": "0",
	})
	h := a.Handler()

	addItem(t, h, "s-redis", 20)
	assert.True(t, mr.Exists("cart:s-redis"))

	rec := do(t, h, http.MethodGet, "/cart/s-redis", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, 20.0, snap.Subtotal)

	code, resp := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, health.StatusUp, resp.Checks["redis"].Status)
	assert.True(t, resp.Checks["redis"].Critical)

	mr.Close()
	code, resp = readiness(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, health.StatusDown, resp.Checks["redis"].Status)
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"REDIS_ADDR":        "127.0.0.1:1",
		"REDIS_MAX_RETRIES": "0",
		"REDIS_TIMEOUT_MS":  "100",
	})
	require.NoError(t, err)

	_, err = NewApp(cfg, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

func TestNewApp_FileCoupons(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coupons.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`coupons:
  - code: SPRING20
    discountPercent: 20
    label: 20% spring sale
`), 0o600))

	a := newTestApp(t, map[string]string{
		"CART_STORE":    "memory",
		"COUPON_SOURCE": "file",
		"COUPON_FILE":   path,
	})
	h := a.Handler()
	addItem(t, h, "s-file", 100)

	rec := applyCoupon(t, h, "s-file", "SPRING20")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var m mutation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 20.0, m.Cart.Discount)
	assert.Equal(t, "Coupon applied: 20% spring sale", m.Message)

	// Codes outside the file are not accepted.
	rec = applyCoupon(t, h, "s-file", "SAVE10")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewApp_FileCouponsMissing(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"CART_STORE":    "memory",
		"COUPON_SOURCE": "file",
		"COUPON_FILE":   filepath.Join(t.TempDir(), "absent.yaml"),
	})
	require.NoError(t, err)

	_, err = NewApp(cfg, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read coupon file")
}

func TestNewApp_RemoteCoupons(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req coupon.ValidateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/api/payment/validate-coupon" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.CouponCode != "PARTNER15" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Invalid coupon code"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(coupon.ValidateResponse{
			Code:            "PARTNER15",
			DiscountPercent: 15,
			Label:           "15% partner discount",
		})
	}))
	t.Cleanup(upstream.Close)

	a := newTestApp(t, map[string]string{
		"CART_STORE":           "memory",
		"COUPON_SOURCE":        "remote",
		"COUPON_SERVICE_URL":   upstream.URL,
		"COUPON_VALIDATE_PATH": "/api/payment/validate-coupon",
	})
	h := a.Handler()
	addItem(t, h, "s-remote", 100)

	rec := applyCoupon(t, h, "s-remote", "partner15")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var m mutation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 15.0, m.Cart.Discount)

	rec = applyCoupon(t, h, "s-remote", "NOPE")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code, resp := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, resp.Checks[couponUpstream].Critical)
}

func TestBreakerConfig_OverlaysDefaults(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"CB_TIMEOUT": "5s", "CB_MIN_REQUESTS": "10"})
	require.NoError(t, err)

	bc := breakerConfig(cfg)
	assert.Equal(t, couponUpstream, bc.Name)
	assert.Equal(t, 5*time.Second, bc.Timeout)
	assert.Equal(t, uint32(10), bc.MinRequests)
	assert.Equal(t, 60*time.Second, bc.Interval)

	cfg.CBInterval, cfg.CBMaxRequests = 0, 0
	bc = breakerConfig(cfg)
	assert.Equal(t, 60*time.Second, bc.Interval)
	assert.Equal(t, uint32(1), bc.MaxRequests)
}
