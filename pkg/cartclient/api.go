// Package cartclient is the client side of the cart API: a typed HTTP client
// and a Mirror that keeps an optimistic local copy of one session's cart.
package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ssnivlek/kelvo-ecomm/pkg/httpclient"
	"github.com/ssnivlek/kelvo-ecomm/pkg/pricing"
)

// DefaultPrefix is the path the storefront mounts the cart API under.
const DefaultPrefix = "/api/cart"

const (
	serviceName   = "cart-service"
	sessionHeader = "X-Session-ID"
)

// Item is one cart line as the cart API returns it.
type Item struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

// Snapshot is a cart with its server-computed totals.
type Snapshot struct {
	Items           []Item  `json:"items"`
	Coupon          *string `json:"coupon"`
	DiscountPercent float64 `json:"discountPercent,omitempty"`
	DiscountLabel   string  `json:"discountLabel,omitempty"`
	pricing.Totals
}

// Mutation is the response to every cart-changing call.
type Mutation struct {
	Cart    Snapshot `json:"cart"`
	Message string   `json:"message"`
}

// AddItemRequest is the body of an add-to-cart call. A zero Quantity adds one.
type AddItemRequest struct {
	SessionID   string  `json:"sessionId"`
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

// Backend is the cart API surface the Mirror depends on. *API implements it.
type Backend interface {
	GetCart(ctx context.Context, sessionID string) (Snapshot, error)
	AddItem(ctx context.Context, req AddItemRequest) (Mutation, error)
	UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (Mutation, error)
	RemoveItem(ctx context.Context, sessionID, productID string) (Mutation, error)
	ClearCart(ctx context.Context, sessionID string) (Mutation, error)
	ApplyCoupon(ctx context.Context, sessionID, code string) (Mutation, error)
	RemoveCoupon(ctx context.Context, sessionID string) (Mutation, error)
}

// API is a typed client for the cart HTTP API. Non-2xx responses are turned
// into application errors by httpclient.ParseResponseError, so callers can
// use errors.Is against pkg/errors sentinels.
type API struct {
	client  httpclient.Doer
	baseURL string
}

var _ Backend = (*API)(nil)

// NewAPI creates a client for the cart API rooted at baseURL, which should
// include the mount prefix (for example http://cart:8003/api/cart).
func NewAPI(client httpclient.Doer, baseURL string) *API {
	return &API{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// GetCart fetches the authoritative cart for sessionID.
func (a *API) GetCart(ctx context.Context, sessionID string) (Snapshot, error) {
	var snap Snapshot
	err := a.do(ctx, http.MethodGet, "/"+url.PathEscape(sessionID), sessionID, nil, &snap)
	return snap, err
}

// AddItem adds req to its session's cart, merging with an existing line.
func (a *API) AddItem(ctx context.Context, req AddItemRequest) (Mutation, error) {
	var m Mutation
	err := a.do(ctx, http.MethodPost, "/add", req.SessionID, req, &m)
	return m, err
}

// UpdateQuantity sets the quantity of one line.
func (a *API) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (Mutation, error) {
	body := struct {
		SessionID string `json:"sessionId"`
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}{sessionID, productID, quantity}

	var m Mutation
	err := a.do(ctx, http.MethodPut, "/update", sessionID, body, &m)
	return m, err
}

// RemoveItem deletes one line.
func (a *API) RemoveItem(ctx context.Context, sessionID, productID string) (Mutation, error) {
	var m Mutation
	path := "/" + url.PathEscape(sessionID) + "/item/" + url.PathEscape(productID)
	err := a.do(ctx, http.MethodDelete, path, sessionID, nil, &m)
	return m, err
}

// ClearCart deletes the whole cart.
func (a *API) ClearCart(ctx context.Context, sessionID string) (Mutation, error) {
	var m Mutation
	err := a.do(ctx, http.MethodDelete, "/"+url.PathEscape(sessionID), sessionID, nil, &m)
	return m, err
}

// ApplyCoupon validates code on the server and applies it.
func (a *API) ApplyCoupon(ctx context.Context, sessionID, code string) (Mutation, error) {
	body := struct {
		SessionID  string `json:"sessionId"`
		CouponCode string `json:"couponCode"`
	}{sessionID, code}

	var m Mutation
	err := a.do(ctx, http.MethodPost, "/apply-coupon", sessionID, body, &m)
	return m, err
}

// RemoveCoupon drops any applied coupon.
func (a *API) RemoveCoupon(ctx context.Context, sessionID string) (Mutation, error) {
	body := struct {
		SessionID string `json:"sessionId"`
	}{sessionID}

	var m Mutation
	err := a.do(ctx, http.MethodPost, "/remove-coupon", sessionID, body, &m)
	return m, err
}

func (a *API) do(ctx context.Context, method, path, sessionID string, body, out any) error {
	var req *http.Request
	var err error
	if body != nil {
		data, merr := json.Marshal(body)
		if merr != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, merr)
		}
		req, err = http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(data))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, a.baseURL+path, http.NoBody)
	}
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
