package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ssnivlek/kelvo-ecomm/internal/domain"
	"github.com/ssnivlek/kelvo-ecomm/internal/event"
	"github.com/ssnivlek/kelvo-ecomm/internal/repository"
	apperrors "github.com/ssnivlek/kelvo-ecomm/pkg/errors"
	"github.com/ssnivlek/kelvo-ecomm/pkg/tracing"
)

// MaxQuantityPerItem bounds a line's quantity so it survives the JSON
// round trip to 32-bit clients and merged adds cannot overflow.
const MaxQuantityPerItem = math.MaxInt32

// AddItemInput holds the parameters for adding an item to the cart. A zero
// Quantity means one.
type AddItemInput struct {
	ProductID   domain.ProductID
	ProductName string
	Price       float64
	Quantity    int
	ImageURL    string
}

// CartService implements the item operations on a session's cart. Each call
// is one read-modify-write against the store; concurrent writers for the same
// session are last-writer-wins.
type CartService struct {
	repo   repository.CartRepository
	events event.Publisher
	logger *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, events event.Publisher, logger *slog.Logger) *CartService {
	if events == nil {
		events = event.NopPublisher{}
	}
	return &CartService{
		repo:   repo,
		events: events,
		logger: logger,
	}
}

// GetCart returns the session's cart with computed totals. A session without
// a stored cart gets an empty one; nothing is written.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (snap domain.Snapshot, err error) {
	ctx, span := startSpan(ctx, "cart.get", sessionID)
	defer span.End()
	defer func() { recordOperation("get", err) }()

	if sessionID == "" {
		return domain.Snapshot{}, apperrors.InvalidInput("session id is required")
	}

	cart, err := getOrCreateCart(ctx, s.repo, sessionID)
	if err != nil {
		tracing.RecordError(span, err, "CartStoreFailure")
		return domain.Snapshot{}, err
	}
	return cart.Snapshot(), nil
}

// AddItem adds an item to the cart. If the product is already present its
// quantity is increased and its name, price and image are refreshed.
func (s *CartService) AddItem(ctx context.Context, sessionID string, input AddItemInput) (snap domain.Snapshot, err error) {
	ctx, span := startSpan(ctx, "cart.addItem", sessionID,
		attribute.String("cart.product_id", input.ProductID.String()),
		attribute.Int("cart.quantity", input.Quantity),
	)
	defer span.End()
	defer func() { recordOperation("add_item", err) }()

	if err := validateAddItem(sessionID, &input); err != nil {
		tracing.RecordError(span, err, "ValidationError")
		return domain.Snapshot{}, err
	}

	cart, err := getOrCreateCart(ctx, s.repo, sessionID)
	if err != nil {
		tracing.RecordError(span, err, "CartStoreFailure")
		return domain.Snapshot{}, err
	}

	if i := cart.FindItemIndex(input.ProductID); i >= 0 {
		item := &cart.Items[i]
		newQty := item.Quantity + input.Quantity
		if newQty > MaxQuantityPerItem {
			return domain.Snapshot{}, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
		}
		item.Quantity = newQty
		item.ProductName = input.ProductName
		item.Price = input.Price
		item.ImageURL = input.ImageURL
	} else {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:   input.ProductID,
			ProductName: input.ProductName,
			Price:       input.Price,
			Quantity:    input.Quantity,
			ImageURL:    input.ImageURL,
		})
	}

	if err := s.save(ctx, cart); err != nil {
		tracing.RecordError(span, err, "CartStoreFailure")
		return domain.Snapshot{}, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("session_id", sessionID),
		slog.String("product_id", input.ProductID.String()),
		slog.Int("quantity", input.Quantity),
	)

	return cart.Snapshot(), nil
}

// UpdateQuantity sets an item's quantity. A quantity below one is rejected
// and the stored cart is left untouched.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID string, productID domain.ProductID, quantity int) (snap domain.Snapshot, err error) {
	ctx, span := startSpan(ctx, "cart.updateQuantity", sessionID,
		attribute.String("cart.product_id", productID.String()),
		attribute.Int("cart.quantity", quantity),
	)
	defer span.End()
	defer func() { recordOperation("update_quantity", err) }()

	switch {
	case sessionID == "":
		return domain.Snapshot{}, apperrors.InvalidInput("session id is required")
	case productID == "":
		return domain.Snapshot{}, apperrors.InvalidInput("product id is required")
	case quantity <= 0:
		return domain.Snapshot{}, apperrors.InvalidInput("quantity must be positive")
	case quantity > MaxQuantityPerItem:
		return domain.Snapshot{}, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	cart, err := getOrCreateCart(ctx, s.repo, sessionID)
	if err != nil {
		tracing.RecordError(span, err, "CartStoreFailure")
		return domain.Snapshot{}, err
	}

	i := cart.FindItemIndex(productID)
	if i < 0 {
		return domain.Snapshot{}, apperrors.NotFound("cart item", productID.String())
	}
	cart.Items[i].Quantity = quantity

	if err := s.save(ctx, cart); err != nil {
		tracing.RecordError(span, err, "CartStoreFailure")
		return domain.Snapshot{}, err
	}

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID.String()),
		slog.Int("quantity", quantity),
	)

	return cart.Snapshot(), nil
}

// RemoveItem deletes an item from the cart.
func (s *CartService) RemoveItem(ctx context.Context, sessionID string, productID domain.ProductID) (snap domain.Snapshot, err error) {
	ctx, span := startSpan(ctx, "cart.removeItem", sessionID,
		attribute.String("cart.product_id", productID.String()),
	)
	defer span.End()
	defer func() { recordOperation("remove_item", err) }()

	if sessionID == "" {
		return domain.Snapshot{}, apperrors.InvalidInput("session id is required")
	}
	if productID == "" {
		return domain.Snapshot{}, apperrors.InvalidInput("product id is required")
	}

	cart, err := getOrCreateCart(ctx, s.repo, sessionID)
	if err != nil {
		tracing.RecordError(span, err, "CartStoreFailure")
		return domain.Snapshot{}, err
	}

	i := cart.FindItemIndex(productID)
	if i < 0 {
		return domain.Snapshot{}, apperrors.NotFound("cart item", productID.String())
	}
	cart.RemoveItemAt(i)

	if err := s.save(ctx, cart); err != nil {
		tracing.RecordError(span, err, "CartStoreFailure")
		return domain.Snapshot{}, err
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID.String()),
	)

	return cart.Snapshot(), nil
}

// ClearCart deletes the session's cart, coupon included, and returns an
// all-zero snapshot.
func (s *CartService) ClearCart(ctx context.Context, sessionID string) (snap domain.Snapshot, err error) {
	ctx, span := startSpan(ctx, "cart.clear", sessionID)
	defer span.End()
	defer func() { recordOperation("clear", err) }()

	if sessionID == "" {
		return domain.Snapshot{}, apperrors.InvalidInput("session id is required")
	}

	if err := s.repo.Delete(ctx, sessionID); err != nil {
		tracing.RecordError(span, err, "CartStoreFailure")
		return domain.Snapshot{}, fmt.Errorf("delete cart: %w", err)
	}

	if err := s.events.PublishCartCleared(ctx, sessionID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("session_id", sessionID),
	)

	return domain.ClearedSnapshot(), nil
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart) error {
	if err := s.repo.Save(ctx, cart); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}

	if err := s.events.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("session_id", cart.SessionID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func validateAddItem(sessionID string, input *AddItemInput) error {
	switch {
	case sessionID == "":
		return apperrors.InvalidInput("session id is required")
	case input.ProductID == "":
		return apperrors.InvalidInput("product id is required")
	case input.ProductName == "":
		return apperrors.InvalidInput("product name is required")
	case math.IsNaN(input.Price) || math.IsInf(input.Price, 0):
		return apperrors.InvalidInput("price must be a number")
	case input.Price < 0:
		return apperrors.InvalidInput("price must not be negative")
	case input.Quantity < 0:
		return apperrors.InvalidInput("quantity must not be negative")
	case input.Quantity > MaxQuantityPerItem:
		return apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	return nil
}

// getOrCreateCart loads the cart for sessionID, or returns a new empty one
// when the store has none.
func getOrCreateCart(ctx context.Context, repo repository.CartRepository, sessionID string) (*domain.Cart, error) {
	cart, err := repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewCart(sessionID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return cart, nil
}
