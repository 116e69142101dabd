package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ssnivlek/kelvo-ecomm/internal/domain"
	pkgkafka "github.com/ssnivlek/kelvo-ecomm/pkg/kafka"
)

// Kafka topics for cart domain events.
var (
	TopicCartUpdated   = pkgkafka.Topic("cart", "updated")
	TopicCartCleared   = pkgkafka.Topic("cart", "cleared")
	TopicCouponApplied = pkgkafka.Topic("cart", "coupon_applied")
	TopicCouponRemoved = pkgkafka.Topic("cart", "coupon_removed")
)

// AggregateTypeCart is the aggregate type stamped on every cart event.
const AggregateTypeCart = "cart"

// SourceCartService identifies events originating from the cart service.
const SourceCartService = "cart-service"

// Publisher emits cart events. Publishing is a side channel: callers log
// failures and carry on.
type Publisher interface {
	PublishCartUpdated(ctx context.Context, cart *domain.Cart) error
	PublishCartCleared(ctx context.Context, sessionID string) error
	PublishCouponApplied(ctx context.Context, cart *domain.Cart) error
	PublishCouponRemoved(ctx context.Context, sessionID, previousCode string) error
}

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID string         `json:"session_id"`
	Items     []CartItemData `json:"items"`
	ItemCount int            `json:"item_count"`
	Coupon    string         `json:"coupon,omitempty"`
	Subtotal  float64        `json:"subtotal"`
	Discount  float64        `json:"discount"`
	Total     float64        `json:"total"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
}

// CouponAppliedData is the payload for a cart.coupon_applied event.
type CouponAppliedData struct {
	SessionID       string  `json:"session_id"`
	CouponCode      string  `json:"coupon_code"`
	DiscountPercent float64 `json:"discount_percent"`
	Discount        float64 `json:"discount"`
	Total           float64 `json:"total"`
}

// CouponRemovedData is the payload for a cart.coupon_removed event.
type CouponRemovedData struct {
	SessionID  string `json:"session_id"`
	CouponCode string `json:"coupon_code,omitempty"`
}

// Producer publishes cart domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

var _ Publisher = (*Producer)(nil)

// NewProducer creates a new event producer for the cart service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	items := make([]CartItemData, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItemData{
			ProductID: item.ProductID.String(),
			Name:      item.ProductName,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
	}

	totals := cart.Totals()
	data := CartUpdatedData{
		SessionID: cart.SessionID,
		Items:     items,
		ItemCount: cart.ItemCount(),
		Coupon:    cart.Coupon,
		Subtotal:  totals.Subtotal,
		Discount:  totals.Discount,
		Total:     totals.Total,
	}

	if err := p.publish(ctx, TopicCartUpdated, cart.SessionID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("session_id", cart.SessionID),
		slog.Int("item_count", data.ItemCount),
	)
	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID string) error {
	if err := p.publish(ctx, TopicCartCleared, sessionID, CartClearedData{SessionID: sessionID}); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("session_id", sessionID),
	)
	return nil
}

// PublishCouponApplied publishes a cart.coupon_applied event.
func (p *Producer) PublishCouponApplied(ctx context.Context, cart *domain.Cart) error {
	totals := cart.Totals()
	data := CouponAppliedData{
		SessionID:       cart.SessionID,
		CouponCode:      cart.Coupon,
		DiscountPercent: cart.DiscountPercent,
		Discount:        totals.Discount,
		Total:           totals.Total,
	}
	if err := p.publish(ctx, TopicCouponApplied, cart.SessionID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.coupon_applied event",
		slog.String("session_id", cart.SessionID),
		slog.String("coupon_code", cart.Coupon),
	)
	return nil
}

// PublishCouponRemoved publishes a cart.coupon_removed event.
func (p *Producer) PublishCouponRemoved(ctx context.Context, sessionID, previousCode string) error {
	data := CouponRemovedData{SessionID: sessionID, CouponCode: previousCode}
	if err := p.publish(ctx, TopicCouponRemoved, sessionID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.coupon_removed event",
		slog.String("session_id", sessionID),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, sessionID string, data any) error {
	event, err := pkgkafka.NewEventFromContext(ctx, topic, sessionID, AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

// NopPublisher drops every event. It is used when Kafka is disabled.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

func (NopPublisher) PublishCartUpdated(context.Context, *domain.Cart) error { return nil }
func (NopPublisher) PublishCartCleared(context.Context, string) error { return nil }
func (NopPublisher) PublishCouponApplied(context.Context, *domain.Cart) error { return nil }
func (NopPublisher) PublishCouponRemoved(context.Context, string, string) error { return nil }
