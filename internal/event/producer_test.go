package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssnivlek/kelvo-ecomm/internal/domain"
	pkgkafka "github.com/ssnivlek/kelvo-ecomm/pkg/kafka"
	"github.com/ssnivlek/kelvo-ecomm/pkg/logger"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func newTestProducer(w *recordingWriter) *Producer {
	return NewProducer(pkgkafka.NewProducerWithWriter(w, []string{"localhost:9092"}, logger.Discard()), logger.Discard())
}

func decodeEvent(t *testing.T, msg kafka.Message) *pkgkafka.Event {
	t.Helper()
	var e pkgkafka.Event
	require.NoError(t, json.Unmarshal(msg.Value, &e))
	return &e
}

func testCart() *domain.Cart {
	c := domain.NewCart("sess-1")
	c.Items = append(c.Items, domain.CartItem{ProductID: "p1", ProductName: "Mug", Price: 50, Quantity: 2})
	c.ApplyCoupon(domain.Coupon{Code: "SAVE10", DiscountPercent: 10, Label: "10% off"})
	return c
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "ecommerce.cart.updated", TopicCartUpdated)
	assert.Equal(t, "ecommerce.cart.cleared", TopicCartCleared)
	assert.Equal(t, "ecommerce.cart.coupon_applied", TopicCouponApplied)
	assert.Equal(t, "ecommerce.cart.coupon_removed", TopicCouponRemoved)
}

func TestPublishCartUpdated(t *testing.T) {
	w := &recordingWriter{}
	ctx := logger.WithCorrelationID(context.Background(), "corr-9")

	require.NoError(t, newTestProducer(w).PublishCartUpdated(ctx, testCart()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, TopicCartUpdated, msg.Topic)
	assert.Equal(t, "sess-1", string(msg.Key))

	e := decodeEvent(t, msg)
	assert.Equal(t, TopicCartUpdated, e.EventType)
	assert.Equal(t, AggregateTypeCart, e.AggregateType)
	assert.Equal(t, SourceCartService, e.Source)
	assert.Equal(t, "corr-9", e.CorrelationID)

	var data CartUpdatedData
	require.NoError(t, json.Unmarshal(e.Data, &data))
	assert.Equal(t, "sess-1", data.SessionID)
	assert.Equal(t, 2, data.ItemCount)
	assert.Equal(t, "SAVE10", data.Coupon)
	assert.Equal(t, 90.0, data.Subtotal)
	assert.Equal(t, 10.0, data.Discount)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "p1", data.Items[0].ProductID)
}

func TestPublishCouponEvents(t *testing.T) {
	w := &recordingWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.PublishCouponApplied(context.Background(), testCart()))
	require.NoError(t, p.PublishCouponRemoved(context.Background(), "sess-1", "SAVE10"))
	require.NoError(t, p.PublishCartCleared(context.Background(), "sess-1"))
	require.Len(t, w.msgs, 3)

	var applied CouponAppliedData
	require.NoError(t, json.Unmarshal(decodeEvent(t, w.msgs[0]).Data, &applied))
	assert.Equal(t, "SAVE10", applied.CouponCode)
	assert.Equal(t, 10.0, applied.DiscountPercent)
	assert.Equal(t, 97.65, applied.Total)

	var removed CouponRemovedData
	require.NoError(t, json.Unmarshal(decodeEvent(t, w.msgs[1]).Data, &removed))
	assert.Equal(t, "SAVE10", removed.CouponCode)

	assert.Equal(t, TopicCartCleared, w.msgs[2].Topic)
}

func TestPublish_WriterErrorIsReturned(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}

	err := newTestProducer(w).PublishCartCleared(context.Background(), "sess-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish ecommerce.cart.cleared event")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.PublishCartUpdated(context.Background(), testCart()))
	assert.NoError(t, p.PublishCartCleared(context.Background(), "s"))
	assert.NoError(t, p.PublishCouponApplied(context.Background(), testCart()))
	assert.NoError(t, p.PublishCouponRemoved(context.Background(), "s", ""))
}
