package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/stockholm-inventory-service/internal/inventory"
	"github.com/fekuna/stockholm-inventory-service/internal/inventory/dto"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventStockAdjusted = "StockAdjusted"
	EventOrderCreated  = "OrderCreated"
)

// MessageReader is satisfied by broker.KafkaConsumer.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type InventoryListener struct {
	consumer MessageReader
	uc       inventory.UseCase
	logger   logger.ZapLogger
	backoff  time.Duration
}

func NewInventoryListener(consumer MessageReader, uc inventory.UseCase, logger logger.ZapLogger) *InventoryListener {
	return &InventoryListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
		backoff:  time.Second,
	}
}

// Start consumes until ctx is cancelled.
func (l *InventoryListener) Start(ctx context.Context) {
	l.logger.Info("Starting Inventory Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Inventory Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(l.backoff)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type Event struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type StockAdjustedPayload struct {
	MerchantID  string `json:"merchant_id"`
	ItemID      string `json:"item_id"`
	SKU         string `json:"sku"`
	Delta       int    `json:"delta"`
	Reason      string `json:"reason"`
	ReferenceID string `json:"reference_id"`
}

type OrderPayload struct {
	ID         string             `json:"id"`
	MerchantID string             `json:"merchant_id"`
	Items      []OrderItemPayload `json:"items"`
}

type OrderItemPayload struct {
	ItemID   string `json:"item_id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

func (l *InventoryListener) processMessage(ctx context.Context, value []byte) {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	switch event.EventType {
	case EventStockAdjusted:
		var p StockAdjustedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			l.logger.Error("Failed to unmarshal StockAdjusted payload", zap.String("event_id", event.EventID), zap.Error(err))
			return
		}
		l.adjust(ctx, event.EventID, &dto.AdjustStockInput{
			MerchantID:   p.MerchantID,
			ItemID:       p.ItemID,
			SKU:          p.SKU,
			Delta:        p.Delta,
			MovementType: dto.MovementAdjustment,
			Reason:       p.Reason,
			ReferenceID:  p.ReferenceID,
			UserID:       "system",
		})

	case EventOrderCreated:
		var p OrderPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			l.logger.Error("Failed to unmarshal OrderCreated payload", zap.String("event_id", event.EventID), zap.Error(err))
			return
		}
		l.logger.Info("Processing OrderCreated event", zap.String("order_id", p.ID))
		for _, it := range p.Items {
			if it.Quantity <= 0 {
				l.logger.Warn("Skipping order line with non-positive quantity",
					zap.String("event_id", event.EventID),
					zap.String("item_id", it.ItemID),
					zap.Int("quantity", it.Quantity),
				)
				continue
			}
			l.adjust(ctx, event.EventID, &dto.AdjustStockInput{
				MerchantID:   p.MerchantID,
				ItemID:       it.ItemID,
				SKU:          it.SKU,
				Delta:        -it.Quantity,
				MovementType: dto.MovementSale,
				Reason:       "Order Sale",
				ReferenceID:  p.ID,
				UserID:       "system",
			})
		}
	}
}

func (l *InventoryListener) adjust(ctx context.Context, eventID string, input *dto.AdjustStockInput) {
	if _, err := l.uc.AdjustStock(ctx, input); err != nil {
		l.logger.Error("Failed to adjust stock from event",
			zap.String("event_id", eventID),
			zap.String("item_id", input.ItemID),
			zap.String("sku", input.SKU),
			zap.Error(err),
		)
	}
}
