package main

import (
	"context"
	"encoding/json"
	stdlog "log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Orderion/Beme-Market/internal/config"
	"github.com/Orderion/Beme-Market/internal/datamodels/order"
	"github.com/Orderion/Beme-Market/internal/infra/mq"
	"github.com/Orderion/Beme-Market/internal/repository/mysql"
	"github.com/Orderion/Beme-Market/internal/service"
	"github.com/Orderion/Beme-Market/pkg/log"
)

func main() {
	cfg, err := config.Load("./config")
	if err != nil {
		stdlog.Fatalf("load config: %v", err)
	}
	if err := log.InitLogger(cfg.Debug); err != nil {
		stdlog.Fatalf("init logger: %v", err)
	}
	defer log.Sync()

	db := mysql.Init(&cfg.MySQL)
	mqConn := mq.Init(&cfg.RabbitMQ)
	orderRepo := mysql.NewOrderRepository(db)

	ch, err := mqConn.Channel()
	if err != nil {
		zap.L().Fatal("failed to open channel", zap.Error(err))
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(service.OrderPaidQueue, true, false, false, false, nil); err != nil {
		zap.L().Fatal("failed to declare queue", zap.Error(err))
	}

	// 手动确认模式（auto-ack=false），处理失败的消息重新入队
	msgs, err := ch.Consume(service.OrderPaidQueue, "", false, false, false, false, nil)
	if err != nil {
		zap.L().Fatal("failed to consume", zap.Error(err))
	}

	zap.L().Info("fulfillment worker started, waiting for paid orders")

	for d := range msgs {
		var m service.OrderPaidMessage
		if err := json.Unmarshal(d.Body, &m); err != nil {
			zap.L().Error("invalid message", zap.Error(err))
			// 消息格式错误，拒绝并丢弃
			_ = d.Nack(false, false)
			continue
		}
		handleMessage(context.Background(), orderRepo, &m, d)
	}
}

// handleMessage 给 paid 订单盖履约时间戳
// 重复投递时 FulfilledAt 已存在，直接 ack，保证幂等。
func handleMessage(ctx context.Context, orderRepo order.Repository, m *service.OrderPaidMessage, d amqp.Delivery) {
	_, err := orderRepo.WithLock(ctx, m.OrderID, func(o *order.Order) error {
		if o.Status != order.StatusPaid {
			zap.L().Warn("paid event for order not in paid status",
				zap.String("order_id", m.OrderID),
				zap.String("status", o.Status))
			return nil
		}
		if o.FulfilledAt != nil {
			return nil
		}
		now := time.Now()
		o.FulfilledAt = &now
		return nil
	})
	if err != nil {
		service.GetMonitor().RecordDBError()
		zap.L().Error("fulfill order", zap.String("order_id", m.OrderID), zap.Error(err))
		// 数据库暂时不可用时重新入队
		_ = d.Nack(false, true)
		return
	}

	zap.L().Info("order fulfilled",
		zap.String("order_id", m.OrderID),
		zap.Int64("amount_minor", m.AmountMinor),
		zap.String("channel", m.Channel))
	_ = d.Ack(false)
}
