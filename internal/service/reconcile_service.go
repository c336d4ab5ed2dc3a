package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	radix "github.com/mediocregopher/radix/v3"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Orderion/Beme-Market/internal/config"
	"github.com/Orderion/Beme-Market/internal/datamodels/order"
	"github.com/Orderion/Beme-Market/internal/gateway/paystack"
)

const (
	redisPaidMarkKey      = "payment:succ:%s" // reference（支付成功审计标记）
	paidMarkExpireSeconds = 86400

	// OrderPaidQueue 支付成功事件队列，由履约 worker 消费
	OrderPaidQueue = "order_paid_queue"
)

// ErrInvalidSignature Webhook 签名不符，必须在读取任何订单状态之前拒绝
var ErrInvalidSignature = errors.New("invalid webhook signature")

// OrderPaidMessage 支付成功后投递给履约 worker 的消息
type OrderPaidMessage struct {
	OrderID     string `json:"order_id"`
	Email       string `json:"email"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Channel     string `json:"channel"`
	PaidAt      string `json:"paid_at"`
}

// Confirmation 一次支付确认，Webhook 与主动 verify 两条路径都归一成它，
// 金额比对的规则只存在这一处。
type Confirmation struct {
	Reference       string
	Succeeded       bool
	GatewayStatus   string
	AmountMinor     int64
	PaidAt          string
	Channel         string
	GatewayResponse string
	CustomerEmail   string
}

// VerifyStatus 主动 verify 的对外结果，本地无订单时照样返回网关状态
type VerifyStatus struct {
	OK            bool   `json:"ok"`
	Paid          bool   `json:"paid"`
	Reference     string `json:"reference"`
	GatewayStatus string `json:"gatewayStatus"`
}

// ReconcileService 对账引擎：把网关的支付确认（Webhook / verify 轮询）
// 与订单存的预期金额比对并落终态。redis 与 mqConn 可为 nil（降级为不记审计、不发事件）。
type ReconcileService struct {
	orderRepo order.Repository
	gateway   paystack.Gateway
	secretKey string
	redis     radix.Client
	mqConn    *amqp.Connection
}

// NewReconcileService 创建对账服务
func NewReconcileService(
	orderRepo order.Repository,
	gateway paystack.Gateway,
	paystackCfg *config.PaystackConfig,
	redis radix.Client,
	mqConn *amqp.Connection,
) *ReconcileService {
	return &ReconcileService{
		orderRepo: orderRepo,
		gateway:   gateway,
		secretKey: paystackCfg.SecretKey,
		redis:     redis,
		mqConn:    mqConn,
	}
}

// HandleWebhook 处理网关回调
// 签名校验在一切订单读取之前；签名通过后不管业务结果如何都应答 200，
// 避免网关对永久性失败无限重投。
func (s *ReconcileService) HandleWebhook(ctx context.Context, signature string, rawBody []byte) error {
	GetMonitor().RecordWebhookReceived()

	if !paystack.VerifySignature(s.secretKey, rawBody, signature) {
		GetMonitor().RecordSignatureFailure()
		zap.L().Warn("webhook signature mismatch",
			zap.String("signature", signature))
		return ErrInvalidSignature
	}

	evt, err := paystack.ParseWebhookEvent(rawBody)
	if err != nil {
		// 签名合法但 JSON 不可解析，记录后 ack，重投也不会变好
		zap.L().Error("webhook body unparsable", zap.Error(err))
		return nil
	}

	// 只处理支付成功事件，其余事件直接 ack
	if evt.Event != paystack.EventChargeSuccess {
		zap.L().Debug("webhook event ignored", zap.String("event", evt.Event))
		return nil
	}
	if evt.Data.Reference == "" {
		zap.L().Warn("charge.success without reference")
		return nil
	}

	_, err = s.ApplyConfirmation(ctx, &Confirmation{
		Reference:       evt.Data.Reference,
		Succeeded:       true,
		GatewayStatus:   evt.Data.Status,
		AmountMinor:     evt.Data.Amount,
		PaidAt:          evt.Data.PaidAt,
		Channel:         evt.Data.Channel,
		GatewayResponse: evt.Data.GatewayResponse,
		CustomerEmail:   evt.Data.Customer.Email,
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 本地没有这笔订单，无从对账，只记日志
		zap.L().Warn("webhook for unknown reference",
			zap.String("reference", evt.Data.Reference))
		return nil
	}
	return err
}

// VerifyReference 主动查询网关并对账
// 读穿透语义：无论本地有没有订单都返回网关侧状态，不因本地状态缺失而报错。
func (s *ReconcileService) VerifyReference(ctx context.Context, reference string) (*VerifyStatus, error) {
	GetMonitor().RecordVerifyRequest()

	res, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		GetMonitor().RecordGatewayError()
		return nil, err
	}

	paid := res.GatewayStatus == paystack.TxStatusSuccess
	// success / failed 是终态才写单；ongoing、abandoned 之类的中间态不动订单
	if paid || res.GatewayStatus == paystack.TxStatusFailed {
		_, err := s.ApplyConfirmation(ctx, &Confirmation{
			Reference:       reference,
			Succeeded:       paid,
			GatewayStatus:   res.GatewayStatus,
			AmountMinor:     res.AmountMinor,
			PaidAt:          res.PaidAt,
			Channel:         res.Channel,
			GatewayResponse: res.GatewayResponse,
			CustomerEmail:   res.CustomerEmail,
		})
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			zap.L().Error("apply confirmation on verify",
				zap.String("reference", reference),
				zap.Error(err))
		}
	}

	return &VerifyStatus{
		OK:            true,
		Paid:          paid,
		Reference:     reference,
		GatewayStatus: res.GatewayStatus,
	}, nil
}

// ApplyConfirmation 按确认结果迁移订单状态，两条确认路径唯一的写入口
// 整个读-比对-写在行锁内完成；终态订单不再迁移，重复确认记日志后忽略，
// paid 永远不会被后到的不一致回调拉回去。
func (s *ReconcileService) ApplyConfirmation(ctx context.Context, conf *Confirmation) (*order.Order, error) {
	var applied string
	var duplicate bool

	o, err := s.orderRepo.WithLock(ctx, conf.Reference, func(o *order.Order) error {
		if order.IsTerminal(o.Status) {
			duplicate = true
			return nil
		}

		o.GatewayStatus = conf.GatewayStatus
		o.GatewayResponse = conf.GatewayResponse

		if !conf.Succeeded {
			o.Status = order.StatusFailed
			applied = order.StatusFailed
			return nil
		}

		// 防篡改核心：网关报的金额必须与下单时算的 AmountMinor 严格相等，
		// “这个 reference 上到过一笔钱”不等于“这笔订单已付清”。
		if conf.AmountMinor != o.AmountMinor {
			o.Status = order.StatusAmountMismatch
			o.ReceivedAmountMinor = conf.AmountMinor
			applied = order.StatusAmountMismatch
			return nil
		}

		o.Status = order.StatusPaid
		o.GatewayPaidAt = conf.PaidAt
		o.GatewayChannel = conf.Channel
		applied = order.StatusPaid
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case duplicate:
		GetMonitor().RecordDuplicateConfirmation()
		zap.L().Info("confirmation on terminal order ignored",
			zap.String("reference", conf.Reference),
			zap.String("status", o.Status))
	case applied == order.StatusPaid:
		GetMonitor().RecordPaidOrder()
		zap.L().Info("order paid",
			zap.String("reference", conf.Reference),
			zap.Int64("amount_minor", conf.AmountMinor),
			zap.String("channel", conf.Channel))
		s.markPaid(o)
		s.publishOrderPaid(ctx, o)
	case applied == order.StatusAmountMismatch:
		GetMonitor().RecordAmountMismatch()
		zap.L().Warn("payment amount mismatch",
			zap.String("reference", conf.Reference),
			zap.Int64("expected_minor", o.AmountMinor),
			zap.Int64("received_minor", conf.AmountMinor))
	case applied == order.StatusFailed:
		GetMonitor().RecordFailedOrder()
		zap.L().Info("order payment failed",
			zap.String("reference", conf.Reference),
			zap.String("gateway_status", conf.GatewayStatus))
	}

	return o, nil
}

// markPaid 写入支付成功审计标记，失败只记日志，不影响订单终态
func (s *ReconcileService) markPaid(o *order.Order) {
	if s.redis == nil {
		return
	}
	key := fmt.Sprintf(redisPaidMarkKey, o.ID)
	body, _ := json.Marshal(map[string]interface{}{
		"amount_minor": o.AmountMinor,
		"paid_at":      o.GatewayPaidAt,
		"channel":      o.GatewayChannel,
	})
	if err := s.redis.Do(radix.FlatCmd(nil, "SETEX", key, paidMarkExpireSeconds, body)); err != nil {
		GetMonitor().RecordRedisError()
		zap.L().Warn("write paid mark", zap.String("reference", o.ID), zap.Error(err))
	}
}

// publishOrderPaid 投递支付成功事件给履约 worker，失败只记日志
func (s *ReconcileService) publishOrderPaid(ctx context.Context, o *order.Order) {
	if s.mqConn == nil {
		return
	}
	ch, err := s.mqConn.Channel()
	if err != nil {
		GetMonitor().RecordMQError()
		zap.L().Error("open mq channel", zap.Error(err))
		return
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(OrderPaidQueue, true, false, false, false, nil); err != nil {
		GetMonitor().RecordMQError()
		zap.L().Error("declare queue", zap.Error(err))
		return
	}

	body, err := json.Marshal(&OrderPaidMessage{
		OrderID:     o.ID,
		Email:       o.Email,
		AmountMinor: o.AmountMinor,
		Currency:    o.Currency,
		Channel:     o.GatewayChannel,
		PaidAt:      o.GatewayPaidAt,
	})
	if err != nil {
		return
	}

	if err = ch.PublishWithContext(
		ctx,
		"",
		OrderPaidQueue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		GetMonitor().RecordMQError()
		zap.L().Error("publish order paid", zap.String("reference", o.ID), zap.Error(err))
	}
}
