package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Orderion/Beme-Market/internal/config"
	"github.com/Orderion/Beme-Market/internal/datamodels/order"
	"github.com/Orderion/Beme-Market/internal/gateway/paystack"
)

// ErrInvalidEmail 下单邮箱缺失或格式非法
var ErrInvalidEmail = errors.New("email is required")

// CheckoutResult 下单结果，客户端凭 AuthorizationURL 跳转到托管收银台
type CheckoutResult struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// CheckoutService 下单编排：定价 -> 建 pending 订单 -> 网关初始化
// 订单号在调用网关前生成并落库，保证回调进来时 reference 一定能查到订单。
type CheckoutService struct {
	pricing   *PricingService
	orderRepo order.Repository
	gateway   paystack.Gateway
	payCfg    *config.PaymentConfig
}

// NewCheckoutService 创建下单服务
func NewCheckoutService(pricing *PricingService, orderRepo order.Repository, gateway paystack.Gateway, payCfg *config.PaymentConfig) *CheckoutService {
	return &CheckoutService{
		pricing:   pricing,
		orderRepo: orderRepo,
		gateway:   gateway,
		payCfg:    payCfg,
	}
}

// Init 发起下单
// 初始化失败的订单停在 init_failed，是死单；重试下单会生成新订单号，
// 失败的 reference 不复用，避免网关侧引用歧义。
func (s *CheckoutService) Init(ctx context.Context, email string, items []CartItem) (*CheckoutResult, error) {
	GetMonitor().RecordCheckoutRequest()

	if _, err := mail.ParseAddress(email); err != nil {
		GetMonitor().RecordCheckoutFailed()
		return nil, ErrInvalidEmail
	}

	priced, err := s.pricing.Resolve(ctx, items)
	if err != nil {
		GetMonitor().RecordCheckoutFailed()
		return nil, err
	}

	// 订单号即网关 reference，一单一号
	orderID := uuid.NewString()
	o := &order.Order{
		ID:               orderID,
		Status:           order.StatusPending,
		Currency:         s.payCfg.Currency,
		Subtotal:         priced.Subtotal,
		AmountMinor:      priced.AmountMinor,
		Email:            email,
		Items:            priced.Items,
		GatewayReference: orderID,
		GatewayStatus:    "init_pending",
	}
	if err := s.orderRepo.Create(ctx, o); err != nil {
		GetMonitor().RecordCheckoutFailed()
		GetMonitor().RecordDBError()
		return nil, fmt.Errorf("create order: %w", err)
	}

	initRes, err := s.gateway.Initialize(ctx, &paystack.InitializeRequest{
		Email:       email,
		AmountMinor: priced.AmountMinor,
		Reference:   orderID,
		Currency:    s.payCfg.Currency,
		CallbackURL: fmt.Sprintf("%s/order-success?reference=%s", s.payCfg.FrontendBaseURL, orderID),
		Metadata:    map[string]string{"orderId": orderID},
	})
	if err != nil {
		GetMonitor().RecordCheckoutFailed()
		GetMonitor().RecordGatewayError()
		s.markInitFailed(ctx, orderID, err)
		return nil, err
	}

	if _, err := s.orderRepo.WithLock(ctx, orderID, func(o *order.Order) error {
		o.Status = order.StatusInitialized
		o.GatewayStatus = "initialized"
		o.GatewayAccessCode = initRes.AccessCode
		return nil
	}); err != nil {
		GetMonitor().RecordDBError()
		return nil, fmt.Errorf("update order: %w", err)
	}

	return &CheckoutResult{
		Reference:        orderID,
		AuthorizationURL: initRes.AuthorizationURL,
	}, nil
}

// markInitFailed 初始化失败时把原始错误落到订单上，便于诊断，绝不静默丢弃
func (s *CheckoutService) markInitFailed(ctx context.Context, orderID string, cause error) {
	raw := cause.Error()
	var ge *paystack.GatewayError
	if errors.As(cause, &ge) && ge.Raw != "" {
		raw = ge.Raw
	}
	if _, err := s.orderRepo.WithLock(ctx, orderID, func(o *order.Order) error {
		o.Status = order.StatusInitFailed
		o.GatewayStatus = "init_failed"
		o.GatewayError = raw
		return nil
	}); err != nil {
		GetMonitor().RecordDBError()
		zap.L().Error("mark order init_failed",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}
