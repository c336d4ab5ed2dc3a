package service

import (
	"sync"
	"time"
)

// Monitor 监控服务，统计支付链路的错误与业务指标
type Monitor struct {
	mu sync.RWMutex

	// 错误统计
	GatewayErrors   int64
	DBErrors        int64
	RedisErrors     int64
	MQErrors        int64
	SignatureErrors int64

	// 业务统计
	CheckoutRequests       int64
	CheckoutFailed         int64
	WebhookReceived        int64
	VerifyRequests         int64
	PaidOrders             int64
	FailedOrders           int64
	AmountMismatches       int64
	DuplicateConfirmations int64

	// 时间统计
	LastGatewayError  time.Time
	LastSignatureFail time.Time
	LastCheckoutTime  time.Time
	LastPaidTime      time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordGatewayError 记录网关调用失败
func (m *Monitor) RecordGatewayError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GatewayErrors++
	m.LastGatewayError = time.Now()
}

// RecordDBError 记录数据库错误
func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
}

// RecordRedisError 记录Redis错误
func (m *Monitor) RecordRedisError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors++
}

// RecordMQError 记录MQ错误
func (m *Monitor) RecordMQError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MQErrors++
}

// RecordSignatureFailure 记录 Webhook 签名校验失败（潜在攻击，需审计）
func (m *Monitor) RecordSignatureFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SignatureErrors++
	m.LastSignatureFail = time.Now()
}

// RecordCheckoutRequest 记录下单请求
func (m *Monitor) RecordCheckoutRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckoutRequests++
	m.LastCheckoutTime = time.Now()
}

// RecordCheckoutFailed 记录下单失败
func (m *Monitor) RecordCheckoutFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckoutFailed++
}

// RecordWebhookReceived 记录收到的 Webhook 事件
func (m *Monitor) RecordWebhookReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WebhookReceived++
}

// RecordVerifyRequest 记录主动 verify 请求
func (m *Monitor) RecordVerifyRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VerifyRequests++
}

// RecordPaidOrder 记录支付成功订单
func (m *Monitor) RecordPaidOrder() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PaidOrders++
	m.LastPaidTime = time.Now()
}

// RecordFailedOrder 记录支付失败订单
func (m *Monitor) RecordFailedOrder() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailedOrders++
}

// RecordAmountMismatch 记录金额不一致订单（安全相关，需人工核对）
func (m *Monitor) RecordAmountMismatch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AmountMismatches++
}

// RecordDuplicateConfirmation 记录对终态订单的重复确认
func (m *Monitor) RecordDuplicateConfirmation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicateConfirmations++
}

// GetStats 获取统计信息
func (m *Monitor) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paidRate := float64(0)
	if m.CheckoutRequests > 0 {
		paidRate = float64(m.PaidOrders) / float64(m.CheckoutRequests) * 100
	}

	return map[string]interface{}{
		"errors": map[string]interface{}{
			"gateway":   m.GatewayErrors,
			"db":        m.DBErrors,
			"redis":     m.RedisErrors,
			"mq":        m.MQErrors,
			"signature": m.SignatureErrors,
		},
		"payment": map[string]interface{}{
			"checkout_requests":       m.CheckoutRequests,
			"checkout_failed":         m.CheckoutFailed,
			"webhook_received":        m.WebhookReceived,
			"verify_requests":         m.VerifyRequests,
			"paid_orders":             m.PaidOrders,
			"failed_orders":           m.FailedOrders,
			"amount_mismatches":       m.AmountMismatches,
			"duplicate_confirmations": m.DuplicateConfirmations,
			"paid_rate":               paidRate,
		},
		"last": map[string]interface{}{
			"gateway_error":  m.LastGatewayError,
			"signature_fail": m.LastSignatureFail,
			"checkout":       m.LastCheckoutTime,
			"paid":           m.LastPaidTime,
		},
	}
}
