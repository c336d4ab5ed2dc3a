package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 订单状态。pending/initialized 为中间态，paid/failed/amount_mismatch 为终态，
// init_failed 表示网关初始化失败（可重新下单，订单号不复用）。
const (
	StatusPending        = "pending"
	StatusInitFailed     = "init_failed"
	StatusInitialized    = "initialized"
	StatusPaid           = "paid"
	StatusFailed         = "failed"
	StatusAmountMismatch = "amount_mismatch"
)

// IsTerminal 判断状态是否为终态，终态订单不再接受任何状态迁移
func IsTerminal(status string) bool {
	switch status {
	case StatusPaid, StatusFailed, StatusAmountMismatch:
		return true
	}
	return false
}

// Item 订单行，下单时按商品当时价格快照
type Item struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID   string          `gorm:"size:36;index;not null" json:"-"`
	ProductID string          `gorm:"size:36;not null" json:"productId"`
	Name      string          `gorm:"size:128" json:"name"`
	Image     string          `gorm:"size:512" json:"image"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unitPrice"`
	Qty       int64           `gorm:"not null" json:"qty"`
	LineTotal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"lineTotal"`
}

// Order 订单模型
// ID 即支付网关 reference，一个订单对应且仅对应一个 reference，永不复用。
// Subtotal 为服务端定价的主单位金额，AmountMinor = round(Subtotal*100)，
// 发给网关和回调比对都只用 AmountMinor，避免浮点误差。
// Gateway* 字段记录网关侧视角，和订单自身 Status 分开存，便于追查金额不一致。
type Order struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	Status      string          `gorm:"size:32;index;not null" json:"status"`
	Currency    string          `gorm:"size:8;not null" json:"currency"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	AmountMinor int64           `gorm:"not null" json:"amountMinor"`
	Email       string          `gorm:"size:128;not null" json:"email"`
	Items       []Item          `gorm:"foreignKey:OrderID" json:"items"`

	GatewayReference  string `gorm:"size:36;uniqueIndex" json:"gatewayReference"`
	GatewayStatus     string `gorm:"size:32" json:"gatewayStatus"`
	GatewayAccessCode string `gorm:"size:64" json:"gatewayAccessCode"`
	GatewayResponse   string `gorm:"size:255" json:"gatewayResponse"`
	GatewayPaidAt     string `gorm:"size:40" json:"gatewayPaidAt"`
	GatewayChannel    string `gorm:"size:32" json:"gatewayChannel"`
	GatewayError      string `gorm:"type:text" json:"gatewayError,omitempty"`
	// ReceivedAmountMinor 仅在 amount_mismatch 时记录网关实收金额，供人工核对
	ReceivedAmountMinor int64 `json:"receivedAmountMinor,omitempty"`

	FulfilledAt *time.Time `json:"fulfilledAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Repository 订单仓储接口。订单只增不删，所有变更都会刷新 UpdatedAt。
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	ListRecent(ctx context.Context, limit int) ([]*Order, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]*Order, error)
	// WithLock 对单个订单做串行化的读-改-写：fn 内的修改在同一事务/锁内提交，
	// Webhook 和主动 verify 并发确认同一订单时靠它避免丢失更新。
	WithLock(ctx context.Context, id string, fn func(o *Order) error) (*Order, error)
}
