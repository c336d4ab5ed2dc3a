package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product 商品模型
// Price 为主单位金额（如 GHS），使用 decimal 精确存储；下单快照后商品改价不影响历史订单。
type Product struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	Name        string          `gorm:"size:128;not null" json:"name"`
	Description string          `gorm:"size:512" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Image       string          `gorm:"size:512" json:"image"`
	Category    string          `gorm:"size:32;index" json:"category"` // 分类：men(男士)、women(女士)、kids(童装)、accessories(饰品)
	InStock     bool            `gorm:"index;not null" json:"inStock"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Repository 商品仓储接口
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs 批量查询，返回按 id 索引的映射；缺失的 id 不在结果中
	GetByIDs(ctx context.Context, ids []string) (map[string]*Product, error)
	ListAll(ctx context.Context) ([]*Product, error)
	ListInStock(ctx context.Context) ([]*Product, error)
	ListByCategory(ctx context.Context, category string) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
