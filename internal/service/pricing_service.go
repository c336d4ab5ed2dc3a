package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Orderion/Beme-Market/internal/datamodels/order"
	"github.com/Orderion/Beme-Market/internal/datamodels/product"
)

// 定价失败的错误类别，调用方按类别映射为 4xx 响应
var (
	ErrInvalidItems    = errors.New("items must contain valid {id, qty}")
	ErrProductNotFound = errors.New("product not found")
	ErrOutOfStock      = errors.New("out of stock")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrEmptyOrder      = errors.New("subtotal must be greater than 0")
)

// CartItem 客户端提交的购物车行，只含 id 和数量，金额一律服务端计算
type CartItem struct {
	ID  string `json:"id"`
	Qty int64  `json:"qty"`
}

// PricingResult 服务端定价结果
// AmountMinor = round(Subtotal*100)，后续发给网关和回调比对都用这个整数。
type PricingResult struct {
	Subtotal    decimal.Decimal
	AmountMinor int64
	Items       []order.Item
}

// PricingService 定价器：按商品库当前价格与库存标记计算可信小计
// 纯读 + 计算，不产生任何写入，网关金额的可信度全靠这一层。
type PricingService struct {
	productRepo product.Repository
}

// NewPricingService 创建定价服务
func NewPricingService(productRepo product.Repository) *PricingService {
	return &PricingService{productRepo: productRepo}
}

// Resolve 解析购物车并计算小计
// 同一商品的重复行合并数量后再查库，输出中每个商品至多一行。
func (s *PricingService) Resolve(ctx context.Context, items []CartItem) (*PricingResult, error) {
	if len(items) == 0 {
		return nil, ErrInvalidItems
	}

	// 规范化 + 按 id 合并数量，保持首次出现的顺序
	qtyByID := make(map[string]int64, len(items))
	var ids []string
	for _, it := range items {
		id := strings.TrimSpace(it.ID)
		if id == "" || it.Qty <= 0 {
			continue
		}
		if _, seen := qtyByID[id]; !seen {
			ids = append(ids, id)
		}
		qtyByID[id] += it.Qty
	}
	if len(ids) == 0 {
		return nil, ErrInvalidItems
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		GetMonitor().RecordDBError()
		return nil, fmt.Errorf("fetch products: %w", err)
	}

	subtotal := decimal.Zero
	orderItems := make([]order.Item, 0, len(ids))
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		if !p.InStock {
			return nil, fmt.Errorf("%w: %s", ErrOutOfStock, p.Name)
		}
		if p.Price.IsNegative() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, p.Name)
		}

		qty := qtyByID[id]
		lineTotal := p.Price.Mul(decimal.NewFromInt(qty))
		subtotal = subtotal.Add(lineTotal)

		orderItems = append(orderItems, order.Item{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.Image,
			UnitPrice: p.Price,
			Qty:       qty,
			LineTotal: lineTotal,
		})
	}

	if !subtotal.IsPositive() {
		return nil, ErrEmptyOrder
	}

	return &PricingResult{
		Subtotal:    subtotal,
		AmountMinor: subtotal.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		Items:       orderItems,
	}, nil
}
