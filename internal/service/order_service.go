package service

import (
	"context"

	"github.com/Orderion/Beme-Market/internal/datamodels/order"
)

// OrderService 用于后台订单查询等场景
type OrderService struct {
	repo order.Repository
}

// NewOrderService 创建订单服务
func NewOrderService(repo order.Repository) *OrderService {
	return &OrderService{repo: repo}
}

// ListRecent 查询最新的订单记录
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	return s.repo.ListRecent(ctx, limit)
}

// ListByStatus 按状态筛选订单，amount_mismatch 队列靠它做人工核对
func (s *OrderService) ListByStatus(ctx context.Context, status string, limit int) ([]*order.Order, error) {
	return s.repo.ListByStatus(ctx, status, limit)
}

// GetByID 查询订单详情
func (s *OrderService) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return s.repo.GetByID(ctx, id)
}
