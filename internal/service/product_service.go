package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Orderion/Beme-Market/internal/datamodels/product"
)

type ProductService struct {
	repo product.Repository
}

func NewProductService(repo product.Repository) *ProductService {
	return &ProductService{repo: repo}
}

func (s *ProductService) ListInStock(ctx context.Context) ([]*product.Product, error) {
	return s.repo.ListInStock(ctx)
}

func (s *ProductService) ListAll(ctx context.Context) ([]*product.Product, error) {
	return s.repo.ListAll(ctx)
}

// Search 按分类过滤后在内存中做名称模糊匹配
func (s *ProductService) Search(ctx context.Context, category, keyword string) ([]*product.Product, error) {
	list, err := s.repo.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	if keyword == "" {
		return list, nil
	}
	kw := strings.ToLower(keyword)
	filtered := make([]*product.Product, 0, len(list))
	for _, p := range list {
		if strings.Contains(strings.ToLower(p.Name), kw) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (s *ProductService) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProductService) Create(ctx context.Context, p *product.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return s.repo.Create(ctx, p)
}

func (s *ProductService) Update(ctx context.Context, p *product.Product) error {
	return s.repo.Update(ctx, p)
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
