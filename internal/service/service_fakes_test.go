package service

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Orderion/Beme-Market/internal/datamodels/order"
	"github.com/Orderion/Beme-Market/internal/datamodels/product"
	"github.com/Orderion/Beme-Market/internal/gateway/paystack"
)

// memProductRepo 内存商品仓储，测试用
type memProductRepo struct {
	mu       sync.RWMutex
	products map[string]*product.Product
}

func newMemProductRepo(products ...*product.Product) *memProductRepo {
	r := &memProductRepo{products: make(map[string]*product.Product)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *memProductRepo) GetByID(ctx context.Context, id string) (*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProductRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := make(map[string]*product.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			cp := *p
			m[id] = &cp
		}
	}
	return m, nil
}

func (r *memProductRepo) ListAll(ctx context.Context) ([]*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []*product.Product
	for _, p := range r.products {
		cp := *p
		list = append(list, &cp)
	}
	return list, nil
}

func (r *memProductRepo) ListInStock(ctx context.Context) ([]*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []*product.Product
	for _, p := range r.products {
		if p.InStock {
			cp := *p
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (r *memProductRepo) ListByCategory(ctx context.Context, category string) ([]*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []*product.Product
	for _, p := range r.products {
		if p.InStock && (category == "" || category == "all" || p.Category == category) {
			cp := *p
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (r *memProductRepo) Create(ctx context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *memProductRepo) Update(ctx context.Context, p *product.Product) error {
	return r.Create(ctx, p)
}

func (r *memProductRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	return nil
}

// memOrderRepo 内存订单仓储，WithLock 用每订单一把互斥锁模拟行锁串行化
type memOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*order.Order
	rowLocks  map[string]*sync.Mutex
	lockCalls int // WithLock 调用计数，用于断言“签名不符不碰订单”
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders:   make(map[string]*order.Order),
		rowLocks: make(map[string]*sync.Mutex),
	}
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	if o.FulfilledAt != nil {
		t := *o.FulfilledAt
		cp.FulfilledAt = &t
	}
	return &cp
}

func (r *memOrderRepo) Create(ctx context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *memOrderRepo) GetByID(ctx context.Context, id string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneOrder(o), nil
}

func (r *memOrderRepo) Update(ctx context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.UpdatedAt = time.Now()
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *memOrderRepo) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*order.Order
	for _, o := range r.orders {
		list = append(list, cloneOrder(o))
	}
	return list, nil
}

func (r *memOrderRepo) ListByStatus(ctx context.Context, status string, limit int) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*order.Order
	for _, o := range r.orders {
		if o.Status == status {
			list = append(list, cloneOrder(o))
		}
	}
	return list, nil
}

func (r *memOrderRepo) WithLock(ctx context.Context, id string, fn func(o *order.Order) error) (*order.Order, error) {
	r.mu.Lock()
	r.lockCalls++
	rowLock, ok := r.rowLocks[id]
	if !ok {
		rowLock = &sync.Mutex{}
		r.rowLocks[id] = rowLock
	}
	r.mu.Unlock()

	rowLock.Lock()
	defer rowLock.Unlock()

	r.mu.Lock()
	stored, ok := r.orders[id]
	if !ok {
		r.mu.Unlock()
		return nil, gorm.ErrRecordNotFound
	}
	working := cloneOrder(stored)
	r.mu.Unlock()

	if err := fn(working); err != nil {
		return nil, err
	}

	r.mu.Lock()
	working.UpdatedAt = time.Now()
	r.orders[id] = cloneOrder(working)
	r.mu.Unlock()
	return working, nil
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// fakeGateway 可编排的网关桩
type fakeGateway struct {
	mu          sync.Mutex
	initResult  *paystack.InitializeResult
	initErr     error
	verifyRes   *paystack.VerifyResult
	verifyErr   error
	initCalls   int
	verifyCalls int
	lastInit    *paystack.InitializeRequest
}

func (g *fakeGateway) Initialize(ctx context.Context, req *paystack.InitializeRequest) (*paystack.InitializeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls++
	g.lastInit = req
	if g.initErr != nil {
		return nil, g.initErr
	}
	if g.initResult != nil {
		return g.initResult, nil
	}
	return &paystack.InitializeResult{
		AuthorizationURL: "https://checkout.paystack.test/" + req.Reference,
		AccessCode:       "ac_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, reference string) (*paystack.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if g.verifyRes != nil {
		return g.verifyRes, nil
	}
	return &paystack.VerifyResult{GatewayStatus: "abandoned"}, nil
}
