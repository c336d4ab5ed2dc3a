package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"

	"github.com/Orderion/Beme-Market/internal/auth"
	"github.com/Orderion/Beme-Market/internal/config"
	"github.com/Orderion/Beme-Market/internal/datamodels/order"
	"github.com/Orderion/Beme-Market/internal/datamodels/product"
	"github.com/Orderion/Beme-Market/internal/infra/redis"
	"github.com/Orderion/Beme-Market/internal/repository/mysql"
	"github.com/Orderion/Beme-Market/internal/service"
)

// productRequest 后台商品创建/更新请求
type productRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *string `json:"price"` // 主单位金额字符串，如 "49.90"
	Image       *string `json:"image"`
	Category    *string `json:"category"`
	InStock     *bool   `json:"inStock"`
}

// applyTo 把请求字段落到商品上；partial 为 true 时只覆盖出现的字段
func (r *productRequest) applyTo(p *product.Product, partial bool) error {
	if r.Name != nil {
		p.Name = strings.TrimSpace(*r.Name)
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.Price != nil {
		price, err := decimal.NewFromString(*r.Price)
		if err != nil {
			return err
		}
		p.Price = price
	}
	if r.Image != nil {
		p.Image = *r.Image
	}
	if r.Category != nil {
		p.Category = strings.ToLower(strings.TrimSpace(*r.Category))
	}
	if r.InStock != nil {
		p.InStock = *r.InStock
	}
	if !partial {
		if p.Name == "" {
			return errInvalidProduct("name is required")
		}
		if r.Price == nil {
			return errInvalidProduct("price is required")
		}
	}
	if p.Price.IsNegative() {
		return errInvalidProduct("price must not be negative")
	}
	return nil
}

type errInvalidProduct string

func (e errInvalidProduct) Error() string { return string(e) }

// RegisterAdminRoutes 注册后台管理端的 HTTP 路由
// 端口通常是 8081，与前台 Web 服务分离。
func RegisterAdminRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)

	// 仓储与服务
	productRepo := mysql.NewProductRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	userRepo := mysql.NewUserRepository(db)

	productSvc := service.NewProductService(productRepo)
	orderSvc := service.NewOrderService(orderRepo)
	userSvc := service.NewUserService(userRepo, &cfg.JWT)

	tokenCache := auth.NewTokenCache(redisClient, 10*time.Minute)

	api := app.Party("/api")

	// 管理员登录
	api.Post("/login", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, err := userSvc.Login(ctx.Request().Context(), req.Username, req.Password)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid credentials"})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"token": token}})
	})

	// 需要管理员身份的接口
	adminAPI := api.Party("/", func(ctx iris.Context) {
		token := ctx.GetHeader("Authorization")
		token = strings.TrimPrefix(token, "Bearer ")
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing token"})
			return
		}

		claims, hit, _ := tokenCache.Get(ctx.Request().Context(), token)
		if !hit {
			var err error
			claims, err = auth.ParseToken(&cfg.JWT, token)
			if err != nil {
				ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid token"})
				return
			}
			_ = tokenCache.Set(ctx.Request().Context(), token, claims)
		}
		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "token expired"})
			return
		}
		if !claims.IsAdmin {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "admin only"})
			return
		}
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("username", claims.Username)
		ctx.Next()
	})

	// ---------- 商品管理 ----------

	// 商品列表（后台用：返回所有商品，含下架）
	adminAPI.Get("/products", func(ctx iris.Context) {
		list, err := productSvc.ListAll(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 创建商品
	adminAPI.Post("/products", func(ctx iris.Context) {
		var req productRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p := &product.Product{InStock: true}
		if err := req.applyTo(p, false); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := productSvc.Create(ctx.Request().Context(), p); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	// 更新商品
	adminAPI.Put("/products/{id:string}", func(ctx iris.Context) {
		id := ctx.Params().Get("id")
		p, err := productSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "product not found"})
			return
		}
		var req productRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := req.applyTo(p, true); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := productSvc.Update(ctx.Request().Context(), p); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	// 删除商品
	adminAPI.Delete("/products/{id:string}", func(ctx iris.Context) {
		id := ctx.Params().Get("id")
		if err := productSvc.Delete(ctx.Request().Context(), id); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	// ---------- 订单管理 ----------

	// 订单列表：默认最近订单；带 status 时按状态过滤，
	// status=amount_mismatch 即人工核对队列。
	adminAPI.Get("/orders", func(ctx iris.Context) {
		limitStr := ctx.URLParamDefault("limit", "20")
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			limit = 20
		}
		status := ctx.URLParam("status")

		var list []*order.Order
		if status != "" {
			list, err = orderSvc.ListByStatus(ctx.Request().Context(), status, limit)
		} else {
			list, err = orderSvc.ListRecent(ctx.Request().Context(), limit)
		}
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 订单详情
	adminAPI.Get("/orders/{id:string}", func(ctx iris.Context) {
		id := ctx.Params().Get("id")
		o, err := orderSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "order not found"})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// ---------- 监控 ----------

	// 支付链路统计
	adminAPI.Get("/stats", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "data": service.GetMonitor().GetStats()})
	})
}
