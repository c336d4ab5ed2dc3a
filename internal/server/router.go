package server

import (
	"errors"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Orderion/Beme-Market/internal/config"
	"github.com/Orderion/Beme-Market/internal/gateway/paystack"
	"github.com/Orderion/Beme-Market/internal/infra/mq"
	"github.com/Orderion/Beme-Market/internal/infra/redis"
	"github.com/Orderion/Beme-Market/internal/middleware"
	"github.com/Orderion/Beme-Market/internal/repository/mysql"
	"github.com/Orderion/Beme-Market/internal/service"
)

// RegisterRoutes 注册商城前台的 HTTP 路由（商品目录 + 支付）
func RegisterRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 仓储与服务
	productRepo := mysql.NewProductRepository(db)
	orderRepo := mysql.NewOrderRepository(db)

	gateway := paystack.NewClient(&cfg.Paystack)
	productSvc := service.NewProductService(productRepo)
	pricingSvc := service.NewPricingService(productRepo)
	checkoutSvc := service.NewCheckoutService(pricingSvc, orderRepo, gateway, &cfg.Payment)
	reconcileSvc := service.NewReconcileService(orderRepo, gateway, &cfg.Paystack, redisClient, mqConn)

	api := app.Party("/api")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"code": 0,
			"msg":  "ok",
		})
	})

	// 商品列表（支持按分类筛选 + 名称搜索）
	api.Get("/products", func(ctx iris.Context) {
		category := ctx.URLParam("category") // men, women, kids, accessories, 或空（全部）
		keyword := ctx.URLParam("q")
		list, err := productSvc.Search(ctx.Request().Context(), category, keyword)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 商品详情
	api.Get("/products/{id:string}", func(ctx iris.Context) {
		id := ctx.Params().Get("id")
		p, err := productSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "product not found"})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	// ---------------- 支付 ----------------
	// 这组接口的响应结构是与前端/网关的既定契约，不套 code/data 信封。

	pay := api.Party("/paystack")

	// 发起下单：服务端定价 -> 建单 -> 网关初始化
	pay.Post("/checkout/init", middleware.CheckoutRateLimit(), func(ctx iris.Context) {
		var req struct {
			Email string             `json:"email"`
			Items []service.CartItem `json:"items"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"error": err.Error()})
			return
		}

		result, err := checkoutSvc.Init(ctx.Request().Context(), req.Email, req.Items)
		if err != nil {
			status, body := checkoutErrorResponse(err)
			ctx.StopWithJSON(status, body)
			return
		}
		ctx.JSON(result)
	})

	// 主动核验：客户端回跳后轮询，或运营手工触发
	pay.Get("/checkout/verify/{reference:string}", func(ctx iris.Context) {
		reference := ctx.Params().Get("reference")
		if reference == "" {
			ctx.StopWithJSON(400, iris.Map{"error": "reference is required"})
			return
		}

		status, err := reconcileSvc.VerifyReference(ctx.Request().Context(), reference)
		if err != nil {
			ctx.StopWithJSON(502, iris.Map{
				"error":   "Paystack verify failed",
				"details": gatewayErrorDetails(err),
			})
			return
		}
		ctx.JSON(status)
	})

	// Webhook：必须用原始请求体校验签名，签名不符回 401，其余一律 200
	pay.Post("/webhook", func(ctx iris.Context) {
		rawBody, err := ctx.GetBody()
		if err != nil {
			ctx.StopWithStatus(400)
			return
		}
		signature := ctx.GetHeader(paystack.SignatureHeader)

		if err := reconcileSvc.HandleWebhook(ctx.Request().Context(), signature, rawBody); err != nil {
			if errors.Is(err, service.ErrInvalidSignature) {
				ctx.StopWithText(401, "Invalid signature")
				return
			}
			// 对账内部错误不回传给网关，避免重投风暴，人工兜底
			zap.L().Error("webhook reconciliation failed", zap.Error(err))
		}
		ctx.StatusCode(200)
	})
}

// checkoutErrorResponse 把下单错误映射为响应：校验/定价 400，网关 502，其余 500
func checkoutErrorResponse(err error) (int, iris.Map) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidItems),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrEmptyOrder):
		return 400, iris.Map{"error": err.Error()}
	case errors.Is(err, paystack.ErrUnavailable), errors.Is(err, paystack.ErrRejected):
		return 502, iris.Map{
			"error":   "Paystack initialize failed",
			"details": gatewayErrorDetails(err),
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return 404, iris.Map{"error": err.Error()}
	default:
		return 500, iris.Map{"error": err.Error()}
	}
}

// gatewayErrorDetails 提取网关原始响应体，没有就退化为错误文案
func gatewayErrorDetails(err error) string {
	var ge *paystack.GatewayError
	if errors.As(err, &ge) && ge.Raw != "" {
		return ge.Raw
	}
	return err.Error()
}
