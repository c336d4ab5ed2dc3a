package main

import (
	"context"
	stdlog "log"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/Orderion/Beme-Market/internal/config"
	"github.com/Orderion/Beme-Market/internal/repository/mysql"
	"github.com/Orderion/Beme-Market/internal/server"
	"github.com/Orderion/Beme-Market/internal/service"
	"github.com/Orderion/Beme-Market/pkg/log"
)

func main() {
	cfg, err := config.Load("./config")
	if err != nil {
		stdlog.Fatalf("load config: %v", err)
	}

	if err := log.InitLogger(cfg.Debug); err != nil {
		stdlog.Fatalf("init logger: %v", err)
	}
	defer log.Sync()

	// 保证初始管理员存在
	db := mysql.Init(&cfg.MySQL)
	userSvc := service.NewUserService(mysql.NewUserRepository(db), &cfg.JWT)
	if err := userSvc.EnsureAdmin(context.Background(), &cfg.Admin); err != nil {
		zap.L().Fatal("ensure admin account", zap.Error(err))
	}

	app := iris.New()
	server.RegisterAdminRoutes(app, cfg)

	addr := cfg.AdminServer.Addr()
	zap.L().Info("admin server listening", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		zap.L().Fatal("failed to run admin server", zap.Error(err))
	}
}
