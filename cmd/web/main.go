package main

import (
	stdlog "log"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/Orderion/Beme-Market/internal/config"
	"github.com/Orderion/Beme-Market/internal/server"
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

	app := iris.New()
	server.RegisterRoutes(app, cfg)

	addr := cfg.Server.Addr()
	zap.L().Info("web server listening", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		zap.L().Fatal("failed to run web server", zap.Error(err))
	}
}
