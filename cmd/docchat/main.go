package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/docchat/backend-go/app/bootstrap"
	"github.com/docchat/backend-go/app/router"
	"github.com/docchat/backend-go/internal/config"
	"github.com/docchat/backend-go/internal/logger"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	router.Init(app.DocumentService, app.ChatService, app.Registry)

	web.BConfig.AppName = "DocChat Service"
	web.BConfig.CopyRequestBody = true
	if port, err := strconv.Atoi(config.GetAppConfig().Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = port
	}

	logger.Info("🚀 Starting DocChat Service", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
