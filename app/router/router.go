package router

import (
	"github.com/beego/beego/v2/server/web"

	"github.com/docchat/backend-go/app/controllers"
	"github.com/docchat/backend-go/app/middleware"
	"github.com/docchat/backend-go/internal/ai"
	"github.com/docchat/backend-go/internal/metrics"
	"github.com/docchat/backend-go/internal/services"
)

// Init 注册全部路由；必须在配置加载完成后调用
func Init(documentService *services.DocumentService, chatService *services.ChatService, registry *ai.Registry) {
	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)

	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.RootController{}, "get:Health")

	documentController := controllers.NewDocumentController(documentService)
	web.Router("/upload", documentController, "post:Upload")
	web.Router("/documents", documentController, "get:GetDocuments")
	// 注意：content路由必须在:filename删除路由之前注册
	web.Router("/documents/:document_id/content", documentController, "get:Content")
	web.Router("/documents/:filename", documentController, "delete:Delete")

	chatController := controllers.NewChatController(chatService, registry)
	web.Router("/chat", chatController, "post:Chat")
	web.Router("/models", chatController, "get:Models")

	web.Handler("/metrics", metrics.Handler())
}
