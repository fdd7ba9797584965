package controllers

import (
	"net/http"

	"github.com/docchat/backend-go/internal/ai"
	"github.com/docchat/backend-go/internal/services"
)

// ChatController 基于文档的问答
//
// 服务字段必须导出：beego每个请求都会新建控制器实例，
// 只有导出字段会从注册时的实例拷贝过去。
type ChatController struct {
	BaseController
	ChatService *services.ChatService
	Registry    *ai.Registry
}

// NewChatController 创建问答控制器
func NewChatController(chatService *services.ChatService, registry *ai.Registry) *ChatController {
	return &ChatController{ChatService: chatService, Registry: registry}
}

// Chat 回答问题；question和model从查询参数取
func (c *ChatController) Chat() {
	question := c.GetString("question")
	model := c.GetString("model")

	result, err := c.ChatService.Answer(c.Ctx.Request.Context(), question, model)
	if err != nil {
		c.HandleError(err)
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"answer":          result.Answer,
		"sources":         result.Sources,
		"relevant_chunks": result.RelevantChunks,
		"model_used":      result.ModelUsed,
	})
}

// Models 返回可用的补全模型列表
func (c *ChatController) Models() {
	c.JSON(http.StatusOK, map[string]interface{}{
		"available_models": c.Registry.Models(),
		"default_model":    c.Registry.DefaultModel(),
	})
}
