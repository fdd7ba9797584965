package controllers

import (
	"net/http"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/docchat/backend-go/internal/apperrors"
	"github.com/docchat/backend-go/internal/logger"
)

// BaseController 统一的JSON响应辅助
type BaseController struct {
	web.Controller
}

// JSON 以指定状态码写出JSON响应
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONError 写出错误响应，错误信息放在detail字段
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"detail": message,
	})
}

// HandleError 把业务错误渲染为对应状态码；未分类错误按500处理
func (c *BaseController) HandleError(err error) {
	appErr := apperrors.AsAppError(err)
	if appErr.HTTPCode >= http.StatusInternalServerError {
		logger.Error("请求处理失败",
			zap.String("path", c.Ctx.Request.RequestURI),
			zap.Error(err))
	}
	c.JSONError(appErr.HTTPCode, appErr.Message)
}
