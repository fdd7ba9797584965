package controllers

import (
	"net/http"
)

// RootController 根路径与健康检查
type RootController struct {
	BaseController
}

// Index 服务标识
func (c *RootController) Index() {
	c.JSON(http.StatusOK, map[string]interface{}{
		"message": "文档问答API服务正在运行",
	})
}

// Health 健康检查
func (c *RootController) Health() {
	c.JSON(http.StatusOK, map[string]interface{}{
		"status": "healthy",
	})
}
