package controllers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/docchat/backend-go/internal/apperrors"
	"github.com/docchat/backend-go/internal/config"
	"github.com/docchat/backend-go/internal/services"
)

// DocumentController 文档上传、列表、删除与内容预览
//
// 服务字段必须导出：beego每个请求都会新建控制器实例，
// 只有导出字段会从注册时的实例拷贝过去。
type DocumentController struct {
	BaseController
	DocumentService *services.DocumentService
}

// NewDocumentController 创建文档控制器
func NewDocumentController(documentService *services.DocumentService) *DocumentController {
	return &DocumentController{DocumentService: documentService}
}

// Upload 处理multipart文档上传
func (c *DocumentController) Upload() {
	file, header, err := c.GetFile("file")
	if err != nil {
		c.HandleError(apperrors.NewValidationError("缺少上传文件"))
		return
	}
	defer file.Close()

	maxSize := config.GetAppConfig().Upload.MaxSize
	if maxSize > 0 && header.Size > maxSize {
		c.HandleError(apperrors.NewValidationError(
			fmt.Sprintf("文件过大，最大允许 %d 字节", maxSize)))
		return
	}

	// 浏览器会对非ASCII文件名做百分号编码，这里还原显示名
	filename := header.Filename
	if decoded, err := url.PathUnescape(filename); err == nil {
		filename = decoded
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.HandleError(apperrors.NewInternalError("读取上传内容失败", err))
		return
	}

	result, err := c.DocumentService.Upload(c.Ctx.Request.Context(), filename, data)
	if err != nil {
		c.HandleError(err)
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "文档上传成功",
		"filename":     result.Filename,
		"chunks_count": result.ChunksCount,
		"document_id":  result.DocumentID,
		"file_ext":     result.FileExt,
	})
}

// GetDocuments 返回已索引的文档列表
func (c *DocumentController) GetDocuments() {
	documents, err := c.DocumentService.List(c.Ctx.Request.Context())
	if err != nil {
		c.HandleError(err)
		return
	}
	c.JSON(http.StatusOK, map[string]interface{}{
		"documents": documents,
	})
}

// Delete 删除指定文档的全部索引记录
func (c *DocumentController) Delete() {
	filename := c.Ctx.Input.Param(":filename")
	if decoded, err := url.PathUnescape(filename); err == nil {
		filename = decoded
	}
	if filename == "" {
		c.HandleError(apperrors.NewValidationError("文件名不能为空"))
		return
	}

	if err := c.DocumentService.Delete(c.Ctx.Request.Context(), filename); err != nil {
		c.HandleError(err)
		return
	}
	c.JSON(http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("文档 %s 已删除", filename),
	})
}

// Content 返回原始文件重新提取的文本内容（预览，不缓存）
func (c *DocumentController) Content() {
	documentID := c.Ctx.Input.Param(":document_id")
	if decoded, err := url.PathUnescape(documentID); err == nil {
		documentID = decoded
	}
	if documentID == "" {
		c.HandleError(apperrors.NewValidationError("文档ID不能为空"))
		return
	}

	result, err := c.DocumentService.Content(c.Ctx.Request.Context(), documentID)
	if err != nil {
		c.HandleError(err)
		return
	}
	c.JSON(http.StatusOK, map[string]interface{}{
		"filename":  result.Filename,
		"content":   result.Content,
		"truncated": result.Truncated,
		"file_ext":  result.FileExt,
	})
}
