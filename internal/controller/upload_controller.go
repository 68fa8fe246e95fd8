package controller

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"exam_backend/internal/model"
	"exam_backend/internal/service"
	"exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// 上传限制：仅图片，最大10MB
const maxUploadSize = 10 << 20

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

type UploadController struct {
	StorageService *service.StorageService
}

func NewUploadController(storageService *service.StorageService) *UploadController {
	return &UploadController{StorageService: storageService}
}

// UploadAnswerImage godoc
// @Summary 上传答题图片
// @Description 图片上传题的附件上传，返回可引用的URL
// @Tags 学生考试
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   file formData file true "图片文件"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "文件类型或大小不合法"
// @Router /api/student/uploads/images [post]
func (c *UploadController) UploadAnswerImage(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "missing file")
		return
	}

	if fileHeader.Size > maxUploadSize {
		util.BadRequest(ctx, "file exceeds 10MB limit")
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedImageExts[ext] {
		util.BadRequest(ctx, "unsupported file type")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}
	defer file.Close()

	filename := fmt.Sprintf("answers/%s/%d_%s%s", claims.UserID, time.Now().UnixNano(), model.GenerateUUID()[:8], ext)
	contentType := fileHeader.Header.Get("Content-Type")

	url, err := c.StorageService.Upload(ctx.Request.Context(), filename, file, fileHeader.Size, contentType)
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	util.Success(ctx, gin.H{"url": url, "filename": filename})
}
