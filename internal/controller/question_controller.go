package controller

import (
	"strconv"

	"exam_backend/internal/service"
	"exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	QuestionService *service.QuestionService
}

func NewQuestionController(questionService *service.QuestionService) *QuestionController {
	return &QuestionController{QuestionService: questionService}
}

// CreateQuestion godoc
// @Summary 创建题目
// @Description 管理员创建单个题目，选择题需提供选项与正确答案
// @Tags 题库管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.QuestionInput true "题目内容"
// @Success 201 {object} util.Response{data=model.Question} "创建成功"
// @Failure 400 {object} util.Response "题目校验失败"
// @Router /api/admin/questions [post]
func (c *QuestionController) CreateQuestion(ctx *gin.Context) {
	var input service.QuestionInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question, err := c.QuestionService.CreateQuestion(&input)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// GetQuestion godoc
// @Summary 获取题目详情
// @Tags 题库管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "题目ID"
// @Success 200 {object} util.Response{data=model.Question} "成功"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/admin/questions/{id} [get]
func (c *QuestionController) GetQuestion(ctx *gin.Context) {
	question, err := c.QuestionService.GetQuestion(ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, question)
}

// ListQuestions godoc
// @Summary 题目列表
// @Description 支持按类型、难度和标签过滤，分页返回
// @Tags 题库管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   type query string false "题目类型"
// @Param   complexity query string false "难度"
// @Param   tag query string false "标签"
// @Param   page query int false "页码"
// @Param   pageSize query int false "每页数量"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/admin/questions [get]
func (c *QuestionController) ListQuestions(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("pageSize", "20"))

	questions, total, err := c.QuestionService.ListQuestions(
		ctx.Query("type"),
		ctx.Query("complexity"),
		ctx.Query("tag"),
		page, pageSize,
	)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"items": questions,
		"total": total,
		"page":  page,
	})
}

// UpdateQuestion godoc
// @Summary 更新题目
// @Tags 题库管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "题目ID"
// @Param   body body service.QuestionUpdateInput true "更新字段"
// @Success 200 {object} util.Response{data=model.Question} "成功"
// @Failure 400 {object} util.Response "校验失败"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/admin/questions/{id} [put]
func (c *QuestionController) UpdateQuestion(ctx *gin.Context) {
	var input service.QuestionUpdateInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question, err := c.QuestionService.UpdateQuestion(ctx.Param("id"), &input)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, question)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Description 已被考试引用的题目不可删除
// @Tags 题库管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "题目ID"
// @Success 200 {object} util.Response "成功"
// @Failure 400 {object} util.Response "题目已被考试引用"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/admin/questions/{id} [delete]
func (c *QuestionController) DeleteQuestion(ctx *gin.Context) {
	if err := c.QuestionService.DeleteQuestion(ctx.Param("id")); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// swagger:model ImportQuestionsRequest
type ImportQuestionsRequest struct {
	Rows []service.QuestionInput `json:"rows" binding:"required"`
}

// ImportQuestions godoc
// @Summary 批量导入题目
// @Description 逐行校验，返回成功数与逐行错误明细
// @Tags 题库管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body ImportQuestionsRequest true "题目行"
// @Success 200 {object} util.Response{data=service.ImportResult} "导入结果"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/admin/questions/import [post]
func (c *QuestionController) ImportQuestions(ctx *gin.Context) {
	var req ImportQuestionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.QuestionService.ImportQuestions(req.Rows)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
