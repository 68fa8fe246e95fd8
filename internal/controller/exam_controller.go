package controller

import (
	"strconv"

	"exam_backend/internal/service"
	"exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	ExamService *service.ExamService
}

func NewExamController(examService *service.ExamService) *ExamController {
	return &ExamController{ExamService: examService}
}

// CreateExam godoc
// @Summary 创建考试
// @Description 新建考试默认未发布，创建人记录为当前管理员
// @Tags 考试管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.ExamInput true "考试信息"
// @Success 201 {object} util.Response{data=model.Exam} "创建成功"
// @Failure 400 {object} util.Response "时间窗口非法"
// @Router /api/admin/exams [post]
func (c *ExamController) CreateExam(ctx *gin.Context) {
	var input service.ExamInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	exam, err := c.ExamService.CreateExam(&input, claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, exam)
}

// GetExam godoc
// @Summary 获取考试详情
// @Description 返回考试及按顺序排列的题目列表
// @Tags 考试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=service.ExamDetail} "成功"
// @Failure 404 {object} util.Response "考试不存在"
// @Router /api/admin/exams/{id} [get]
func (c *ExamController) GetExam(ctx *gin.Context) {
	detail, err := c.ExamService.GetExam(ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// ListExams godoc
// @Summary 考试列表
// @Tags 考试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   published query bool false "按发布状态过滤"
// @Param   page query int false "页码"
// @Param   pageSize query int false "每页数量"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/admin/exams [get]
func (c *ExamController) ListExams(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("pageSize", "20"))

	var published *bool
	if raw := ctx.Query("published"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			util.BadRequest(ctx, "invalid 'published' filter")
			return
		}
		published = &v
	}

	exams, total, err := c.ExamService.ListExams(published, page, pageSize)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"items": exams,
		"total": total,
		"page":  page,
	})
}

// UpdateExam godoc
// @Summary 更新考试
// @Description 已发布且有学生答卷的考试锁定不可修改
// @Tags 考试管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Param   body body service.ExamUpdateInput true "更新字段"
// @Success 200 {object} util.Response{data=model.Exam} "成功"
// @Failure 400 {object} util.Response "考试已锁定"
// @Failure 404 {object} util.Response "考试不存在"
// @Router /api/admin/exams/{id} [put]
func (c *ExamController) UpdateExam(ctx *gin.Context) {
	var input service.ExamUpdateInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.ExamService.UpdateExam(ctx.Param("id"), &input)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// DeleteExam godoc
// @Summary 删除考试
// @Description 已有学生答卷的考试不可删除
// @Tags 考试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response "成功"
// @Failure 400 {object} util.Response "存在学生答卷"
// @Failure 404 {object} util.Response "考试不存在"
// @Router /api/admin/exams/{id} [delete]
func (c *ExamController) DeleteExam(ctx *gin.Context) {
	if err := c.ExamService.DeleteExam(ctx.Param("id")); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// swagger:model AssignQuestionsRequest
type AssignQuestionsRequest struct {
	Questions []service.QuestionAssignment `json:"questions" binding:"required"`
}

// AssignQuestions godoc
// @Summary 设置考试题目
// @Description 整体替换考试的题目集合及顺序
// @Tags 考试管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Param   body body AssignQuestionsRequest true "题目关联"
// @Success 200 {object} util.Response{data=service.ExamDetail} "成功"
// @Failure 400 {object} util.Response "题目重复"
// @Failure 404 {object} util.Response "考试或题目不存在"
// @Router /api/admin/exams/{id}/questions [put]
func (c *ExamController) AssignQuestions(ctx *gin.Context) {
	var req AssignQuestionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	detail, err := c.ExamService.AssignQuestions(ctx.Param("id"), req.Questions)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// swagger:model ReorderQuestionsRequest
type ReorderQuestionsRequest struct {
	QuestionOrder []string `json:"questionOrder" binding:"required"`
}

// ReorderQuestions godoc
// @Summary 调整题目顺序
// @Description 传入的题目集合必须与已挂载题目完全一致
// @Tags 考试管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Param   body body ReorderQuestionsRequest true "题目ID顺序"
// @Success 200 {object} util.Response "成功"
// @Failure 400 {object} util.Response "集合不匹配"
// @Router /api/admin/exams/{id}/questions/reorder [put]
func (c *ExamController) ReorderQuestions(ctx *gin.Context) {
	var req ReorderQuestionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.ExamService.ReorderQuestions(ctx.Param("id"), req.QuestionOrder); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// swagger:model PublishExamRequest
type PublishExamRequest struct {
	IsPublished *bool `json:"isPublished" binding:"required"`
}

// PublishExam godoc
// @Summary 发布或撤回考试
// @Description 发布前考试必须至少挂载一道题目
// @Tags 考试管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Param   body body PublishExamRequest true "发布状态"
// @Success 200 {object} util.Response{data=model.Exam} "成功"
// @Failure 400 {object} util.Response "考试没有题目"
// @Failure 404 {object} util.Response "考试不存在"
// @Router /api/admin/exams/{id}/publish [put]
func (c *ExamController) PublishExam(ctx *gin.Context) {
	var req PublishExamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.ExamService.PublishExam(ctx.Param("id"), *req.IsPublished)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}
