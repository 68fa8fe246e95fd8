package controller

import (
	"exam_backend/internal/model"
	"exam_backend/internal/service"
	"exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type StudentExamController struct {
	StudentExamService *service.StudentExamService
	AnswerService      *service.AnswerService
	ResultsService     *service.ResultsService
}

func NewStudentExamController(
	studentExamService *service.StudentExamService,
	answerService *service.AnswerService,
	resultsService *service.ResultsService,
) *StudentExamController {
	return &StudentExamController{
		StudentExamService: studentExamService,
		AnswerService:      answerService,
		ResultsService:     resultsService,
	}
}

// ListExams godoc
// @Summary 学生可见的考试列表
// @Description 返回已发布的考试并标注时间窗口状态
// @Tags 学生考试
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.AvailableExam} "成功"
// @Router /api/student/exams [get]
func (c *StudentExamController) ListExams(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	exams, err := c.StudentExamService.ListAvailableExams(claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, exams)
}

// StartExam godoc
// @Summary 开始考试
// @Description 新建答卷返回201；已有进行中的答卷则恢复并返回200
// @Tags 学生考试
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=model.StudentExam} "恢复已有答卷"
// @Success 201 {object} util.Response{data=model.StudentExam} "创建新答卷"
// @Failure 400 {object} util.Response "考试不可用或已交卷"
// @Failure 404 {object} util.Response "考试不存在"
// @Router /api/student/exams/{id}/start [post]
func (c *StudentExamController) StartExam(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	studentExam, resumed, err := c.StudentExamService.StartExam(ctx.Param("id"), claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	if resumed {
		util.Success(ctx, studentExam)
		return
	}
	util.Created(ctx, studentExam)
}

// GetSession godoc
// @Summary 获取答卷现场
// @Description 返回题目（不含答案）、已保存作答和剩余秒数；超时答卷在此过期并携带expired标记
// @Tags 学生考试
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "答卷ID"
// @Success 200 {object} util.Response{data=service.ExamSessionView} "成功"
// @Failure 403 {object} util.Response "非本人答卷"
// @Failure 404 {object} util.Response "答卷不存在"
// @Router /api/student/exams/{id} [get]
func (c *StudentExamController) GetSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	session, err := c.StudentExamService.GetExamSession(ctx.Param("id"), claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// SaveAnswer godoc
// @Summary 保存单题作答
// @Description 自动保存接口，可重复调用
// @Tags 学生考试
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "答卷ID"
// @Param   body body service.AnswerSubmission true "作答内容"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "答卷不在进行中或已超时"
// @Failure 403 {object} util.Response "非本人答卷"
// @Router /api/student/exams/{id}/answer [put]
func (c *StudentExamController) SaveAnswer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.AnswerSubmission
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	err := c.StudentExamService.SaveAnswer(ctx.Param("id"), claims.UserID, req.QuestionID, req.AnswerValue)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"saved": true})
}

// swagger:model BulkSaveAnswersRequest
type BulkSaveAnswersRequest struct {
	Answers []service.AnswerSubmission `json:"answers" binding:"required"`
}

// BulkSaveAnswers godoc
// @Summary 批量保存作答
// @Description 整批校验题目存在性，任一题目不存在则整批拒绝
// @Tags 学生考试
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "答卷ID"
// @Param   body body BulkSaveAnswersRequest true "作答列表"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 403 {object} util.Response "非本人答卷"
// @Failure 404 {object} util.Response "存在未知题目"
// @Router /api/student/exams/{id}/answers [put]
func (c *StudentExamController) BulkSaveAnswers(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req BulkSaveAnswersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	// 归属校验复用现场查询；过期或已交卷的答卷不再接受作答
	session, err := c.StudentExamService.GetExamSession(ctx.Param("id"), claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	if session.StudentExam.Status != model.StatusInProgress {
		util.HandleServiceError(ctx, util.InvalidStatef("cannot save answers; exam not in progress"))
		return
	}

	saved, err := c.AnswerService.BulkSaveAnswers(session.StudentExam.ID, req.Answers)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"saved": saved})
}

// SubmitExam godoc
// @Summary 提交答卷
// @Description 提交后同步判分，返回判分概要
// @Tags 学生考试
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "答卷ID"
// @Success 200 {object} util.Response{data=service.SubmitResult} "成功"
// @Failure 400 {object} util.Response "已提交或已过期"
// @Failure 403 {object} util.Response "非本人答卷"
// @Router /api/student/exams/{id}/submit [post]
func (c *StudentExamController) SubmitExam(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.StudentExamService.SubmitExam(ctx.Param("id"), claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ListMyExams godoc
// @Summary 我的答卷列表
// @Tags 学生成绩
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.StudentExamSummary} "成功"
// @Router /api/student/results [get]
func (c *StudentExamController) ListMyExams(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	summaries, err := c.ResultsService.ListStudentExams(claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, summaries)
}

// GetMyResult godoc
// @Summary 查看我的成绩
// @Description 未交卷时隐藏正确答案
// @Tags 学生成绩
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "答卷ID"
// @Success 200 {object} util.Response{data=service.StudentResult} "成功"
// @Failure 403 {object} util.Response "非本人答卷"
// @Failure 404 {object} util.Response "答卷不存在"
// @Router /api/student/results/{id} [get]
func (c *StudentExamController) GetMyResult(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.ResultsService.GetStudentResult(ctx.Param("id"), claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
