package controller

import (
	"exam_backend/internal/service"
	"exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ResultsController struct {
	ResultsService *service.ResultsService
	GradingService *service.GradingService
}

func NewResultsController(resultsService *service.ResultsService, gradingService *service.GradingService) *ResultsController {
	return &ResultsController{
		ResultsService: resultsService,
		GradingService: gradingService,
	}
}

// GetExamResults godoc
// @Summary 考试全员成绩
// @Description 返回考试概要统计和每个学生的成绩摘要
// @Tags 成绩管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   examId path string true "考试ID"
// @Success 200 {object} util.Response{data=service.AdminExamResults} "成功"
// @Failure 404 {object} util.Response "考试不存在"
// @Router /api/admin/results/exams/{examId} [get]
func (c *ResultsController) GetExamResults(ctx *gin.Context) {
	results, err := c.ResultsService.GetExamResultsForAdmin(ctx.Param("examId"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

// GetStudentExamDetail godoc
// @Summary 答卷批阅明细
// @Description 管理员视角，始终包含正确答案
// @Tags 成绩管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   studentExamId path string true "答卷ID"
// @Success 200 {object} util.Response{data=service.StudentResult} "成功"
// @Failure 404 {object} util.Response "答卷不存在"
// @Router /api/admin/results/student-exams/{studentExamId} [get]
func (c *ResultsController) GetStudentExamDetail(ctx *gin.Context) {
	result, err := c.ResultsService.GetStudentExamDetail(ctx.Param("studentExamId"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetExamStatistics godoc
// @Summary 考试统计
// @Description 均值、中位数、最值与标准差，仅统计已交卷答卷
// @Tags 成绩管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   examId path string true "考试ID"
// @Success 200 {object} util.Response{data=service.ExamStatistics} "成功"
// @Failure 404 {object} util.Response "考试不存在"
// @Router /api/admin/results/exams/{examId}/statistics [get]
func (c *ResultsController) GetExamStatistics(ctx *gin.Context) {
	stats, err := c.ResultsService.CalculateExamStatistics(ctx.Param("examId"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// GetStudentExams godoc
// @Summary 某学生的全部答卷
// @Tags 成绩管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   studentId path string true "学生ID"
// @Success 200 {object} util.Response{data=[]service.StudentExamSummary} "成功"
// @Router /api/admin/results/students/{studentId}/exams [get]
func (c *ResultsController) GetStudentExams(ctx *gin.Context) {
	summaries, err := c.ResultsService.ListStudentExams(ctx.Param("studentId"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, summaries)
}

// swagger:model ManualGradeRequest
type ManualGradeRequest struct {
	Score    *float64 `json:"score" binding:"required"`
	Feedback string   `json:"feedback"`
}

// GradeAnswer godoc
// @Summary 人工批改答案
// @Description 给主观题打分并附评语，自动重算答卷总分
// @Tags 成绩管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   answerId path string true "答案ID"
// @Param   body body ManualGradeRequest true "分数与评语"
// @Success 200 {object} util.Response{data=model.StudentAnswer} "成功"
// @Failure 400 {object} util.Response "分数超出范围"
// @Failure 404 {object} util.Response "答案不存在"
// @Router /api/admin/student-answers/{answerId}/grade [post]
func (c *ResultsController) GradeAnswer(ctx *gin.Context) {
	var req ManualGradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	answer, err := c.GradingService.ManualGradeAnswer(ctx.Param("answerId"), claims.UserID, *req.Score, req.Feedback)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, answer)
}
