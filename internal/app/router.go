package app

import (
	"exam_backend/docs"
	"exam_backend/internal/config"
	"exam_backend/internal/middleware"
	"exam_backend/internal/model"
	"exam_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 需要登录的通用接口
	authorized := router.Group("/api")
	authorized.Use(middleware.AuthMiddleware(cfg))
	{
		authorized.GET("/profile", c.auth.GetProfile)
	}

	// 学生接口
	student := router.Group("/api/student")
	student.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Student))
	{
		// gin要求同一位置的路径参数同名，开考用考试ID，其余用答卷ID
		student.GET("/exams", c.studentExam.ListExams)
		student.POST("/exams/:id/start", c.studentExam.StartExam)
		student.GET("/exams/:id", c.studentExam.GetSession)
		student.PUT("/exams/:id/answer", c.studentExam.SaveAnswer)
		student.PUT("/exams/:id/answers", c.studentExam.BulkSaveAnswers)
		student.POST("/exams/:id/submit", c.studentExam.SubmitExam)

		student.GET("/results", c.studentExam.ListMyExams)
		student.GET("/results/:id", c.studentExam.GetMyResult)

		student.POST("/uploads/images", c.upload.UploadAnswerImage)
	}

	// 管理员接口
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/questions", c.question.CreateQuestion)
		admin.GET("/questions", c.question.ListQuestions)
		admin.POST("/questions/import", c.question.ImportQuestions)
		admin.GET("/questions/:id", c.question.GetQuestion)
		admin.PUT("/questions/:id", c.question.UpdateQuestion)
		admin.DELETE("/questions/:id", c.question.DeleteQuestion)

		admin.POST("/exams", c.exam.CreateExam)
		admin.GET("/exams", c.exam.ListExams)
		admin.GET("/exams/:id", c.exam.GetExam)
		admin.PUT("/exams/:id", c.exam.UpdateExam)
		admin.DELETE("/exams/:id", c.exam.DeleteExam)
		admin.PUT("/exams/:id/questions", c.exam.AssignQuestions)
		admin.PUT("/exams/:id/questions/reorder", c.exam.ReorderQuestions)
		admin.PUT("/exams/:id/publish", c.exam.PublishExam)

		admin.GET("/results/exams/:examId", c.results.GetExamResults)
		admin.GET("/results/exams/:examId/statistics", c.results.GetExamStatistics)
		admin.GET("/results/student-exams/:studentExamId", c.results.GetStudentExamDetail)
		admin.GET("/results/students/:studentId/exams", c.results.GetStudentExams)
		admin.POST("/student-answers/:answerId/grade", c.results.GradeAnswer)

		admin.GET("/users", c.user.ListUsers)
		admin.GET("/users/:id", c.user.GetUser)
		admin.PUT("/users/:id/disable", c.user.SetDisabled)
	}
}
