package service

import (
	"strings"
	"time"

	"exam_backend/internal/model"
	"exam_backend/internal/repository"
	"exam_backend/internal/util"
	"exam_backend/pkg/logger"
	"exam_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GraceSeconds 答卷在考试时长之外的宽限秒数，超过后惰性过期
const GraceSeconds = 30

type StudentExamService struct {
	db              *gorm.DB
	examRepo        *repository.ExamRepository
	studentExamRepo *repository.StudentExamRepository
	answerRepo      *repository.StudentAnswerRepository
	questionRepo    *repository.QuestionRepository
	gradingService  *GradingService
}

func NewStudentExamService(
	db *gorm.DB,
	examRepo *repository.ExamRepository,
	studentExamRepo *repository.StudentExamRepository,
	answerRepo *repository.StudentAnswerRepository,
	questionRepo *repository.QuestionRepository,
	gradingService *GradingService,
) *StudentExamService {
	return &StudentExamService{
		db:              db,
		examRepo:        examRepo,
		studentExamRepo: studentExamRepo,
		answerRepo:      answerRepo,
		questionRepo:    questionRepo,
		gradingService:  gradingService,
	}
}

// AvailableExam 学生端考试列表条目
type AvailableExam struct {
	ExamID          string    `json:"examId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationMinutes int       `json:"durationMinutes"`
	Availability    string    `json:"availability"` // upcoming / available / ended
}

// StudentQuestionView 学生可见的题目视图，不含正确答案
type StudentQuestionView struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Complexity  string   `json:"complexity"`
	Type        string   `json:"type"`
	Options     []string `json:"options,omitempty"`
	MaxScore    int      `json:"maxScore"`
}

type ExamSessionView struct {
	StudentExam          *model.StudentExam                `json:"studentExam"`
	ExamTitle            string                            `json:"examTitle"`
	ExamDescription      string                            `json:"examDescription"`
	DurationMinutes      int                               `json:"durationMinutes"`
	Questions            []StudentQuestionView             `json:"questions"`
	Answers              map[string]map[string]interface{} `json:"answers"`
	TimeRemainingSeconds int                               `json:"timeRemainingSeconds"`
	Expired              bool                              `json:"expired"`
}

type GradingResultView struct {
	QuestionID           string   `json:"questionId"`
	IsCorrect            *bool    `json:"isCorrect"`
	Score                *float64 `json:"score"`
	MaxScore             int      `json:"maxScore"`
	RequiresManualReview bool     `json:"requiresManualReview"`
}

type SubmitResult struct {
	StudentExamID      string              `json:"studentExamId"`
	SubmittedAt        *time.Time          `json:"submittedAt"`
	TotalScore         *float64            `json:"totalScore"`
	GradedCount        int                 `json:"gradedCount"`
	PendingReviewCount int                 `json:"pendingReviewCount"`
	GradingResults     []GradingResultView `json:"gradingResults"`
}

// ListAvailableExams 返回已发布的考试并标注时间窗口状态
func (s *StudentExamService) ListAvailableExams(studentID string) ([]AvailableExam, error) {
	var exams []model.Exam
	if err := s.db.Where("is_published = ?", true).Order("start_time ASC").Find(&exams).Error; err != nil {
		return nil, util.Fatal(err)
	}

	now := time.Now().UTC()
	result := make([]AvailableExam, 0, len(exams))
	for _, e := range exams {
		availability := "available"
		if now.Before(e.StartTime) {
			availability = "upcoming"
		} else if now.After(e.EndTime) {
			availability = "ended"
		}
		result = append(result, AvailableExam{
			ExamID:          e.ID,
			Title:           e.Title,
			Description:     e.Description,
			StartTime:       e.StartTime,
			EndTime:         e.EndTime,
			DurationMinutes: e.DurationMinutes,
			Availability:    availability,
		})
	}
	return result, nil
}

// StartExam 创建或恢复答卷。resumed为true表示返回已有的in_progress答卷。
// 并发重复开考由唯一索引兜底，冲突时回退为恢复已有答卷。
func (s *StudentExamService) StartExam(examID, studentID string) (*model.StudentExam, bool, error) {
	exam, err := s.examRepo.GetByID(examID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, util.NotFoundf("exam not found")
		}
		return nil, false, util.Fatal(err)
	}

	if !exam.IsPublished {
		return nil, false, util.InvalidStatef("exam is not published")
	}

	now := time.Now().UTC()
	if now.Before(exam.StartTime) || now.After(exam.EndTime) {
		return nil, false, util.InvalidStatef("exam is not currently available")
	}

	existing, err := s.studentExamRepo.GetByExamAndStudent(examID, studentID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, false, util.Fatal(err)
	}
	if existing != nil {
		if existing.Status == model.StatusInProgress {
			return existing, true, nil
		}
		return nil, false, util.InvalidStatef("exam already submitted or expired")
	}

	studentExam := &model.StudentExam{
		ExamID:    examID,
		StudentID: studentID,
		Status:    model.StatusInProgress,
		StartedAt: &now,
	}
	if err := s.studentExamRepo.Create(studentExam); err != nil {
		// 唯一索引冲突说明并发请求已建卷，改为恢复
		if isDuplicateKeyError(err) {
			existing, ferr := s.studentExamRepo.GetByExamAndStudent(examID, studentID)
			if ferr != nil {
				return nil, false, util.Fatal(ferr)
			}
			if existing.Status != model.StatusInProgress {
				return nil, false, util.InvalidStatef("exam already submitted or expired")
			}
			return existing, true, nil
		}
		return nil, false, util.Fatal(err)
	}

	logger.Log.Info("student exam started",
		zap.String("exam_id", examID),
		zap.String("student_id", studentID),
		zap.String("student_exam_id", studentExam.ID))
	return studentExam, false, nil
}

// GetExamSession 返回答卷现场：题目（不含答案）、已保存作答和剩余秒数。
// 超时答卷在此惰性过期，仍返回现场并置expired标记，学生可以回看作答内容。
func (s *StudentExamService) GetExamSession(studentExamID, studentID string) (*ExamSessionView, error) {
	studentExam, err := s.ownedSession(studentExamID, studentID)
	if err != nil {
		return nil, err
	}

	exam, err := s.examRepo.GetByID(studentExam.ExamID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("exam not found")
		}
		return nil, util.Fatal(err)
	}

	if _, err := s.checkAndExpire(studentExam, exam); err != nil {
		return nil, err
	}

	questions, err := loadExamQuestionsOrdered(s.db, exam.ID)
	if err != nil {
		return nil, util.Fatal(err)
	}

	views := make([]StudentQuestionView, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		views = append(views, StudentQuestionView{
			ID:          q.ID,
			Title:       q.Title,
			Description: q.Description,
			Complexity:  q.Complexity,
			Type:        string(q.Type),
			Options:     q.OptionList(),
			MaxScore:    q.MaxScore,
		})
	}

	answers, err := s.answerRepo.ListBySession(studentExamID)
	if err != nil {
		return nil, util.Fatal(err)
	}
	answerMap := make(map[string]map[string]interface{}, len(answers))
	for i := range answers {
		answerMap[answers[i].QuestionID] = answers[i].ValueMap()
	}

	timeRemaining := 0
	if studentExam.StartedAt != nil && studentExam.Status == model.StatusInProgress {
		deadline := studentExam.StartedAt.Add(time.Duration(exam.DurationMinutes) * time.Minute)
		if remaining := int(time.Until(deadline).Seconds()); remaining > 0 {
			timeRemaining = remaining
		}
	}

	return &ExamSessionView{
		StudentExam:          studentExam,
		ExamTitle:            exam.Title,
		ExamDescription:      exam.Description,
		DurationMinutes:      exam.DurationMinutes,
		Questions:            views,
		Answers:              answerMap,
		TimeRemainingSeconds: timeRemaining,
		Expired:              studentExam.Status == model.StatusExpired,
	}, nil
}

// SaveAnswer 保存单题作答，供前端自动保存调用，可重复执行
func (s *StudentExamService) SaveAnswer(studentExamID, studentID, questionID string, answerValue map[string]interface{}) error {
	studentExam, err := s.ownedSession(studentExamID, studentID)
	if err != nil {
		return err
	}

	if studentExam.Status != model.StatusInProgress {
		return util.InvalidStatef("cannot save answer; exam not in progress")
	}

	exam, err := s.examRepo.GetByID(studentExam.ExamID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return util.NotFoundf("exam not found")
		}
		return util.Fatal(err)
	}
	expired, err := s.checkAndExpire(studentExam, exam)
	if err != nil {
		return err
	}
	if expired {
		return util.InvalidStatef("exam time expired")
	}

	if _, err := s.questionRepo.GetByID(questionID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return util.NotFoundf("question not found")
		}
		return util.Fatal(err)
	}

	row, err := s.answerRepo.GetBySessionAndQuestion(studentExamID, questionID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return util.Fatal(err)
	}
	if row != nil {
		row.AnswerValue = model.ValueMapJSON(answerValue)
		if err := s.answerRepo.Update(row); err != nil {
			return util.Fatal(err)
		}
		return nil
	}

	row = &model.StudentAnswer{
		StudentExamID: studentExamID,
		QuestionID:    questionID,
		AnswerValue:   model.ValueMapJSON(answerValue),
	}
	if err := s.answerRepo.Create(row); err != nil {
		return util.Fatal(err)
	}
	return nil
}

// SubmitExam 提交答卷并同步触发判分，返回判分概要
func (s *StudentExamService) SubmitExam(studentExamID, studentID string) (*SubmitResult, error) {
	studentExam, err := s.ownedSession(studentExamID, studentID)
	if err != nil {
		return nil, err
	}

	if studentExam.Status == model.StatusSubmitted {
		return nil, util.InvalidStatef("exam already submitted")
	}
	if studentExam.Status == model.StatusExpired {
		return nil, util.InvalidStatef("cannot submit; exam expired")
	}

	now := time.Now().UTC()
	studentExam.Status = model.StatusSubmitted
	studentExam.SubmittedAt = &now
	if err := s.studentExamRepo.Update(studentExam); err != nil {
		return nil, util.Fatal(err)
	}

	if _, err := s.gradingService.GradeStudentExam(studentExamID); err != nil {
		return nil, err
	}
	monitoring.ExamSubmissions.Inc()

	// 回读判分后的答卷与答案，构造概要
	studentExam, err = s.studentExamRepo.GetByID(studentExamID)
	if err != nil {
		return nil, util.Fatal(err)
	}
	answers, err := s.answerRepo.ListBySession(studentExamID)
	if err != nil {
		return nil, util.Fatal(err)
	}
	answerByQuestion := make(map[string]*model.StudentAnswer, len(answers))
	for i := range answers {
		answerByQuestion[answers[i].QuestionID] = &answers[i]
	}

	// 概要按考试题目构造：缺答的主观题没有答案行，也要计入待批
	questions, err := loadExamQuestionsOrdered(s.db, studentExam.ExamID)
	if err != nil {
		return nil, util.Fatal(err)
	}

	result := &SubmitResult{
		StudentExamID:  studentExam.ID,
		SubmittedAt:    studentExam.SubmittedAt,
		TotalScore:     studentExam.TotalScore,
		GradingResults: make([]GradingResultView, 0, len(questions)),
	}
	for i := range questions {
		q := &questions[i]
		view := GradingResultView{
			QuestionID:           q.ID,
			MaxScore:             q.MaxScore,
			RequiresManualReview: true,
		}
		if a := answerByQuestion[q.ID]; a != nil {
			view.IsCorrect = a.IsCorrect
			view.Score = a.Score
			view.RequiresManualReview = a.Score == nil
		}
		if view.Score != nil {
			result.GradedCount++
		} else {
			result.PendingReviewCount++
		}
		result.GradingResults = append(result.GradingResults, view)
	}

	logger.Log.Info("student exam submitted",
		zap.String("student_exam_id", studentExamID),
		zap.Int("graded_count", result.GradedCount),
		zap.Int("pending_review", result.PendingReviewCount))
	return result, nil
}

// ownedSession 取答卷并校验归属
func (s *StudentExamService) ownedSession(studentExamID, studentID string) (*model.StudentExam, error) {
	studentExam, err := s.studentExamRepo.GetByID(studentExamID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("student exam not found")
		}
		return nil, util.Fatal(err)
	}
	if studentExam.StudentID != studentID {
		return nil, util.Forbiddenf("invalid student ownership")
	}
	return studentExam, nil
}

// checkAndExpire 超过考试时长加宽限期的in_progress答卷置为expired并视同提交
func (s *StudentExamService) checkAndExpire(studentExam *model.StudentExam, exam *model.Exam) (bool, error) {
	if studentExam.StartedAt == nil || studentExam.Status != model.StatusInProgress {
		return false, nil
	}

	elapsed := time.Since(*studentExam.StartedAt).Seconds()
	allowed := float64(exam.DurationMinutes*60 + GraceSeconds)
	if elapsed <= allowed {
		return false, nil
	}

	now := time.Now().UTC()
	studentExam.Status = model.StatusExpired
	studentExam.SubmittedAt = &now
	if err := s.studentExamRepo.Update(studentExam); err != nil {
		return false, util.Fatal(err)
	}

	logger.Log.Info("student exam expired",
		zap.String("student_exam_id", studentExam.ID),
		zap.Float64("elapsed_seconds", elapsed))
	return true, nil
}

// isDuplicateKeyError 识别唯一索引冲突，兼容MySQL 1062与SQLite提示
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
