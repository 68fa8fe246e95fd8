package service

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"exam_backend/internal/model"
	"exam_backend/internal/repository"
	"exam_backend/internal/util"
	"exam_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// statsCacheTTL 考试统计缓存时长
const statsCacheTTL = 60 * time.Second

// statsCacheKey 统计缓存键，判分成功后删除该键使缓存失效
func statsCacheKey(examID string) string {
	return "exam_stats:" + examID
}

type ResultsService struct {
	db              *gorm.DB
	examRepo        *repository.ExamRepository
	studentExamRepo *repository.StudentExamRepository
	answerRepo      *repository.StudentAnswerRepository
	userRepo        *repository.UserRepository
	redisClient     *redis.Client
}

func NewResultsService(
	db *gorm.DB,
	examRepo *repository.ExamRepository,
	studentExamRepo *repository.StudentExamRepository,
	answerRepo *repository.StudentAnswerRepository,
	userRepo *repository.UserRepository,
	redisClient *redis.Client,
) *ResultsService {
	return &ResultsService{
		db:              db,
		examRepo:        examRepo,
		studentExamRepo: studentExamRepo,
		answerRepo:      answerRepo,
		userRepo:        userRepo,
		redisClient:     redisClient,
	}
}

// QuestionResult 单题判分明细
type QuestionResult struct {
	QuestionID           string                 `json:"questionId"`
	AnswerID             *string                `json:"answerId"`
	Title                string                 `json:"title"`
	Type                 string                 `json:"type"`
	StudentAnswer        map[string]interface{} `json:"studentAnswer"`
	CorrectAnswer        []string               `json:"correctAnswer,omitempty"`
	IsCorrect            *bool                  `json:"isCorrect"`
	Score                *float64               `json:"score"`
	MaxScore             int                    `json:"maxScore"`
	RequiresManualReview bool                   `json:"requiresManualReview"`
}

type StudentResult struct {
	StudentExamID    string           `json:"studentExamId"`
	ExamTitle        string           `json:"examTitle"`
	StudentName      string           `json:"studentName"`
	StudentEmail     string           `json:"studentEmail"`
	TotalScore       float64          `json:"totalScore"`
	MaxPossibleScore float64          `json:"maxPossibleScore"`
	Percentage       *float64         `json:"percentage"`
	SubmittedAt      *time.Time       `json:"submittedAt"`
	Status           string           `json:"status"`
	QuestionResults  []QuestionResult `json:"questionResults"`
}

type StudentResultSummary struct {
	StudentExamID string     `json:"studentExamId"`
	StudentID     string     `json:"studentId"`
	StudentName   string     `json:"studentName"`
	StudentEmail  string     `json:"studentEmail"`
	TotalScore    *float64   `json:"totalScore"`
	Percentage    *float64   `json:"percentage"`
	SubmittedAt   *time.Time `json:"submittedAt"`
	Status        string     `json:"status"`
}

type ExamSummary struct {
	ExamID          string   `json:"examId"`
	ExamTitle       string   `json:"examTitle"`
	TotalStudents   int      `json:"totalStudents"`
	AverageScore    *float64 `json:"averageScore"`
	HighestScore    *float64 `json:"highestScore"`
	LowestScore     *float64 `json:"lowestScore"`
	SubmissionCount int      `json:"submissionCount"`
}

type AdminExamResults struct {
	ExamSummary    ExamSummary            `json:"examSummary"`
	StudentResults []StudentResultSummary `json:"studentResults"`
}

type ExamStatistics struct {
	ExamID          string   `json:"examId"`
	ExamTitle       string   `json:"examTitle"`
	SubmissionCount int      `json:"submissionCount"`
	TotalStudents   int      `json:"totalStudents"`
	AverageScore    *float64 `json:"averageScore"`
	MedianScore     *float64 `json:"medianScore"`
	HighestScore    *float64 `json:"highestScore"`
	LowestScore     *float64 `json:"lowestScore"`
	Stddev          *float64 `json:"stddev"`
}

type StudentExamSummary struct {
	StudentExamID    string     `json:"studentExamId"`
	ExamID           string     `json:"examId"`
	ExamTitle        string     `json:"examTitle"`
	TotalScore       *float64   `json:"totalScore"`
	MaxPossibleScore float64    `json:"maxPossibleScore"`
	Percentage       *float64   `json:"percentage"`
	SubmittedAt      *time.Time `json:"submittedAt"`
	Status           string     `json:"status"`
}

// SafePercent 百分比取两位小数；满分为0时返回0，分数缺失返回nil
func SafePercent(score *float64, maxScore float64) *float64 {
	if score == nil {
		return nil
	}
	if maxScore == 0 {
		zero := 0.0
		return &zero
	}
	pct := round2(*score / maxScore * 100.0)
	return &pct
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// displayName 取邮箱@前的部分作为展示名
func displayName(email string) string {
	if idx := strings.Index(email, "@"); idx >= 0 {
		return email[:idx]
	}
	return email
}

// GetStudentResult 学生查看自己的成绩。未提交时隐藏正确答案。
func (s *ResultsService) GetStudentResult(studentExamID, studentID string) (*StudentResult, error) {
	studentExam, err := s.studentExamRepo.GetByID(studentExamID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("student exam not found")
		}
		return nil, util.Fatal(err)
	}
	if studentExam.StudentID != studentID {
		return nil, util.Forbiddenf("student does not own this record")
	}

	showCorrect := studentExam.Status.IsTerminal()
	return s.buildResult(studentExam, showCorrect)
}

// GetStudentExamDetail 管理员查看答卷明细，始终含正确答案
func (s *ResultsService) GetStudentExamDetail(studentExamID string) (*StudentResult, error) {
	studentExam, err := s.studentExamRepo.GetByID(studentExamID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("student exam not found")
		}
		return nil, util.Fatal(err)
	}
	return s.buildResult(studentExam, true)
}

func (s *ResultsService) buildResult(studentExam *model.StudentExam, showCorrect bool) (*StudentResult, error) {
	exam, err := s.examRepo.GetByID(studentExam.ExamID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("exam not found")
		}
		return nil, util.Fatal(err)
	}

	student, err := s.userRepo.GetByID(studentExam.StudentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("student not found")
		}
		return nil, util.Fatal(err)
	}

	questions, err := loadExamQuestionsOrdered(s.db, exam.ID)
	if err != nil {
		return nil, util.Fatal(err)
	}

	answers, err := s.answerRepo.ListBySession(studentExam.ID)
	if err != nil {
		return nil, util.Fatal(err)
	}
	answerByQuestion := make(map[string]*model.StudentAnswer, len(answers))
	for i := range answers {
		answerByQuestion[answers[i].QuestionID] = &answers[i]
	}

	maxPossible := 0.0
	questionResults := make([]QuestionResult, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		maxPossible += float64(q.MaxScore)

		sa := answerByQuestion[q.ID]
		result := QuestionResult{
			QuestionID: q.ID,
			Title:      q.Title,
			Type:       string(q.Type),
			MaxScore:   q.MaxScore,
		}
		if showCorrect {
			result.CorrectAnswer = q.CorrectAnswerList()
		}
		if sa != nil {
			result.AnswerID = &sa.ID
			result.StudentAnswer = sa.ValueMap()
			result.IsCorrect = sa.IsCorrect
			result.Score = sa.Score
		}
		result.RequiresManualReview = !q.Type.IsObjective() || result.Score == nil

		questionResults = append(questionResults, result)
	}

	totalScore := 0.0
	if studentExam.TotalScore != nil {
		totalScore = *studentExam.TotalScore
	}

	return &StudentResult{
		StudentExamID:    studentExam.ID,
		ExamTitle:        exam.Title,
		StudentName:      displayName(student.Email),
		StudentEmail:     student.Email,
		TotalScore:       totalScore,
		MaxPossibleScore: maxPossible,
		Percentage:       SafePercent(&totalScore, maxPossible),
		SubmittedAt:      studentExam.SubmittedAt,
		Status:           string(studentExam.Status),
		QuestionResults:  questionResults,
	}, nil
}

// GetExamResultsForAdmin 考试全员成绩与概要统计
func (s *ResultsService) GetExamResultsForAdmin(examID string) (*AdminExamResults, error) {
	exam, err := s.examRepo.GetByID(examID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("exam not found")
		}
		return nil, util.Fatal(err)
	}

	sessions, err := s.studentExamRepo.ListByExam(examID)
	if err != nil {
		return nil, util.Fatal(err)
	}

	maxPossible, err := s.examMaxScore(examID)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, 0, len(sessions))
	submissionCount := 0
	studentResults := make([]StudentResultSummary, 0, len(sessions))
	for i := range sessions {
		se := &sessions[i]
		if se.TotalScore != nil {
			scores = append(scores, *se.TotalScore)
		}
		if se.Status.IsTerminal() {
			submissionCount++
		}

		student, uerr := s.userRepo.GetByID(se.StudentID)
		if uerr != nil {
			return nil, util.Fatal(uerr)
		}

		studentResults = append(studentResults, StudentResultSummary{
			StudentExamID: se.ID,
			StudentID:     se.StudentID,
			StudentName:   displayName(student.Email),
			StudentEmail:  student.Email,
			TotalScore:    se.TotalScore,
			Percentage:    SafePercent(se.TotalScore, maxPossible),
			SubmittedAt:   se.SubmittedAt,
			Status:        string(se.Status),
		})
	}

	summary := ExamSummary{
		ExamID:          exam.ID,
		ExamTitle:       exam.Title,
		TotalStudents:   len(sessions),
		SubmissionCount: submissionCount,
	}
	if len(scores) > 0 {
		avg := round2(meanOf(scores))
		hi := round2(maxOf(scores))
		lo := round2(minOf(scores))
		summary.AverageScore = &avg
		summary.HighestScore = &hi
		summary.LowestScore = &lo
	}

	return &AdminExamResults{ExamSummary: summary, StudentResults: studentResults}, nil
}

// CalculateExamStatistics 考试统计，短暂缓存以扛住管理端轮询
func (s *ResultsService) CalculateExamStatistics(examID string) (*ExamStatistics, error) {
	cacheKey := statsCacheKey(examID)
	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(context.Background(), cacheKey).Result(); err == nil {
			var stats ExamStatistics
			if jerr := json.Unmarshal([]byte(cached), &stats); jerr == nil {
				return &stats, nil
			}
		}
	}

	exam, err := s.examRepo.GetByID(examID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("exam not found")
		}
		return nil, util.Fatal(err)
	}

	sessions, err := s.studentExamRepo.ListByExam(examID)
	if err != nil {
		return nil, util.Fatal(err)
	}

	// 仅统计已提交或过期且有分数的答卷
	scores := make([]float64, 0, len(sessions))
	for i := range sessions {
		se := &sessions[i]
		if se.Status.IsTerminal() && se.TotalScore != nil {
			scores = append(scores, *se.TotalScore)
		}
	}

	stats := &ExamStatistics{
		ExamID:          exam.ID,
		ExamTitle:       exam.Title,
		SubmissionCount: len(scores),
		TotalStudents:   len(sessions),
	}
	if len(scores) > 0 {
		avg := round2(meanOf(scores))
		med := round2(medianOf(scores))
		hi := round2(maxOf(scores))
		lo := round2(minOf(scores))
		stats.AverageScore = &avg
		stats.MedianScore = &med
		stats.HighestScore = &hi
		stats.LowestScore = &lo
		if len(scores) > 1 {
			sd := round2(pstdevOf(scores))
			stats.Stddev = &sd
		}
	}

	if s.redisClient != nil {
		if raw, jerr := json.Marshal(stats); jerr == nil {
			if cerr := s.redisClient.Set(context.Background(), cacheKey, raw, statsCacheTTL).Err(); cerr != nil {
				logger.Log.Warn("failed to cache exam statistics", zap.Error(cerr))
			}
		}
	}

	return stats, nil
}

// ListStudentExams 学生的历史答卷列表，按开考时间倒序
func (s *ResultsService) ListStudentExams(studentID string) ([]StudentExamSummary, error) {
	sessions, err := s.studentExamRepo.ListByStudent(studentID)
	if err != nil {
		return nil, util.Fatal(err)
	}

	summaries := make([]StudentExamSummary, 0, len(sessions))
	for i := range sessions {
		se := &sessions[i]
		exam, eerr := s.examRepo.GetByID(se.ExamID)
		if eerr != nil {
			return nil, util.Fatal(eerr)
		}
		maxPossible, merr := s.examMaxScore(se.ExamID)
		if merr != nil {
			return nil, merr
		}

		summaries = append(summaries, StudentExamSummary{
			StudentExamID:    se.ID,
			ExamID:           se.ExamID,
			ExamTitle:        exam.Title,
			TotalScore:       se.TotalScore,
			MaxPossibleScore: maxPossible,
			Percentage:       SafePercent(se.TotalScore, maxPossible),
			SubmittedAt:      se.SubmittedAt,
			Status:           string(se.Status),
		})
	}
	return summaries, nil
}

// examMaxScore 考试满分，等于全部题目max_score之和
func (s *ResultsService) examMaxScore(examID string) (float64, error) {
	questions, err := loadExamQuestionsOrdered(s.db, examID)
	if err != nil {
		return 0, util.Fatal(err)
	}
	total := 0.0
	for i := range questions {
		total += float64(questions[i].MaxScore)
	}
	return total, nil
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// pstdevOf 总体标准差
func pstdevOf(values []float64) float64 {
	m := meanOf(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
