package service

import (
	"context"
	"strings"
	"time"

	"exam_backend/internal/model"
	"exam_backend/internal/util"
	"exam_backend/pkg/logger"
	"exam_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GradingService struct {
	db          *gorm.DB
	redisClient *redis.Client
}

func NewGradingService(db *gorm.DB, redisClient *redis.Client) *GradingService {
	return &GradingService{db: db, redisClient: redisClient}
}

// normalizeOption 提取选项字母："B: Mars" -> "b"，比较时忽略大小写
func normalizeOption(raw string) string {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	return strings.ToLower(s)
}

func answerString(answerValue map[string]interface{}) (string, bool) {
	v, ok := answerValue["answer"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func answerStrings(answerValue map[string]interface{}) []string {
	v, ok := answerValue["answers"]
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil
		}
		out = append(out, s)
	}
	return out
}

// gradeSingleChoice 单选判分 答案缺失或为空 -> 判错零分
func gradeSingleChoice(answerValue map[string]interface{}, correctAnswers []string, maxScore int) (bool, float64) {
	if len(correctAnswers) == 0 {
		logger.Log.Warn("single choice question has no correct answers configured")
		return false, 0
	}

	raw, ok := answerString(answerValue)
	if !ok || strings.TrimSpace(raw) == "" {
		return false, 0
	}

	if normalizeOption(raw) == normalizeOption(correctAnswers[0]) {
		return true, float64(maxScore)
	}
	return false, 0
}

// gradeMultiChoice 多选严格判分 必须与正确答案集合完全一致，错选漏选均零分
func gradeMultiChoice(answerValue map[string]interface{}, correctAnswers []string, maxScore int) (bool, float64) {
	if len(correctAnswers) == 0 {
		logger.Log.Warn("multi choice question has no correct answers configured")
		return false, 0
	}

	selected := answerStrings(answerValue)
	if len(selected) == 0 {
		return false, 0
	}

	expected := make(map[string]bool, len(correctAnswers))
	for _, ans := range correctAnswers {
		expected[normalizeOption(ans)] = true
	}
	actual := make(map[string]bool, len(selected))
	for _, ans := range selected {
		actual[normalizeOption(ans)] = true
	}

	if len(expected) != len(actual) {
		return false, 0
	}
	for opt := range expected {
		if !actual[opt] {
			return false, 0
		}
	}
	return true, float64(maxScore)
}

// GradeAnswer 按题型路由判分，返回nil表示需要人工批改
func GradeAnswer(question *model.Question, answerValue map[string]interface{}) (isCorrect *bool, score *float64) {
	switch question.Type {
	case model.SingleChoice:
		ok, s := gradeSingleChoice(answerValue, question.CorrectAnswerList(), question.MaxScore)
		return &ok, &s
	case model.MultiChoice:
		ok, s := gradeMultiChoice(answerValue, question.CorrectAnswerList(), question.MaxScore)
		return &ok, &s
	case model.TextQuestion, model.ImageUpload:
		return nil, nil
	default:
		logger.Log.Warn("unknown question type during grading",
			zap.String("question_id", question.ID),
			zap.String("type", string(question.Type)))
		return nil, nil
	}
}

// GradeStudentExam 对整份答卷判分并更新total_score，返回新总分。
// 客观题自动判分，缺答补建空白答案记零分；主观题保留已有的人工分数，
// 未批改的保持待批状态。重复调用结果幂等。
func (s *GradingService) GradeStudentExam(studentExamID string) (float64, error) {
	var total float64
	var examID string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var studentExam model.StudentExam
		if err := tx.First(&studentExam, "id = ?", studentExamID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return util.NotFoundf("student exam not found")
			}
			return util.Fatal(err)
		}

		if !studentExam.Status.IsTerminal() {
			return util.InvalidStatef("exam must be submitted or expired to grade")
		}
		examID = studentExam.ExamID

		questions, err := loadExamQuestionsOrdered(tx, studentExam.ExamID)
		if err != nil {
			return util.Fatal(err)
		}

		var answers []model.StudentAnswer
		if err := tx.Where("student_exam_id = ?", studentExamID).Find(&answers).Error; err != nil {
			return util.Fatal(err)
		}
		answerByQuestion := make(map[string]*model.StudentAnswer, len(answers))
		for i := range answers {
			answerByQuestion[answers[i].QuestionID] = &answers[i]
		}

		gradedCount := 0
		pendingReview := 0
		for i := range questions {
			q := &questions[i]
			sa := answerByQuestion[q.ID]

			if q.Type.IsObjective() {
				var value map[string]interface{}
				if sa != nil {
					value = sa.ValueMap()
				}
				isCorrect, score := GradeAnswer(q, value)

				if sa != nil {
					sa.IsCorrect = isCorrect
					sa.Score = score
					if err := tx.Save(sa).Error; err != nil {
						return util.Fatal(err)
					}
				} else {
					blank := model.StudentAnswer{
						StudentExamID: studentExamID,
						QuestionID:    q.ID,
						AnswerValue:   model.ValueMapJSON(nil),
						IsCorrect:     isCorrect,
						Score:         score,
					}
					if err := tx.Create(&blank).Error; err != nil {
						return util.Fatal(err)
					}
				}

				if score != nil {
					total += *score
				}
				gradedCount++
				continue
			}

			// 主观题：已有人工分数的计入总分，否则待批
			if sa != nil {
				if sa.Score != nil {
					total += *sa.Score
				} else {
					sa.IsCorrect = nil
					sa.Score = nil
					if err := tx.Save(sa).Error; err != nil {
						return util.Fatal(err)
					}
					pendingReview++
				}
			} else {
				pendingReview++
			}
		}

		studentExam.TotalScore = &total
		if err := tx.Save(&studentExam).Error; err != nil {
			return util.Fatal(err)
		}

		logger.Log.Info("graded student exam",
			zap.String("student_exam_id", studentExamID),
			zap.Float64("total_score", total),
			zap.Int("graded_count", gradedCount),
			zap.Int("pending_review", pendingReview))
		return nil
	})
	if err != nil {
		return 0, err
	}

	// 新分数落库后统计缓存立即失效
	if s.redisClient != nil {
		if derr := s.redisClient.Del(context.Background(), statsCacheKey(examID)).Err(); derr != nil {
			logger.Log.Warn("failed to invalidate exam statistics cache", zap.Error(derr))
		}
	}

	monitoring.GradingPasses.Inc()
	return total, nil
}

// RegradeExam 人工改分后重算总分
func (s *GradingService) RegradeExam(studentExamID string) (float64, error) {
	return s.GradeStudentExam(studentExamID)
}

// ManualGradeAnswer 管理员人工批改一道答案并重算答卷总分。
// 分数必须在[0, max_score]内；反馈写入answer_value的grader_feedback字段。
func (s *GradingService) ManualGradeAnswer(answerID, adminID string, score float64, feedback string) (*model.StudentAnswer, error) {
	var answer model.StudentAnswer
	if err := s.db.First(&answer, "id = ?", answerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("student answer not found")
		}
		return nil, util.Fatal(err)
	}

	var question model.Question
	if err := s.db.First(&question, "id = ?", answer.QuestionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("question not found")
		}
		return nil, util.Fatal(err)
	}

	if score < 0 || score > float64(question.MaxScore) {
		return nil, util.InvalidStatef("score must be between 0 and %d", question.MaxScore)
	}

	now := time.Now().UTC()
	isCorrect := score == float64(question.MaxScore)
	answer.Score = &score
	answer.IsCorrect = &isCorrect
	answer.GradedBy = &adminID
	answer.GradedAt = &now
	if feedback != "" {
		value := answer.ValueMap()
		value["grader_feedback"] = feedback
		answer.AnswerValue = model.ValueMapJSON(value)
	}

	if err := s.db.Save(&answer).Error; err != nil {
		return nil, util.Fatal(err)
	}

	if _, err := s.RegradeExam(answer.StudentExamID); err != nil {
		return nil, err
	}

	// 回读以携带重算后的状态
	if err := s.db.First(&answer, "id = ?", answerID).Error; err != nil {
		return nil, util.Fatal(err)
	}

	logger.Log.Info("answer graded manually",
		zap.String("answer_id", answerID),
		zap.String("graded_by", adminID),
		zap.Float64("score", score))
	return &answer, nil
}

// loadExamQuestionsOrdered 按order_index返回考试题目，单次join避免N+1
func loadExamQuestionsOrdered(tx *gorm.DB, examID string) ([]model.Question, error) {
	var questions []model.Question
	err := tx.Table("questions").
		Select("questions.*").
		Joins("JOIN exam_questions ON exam_questions.question_id = questions.id").
		Where("exam_questions.exam_id = ?", examID).
		Order("exam_questions.order_index ASC").
		Find(&questions).Error
	return questions, err
}
