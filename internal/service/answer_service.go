package service

import (
	"sort"
	"strings"

	"exam_backend/internal/model"
	"exam_backend/internal/repository"
	"exam_backend/internal/util"
	"exam_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AnswerService struct {
	db           *gorm.DB
	answerRepo   *repository.StudentAnswerRepository
	questionRepo *repository.QuestionRepository
}

func NewAnswerService(db *gorm.DB, answerRepo *repository.StudentAnswerRepository, questionRepo *repository.QuestionRepository) *AnswerService {
	return &AnswerService{db: db, answerRepo: answerRepo, questionRepo: questionRepo}
}

// AnswerSubmission 单题作答载荷
type AnswerSubmission struct {
	QuestionID  string                 `json:"questionId" binding:"required"`
	AnswerValue map[string]interface{} `json:"answerValue" binding:"required"`
}

// GetStudentAnswers 返回 question_id -> answer_value 映射
func (s *AnswerService) GetStudentAnswers(studentExamID string) (map[string]map[string]interface{}, error) {
	rows, err := s.answerRepo.ListBySession(studentExamID)
	if err != nil {
		return nil, util.Fatal(err)
	}
	result := make(map[string]map[string]interface{}, len(rows))
	for i := range rows {
		result[rows[i].QuestionID] = rows[i].ValueMap()
	}
	return result, nil
}

// BulkSaveAnswers 批量upsert作答。任一题目不存在时整批拒绝，返回保存条数。
func (s *AnswerService) BulkSaveAnswers(studentExamID string, answers []AnswerSubmission) (int, error) {
	if len(answers) == 0 {
		return 0, nil
	}

	questionIDs := make([]string, 0, len(answers))
	seen := make(map[string]bool, len(answers))
	for _, a := range answers {
		if !seen[a.QuestionID] {
			seen[a.QuestionID] = true
			questionIDs = append(questionIDs, a.QuestionID)
		}
	}

	existing, err := s.questionRepo.GetByIDs(questionIDs)
	if err != nil {
		return 0, util.Fatal(err)
	}
	if len(existing) != len(questionIDs) {
		found := make(map[string]bool, len(existing))
		for i := range existing {
			found[existing[i].ID] = true
		}
		missing := make([]string, 0)
		for _, id := range questionIDs {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		sort.Strings(missing)
		return 0, util.NotFoundf("some questions were not found: %s", strings.Join(missing, ", "))
	}

	saved := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, a := range answers {
			var row model.StudentAnswer
			ferr := tx.First(&row, "student_exam_id = ? AND question_id = ?", studentExamID, a.QuestionID).Error
			if ferr != nil && ferr != gorm.ErrRecordNotFound {
				return util.Fatal(ferr)
			}

			if ferr == nil {
				row.AnswerValue = model.ValueMapJSON(a.AnswerValue)
				if serr := tx.Save(&row).Error; serr != nil {
					return util.Fatal(serr)
				}
			} else {
				row = model.StudentAnswer{
					StudentExamID: studentExamID,
					QuestionID:    a.QuestionID,
					AnswerValue:   model.ValueMapJSON(a.AnswerValue),
				}
				if cerr := tx.Create(&row).Error; cerr != nil {
					return util.Fatal(cerr)
				}
			}
			saved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Log.Debug("bulk saved answers",
		zap.String("student_exam_id", studentExamID),
		zap.Int("saved", saved))
	return saved, nil
}
