package service

import (
	"fmt"
	"strings"

	"exam_backend/internal/model"
	"exam_backend/internal/repository"
	"exam_backend/internal/util"
	"exam_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type QuestionService struct {
	questionRepo *repository.QuestionRepository
}

func NewQuestionService(questionRepo *repository.QuestionRepository) *QuestionService {
	return &QuestionService{questionRepo: questionRepo}
}

type QuestionInput struct {
	Title          string   `json:"title" binding:"required"`
	Description    string   `json:"description"`
	Complexity     string   `json:"complexity" binding:"required"`
	Type           string   `json:"type" binding:"required"`
	Options        []string `json:"options"`
	CorrectAnswers []string `json:"correctAnswers"`
	MaxScore       int      `json:"maxScore" binding:"required,min=1"`
	Tags           []string `json:"tags"`
}

type QuestionUpdateInput struct {
	Title          *string   `json:"title"`
	Description    *string   `json:"description"`
	Complexity     *string   `json:"complexity"`
	Options        *[]string `json:"options"`
	CorrectAnswers *[]string `json:"correctAnswers"`
	MaxScore       *int      `json:"maxScore"`
	Tags           *[]string `json:"tags"`
}

type ImportRowError struct {
	RowNumber int      `json:"rowNumber"`
	Errors    []string `json:"errors"`
}

type ImportResult struct {
	SuccessCount int              `json:"successCount"`
	ErrorCount   int              `json:"errorCount"`
	Errors       []ImportRowError `json:"errors"`
}

// validateQuestionInput 选择题必须有至少两个选项和至少一个正确答案
func validateQuestionInput(input *QuestionInput) []string {
	var errs []string

	if strings.TrimSpace(input.Title) == "" {
		errs = append(errs, "missing or empty 'title'")
	}
	if strings.TrimSpace(input.Complexity) == "" {
		errs = append(errs, "missing or empty 'complexity'")
	}

	qtype := model.QuestionType(strings.ToLower(strings.TrimSpace(input.Type)))
	switch qtype {
	case model.SingleChoice, model.MultiChoice, model.TextQuestion, model.ImageUpload:
	default:
		errs = append(errs, fmt.Sprintf("invalid 'type': %s", input.Type))
	}

	if input.MaxScore < 1 {
		errs = append(errs, "'maxScore' must be >= 1")
	}

	if qtype.IsObjective() {
		if len(input.Options) < 2 {
			errs = append(errs, "'options' must contain at least two entries for choice questions")
		}
		if len(input.CorrectAnswers) == 0 {
			errs = append(errs, "'correctAnswers' is required for objective questions")
		}
		if qtype == model.SingleChoice && len(input.CorrectAnswers) > 1 {
			errs = append(errs, "single choice questions must have exactly one correct answer")
		}
	}

	return errs
}

func questionFromInput(input *QuestionInput) *model.Question {
	q := &model.Question{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Complexity:  strings.TrimSpace(input.Complexity),
		Type:        model.QuestionType(strings.ToLower(strings.TrimSpace(input.Type))),
		MaxScore:    input.MaxScore,
	}
	if input.Options != nil {
		q.Options = model.StringListJSON(input.Options)
	}
	q.CorrectAnswers = model.StringListJSON(input.CorrectAnswers)
	if input.Tags != nil {
		q.Tags = model.StringListJSON(input.Tags)
	}
	return q
}

func (s *QuestionService) CreateQuestion(input *QuestionInput) (*model.Question, error) {
	if errs := validateQuestionInput(input); len(errs) > 0 {
		return nil, util.InvalidStatef("invalid question: %s", strings.Join(errs, "; "))
	}

	question := questionFromInput(input)
	if err := s.questionRepo.Create(question); err != nil {
		return nil, util.Fatal(err)
	}
	return question, nil
}

func (s *QuestionService) GetQuestion(id string) (*model.Question, error) {
	question, err := s.questionRepo.GetByID(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("question not found")
		}
		return nil, util.Fatal(err)
	}
	return question, nil
}

func (s *QuestionService) ListQuestions(questionType, complexity, tag string, page, pageSize int) ([]model.Question, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	questions, total, err := s.questionRepo.List(questionType, complexity, tag, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, util.Fatal(err)
	}
	return questions, total, nil
}

func (s *QuestionService) UpdateQuestion(id string, input *QuestionUpdateInput) (*model.Question, error) {
	question, err := s.questionRepo.GetByID(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("question not found")
		}
		return nil, util.Fatal(err)
	}

	if input.Title != nil {
		question.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		question.Description = strings.TrimSpace(*input.Description)
	}
	if input.Complexity != nil {
		question.Complexity = strings.TrimSpace(*input.Complexity)
	}
	if input.Options != nil {
		question.Options = model.StringListJSON(*input.Options)
	}
	if input.CorrectAnswers != nil {
		question.CorrectAnswers = model.StringListJSON(*input.CorrectAnswers)
	}
	if input.MaxScore != nil {
		if *input.MaxScore < 1 {
			return nil, util.InvalidStatef("'maxScore' must be >= 1")
		}
		question.MaxScore = *input.MaxScore
	}
	if input.Tags != nil {
		question.Tags = model.StringListJSON(*input.Tags)
	}

	// 更新后仍需满足选择题约束
	if question.Type.IsObjective() {
		if len(question.OptionList()) < 2 {
			return nil, util.InvalidStatef("'options' must contain at least two entries for choice questions")
		}
		if len(question.CorrectAnswerList()) == 0 {
			return nil, util.InvalidStatef("'correctAnswers' is required for objective questions")
		}
	}

	if err := s.questionRepo.Update(question); err != nil {
		return nil, util.Fatal(err)
	}
	return question, nil
}

// DeleteQuestion 被考试引用的题目不可删除
func (s *QuestionService) DeleteQuestion(id string) error {
	if _, err := s.questionRepo.GetByID(id); err != nil {
		if err == gorm.ErrRecordNotFound {
			return util.NotFoundf("question not found")
		}
		return util.Fatal(err)
	}

	assignments, err := s.questionRepo.CountAssignments(id)
	if err != nil {
		return util.Fatal(err)
	}
	if assignments > 0 {
		return util.InvalidStatef("cannot delete question assigned to exams")
	}

	return util.Fatal(s.questionRepo.Delete(id))
}

// ImportQuestions 批量导入题目。逐行校验，合法行整体入库，
// 返回成功数和逐行错误供前端展示。
func (s *QuestionService) ImportQuestions(rows []QuestionInput) (*ImportResult, error) {
	result := &ImportResult{Errors: []ImportRowError{}}

	valid := make([]model.Question, 0, len(rows))
	for i := range rows {
		rowNumber := i + 2 // 首行为表头
		if errs := validateQuestionInput(&rows[i]); len(errs) > 0 {
			result.Errors = append(result.Errors, ImportRowError{RowNumber: rowNumber, Errors: errs})
			continue
		}
		valid = append(valid, *questionFromInput(&rows[i]))
	}

	if len(valid) > 0 {
		if err := s.questionRepo.CreateBatch(valid); err != nil {
			logger.Log.Error("failed to bulk insert questions", zap.Error(err))
			return nil, util.Fatal(err)
		}
	}

	result.SuccessCount = len(valid)
	result.ErrorCount = len(result.Errors)
	logger.Log.Info("imported questions",
		zap.Int("success_count", result.SuccessCount),
		zap.Int("error_count", result.ErrorCount))
	return result, nil
}
