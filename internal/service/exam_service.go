package service

import (
	"sort"
	"strings"
	"time"

	"exam_backend/internal/model"
	"exam_backend/internal/repository"
	"exam_backend/internal/util"
	"exam_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ExamService struct {
	db           *gorm.DB
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
}

func NewExamService(db *gorm.DB, examRepo *repository.ExamRepository, questionRepo *repository.QuestionRepository) *ExamService {
	return &ExamService{db: db, examRepo: examRepo, questionRepo: questionRepo}
}

// ensureNotLocked 有学生答卷的考试不可再改动本体或题目集合
func (s *ExamService) ensureNotLocked(examID string) error {
	attempts, err := s.examRepo.CountAttempts(examID)
	if err != nil {
		return util.Fatal(err)
	}
	if attempts > 0 {
		return util.InvalidStatef("cannot modify exam after students started; exam is locked")
	}
	return nil
}

type ExamInput struct {
	Title           string    `json:"title" binding:"required"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"startTime" binding:"required"`
	EndTime         time.Time `json:"endTime" binding:"required"`
	DurationMinutes int       `json:"durationMinutes" binding:"required,min=1"`
}

type ExamUpdateInput struct {
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	StartTime       *time.Time `json:"startTime"`
	EndTime         *time.Time `json:"endTime"`
	DurationMinutes *int       `json:"durationMinutes"`
}

type QuestionAssignment struct {
	QuestionID string `json:"questionId" binding:"required"`
	OrderIndex int    `json:"orderIndex"`
}

// ExamDetail 考试及其题目列表（管理端视图）
type ExamDetail struct {
	Exam      *model.Exam      `json:"exam"`
	Questions []model.Question `json:"questions"`
}

func (s *ExamService) CreateExam(input *ExamInput, adminID string) (*model.Exam, error) {
	if !input.EndTime.After(input.StartTime) {
		return nil, util.InvalidStatef("end time must be after start time")
	}

	exam := &model.Exam{
		Title:           strings.TrimSpace(input.Title),
		Description:     strings.TrimSpace(input.Description),
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		DurationMinutes: input.DurationMinutes,
		IsPublished:     false,
		CreatedBy:       adminID,
	}
	if err := s.examRepo.Create(exam); err != nil {
		return nil, util.Fatal(err)
	}

	logger.Log.Info("exam created", zap.String("exam_id", exam.ID), zap.String("created_by", adminID))
	return exam, nil
}

func (s *ExamService) GetExam(id string) (*ExamDetail, error) {
	exam, err := s.examRepo.GetByID(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("exam not found")
		}
		return nil, util.Fatal(err)
	}

	questions, err := loadExamQuestionsOrdered(s.db, id)
	if err != nil {
		return nil, util.Fatal(err)
	}
	return &ExamDetail{Exam: exam, Questions: questions}, nil
}

func (s *ExamService) ListExams(published *bool, page, pageSize int) ([]model.Exam, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	exams, total, err := s.examRepo.List(published, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, util.Fatal(err)
	}
	return exams, total, nil
}

// UpdateExam 有学生答卷的考试锁定，不可修改。
// 锁定只看答卷数，撤回发布也绕不过。
func (s *ExamService) UpdateExam(id string, input *ExamUpdateInput) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("exam not found")
		}
		return nil, util.Fatal(err)
	}

	if err := s.ensureNotLocked(id); err != nil {
		return nil, err
	}

	if input.Title != nil {
		exam.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		exam.Description = strings.TrimSpace(*input.Description)
	}
	if input.StartTime != nil {
		exam.StartTime = *input.StartTime
	}
	if input.EndTime != nil {
		exam.EndTime = *input.EndTime
	}
	if input.DurationMinutes != nil {
		if *input.DurationMinutes < 1 {
			return nil, util.InvalidStatef("duration must be at least one minute")
		}
		exam.DurationMinutes = *input.DurationMinutes
	}

	if !exam.EndTime.After(exam.StartTime) {
		return nil, util.InvalidStatef("end time must be after start time")
	}

	if err := s.examRepo.Update(exam); err != nil {
		return nil, util.Fatal(err)
	}
	return exam, nil
}

// DeleteExam 有学生答卷的考试不可删除；按依赖顺序级联清理
func (s *ExamService) DeleteExam(id string) error {
	if _, err := s.examRepo.GetByID(id); err != nil {
		if err == gorm.ErrRecordNotFound {
			return util.NotFoundf("exam not found")
		}
		return util.Fatal(err)
	}

	attempts, err := s.examRepo.CountAttempts(id)
	if err != nil {
		return util.Fatal(err)
	}
	if attempts > 0 {
		return util.InvalidStatef("cannot delete exam with student submissions")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if derr := tx.Where("exam_id = ?", id).Delete(&model.ExamQuestion{}).Error; derr != nil {
			return derr
		}
		return tx.Delete(&model.Exam{}, "id = ?", id).Error
	})
	if err != nil {
		return util.Fatal(err)
	}

	logger.Log.Info("exam deleted", zap.String("exam_id", id))
	return nil
}

// AssignQuestions 整体替换考试的题目集合。任一题目不存在时整批拒绝；
// 已有学生答卷时拒绝改动，避免判分途中题目集合变化。
func (s *ExamService) AssignQuestions(examID string, assignments []QuestionAssignment) (*ExamDetail, error) {
	if _, err := s.examRepo.GetByID(examID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("exam not found")
		}
		return nil, util.Fatal(err)
	}

	if err := s.ensureNotLocked(examID); err != nil {
		return nil, err
	}

	questionIDs := make([]string, 0, len(assignments))
	seen := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		if seen[a.QuestionID] {
			return nil, util.InvalidStatef("duplicate question in assignment: %s", a.QuestionID)
		}
		seen[a.QuestionID] = true
		questionIDs = append(questionIDs, a.QuestionID)
	}

	existing, err := s.questionRepo.GetByIDs(questionIDs)
	if err != nil {
		return nil, util.Fatal(err)
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
		return nil, util.NotFoundf("some questions were not found: %s", strings.Join(missing, ", "))
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if derr := tx.Where("exam_id = ?", examID).Delete(&model.ExamQuestion{}).Error; derr != nil {
			return derr
		}
		rows := make([]model.ExamQuestion, 0, len(assignments))
		for _, a := range assignments {
			rows = append(rows, model.ExamQuestion{
				ExamID:     examID,
				QuestionID: a.QuestionID,
				OrderIndex: a.OrderIndex,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, util.Fatal(err)
	}

	return s.GetExam(examID)
}

// ReorderQuestions 重排题目顺序，传入集合必须与已有题目集合完全一致；
// 已有学生答卷时同样锁定
func (s *ExamService) ReorderQuestions(examID string, questionOrder []string) error {
	if err := s.ensureNotLocked(examID); err != nil {
		return err
	}

	assignments, err := s.examRepo.GetAssignments(examID)
	if err != nil {
		return util.Fatal(err)
	}
	if len(assignments) == 0 {
		return util.InvalidStatef("no questions assigned to this exam")
	}

	byQuestion := make(map[string]*model.ExamQuestion, len(assignments))
	for i := range assignments {
		byQuestion[assignments[i].QuestionID] = &assignments[i]
	}

	if len(questionOrder) != len(assignments) {
		return util.InvalidStatef("question order does not match assigned questions")
	}
	seen := make(map[string]bool, len(questionOrder))
	for _, qid := range questionOrder {
		if seen[qid] || byQuestion[qid] == nil {
			return util.InvalidStatef("question order does not match assigned questions")
		}
		seen[qid] = true
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for idx, qid := range questionOrder {
			row := byQuestion[qid]
			row.OrderIndex = idx
			if serr := tx.Save(row).Error; serr != nil {
				return serr
			}
		}
		return nil
	})
	if err != nil {
		return util.Fatal(err)
	}
	return nil
}

// PublishExam 发布前必须至少挂一道题；支持撤回发布
func (s *ExamService) PublishExam(examID string, isPublished bool) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(examID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("exam not found")
		}
		return nil, util.Fatal(err)
	}

	if isPublished {
		count, cerr := s.examRepo.CountAssignments(examID)
		if cerr != nil {
			return nil, util.Fatal(cerr)
		}
		if count == 0 {
			return nil, util.InvalidStatef("cannot publish exam without assigned questions")
		}
	}

	exam.IsPublished = isPublished
	if err := s.examRepo.Update(exam); err != nil {
		return nil, util.Fatal(err)
	}

	logger.Log.Info("exam publish state changed",
		zap.String("exam_id", examID),
		zap.Bool("is_published", isPublished))
	return exam, nil
}
