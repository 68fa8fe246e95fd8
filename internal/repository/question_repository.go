package repository

import (
	"exam_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) Create(question *model.Question) error {
	return r.DB.Create(question).Error
}

func (r *QuestionRepository) CreateBatch(questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.DB.Create(&questions).Error
}

func (r *QuestionRepository) GetByID(id string) (*model.Question, error) {
	var question model.Question
	err := r.DB.First(&question, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *QuestionRepository) GetByIDs(ids []string) ([]model.Question, error) {
	var questions []model.Question
	if len(ids) == 0 {
		return questions, nil
	}
	err := r.DB.Where("id IN ?", ids).Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) Update(question *model.Question) error {
	return r.DB.Save(question).Error
}

func (r *QuestionRepository) Delete(id string) error {
	return r.DB.Delete(&model.Question{}, "id = ?", id).Error
}

// List 支持按类型、难度和标签模糊过滤
func (r *QuestionRepository) List(questionType, complexity, tag string, offset, limit int) ([]model.Question, int64, error) {
	var questions []model.Question
	var total int64

	query := r.DB.Model(&model.Question{})
	if questionType != "" {
		query = query.Where("type = ?", questionType)
	}
	if complexity != "" {
		query = query.Where("complexity = ?", complexity)
	}
	if tag != "" {
		query = query.Where("tags LIKE ?", "%"+tag+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&questions).Error
	return questions, total, err
}

// CountAssignments 统计题目被多少场考试引用
func (r *QuestionRepository) CountAssignments(questionID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ExamQuestion{}).Where("question_id = ?", questionID).Count(&count).Error
	return count, err
}
