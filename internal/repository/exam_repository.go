package repository

import (
	"time"

	"exam_backend/internal/model"

	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func (r *ExamRepository) Create(exam *model.Exam) error {
	return r.DB.Create(exam).Error
}

func (r *ExamRepository) GetByID(id string) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.First(&exam, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExamRepository) Update(exam *model.Exam) error {
	return r.DB.Save(exam).Error
}

func (r *ExamRepository) Delete(id string) error {
	return r.DB.Delete(&model.Exam{}, "id = ?", id).Error
}

func (r *ExamRepository) List(published *bool, offset, limit int) ([]model.Exam, int64, error) {
	var exams []model.Exam
	var total int64

	query := r.DB.Model(&model.Exam{})
	if published != nil {
		query = query.Where("is_published = ?", *published)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("start_time DESC").Offset(offset).Limit(limit).Find(&exams).Error
	return exams, total, err
}

// ListAvailable 查询当前时间窗口内已发布的考试
func (r *ExamRepository) ListAvailable(now time.Time) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.Where("is_published = ? AND start_time <= ? AND end_time >= ?", true, now, now).
		Order("end_time ASC").
		Find(&exams).Error
	return exams, err
}

// GetAssignments 按order_index返回考试的题目关联
func (r *ExamRepository) GetAssignments(examID string) ([]model.ExamQuestion, error) {
	var assignments []model.ExamQuestion
	err := r.DB.Where("exam_id = ?", examID).Order("order_index ASC").Find(&assignments).Error
	return assignments, err
}

func (r *ExamRepository) CountAssignments(examID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ExamQuestion{}).Where("exam_id = ?", examID).Count(&count).Error
	return count, err
}

func (r *ExamRepository) CreateAssignments(assignments []model.ExamQuestion) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.DB.Create(&assignments).Error
}

func (r *ExamRepository) DeleteAssignment(examID, questionID string) error {
	return r.DB.Where("exam_id = ? AND question_id = ?", examID, questionID).
		Delete(&model.ExamQuestion{}).Error
}

func (r *ExamRepository) SaveAssignment(assignment *model.ExamQuestion) error {
	return r.DB.Save(assignment).Error
}

// CountAttempts 统计考试已有的学生答卷数
func (r *ExamRepository) CountAttempts(examID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.StudentExam{}).Where("exam_id = ?", examID).Count(&count).Error
	return count, err
}
