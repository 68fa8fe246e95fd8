package repository

import (
	"exam_backend/internal/model"

	"gorm.io/gorm"
)

type StudentAnswerRepository struct {
	DB *gorm.DB
}

func NewStudentAnswerRepository(db *gorm.DB) *StudentAnswerRepository {
	return &StudentAnswerRepository{DB: db}
}

func (r *StudentAnswerRepository) Create(answer *model.StudentAnswer) error {
	return r.DB.Create(answer).Error
}

func (r *StudentAnswerRepository) GetByID(id string) (*model.StudentAnswer, error) {
	var answer model.StudentAnswer
	err := r.DB.First(&answer, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *StudentAnswerRepository) GetBySessionAndQuestion(studentExamID, questionID string) (*model.StudentAnswer, error) {
	var answer model.StudentAnswer
	err := r.DB.First(&answer, "student_exam_id = ? AND question_id = ?", studentExamID, questionID).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *StudentAnswerRepository) ListBySession(studentExamID string) ([]model.StudentAnswer, error) {
	var answers []model.StudentAnswer
	err := r.DB.Where("student_exam_id = ?", studentExamID).Find(&answers).Error
	return answers, err
}

func (r *StudentAnswerRepository) Update(answer *model.StudentAnswer) error {
	return r.DB.Save(answer).Error
}
