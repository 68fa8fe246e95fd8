package repository

import (
	"exam_backend/internal/model"

	"gorm.io/gorm"
)

type StudentExamRepository struct {
	DB *gorm.DB
}

func NewStudentExamRepository(db *gorm.DB) *StudentExamRepository {
	return &StudentExamRepository{DB: db}
}

func (r *StudentExamRepository) Create(studentExam *model.StudentExam) error {
	return r.DB.Create(studentExam).Error
}

func (r *StudentExamRepository) GetByID(id string) (*model.StudentExam, error) {
	var studentExam model.StudentExam
	err := r.DB.First(&studentExam, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &studentExam, nil
}

// GetByExamAndStudent 查找学生在某考试的答卷，不存在时返回gorm.ErrRecordNotFound
func (r *StudentExamRepository) GetByExamAndStudent(examID, studentID string) (*model.StudentExam, error) {
	var studentExam model.StudentExam
	err := r.DB.First(&studentExam, "exam_id = ? AND student_id = ?", examID, studentID).Error
	if err != nil {
		return nil, err
	}
	return &studentExam, nil
}

func (r *StudentExamRepository) Update(studentExam *model.StudentExam) error {
	return r.DB.Save(studentExam).Error
}

func (r *StudentExamRepository) ListByStudent(studentID string) ([]model.StudentExam, error) {
	var studentExams []model.StudentExam
	err := r.DB.Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&studentExams).Error
	return studentExams, err
}

func (r *StudentExamRepository) ListByExam(examID string) ([]model.StudentExam, error) {
	var studentExams []model.StudentExam
	err := r.DB.Where("exam_id = ?", examID).
		Order("created_at ASC").
		Find(&studentExams).Error
	return studentExams, err
}
