package model

import (
	"time"
)

// swagger:model Exam
type Exam struct {
	UUIDBase
	Title           string    `gorm:"size:255;not null" json:"title"`
	Description     string    `gorm:"type:text" json:"description"`
	StartTime       time.Time `gorm:"not null" json:"startTime"`
	EndTime         time.Time `gorm:"not null" json:"endTime"`
	DurationMinutes int       `gorm:"not null" json:"durationMinutes"`
	IsPublished     bool      `gorm:"default:false" json:"isPublished"`
	CreatedBy       string    `gorm:"index;type:varchar(36)" json:"createdBy"`
}

func (Exam) TableName() string {
	return "exams"
}

// ExamQuestion 试卷与题目的关联，order_index 决定展示与判分顺序
type ExamQuestion struct {
	UUIDBase
	ExamID     string `gorm:"type:varchar(36);not null;uniqueIndex:uq_exam_question,priority:1" json:"examId"`
	QuestionID string `gorm:"type:varchar(36);not null;uniqueIndex:uq_exam_question,priority:2" json:"questionId"`
	OrderIndex int    `gorm:"not null" json:"orderIndex"`
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}
