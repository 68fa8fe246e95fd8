package model

import (
	"time"
)

type ExamStatus string

const (
	StatusNotStarted ExamStatus = "not_started" // 仅作展示用，库中不存在该状态的记录
	StatusInProgress ExamStatus = "in_progress"
	StatusSubmitted  ExamStatus = "submitted"
	StatusExpired    ExamStatus = "expired"
)

// IsTerminal reports whether no further transition may leave this status.
func (s ExamStatus) IsTerminal() bool {
	return s == StatusSubmitted || s == StatusExpired
}

// swagger:model StudentExam
type StudentExam struct {
	UUIDBase
	ExamID      string     `gorm:"type:varchar(36);not null;uniqueIndex:uq_student_exam,priority:1" json:"examId"`
	StudentID   string     `gorm:"type:varchar(36);not null;uniqueIndex:uq_student_exam,priority:2" json:"studentId"`
	StartedAt   *time.Time `json:"startedAt"`
	SubmittedAt *time.Time `json:"submittedAt"`
	TotalScore  *float64   `json:"totalScore"`
	Status      ExamStatus `gorm:"size:20;not null;default:'in_progress'" json:"status"`
}

func (StudentExam) TableName() string {
	return "student_exams"
}
