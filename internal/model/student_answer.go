package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// swagger:model StudentAnswer
type StudentAnswer struct {
	UUIDBase
	StudentExamID string         `gorm:"type:varchar(36);not null;uniqueIndex:uq_student_answer,priority:1" json:"studentExamId"`
	QuestionID    string         `gorm:"type:varchar(36);not null;uniqueIndex:uq_student_answer,priority:2" json:"questionId"`
	AnswerValue   datatypes.JSON `gorm:"type:json;not null" json:"answerValue"`
	IsCorrect     *bool          `json:"isCorrect"`
	Score         *float64       `json:"score"`
	GradedBy      *string        `gorm:"type:varchar(36)" json:"gradedBy,omitempty"`
	GradedAt      *time.Time     `json:"gradedAt,omitempty"`
}

func (StudentAnswer) TableName() string {
	return "student_answers"
}

// ValueMap decodes answer_value into a generic map; empty map on absent or malformed data.
func (a *StudentAnswer) ValueMap() map[string]interface{} {
	out := map[string]interface{}{}
	if len(a.AnswerValue) == 0 {
		return out
	}
	if err := json.Unmarshal(a.AnswerValue, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

// ValueMapJSON encodes a generic answer payload for the answer_value column.
func ValueMapJSON(value map[string]interface{}) datatypes.JSON {
	if value == nil {
		value = map[string]interface{}{}
	}
	raw, _ := json.Marshal(value)
	return datatypes.JSON(raw)
}
