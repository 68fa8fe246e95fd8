package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	MultiChoice  QuestionType = "multi_choice"
	TextQuestion QuestionType = "text"
	ImageUpload  QuestionType = "image_upload"
)

// IsObjective 客观题可自动判分，主观题需人工批改
func (t QuestionType) IsObjective() bool {
	return t == SingleChoice || t == MultiChoice
}

// swagger:model Question
type Question struct {
	UUIDBase
	Title          string         `gorm:"type:text;not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	Complexity     string         `gorm:"size:50;index" json:"complexity"`
	Type           QuestionType   `gorm:"size:50;not null;index" json:"type"`
	Options        datatypes.JSON `gorm:"type:json" json:"options,omitempty"`
	CorrectAnswers datatypes.JSON `gorm:"type:json" json:"correctAnswers,omitempty"`
	MaxScore       int            `gorm:"not null;default:1" json:"maxScore"`
	Tags           datatypes.JSON `gorm:"type:json" json:"tags,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// OptionList decodes the JSON options column; nil on absent or malformed data.
func (q *Question) OptionList() []string {
	return decodeStringList(q.Options)
}

// CorrectAnswerList decodes the JSON correct_answers column; nil on absent or malformed data.
func (q *Question) CorrectAnswerList() []string {
	return decodeStringList(q.CorrectAnswers)
}

func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// StringListJSON encodes a string slice for the JSON columns above.
func StringListJSON(items []string) datatypes.JSON {
	if items == nil {
		items = []string{}
	}
	raw, _ := json.Marshal(items)
	return datatypes.JSON(raw)
}
