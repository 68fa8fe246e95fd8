package service

import (
	"testing"
	"time"

	"exam_backend/internal/model"
	"exam_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOption(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"B", "b"},
		{"b", "b"},
		{"B: Mars", "b"},
		{"  C : Venus ", "c"},
		{"answer", "answer"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeOption(tt.raw), "raw=%q", tt.raw)
	}
}

func TestGradeSingleChoice(t *testing.T) {
	tests := []struct {
		name        string
		answer      map[string]interface{}
		correct     []string
		maxScore    int
		wantCorrect bool
		wantScore   float64
	}{
		{
			name:        "exact letter match",
			answer:      map[string]interface{}{"answer": "B"},
			correct:     []string{"B"},
			maxScore:    2,
			wantCorrect: true,
			wantScore:   2,
		},
		{
			name:        "full option text matches letter",
			answer:      map[string]interface{}{"answer": "b: Mars"},
			correct:     []string{"B"},
			maxScore:    2,
			wantCorrect: true,
			wantScore:   2,
		},
		{
			name:        "case insensitive",
			answer:      map[string]interface{}{"answer": "a"},
			correct:     []string{"A: Earth"},
			maxScore:    1,
			wantCorrect: true,
			wantScore:   1,
		},
		{
			name:     "wrong option",
			answer:   map[string]interface{}{"answer": "C"},
			correct:  []string{"B"},
			maxScore: 2,
		},
		{
			name:     "empty answer",
			answer:   map[string]interface{}{"answer": "   "},
			correct:  []string{"B"},
			maxScore: 2,
		},
		{
			name:     "missing answer key",
			answer:   map[string]interface{}{},
			correct:  []string{"B"},
			maxScore: 2,
		},
		{
			name:     "no correct answers configured",
			answer:   map[string]interface{}{"answer": "B"},
			correct:  nil,
			maxScore: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCorrect, gotScore := gradeSingleChoice(tt.answer, tt.correct, tt.maxScore)
			assert.Equal(t, tt.wantCorrect, gotCorrect)
			assert.Equal(t, tt.wantScore, gotScore)
		})
	}
}

func TestGradeMultiChoice(t *testing.T) {
	tests := []struct {
		name        string
		answer      map[string]interface{}
		correct     []string
		maxScore    int
		wantCorrect bool
		wantScore   float64
	}{
		{
			name:        "exact set match",
			answer:      map[string]interface{}{"answers": []interface{}{"A", "C"}},
			correct:     []string{"A", "C"},
			maxScore:    3,
			wantCorrect: true,
			wantScore:   3,
		},
		{
			name:        "order does not matter",
			answer:      map[string]interface{}{"answers": []interface{}{"C", "A"}},
			correct:     []string{"A", "C"},
			maxScore:    3,
			wantCorrect: true,
			wantScore:   3,
		},
		{
			name:        "full option text matches letters",
			answer:      map[string]interface{}{"answers": []interface{}{"a: Earth", "C: Venus"}},
			correct:     []string{"A", "c"},
			maxScore:    3,
			wantCorrect: true,
			wantScore:   3,
		},
		{
			name:     "missing one correct option scores zero",
			answer:   map[string]interface{}{"answers": []interface{}{"A"}},
			correct:  []string{"A", "C"},
			maxScore: 3,
		},
		{
			name:     "extra option scores zero",
			answer:   map[string]interface{}{"answers": []interface{}{"A", "B", "C"}},
			correct:  []string{"A", "C"},
			maxScore: 3,
		},
		{
			name:     "empty selection",
			answer:   map[string]interface{}{"answers": []interface{}{}},
			correct:  []string{"A", "C"},
			maxScore: 3,
		},
		{
			name:     "missing answers key",
			answer:   map[string]interface{}{},
			correct:  []string{"A", "C"},
			maxScore: 3,
		},
		{
			name:     "no correct answers configured",
			answer:   map[string]interface{}{"answers": []interface{}{"A"}},
			correct:  nil,
			maxScore: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCorrect, gotScore := gradeMultiChoice(tt.answer, tt.correct, tt.maxScore)
			assert.Equal(t, tt.wantCorrect, gotCorrect)
			assert.Equal(t, tt.wantScore, gotScore)
		})
	}
}

func TestGradeAnswerByType(t *testing.T) {
	single := &model.Question{
		Type:           model.SingleChoice,
		CorrectAnswers: model.StringListJSON([]string{"B"}),
		MaxScore:       2,
	}
	isCorrect, score := GradeAnswer(single, map[string]interface{}{"answer": "b: Mars"})
	require.NotNil(t, isCorrect)
	require.NotNil(t, score)
	assert.True(t, *isCorrect)
	assert.Equal(t, 2.0, *score)

	text := &model.Question{Type: model.TextQuestion, MaxScore: 5}
	isCorrect, score = GradeAnswer(text, map[string]interface{}{"answer": "an essay"})
	assert.Nil(t, isCorrect)
	assert.Nil(t, score)

	image := &model.Question{Type: model.ImageUpload, MaxScore: 5}
	isCorrect, score = GradeAnswer(image, map[string]interface{}{"file_url": "/uploads/x.png"})
	assert.Nil(t, isCorrect)
	assert.Nil(t, score)

	unknown := &model.Question{Type: model.QuestionType("essay"), MaxScore: 5}
	isCorrect, score = GradeAnswer(unknown, map[string]interface{}{"answer": "whatever"})
	assert.Nil(t, isCorrect)
	assert.Nil(t, score)
}

func TestGradeStudentExamNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.grading.GradeStudentExam("no-such-id")
	require.Error(t, err)
	assert.Equal(t, util.KindNotFound, util.KindOf(err))
}

func TestGradeStudentExamRequiresTerminalStatus(t *testing.T) {
	env := newTestEnv(t)
	student := makeUser(t, env.db, "stu@example.com", model.Student)
	q := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	exam := makeExam(t, env.db, true, 60, q)
	session := makeSession(t, env.db, exam, student, model.StatusInProgress, time.Minute)

	_, err := env.grading.GradeStudentExam(session.ID)
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))
}

func TestGradeStudentExam(t *testing.T) {
	env := newTestEnv(t)
	student := makeUser(t, env.db, "stu@example.com", model.Student)

	single := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	multi := makeChoiceQuestion(t, env.db, model.MultiChoice, []string{"A", "C"}, 3)
	unanswered := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"A"}, 1)
	text := makeTextQuestion(t, env.db, 5)

	exam := makeExam(t, env.db, true, 60, single, multi, unanswered, text)
	session := makeSession(t, env.db, exam, student, model.StatusSubmitted, 10*time.Minute)

	saveRawAnswer(t, env.db, session.ID, single.ID, map[string]interface{}{"answer": "b: Mars"})
	saveRawAnswer(t, env.db, session.ID, multi.ID, map[string]interface{}{"answers": []interface{}{"A", "B"}})
	saveRawAnswer(t, env.db, session.ID, text.ID, map[string]interface{}{"answer": "long form answer"})

	total, err := env.grading.GradeStudentExam(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, total)

	// 缺答的客观题补建空白答案并记零分
	var blank model.StudentAnswer
	require.NoError(t, env.db.First(&blank, "student_exam_id = ? AND question_id = ?", session.ID, unanswered.ID).Error)
	require.NotNil(t, blank.IsCorrect)
	require.NotNil(t, blank.Score)
	assert.False(t, *blank.IsCorrect)
	assert.Equal(t, 0.0, *blank.Score)
	assert.Empty(t, blank.ValueMap())

	// 主观题保持待批
	var pending model.StudentAnswer
	require.NoError(t, env.db.First(&pending, "student_exam_id = ? AND question_id = ?", session.ID, text.ID).Error)
	assert.Nil(t, pending.IsCorrect)
	assert.Nil(t, pending.Score)

	var reloaded model.StudentExam
	require.NoError(t, env.db.First(&reloaded, "id = ?", session.ID).Error)
	require.NotNil(t, reloaded.TotalScore)
	assert.Equal(t, 2.0, *reloaded.TotalScore)

	// 幂等：重复判分不改变结果
	total, err = env.grading.GradeStudentExam(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, total)
}

func TestGradeStudentExamKeepsManualScores(t *testing.T) {
	env := newTestEnv(t)
	student := makeUser(t, env.db, "stu@example.com", model.Student)
	admin := makeUser(t, env.db, "admin@example.com", model.Admin)

	single := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	text := makeTextQuestion(t, env.db, 5)
	exam := makeExam(t, env.db, true, 60, single, text)
	session := makeSession(t, env.db, exam, student, model.StatusSubmitted, 10*time.Minute)

	saveRawAnswer(t, env.db, session.ID, single.ID, map[string]interface{}{"answer": "B"})
	textAnswer := saveRawAnswer(t, env.db, session.ID, text.ID, map[string]interface{}{"answer": "essay"})

	total, err := env.grading.GradeStudentExam(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, total)

	_, err = env.grading.ManualGradeAnswer(textAnswer.ID, admin.ID, 4, "good work")
	require.NoError(t, err)

	// 重判不覆盖人工分数
	total, err = env.grading.GradeStudentExam(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 6.0, total)
}

func TestManualGradeAnswer(t *testing.T) {
	env := newTestEnv(t)
	student := makeUser(t, env.db, "stu@example.com", model.Student)
	admin := makeUser(t, env.db, "admin@example.com", model.Admin)

	text := makeTextQuestion(t, env.db, 5)
	exam := makeExam(t, env.db, true, 60, text)
	session := makeSession(t, env.db, exam, student, model.StatusSubmitted, 10*time.Minute)
	answer := saveRawAnswer(t, env.db, session.ID, text.ID, map[string]interface{}{"answer": "essay"})

	graded, err := env.grading.ManualGradeAnswer(answer.ID, admin.ID, 4.5, "solid reasoning")
	require.NoError(t, err)
	require.NotNil(t, graded.Score)
	assert.Equal(t, 4.5, *graded.Score)
	require.NotNil(t, graded.GradedBy)
	assert.Equal(t, admin.ID, *graded.GradedBy)
	assert.NotNil(t, graded.GradedAt)
	assert.Equal(t, "solid reasoning", graded.ValueMap()["grader_feedback"])
	// 未拿满分判错
	require.NotNil(t, graded.IsCorrect)
	assert.False(t, *graded.IsCorrect)

	// 批改后答卷总分同步重算
	var reloaded model.StudentExam
	require.NoError(t, env.db.First(&reloaded, "id = ?", session.ID).Error)
	require.NotNil(t, reloaded.TotalScore)
	assert.Equal(t, 4.5, *reloaded.TotalScore)

	// 满分判对
	graded, err = env.grading.ManualGradeAnswer(answer.ID, admin.ID, 5, "")
	require.NoError(t, err)
	require.NotNil(t, graded.IsCorrect)
	assert.True(t, *graded.IsCorrect)
	require.NotNil(t, graded.Score)
	assert.Equal(t, 5.0, *graded.Score)
}

func TestManualGradeAnswerValidation(t *testing.T) {
	env := newTestEnv(t)
	student := makeUser(t, env.db, "stu@example.com", model.Student)
	admin := makeUser(t, env.db, "admin@example.com", model.Admin)

	text := makeTextQuestion(t, env.db, 5)
	exam := makeExam(t, env.db, true, 60, text)
	session := makeSession(t, env.db, exam, student, model.StatusSubmitted, 10*time.Minute)
	answer := saveRawAnswer(t, env.db, session.ID, text.ID, map[string]interface{}{"answer": "essay"})

	_, err := env.grading.ManualGradeAnswer(answer.ID, admin.ID, 6, "")
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))

	_, err = env.grading.ManualGradeAnswer(answer.ID, admin.ID, -1, "")
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))

	_, err = env.grading.ManualGradeAnswer("no-such-answer", admin.ID, 3, "")
	require.Error(t, err)
	assert.Equal(t, util.KindNotFound, util.KindOf(err))
}
