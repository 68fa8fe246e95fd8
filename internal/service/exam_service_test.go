package service

import (
	"testing"
	"time"

	"exam_backend/internal/model"
	"exam_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateExam(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	exam, err := env.exam.CreateExam(&ExamInput{
		Title:           "  期中考试  ",
		StartTime:       now,
		EndTime:         now.Add(2 * time.Hour),
		DurationMinutes: 90,
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "期中考试", exam.Title)
	assert.False(t, exam.IsPublished)
	assert.Equal(t, "admin-1", exam.CreatedBy)

	// 结束时间必须晚于开始时间
	_, err = env.exam.CreateExam(&ExamInput{
		Title:           "bad window",
		StartTime:       now,
		EndTime:         now,
		DurationMinutes: 60,
	}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))
}

func TestUpdateExamLockedAfterAttempts(t *testing.T) {
	env := newTestEnv(t)
	student := makeUser(t, env.db, "stu@example.com", model.Student)
	q := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	exam := makeExam(t, env.db, true, 60, q)

	// 未开考前可以修改
	title := "updated title"
	updated, err := env.exam.UpdateExam(exam.ID, &ExamUpdateInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "updated title", updated.Title)

	makeSession(t, env.db, exam, student, model.StatusInProgress, time.Minute)

	_, err = env.exam.UpdateExam(exam.ID, &ExamUpdateInput{Title: &title})
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))

	// 撤回发布也绕不过锁定
	_, err = env.exam.PublishExam(exam.ID, false)
	require.NoError(t, err)
	_, err = env.exam.UpdateExam(exam.ID, &ExamUpdateInput{Title: &title})
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))
}

func TestQuestionSetLockedAfterAttempts(t *testing.T) {
	env := newTestEnv(t)
	student := makeUser(t, env.db, "stu@example.com", model.Student)
	q1 := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	q2 := makeTextQuestion(t, env.db, 5)
	exam := makeExam(t, env.db, true, 60, q1, q2)
	makeSession(t, env.db, exam, student, model.StatusInProgress, time.Minute)

	// 有学生答卷后题目集合不可替换
	_, err := env.exam.AssignQuestions(exam.ID, []QuestionAssignment{
		{QuestionID: q1.ID, OrderIndex: 0},
	})
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))

	// 也不可重排
	err = env.exam.ReorderQuestions(exam.ID, []string{q2.ID, q1.ID})
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))

	// 原集合保持不变
	detail, err := env.exam.GetExam(exam.ID)
	require.NoError(t, err)
	require.Len(t, detail.Questions, 2)
	assert.Equal(t, q1.ID, detail.Questions[0].ID)
}

func TestDeleteExam(t *testing.T) {
	env := newTestEnv(t)
	q := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	exam := makeExam(t, env.db, false, 60, q)

	require.NoError(t, env.exam.DeleteExam(exam.ID))

	// 关联的挂题记录一并清理
	var count int64
	require.NoError(t, env.db.Model(&model.ExamQuestion{}).Where("exam_id = ?", exam.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	err := env.exam.DeleteExam(exam.ID)
	require.Error(t, err)
	assert.Equal(t, util.KindNotFound, util.KindOf(err))
}

func TestDeleteExamBlockedByAttempts(t *testing.T) {
	env := newTestEnv(t)
	student := makeUser(t, env.db, "stu@example.com", model.Student)
	q := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	exam := makeExam(t, env.db, true, 60, q)
	makeSession(t, env.db, exam, student, model.StatusSubmitted, time.Hour)

	err := env.exam.DeleteExam(exam.ID)
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))
}

func TestAssignQuestions(t *testing.T) {
	env := newTestEnv(t)
	q1 := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	q2 := makeTextQuestion(t, env.db, 5)
	q3 := makeChoiceQuestion(t, env.db, model.MultiChoice, []string{"A", "C"}, 3)
	exam := makeExam(t, env.db, false, 60, q1)

	// 整体替换原有集合
	detail, err := env.exam.AssignQuestions(exam.ID, []QuestionAssignment{
		{QuestionID: q2.ID, OrderIndex: 0},
		{QuestionID: q3.ID, OrderIndex: 1},
	})
	require.NoError(t, err)
	require.Len(t, detail.Questions, 2)
	assert.Equal(t, q2.ID, detail.Questions[0].ID)
	assert.Equal(t, q3.ID, detail.Questions[1].ID)

	_, err = env.exam.AssignQuestions(exam.ID, []QuestionAssignment{
		{QuestionID: q1.ID, OrderIndex: 0},
		{QuestionID: q1.ID, OrderIndex: 1},
	})
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))

	_, err = env.exam.AssignQuestions(exam.ID, []QuestionAssignment{
		{QuestionID: "no-such-question", OrderIndex: 0},
	})
	require.Error(t, err)
	assert.Equal(t, util.KindNotFound, util.KindOf(err))
}

func TestReorderQuestions(t *testing.T) {
	env := newTestEnv(t)
	q1 := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	q2 := makeTextQuestion(t, env.db, 5)
	exam := makeExam(t, env.db, false, 60, q1, q2)

	require.NoError(t, env.exam.ReorderQuestions(exam.ID, []string{q2.ID, q1.ID}))

	detail, err := env.exam.GetExam(exam.ID)
	require.NoError(t, err)
	require.Len(t, detail.Questions, 2)
	assert.Equal(t, q2.ID, detail.Questions[0].ID)
	assert.Equal(t, q1.ID, detail.Questions[1].ID)

	// 传入集合必须与已挂题目完全一致
	err = env.exam.ReorderQuestions(exam.ID, []string{q1.ID})
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))

	err = env.exam.ReorderQuestions(exam.ID, []string{q1.ID, "no-such-question"})
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))
}

func TestPublishExam(t *testing.T) {
	env := newTestEnv(t)
	empty := makeExam(t, env.db, false, 60)

	// 没有题目的考试不可发布
	_, err := env.exam.PublishExam(empty.ID, true)
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))

	q := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	exam := makeExam(t, env.db, false, 60, q)

	published, err := env.exam.PublishExam(exam.ID, true)
	require.NoError(t, err)
	assert.True(t, published.IsPublished)

	// 支持撤回发布
	unpublished, err := env.exam.PublishExam(exam.ID, false)
	require.NoError(t, err)
	assert.False(t, unpublished.IsPublished)
}
