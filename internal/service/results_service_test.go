package service

import (
	"testing"
	"time"

	"exam_backend/internal/model"
	"exam_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafePercent(t *testing.T) {
	score := 7.0
	pct := SafePercent(&score, 10)
	require.NotNil(t, pct)
	assert.Equal(t, 70.0, *pct)

	// 两位小数
	score = 1.0
	pct = SafePercent(&score, 3)
	require.NotNil(t, pct)
	assert.Equal(t, 33.33, *pct)

	// 满分为0时返回0而不是除零
	pct = SafePercent(&score, 0)
	require.NotNil(t, pct)
	assert.Equal(t, 0.0, *pct)

	assert.Nil(t, SafePercent(nil, 10))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "alice", displayName("alice@example.com"))
	assert.Equal(t, "bob", displayName("bob"))
}

func TestGetStudentResultRedaction(t *testing.T) {
	env := newTestEnv(t)
	student := makeUser(t, env.db, "alice@example.com", model.Student)
	q := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	exam := makeExam(t, env.db, true, 60, q)

	// 进行中：正确答案不可见
	session := makeSession(t, env.db, exam, student, model.StatusInProgress, time.Minute)
	saveRawAnswer(t, env.db, session.ID, q.ID, map[string]interface{}{"answer": "B"})

	result, err := env.results.GetStudentResult(session.ID, student.ID)
	require.NoError(t, err)
	require.Len(t, result.QuestionResults, 1)
	assert.Nil(t, result.QuestionResults[0].CorrectAnswer)
	assert.Equal(t, "alice", result.StudentName)
	assert.Equal(t, string(model.StatusInProgress), result.Status)

	// 提交并判分后可见
	_, err = env.studentExam.SubmitExam(session.ID, student.ID)
	require.NoError(t, err)

	result, err = env.results.GetStudentResult(session.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, result.QuestionResults[0].CorrectAnswer)
	assert.Equal(t, 2.0, result.TotalScore)
	assert.Equal(t, 2.0, result.MaxPossibleScore)
	require.NotNil(t, result.Percentage)
	assert.Equal(t, 100.0, *result.Percentage)
	assert.False(t, result.QuestionResults[0].RequiresManualReview)
}

func TestGetStudentResultOwnership(t *testing.T) {
	env := newTestEnv(t)
	student := makeUser(t, env.db, "alice@example.com", model.Student)
	other := makeUser(t, env.db, "mallory@example.com", model.Student)
	q := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	exam := makeExam(t, env.db, true, 60, q)
	session := makeSession(t, env.db, exam, student, model.StatusSubmitted, time.Hour)

	_, err := env.results.GetStudentResult(session.ID, other.ID)
	require.Error(t, err)
	assert.Equal(t, util.KindForbidden, util.KindOf(err))

	_, err = env.results.GetStudentResult("no-such-session", student.ID)
	require.Error(t, err)
	assert.Equal(t, util.KindNotFound, util.KindOf(err))
}

func TestGetStudentExamDetailAlwaysShowsAnswers(t *testing.T) {
	env := newTestEnv(t)
	student := makeUser(t, env.db, "alice@example.com", model.Student)
	q := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	exam := makeExam(t, env.db, true, 60, q)
	session := makeSession(t, env.db, exam, student, model.StatusInProgress, time.Minute)

	// 管理端视图即使未提交也能看到正确答案
	result, err := env.results.GetStudentExamDetail(session.ID)
	require.NoError(t, err)
	require.Len(t, result.QuestionResults, 1)
	assert.Equal(t, []string{"B"}, result.QuestionResults[0].CorrectAnswer)
}

func TestGetExamResultsForAdmin(t *testing.T) {
	env := newTestEnv(t)
	alice := makeUser(t, env.db, "alice@example.com", model.Student)
	bob := makeUser(t, env.db, "bob@example.com", model.Student)
	carol := makeUser(t, env.db, "carol@example.com", model.Student)

	q := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 10)
	exam := makeExam(t, env.db, true, 60, q)

	scoreOf := func(v float64) *float64 { return &v }
	s1 := makeSession(t, env.db, exam, alice, model.StatusSubmitted, time.Hour)
	s1.TotalScore = scoreOf(10)
	require.NoError(t, env.db.Save(s1).Error)
	s2 := makeSession(t, env.db, exam, bob, model.StatusSubmitted, time.Hour)
	s2.TotalScore = scoreOf(4)
	require.NoError(t, env.db.Save(s2).Error)
	makeSession(t, env.db, exam, carol, model.StatusInProgress, time.Minute)

	results, err := env.results.GetExamResultsForAdmin(exam.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, results.ExamSummary.TotalStudents)
	assert.Equal(t, 2, results.ExamSummary.SubmissionCount)
	require.NotNil(t, results.ExamSummary.AverageScore)
	assert.Equal(t, 7.0, *results.ExamSummary.AverageScore)
	require.NotNil(t, results.ExamSummary.HighestScore)
	assert.Equal(t, 10.0, *results.ExamSummary.HighestScore)
	require.NotNil(t, results.ExamSummary.LowestScore)
	assert.Equal(t, 4.0, *results.ExamSummary.LowestScore)
	require.Len(t, results.StudentResults, 3)

	for _, sr := range results.StudentResults {
		if sr.StudentID == bob.ID {
			require.NotNil(t, sr.Percentage)
			assert.Equal(t, 40.0, *sr.Percentage)
		}
		if sr.StudentID == carol.ID {
			assert.Nil(t, sr.TotalScore)
			assert.Nil(t, sr.Percentage)
		}
	}
}

func TestCalculateExamStatistics(t *testing.T) {
	env := newTestEnv(t)
	q := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 10)
	exam := makeExam(t, env.db, true, 60, q)

	addSession := func(email string, score *float64, status model.ExamStatus) {
		student := makeUser(t, env.db, email, model.Student)
		session := makeSession(t, env.db, exam, student, status, time.Hour)
		session.TotalScore = score
		require.NoError(t, env.db.Save(session).Error)
	}
	scoreOf := func(v float64) *float64 { return &v }

	addSession("a@example.com", scoreOf(10), model.StatusSubmitted)
	addSession("b@example.com", scoreOf(6), model.StatusSubmitted)
	addSession("c@example.com", scoreOf(2), model.StatusExpired)
	addSession("d@example.com", nil, model.StatusInProgress)

	stats, err := env.results.CalculateExamStatistics(exam.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.SubmissionCount)
	assert.Equal(t, 4, stats.TotalStudents)
	require.NotNil(t, stats.AverageScore)
	assert.Equal(t, 6.0, *stats.AverageScore)
	require.NotNil(t, stats.MedianScore)
	assert.Equal(t, 6.0, *stats.MedianScore)
	require.NotNil(t, stats.HighestScore)
	assert.Equal(t, 10.0, *stats.HighestScore)
	require.NotNil(t, stats.LowestScore)
	assert.Equal(t, 2.0, *stats.LowestScore)
	require.NotNil(t, stats.Stddev)
	assert.InDelta(t, 3.27, *stats.Stddev, 0.001)
}

func TestCalculateExamStatisticsSingleScore(t *testing.T) {
	env := newTestEnv(t)
	student := makeUser(t, env.db, "solo@example.com", model.Student)
	q := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 10)
	exam := makeExam(t, env.db, true, 60, q)

	session := makeSession(t, env.db, exam, student, model.StatusSubmitted, time.Hour)
	score := 8.0
	session.TotalScore = &score
	require.NoError(t, env.db.Save(session).Error)

	stats, err := env.results.CalculateExamStatistics(exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SubmissionCount)
	require.NotNil(t, stats.MedianScore)
	assert.Equal(t, 8.0, *stats.MedianScore)
	// 单份答卷标准差无意义
	assert.Nil(t, stats.Stddev)
}

func TestCalculateExamStatisticsEmpty(t *testing.T) {
	env := newTestEnv(t)
	q := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 10)
	exam := makeExam(t, env.db, true, 60, q)

	stats, err := env.results.CalculateExamStatistics(exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.SubmissionCount)
	assert.Nil(t, stats.AverageScore)
	assert.Nil(t, stats.MedianScore)
	assert.Nil(t, stats.Stddev)
}

func TestListStudentExams(t *testing.T) {
	env := newTestEnv(t)
	student := makeUser(t, env.db, "alice@example.com", model.Student)

	q1 := makeChoiceQuestion(t, env.db, model.SingleChoice, []string{"B"}, 2)
	q2 := makeTextQuestion(t, env.db, 8)
	exam := makeExam(t, env.db, true, 60, q1, q2)

	session := makeSession(t, env.db, exam, student, model.StatusSubmitted, time.Hour)
	score := 2.0
	session.TotalScore = &score
	require.NoError(t, env.db.Save(session).Error)

	summaries, err := env.results.ListStudentExams(student.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, exam.ID, summaries[0].ExamID)
	assert.Equal(t, 10.0, summaries[0].MaxPossibleScore)
	require.NotNil(t, summaries[0].Percentage)
	assert.Equal(t, 20.0, *summaries[0].Percentage)
	assert.Equal(t, string(model.StatusSubmitted), summaries[0].Status)
}
