package service

import (
	"testing"
	"time"

	"exam_backend/internal/model"
	"exam_backend/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Question{},
		&model.Exam{},
		&model.ExamQuestion{},
		&model.StudentExam{},
		&model.StudentAnswer{},
	))
	return db
}

type testEnv struct {
	db          *gorm.DB
	grading     *GradingService
	studentExam *StudentExamService
	answer      *AnswerService
	results     *ResultsService
	exam        *ExamService
	question    *QuestionService
	user        *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	userRepo := repository.NewUserRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	examRepo := repository.NewExamRepository(db)
	studentExamRepo := repository.NewStudentExamRepository(db)
	answerRepo := repository.NewStudentAnswerRepository(db)

	grading := NewGradingService(db, nil)
	return &testEnv{
		db:          db,
		grading:     grading,
		studentExam: NewStudentExamService(db, examRepo, studentExamRepo, answerRepo, questionRepo, grading),
		answer:      NewAnswerService(db, answerRepo, questionRepo),
		results:     NewResultsService(db, examRepo, studentExamRepo, answerRepo, userRepo, nil),
		exam:        NewExamService(db, examRepo, questionRepo),
		question:    NewQuestionService(questionRepo),
		user:        NewUserService(userRepo),
	}
}

func makeUser(t *testing.T, db *gorm.DB, email string, role model.UserRole) *model.User {
	t.Helper()

	user := &model.User{
		Name:     email,
		Email:    email,
		Password: "hashed",
		Role:     role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func makeChoiceQuestion(t *testing.T, db *gorm.DB, qtype model.QuestionType, correct []string, maxScore int) *model.Question {
	t.Helper()

	question := &model.Question{
		Title:          "choice question",
		Complexity:     "easy",
		Type:           qtype,
		Options:        model.StringListJSON([]string{"A: Earth", "B: Mars", "C: Venus", "D: Jupiter"}),
		CorrectAnswers: model.StringListJSON(correct),
		MaxScore:       maxScore,
	}
	require.NoError(t, db.Create(question).Error)
	return question
}

func makeTextQuestion(t *testing.T, db *gorm.DB, maxScore int) *model.Question {
	t.Helper()

	question := &model.Question{
		Title:          "text question",
		Complexity:     "medium",
		Type:           model.TextQuestion,
		CorrectAnswers: model.StringListJSON(nil),
		MaxScore:       maxScore,
	}
	require.NoError(t, db.Create(question).Error)
	return question
}

// makeExam 创建时间窗口覆盖当前时刻的考试并挂载题目
func makeExam(t *testing.T, db *gorm.DB, published bool, durationMinutes int, questions ...*model.Question) *model.Exam {
	t.Helper()

	now := time.Now().UTC()
	exam := &model.Exam{
		Title:           "midterm",
		StartTime:       now.Add(-time.Hour),
		EndTime:         now.Add(time.Hour),
		DurationMinutes: durationMinutes,
		IsPublished:     published,
		CreatedBy:       model.GenerateUUID(),
	}
	require.NoError(t, db.Create(exam).Error)

	for i, q := range questions {
		require.NoError(t, db.Create(&model.ExamQuestion{
			ExamID:     exam.ID,
			QuestionID: q.ID,
			OrderIndex: i,
		}).Error)
	}
	return exam
}

func makeSession(t *testing.T, db *gorm.DB, exam *model.Exam, student *model.User, status model.ExamStatus, startedAgo time.Duration) *model.StudentExam {
	t.Helper()

	startedAt := time.Now().UTC().Add(-startedAgo)
	session := &model.StudentExam{
		ExamID:    exam.ID,
		StudentID: student.ID,
		Status:    status,
		StartedAt: &startedAt,
	}
	if status.IsTerminal() {
		submittedAt := time.Now().UTC()
		session.SubmittedAt = &submittedAt
	}
	require.NoError(t, db.Create(session).Error)
	return session
}

func saveRawAnswer(t *testing.T, db *gorm.DB, sessionID, questionID string, value map[string]interface{}) *model.StudentAnswer {
	t.Helper()

	answer := &model.StudentAnswer{
		StudentExamID: sessionID,
		QuestionID:    questionID,
		AnswerValue:   model.ValueMapJSON(value),
	}
	require.NoError(t, db.Create(answer).Error)
	return answer
}
