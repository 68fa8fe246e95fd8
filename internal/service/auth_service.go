package service

import (
	"time"

	"exam_backend/internal/config"
	"exam_backend/internal/model"
	"exam_backend/internal/repository"
	"exam_backend/internal/util"
	"exam_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

func (s *AuthService) Register(user *model.User) error {
	_, err := s.UserRepo.GetByEmail(user.Email)
	if err == nil {
		return util.InvalidStatef("user with email %s already exists", user.Email)
	} else if err != gorm.ErrRecordNotFound {
		return util.Fatal(err)
	}

	if user.Role != model.Student && user.Role != model.Admin {
		user.Role = model.Student
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return util.Fatal(err)
	}
	user.Password = string(hashedPassword)

	if err := s.UserRepo.Create(user); err != nil {
		return util.Fatal(err)
	}

	logger.Log.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return nil
}

func (s *AuthService) Login(email, password string) (string, *model.User, error) {
	user, err := s.UserRepo.GetByEmail(email)
	if err != nil {
		return "", nil, util.Forbiddenf("invalid credentials")
	}

	if user.Disabled {
		return "", nil, util.Forbiddenf("account disabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, util.Forbiddenf("invalid credentials")
	}

	now := time.Now().UTC()
	user.LastLogin = &now
	if err := s.UserRepo.Update(user); err != nil {
		logger.Log.Warn("failed to record last login", zap.Error(err))
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, util.Fatal(err)
	}
	return token, user, nil
}

func (s *AuthService) GetCurrentUser(c *gin.Context) *model.User {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		return nil
	}

	user, _ := s.UserRepo.GetByID(claims.UserID)
	return user
}
