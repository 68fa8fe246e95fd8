package service

import (
	"exam_backend/internal/model"
	"exam_backend/internal/repository"
	"exam_backend/internal/util"

	"gorm.io/gorm"
)

type UserService struct {
	UserRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{UserRepo: userRepo}
}

func (s *UserService) GetUser(id string) (*model.User, error) {
	user, err := s.UserRepo.GetByID(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("user not found")
		}
		return nil, util.Fatal(err)
	}
	return user, nil
}

func (s *UserService) ListUsers(role string, page, pageSize int) ([]model.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	users, total, err := s.UserRepo.List(role, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, util.Fatal(err)
	}
	return users, total, nil
}

// SetDisabled 封禁或解封账号
func (s *UserService) SetDisabled(id string, disabled bool) (*model.User, error) {
	user, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}

	user.Disabled = disabled
	if err := s.UserRepo.Update(user); err != nil {
		return nil, util.Fatal(err)
	}
	return user, nil
}
