package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/psds-microservice/helpdesk-service/internal/auth"
	"github.com/psds-microservice/helpdesk-service/internal/errs"
	"github.com/psds-microservice/helpdesk-service/internal/model"
	"gorm.io/gorm"
)

type UserServicer interface {
	CreateUser(ctx context.Context, email, password string, role model.Role) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) CreateUser(ctx context.Context, email, password string, role model.Role) (*model.User, error) {
	const op = "service.CreateUser"

	if _, err := s.getByEmail(ctx, email); err == nil {
		return nil, errs.ErrEmailTaken
	} else if !errors.Is(err, errs.ErrUserNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u := &model.User{Email: email, PasswordHash: hash, Role: role}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		// lost a race with a concurrent signup
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.ErrEmailTaken
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// Authenticate tells an unknown email (ErrUserNotFound) apart from a wrong
// password (ErrWrongPassword).
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.getByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, errs.ErrWrongPassword
	}
	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *UserService) getByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
