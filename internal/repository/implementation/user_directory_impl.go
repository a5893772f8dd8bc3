package implementation

import (
	"context"
	"errors"

	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserDirectoryImpl struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) contract.UserDirectory {
	return &UserDirectoryImpl{db: db}
}

func (r *UserDirectoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, contract.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
