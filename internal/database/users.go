package database

import (
	"context"
	"fmt"

	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/id"
	"github.com/mrlokans/booktracker/internal/store"
)

func (d *Database) CreateUser(ctx context.Context, in store.UserInput) (*entities.User, error) {
	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		ID:           userID,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
	}
	if err := d.DB.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", translateError(err))
	}
	return user, nil
}

func (d *Database) GetUserByID(ctx context.Context, userID string) (*entities.User, error) {
	return d.findUser(ctx, "id = ?", userID)
}

func (d *Database) GetUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	return d.findUser(ctx, "email = ?", email)
}

func (d *Database) GetUserByUsername(ctx context.Context, username string) (*entities.User, error) {
	return d.findUser(ctx, "username = ?", username)
}

func (d *Database) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := d.DB.WithContext(ctx).Model(&entities.User{}).Count(&count).Error
	return count, err
}

func (d *Database) findUser(ctx context.Context, query string, arg string) (*entities.User, error) {
	var user entities.User
	if err := d.DB.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}
