package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"desk-agenda/internal/model"
)

// UserRepository is the subscriber registry: the Telegram chats that receive
// fired alerts and the periodic summary.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromTelegram records the chat a Telegram user last wrote from.
// A first contact registers the user as subscribed; later calls refresh the
// chat and profile and leave the subscription alone.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID, chatID int64, firstName, lastName, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where(model.User{TelegramID: telegramID}).
		Attrs(model.User{Subscribed: true}).
		Assign(map[string]interface{}{
			"chat_id":    chatID,
			"first_name": firstName,
			"last_name":  lastName,
			"username":   username,
		}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("upsert subscriber %d: %w", telegramID, err)
	}
	return &user, nil
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SetSubscribed switches alert and report delivery for a known user.
// Unknown users yield gorm.ErrRecordNotFound.
func (r *UserRepository) SetSubscribed(ctx context.Context, telegramID int64, subscribed bool) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("telegram_id = ?", telegramID).
		Update("subscribed", subscribed)
	if res.Error != nil {
		return fmt.Errorf("set subscription for %d: %w", telegramID, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListSubscribed returns the delivery targets in registration order.
func (r *UserRepository) ListSubscribed(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("subscribed = ?", true).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return users, nil
}
