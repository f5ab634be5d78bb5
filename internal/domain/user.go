package domain

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	AuthProviderTelegram = "telegram"
)

type User struct {
	UserID           string     `json:"id" dynamodbav:"user_id"`
	Name             string     `json:"name" dynamodbav:"name"`
	Phone            string     `json:"phone,omitempty" dynamodbav:"phone"`
	TelegramID       string     `json:"telegram_id" dynamodbav:"telegram_id"`
	TelegramUsername string     `json:"telegram_username,omitempty" dynamodbav:"telegram_username"`
	Photo            string     `json:"photo,omitempty" dynamodbav:"photo"`
	Role             string     `json:"role" dynamodbav:"role"`
	AuthProvider     string     `json:"auth_provider" dynamodbav:"auth_provider"`
	Enable           bool       `json:"enable" dynamodbav:"enable"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	CreatedAt        time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time  `json:"updated" dynamodbav:"updated_at"`
}
