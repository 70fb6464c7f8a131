package domain

import "time"

// User represents anyone who has talked to one of the bots
type User struct {
	ID         int64
	TelegramID int64
	Phone      string
	IsAdmin    bool
	CreatedAt  time.Time
}
