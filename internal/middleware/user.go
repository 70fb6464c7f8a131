package middleware

import (
	"context"
	"time"

	"cardshop/internal/service"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// UserKey is the context key the current *domain.User is stored under
const UserKey = "user"

const lookupTimeout = 10 * time.Second

// EnsureUser creates middleware that makes sure every sender has a user record
// and attaches it to the context. A contact the sender shares about themselves
// becomes the phone of a new record.
func EnsureUser(catalog *service.CatalogService, logger *zap.Logger) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return next(c)
			}

			var phone string
			if m := c.Message(); m != nil && m.Contact != nil && m.Contact.UserID == sender.ID {
				phone = m.Contact.PhoneNumber
			}

			ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
			defer cancel()

			user, err := catalog.GetOrCreateUser(ctx, sender.ID, phone)
			if err != nil {
				logger.Error("Failed to ensure user exists in middleware",
					zap.Int64("user_id", sender.ID),
					zap.Error(err),
				)
				return c.Send("Something went wrong. Please try again later.")
			}

			c.Set(UserKey, user)
			return next(c)
		}
	}
}
