package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cardshop/internal/domain"
	"cardshop/internal/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Notifier delivers a text message to a chat
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// BotLauncher starts a shop bot for a credential and reports the outcome on the returned channel
type BotLauncher interface {
	Add(cred domain.Credential) <-chan error
}

// Pricing holds the plan prices shown to sellers
type Pricing struct {
	FullShop   float64
	SingleCard float64
}

// Price returns the price of a plan
func (p Pricing) Price(plan domain.Plan) float64 {
	if plan == domain.PlanFull {
		return p.FullShop
	}
	return p.SingleCard
}

// RegistrationService turns a finished onboarding conversation into a running shop bot
type RegistrationService struct {
	store    repository.RegistrationStore
	catalog  *CatalogService
	launcher BotLauncher
	notifier Notifier
	adminID  int64
	pricing  Pricing
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(
	store repository.RegistrationStore,
	catalog *CatalogService,
	launcher BotLauncher,
	notifier Notifier,
	adminID int64,
	pricing Pricing,
	logger *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		store:    store,
		catalog:  catalog,
		launcher: launcher,
		notifier: notifier,
		adminID:  adminID,
		pricing:  pricing,
		validate: newValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

// Pricing returns the configured plan prices
func (s *RegistrationService) Pricing() Pricing {
	return s.pricing
}

// CheckCredential validates a credential typed by a seller.
// It must be usable as a single directory name and not belong to someone else.
func (s *RegistrationService) CheckCredential(ownerID int64, raw string) (domain.Credential, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.NewValidationError("credential", "the bot token cannot be empty")
	}
	if strings.ContainsAny(raw, " \t\n/\\") || strings.Contains(raw, "..") {
		return "", domain.NewValidationError("credential", "that does not look like a bot token, please paste it exactly as BotFather sent it")
	}

	cred := domain.Credential(raw)
	existing, err := s.store.Find(cred)
	if err == nil && existing.OwnerID != ownerID {
		return "", domain.NewValidationError("credential", "this bot is already registered")
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	return cred, nil
}

// Complete persists a registration and asks the supervisor to launch its shop bot.
// The returned channel resolves with the launch outcome.
func (s *RegistrationService) Complete(ctx context.Context, rec *domain.RegistrationRecord, fetcher FileFetcher) (<-chan error, error) {
	if err := s.validate.Struct(rec); err != nil {
		return nil, validationError(err)
	}
	if len(rec.Items) > rec.Plan.MaxItems() {
		return nil, domain.NewValidationError("items",
			fmt.Sprintf("the %s plan allows at most %d items", rec.Plan, rec.Plan.MaxItems()))
	}

	existing, err := s.store.Find(rec.Credential)
	switch {
	case err == nil && existing.OwnerID != rec.OwnerID:
		return nil, fmt.Errorf("registration %s: %w", rec.Credential, domain.ErrConflict)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	if _, err := s.catalog.GetOrCreateUser(ctx, rec.OwnerID, rec.Contact); err != nil {
		return nil, fmt.Errorf("register owner: %w", err)
	}

	for i := range rec.Items {
		item := &rec.Items[i]
		if item.FileID == "" {
			continue
		}
		rc, err := fetcher.Fetch(ctx, item.FileID)
		if err != nil {
			return nil, fmt.Errorf("download registration image: %w", err)
		}
		path, err := s.store.SaveImage(rec.OwnerID, rec.Credential, i+1, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		item.ImagePath = path
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if err := s.store.Save(rec); err != nil {
		return nil, err
	}

	s.logger.Info("Registration saved",
		zap.Int64("owner_id", rec.OwnerID),
		zap.Stringer("credential", rec.Credential),
		zap.String("plan", string(rec.Plan)),
		zap.Int("items", len(rec.Items)),
	)

	s.notifyAdmin(ctx, rec)

	return s.launcher.Add(rec.Credential), nil
}

// Relaunch retries the launch of an already registered shop bot
func (s *RegistrationService) Relaunch(cred domain.Credential) (<-chan error, error) {
	if _, err := s.store.Find(cred); err != nil {
		return nil, err
	}
	return s.launcher.Add(cred), nil
}

// CredentialsOf lists the credentials registered by the seller with chat id ownerID
func (s *RegistrationService) CredentialsOf(ownerID int64) ([]domain.Credential, error) {
	creds, err := s.store.Discover()
	if err != nil {
		return nil, fmt.Errorf("discover registrations: %w", err)
	}

	var owned []domain.Credential
	for _, cred := range creds {
		rec, err := s.store.Find(cred)
		if err != nil {
			return nil, err
		}
		if rec.OwnerID == ownerID {
			owned = append(owned, cred)
		}
	}
	return owned, nil
}

func (s *RegistrationService) notifyAdmin(ctx context.Context, rec *domain.RegistrationRecord) {
	var b strings.Builder
	b.WriteString("🆕 New shop registration\n")
	fmt.Fprintf(&b, "Owner: %d\n", rec.OwnerID)
	fmt.Fprintf(&b, "Contact: %s\n", rec.Contact)
	fmt.Fprintf(&b, "Plan: %s (%s)\n", rec.Plan, domain.FormatPrice(s.pricing.Price(rec.Plan)))
	fmt.Fprintf(&b, "Bot: %s\n", rec.Credential)
	for i, item := range rec.Items {
		fmt.Fprintf(&b, "%d. %s — %s\n", i+1, item.Title, domain.FormatPrice(item.Price))
	}

	if err := s.notifier.Notify(ctx, s.adminID, b.String()); err != nil {
		s.logger.Warn("Failed to notify admin about registration",
			zap.Int64("owner_id", rec.OwnerID),
			zap.Error(err),
		)
	}
}
