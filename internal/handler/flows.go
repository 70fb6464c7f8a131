package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cardshop/internal/conversation"
	"cardshop/internal/domain"
	"cardshop/internal/service"
)

// Session keys shared by the flows
const (
	keyContact    = "contact"
	keyCredential = "credential"
	keyPlan       = "plan"
	keyFileID     = "file_id"
	keyTitle      = "title"
	keyPrice      = "price"
	keyShopID     = "shop_id"
	keyOwnerID    = "owner_id"
	keyFullAccess = "full_access"
	keyName       = "name"
	keyCardID     = "card_id"
	keyCardLabel  = "card_label"
	keyCardPrice  = "card_price"
	keyEvidence   = "evidence"
)

// Callback data
const (
	planFullData   = "plan_full"
	planSingleData = "plan_single"
	buyPrefix      = "buy_"
)

// LaunchWatcher receives the launch outcome of a completed registration
type LaunchWatcher func(chatID int64, cred domain.Credential, launched <-chan error)

func cardImageStep() conversation.Step {
	return conversation.Step{
		Name:    "image",
		Accepts: []conversation.Kind{conversation.KindPhoto},
		Prompt: func(_ context.Context, s *conversation.Session) (conversation.Prompt, error) {
			if s.Round() > 1 {
				return conversation.Prompt{Text: fmt.Sprintf("📷 Send the image for card #%d.", s.Round())}, nil
			}
			return conversation.Prompt{Text: "📷 Send the card image."}, nil
		},
		Handle: func(_ context.Context, s *conversation.Session, in conversation.Input) error {
			s.Put(keyFileID, in.FileID)
			return nil
		},
	}
}

func cardTitleStep(catalog *service.CatalogService) conversation.Step {
	return conversation.Step{
		Name:    "title",
		Accepts: []conversation.Kind{conversation.KindText},
		Text:    "🏷 Send the card title.",
		Handle: func(_ context.Context, s *conversation.Session, in conversation.Input) error {
			if err := catalog.ValidateCard(in.Text, 0); err != nil {
				return err
			}
			s.Put(keyTitle, strings.TrimSpace(in.Text))
			return nil
		},
	}
}

func cardPriceStep() conversation.Step {
	return conversation.Step{
		Name:    "price",
		Accepts: []conversation.Kind{conversation.KindText},
		Text:    "💰 Send the card price, e.g. 39.90",
		Handle: func(_ context.Context, s *conversation.Session, in conversation.Input) error {
			price, err := domain.ParsePrice(in.Text)
			if err != nil {
				return err
			}
			s.Put(keyPrice, price)
			return nil
		},
	}
}

// RegistrationFlow onboards a seller: contact, bot token, plan, then one to three cards
func RegistrationFlow(regs *service.RegistrationService, catalog *service.CatalogService, files service.FileFetcher, watch LaunchWatcher) *conversation.Flow {
	pricing := regs.Pricing()

	contact := conversation.Step{
		Name:    "contact",
		Accepts: []conversation.Kind{conversation.KindContact, conversation.KindText},
		Prompt: func(context.Context, *conversation.Session) (conversation.Prompt, error) {
			return conversation.Prompt{
				Text:           "👋 Welcome! Share your contact or type a phone number to register your shop.",
				RequestContact: true,
			}, nil
		},
		Handle: func(_ context.Context, s *conversation.Session, in conversation.Input) error {
			phone := strings.TrimSpace(in.Phone)
			if phone == "" {
				phone = strings.TrimSpace(in.Text)
			}
			if phone == "" {
				return domain.NewValidationError("contact", "please share your contact")
			}
			s.Put(keyContact, phone)
			return nil
		},
	}

	credential := conversation.Step{
		Name:    "credential",
		Accepts: []conversation.Kind{conversation.KindText},
		Text:    "🔑 Create a bot with @BotFather and paste its token here.",
		Handle: func(_ context.Context, s *conversation.Session, in conversation.Input) error {
			cred, err := regs.CheckCredential(s.Key, in.Text)
			if err != nil {
				return err
			}
			s.Put(keyCredential, cred)
			return nil
		},
	}

	plan := conversation.Step{
		Name:    "plan",
		Accepts: []conversation.Kind{conversation.KindChoice},
		Prompt: func(context.Context, *conversation.Session) (conversation.Prompt, error) {
			return conversation.Prompt{
				Text: "📦 Choose your plan:",
				Choices: []conversation.Choice{
					{Label: "Full shop, up to 3 cards (" + domain.FormatPrice(pricing.FullShop) + ")", Data: planFullData},
					{Label: "Single card (" + domain.FormatPrice(pricing.SingleCard) + ")", Data: planSingleData},
				},
			}, nil
		},
		Handle: func(_ context.Context, s *conversation.Session, in conversation.Input) error {
			switch in.Data {
			case planFullData:
				s.Put(keyPlan, string(domain.PlanFull))
			case planSingleData:
				s.Put(keyPlan, string(domain.PlanSingle))
			default:
				return domain.NewValidationError("plan", "please pick one of the plans")
			}
			return nil
		},
	}

	return conversation.NewFlow("registration").
		Then(contact, credential, plan).
		Repeat(conversation.Loop{
			Steps: []conversation.Step{cardImageStep(), cardTitleStep(catalog), cardPriceStep()},
			Min:   1,
			Max: func(s *conversation.Session) int {
				return domain.Plan(s.Text(keyPlan)).MaxItems()
			},
		}).
		OnComplete(func(ctx context.Context, s *conversation.Session) (conversation.Prompt, error) {
			v, _ := s.Get(keyCredential)
			cred, _ := v.(domain.Credential)
			rec := &domain.RegistrationRecord{
				OwnerID:    s.Key,
				Credential: cred,
				Contact:    s.Text(keyContact),
				Plan:       domain.Plan(s.Text(keyPlan)),
			}
			for _, round := range s.Rounds() {
				title, _ := round[keyTitle].(string)
				fileID, _ := round[keyFileID].(string)
				price, _ := round[keyPrice].(float64)
				rec.Items = append(rec.Items, domain.RegistrationItem{FileID: fileID, Title: title, Price: price})
			}

			launched, err := regs.Complete(ctx, rec, files)
			if err != nil {
				return conversation.Prompt{}, err
			}
			if watch != nil {
				watch(s.Key, rec.Credential, launched)
			}

			return conversation.Prompt{
				Text: fmt.Sprintf("🎉 Registration complete! %d card(s) saved.\nYour shop bot is starting, we'll message you once it is live.", len(rec.Items)),
			}, nil
		})
}

// AddCardFlow adds one card to the shop seeded under shop_id
func AddCardFlow(catalog *service.CatalogService, files service.FileFetcher) *conversation.Flow {
	return conversation.NewFlow("add_card").
		Then(cardImageStep(), cardTitleStep(catalog), cardPriceStep()).
		OnComplete(func(ctx context.Context, s *conversation.Session) (conversation.Prompt, error) {
			card, err := catalog.AddCard(ctx, s.Int64(keyShopID), s.Text(keyFileID), s.Text(keyTitle), s.Float(keyPrice), files)
			if err != nil {
				return conversation.Prompt{}, err
			}
			return conversation.Prompt{
				Text: fmt.Sprintf("✅ Card added: %s\nBuyers can get it with /purchase %d", card.Label(), card.ID),
			}, nil
		})
}

// PurchaseFlow sells a card of the shop seeded under shop_id. Under the
// screenshot policy the buyer must upload a payment screenshot first.
func PurchaseFlow(catalog *service.CatalogService, receipts *service.ReceiptService, files service.FileFetcher, policy domain.PurchasePolicy) *conversation.Flow {
	selectCard := conversation.Step{
		Name:    "select",
		Accepts: []conversation.Kind{conversation.KindChoice},
		Prompt: func(ctx context.Context, s *conversation.Session) (conversation.Prompt, error) {
			cards, err := catalog.ListCardsByShop(ctx, s.Int64(keyShopID))
			if err != nil {
				return conversation.Prompt{}, err
			}
			if len(cards) == 0 {
				return conversation.Prompt{}, domain.NewValidationError("cards", "this shop has no cards yet")
			}

			choices := make([]conversation.Choice, 0, len(cards))
			for _, card := range cards {
				choices = append(choices, conversation.Choice{Label: card.Label(), Data: buyData(card.ID)})
			}
			return conversation.Prompt{Text: "🛒 Pick a card:", Choices: choices}, nil
		},
		Handle: func(ctx context.Context, s *conversation.Session, in conversation.Input) error {
			cardID, ok := parseID(in.Data, buyPrefix)
			if !ok {
				return domain.NewValidationError("card", "please pick one of the cards")
			}
			card, err := catalog.GetCard(ctx, cardID)
			if err != nil {
				return err
			}
			if card.ShopID != s.Int64(keyShopID) {
				return fmt.Errorf("card %d in shop %d: %w", cardID, s.Int64(keyShopID), domain.ErrNotFound)
			}
			s.Put(keyCardID, card.ID)
			s.Put(keyCardLabel, card.Title)
			s.Put(keyCardPrice, card.Price)
			return nil
		},
	}

	flow := conversation.NewFlow("purchase").Then(selectCard)

	if policy == domain.PurchaseScreenshot {
		flow.Then(conversation.Step{
			Name:    "screenshot",
			Accepts: []conversation.Kind{conversation.KindPhoto},
			Prompt: func(_ context.Context, s *conversation.Session) (conversation.Prompt, error) {
				return conversation.Prompt{
					Text: fmt.Sprintf("💳 Pay %s for %q and send a screenshot of the payment.",
						domain.FormatPrice(s.Float(keyCardPrice)), s.Text(keyCardLabel)),
				}, nil
			},
			Handle: func(_ context.Context, s *conversation.Session, in conversation.Input) error {
				s.Put(keyEvidence, in.FileID)
				return nil
			},
		})
	}

	return flow.OnComplete(func(ctx context.Context, s *conversation.Session) (conversation.Prompt, error) {
		p, err := catalog.Purchase(ctx, s.Key, s.Int64(keyCardID), s.Text(keyEvidence), files)
		if err != nil {
			return conversation.Prompt{}, err
		}

		prompt := conversation.Prompt{Text: receiptText(s.Text(keyCardLabel), p)}
		if png, err := receipts.QRCode(p.Token); err == nil {
			prompt.Image = png
		}
		return prompt, nil
	})
}

// CreateShopFlow names a new shop for the user seeded under owner_id
func CreateShopFlow(catalog *service.CatalogService) *conversation.Flow {
	name := conversation.Step{
		Name:    "name",
		Accepts: []conversation.Kind{conversation.KindText},
		Text:    "🏬 Choose a name for your shop:",
		Handle: func(_ context.Context, s *conversation.Session, in conversation.Input) error {
			if strings.TrimSpace(in.Text) == "" {
				return domain.NewValidationError("name", "shop name cannot be empty")
			}
			s.Put(keyName, strings.TrimSpace(in.Text))
			return nil
		},
	}

	return conversation.NewFlow("create_shop").
		Then(name).
		OnComplete(func(ctx context.Context, s *conversation.Session) (conversation.Prompt, error) {
			full, _ := s.Get(keyFullAccess)
			fullAccess, _ := full.(bool)

			shop, err := catalog.CreateShop(ctx, s.Int64(keyOwnerID), s.Text(keyName), fullAccess)
			if err != nil {
				if errors.Is(err, domain.ErrConflict) {
					return conversation.Prompt{}, domain.NewValidationError("name", "that name is taken, try another")
				}
				return conversation.Prompt{}, err
			}
			return conversation.Prompt{
				Text: fmt.Sprintf("🎉 Shop %q created! Open /dashboard to add cards.", shop.Name),
			}, nil
		})
}

func receiptText(title string, p *domain.Purchase) string {
	return fmt.Sprintf("✅ Purchase complete!\nCard: %s\nPaid: %s\nYour token: %s",
		title, domain.FormatPrice(p.Amount), p.Token)
}

func buyData(cardID int64) string {
	return buyPrefix + strconv.FormatInt(cardID, 10)
}

// parseID extracts the numeric id from callback data such as "buy_12"
func parseID(data, prefix string) (int64, bool) {
	if !strings.HasPrefix(data, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
