package domain

import "time"

// Plan is the kind of shop a seller registers for
type Plan string

const (
	PlanFull   Plan = "full"
	PlanSingle Plan = "single"
)

// MaxItems returns how many items a registration under this plan may carry
func (p Plan) MaxItems() int {
	if p == PlanFull {
		return 3
	}
	return 1
}

// RegistrationItem is one (image, title, price) tuple captured at onboarding
type RegistrationItem struct {
	FileID    string  `json:"-"`
	ImagePath string  `json:"image_path"`
	Title     string  `json:"title" validate:"required,max=128"`
	Price     float64 `json:"price" validate:"gte=0,lte=9999999999.99"`
}

// RegistrationRecord describes a new seller and the shop bot to provision for them
type RegistrationRecord struct {
	OwnerID    int64              `json:"owner_id" validate:"required"`
	Credential Credential         `json:"-" validate:"required"`
	Contact    string             `json:"contact" validate:"required"`
	Plan       Plan               `json:"plan" validate:"oneof=full single"`
	Items      []RegistrationItem `json:"items" validate:"min=1,max=3,dive"`
	CreatedAt  time.Time          `json:"timestamp"`
}
