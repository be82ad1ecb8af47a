package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"eclipse-rewards-system/database"
	"eclipse-rewards-system/models"

	"gorm.io/gorm"
)

// FulfillmentMetadata identifies what a captured payment bought. Season
// passes carry UserID/SeasonID/Tier; business packages carry BusinessID
// and package fields (their fulfillment lives with the catalog service,
// only idempotency on PaymentRef matters here).
type FulfillmentMetadata struct {
	UserID      string          `json:"user_id"`
	SeasonID    string          `json:"season_id,omitempty"`
	Tier        models.PassTier `json:"tier,omitempty"`
	IsUpgrade   bool            `json:"is_upgrade"`
	BusinessID  string          `json:"business_id,omitempty"`
	PackageType string          `json:"package_type,omitempty"`
	PackageID   string          `json:"package_id,omitempty"`
	CustomerID  string          `json:"customer_id,omitempty"`
}

// SubscriptionState is the cached provider view per customer, the sole
// source of truth for "is this user paying?".
type SubscriptionState struct {
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	PlanID     string    `json:"plan_id,omitempty"`
	SyncedAt   time.Time `json:"synced_at"`
}

// ProviderClient fetches the payment provider's current view for a
// customer. The real adapter lives at the edge; tests stub it.
type ProviderClient interface {
	FetchSubscription(customerID string) (*SubscriptionState, error)
}

// PaymentService implements the post-capture fulfillment contract. The
// provider integration itself is an external collaborator; only its
// results enter here.
type PaymentService struct {
	DB       *gorm.DB
	Seasons  *SeasonPassService
	Provider ProviderClient
}

func NewPaymentService(db *gorm.DB, seasons *SeasonPassService) *PaymentService {
	return &PaymentService{DB: db, Seasons: seasons}
}

// Fulfill handles a successful payment. Idempotent on (user, season) for
// passes: replaying a fulfillment for an existing pass returns success
// with no state change.
func (s *PaymentService) Fulfill(paymentRef string, meta FulfillmentMetadata) (*models.UserSeasonPass, error) {
	// Business packages are fulfilled by the catalog service; the
	// contract here is only to acknowledge the capture.
	if meta.SeasonID == "" && (meta.BusinessID != "" || meta.PackageID != "") {
		log.Printf("💳 Payment %s for business package %s acknowledged, no pass to fulfill", paymentRef, meta.PackageID)
		return nil, nil
	}

	if meta.UserID == "" || meta.SeasonID == "" {
		return nil, fmt.Errorf("fulfillment metadata missing user or season")
	}

	var pass *models.UserSeasonPass
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var season models.Season
		if err := tx.Where("id = ?", meta.SeasonID).First(&season).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoActiveSeason
			}
			return err
		}

		var err error
		pass, err = s.Seasons.PurchasePass(tx, meta.UserID, &season, meta.Tier, paymentRef, meta.IsUpgrade)
		return err
	})
	if err != nil {
		return nil, err
	}

	if meta.CustomerID != "" {
		if err := database.SetCustomerUser(meta.CustomerID, meta.UserID); err != nil {
			log.Printf("⚠️ failed to cache customer mapping %s: %v", meta.CustomerID, err)
		}
	}

	return pass, nil
}

// SyncCustomer fetches the provider's current view and overwrites the KV
// record. This is the only function that writes the subscription key;
// webhooks and the success-redirect path both call exactly this, which
// defeats the race between the two.
func (s *PaymentService) SyncCustomer(customerID string) (*SubscriptionState, error) {
	if s.Provider == nil {
		return nil, fmt.Errorf("payment provider client not configured")
	}

	state, err := s.Provider.FetchSubscription(customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch provider state for %s: %w", customerID, err)
	}
	state.SyncedAt = time.Now().UTC()

	if err := database.SetSubscriptionState(customerID, state); err != nil {
		return nil, fmt.Errorf("failed to cache subscription state for %s: %w", customerID, err)
	}

	return state, nil
}
