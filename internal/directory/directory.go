// Package directory resolves external contact identifiers to customer records.
package directory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mizajour/leadline/internal/db"
	"github.com/mizajour/leadline/internal/models"
	"gorm.io/gorm"
)

// NormalizeExternalID canonicalizes a provider contact identifier (phone
// number). Formatting characters and a leading "+" are stripped so lookups
// and inserts always agree on the stored form.
func NormalizeExternalID(externalID string) string {
	var b strings.Builder
	for _, r := range externalID {
		switch r {
		case ' ', '-', '.', '(', ')':
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimPrefix(b.String(), "+")
}

// Resolve looks up a customer by external identifier, creating the record on
// first contact. The second return reports whether a new record was created.
// A non-empty display name that differs from the stored one overwrites it
// (last-write-wins). Concurrent first contacts for the same identifier are
// reconciled via the unique index: the losing insert re-reads and returns the
// winning row.
func Resolve(gdb *gorm.DB, displayName, externalID string) (*models.Customer, bool, error) {
	id := NormalizeExternalID(externalID)
	if id == "" {
		return nil, false, fmt.Errorf("directory: external id is required")
	}

	var customer models.Customer
	err := gdb.Where("external_id = ?", id).First(&customer).Error
	switch {
	case err == nil:
		refreshed, rerr := refreshName(gdb, &customer, displayName)
		return refreshed, false, rerr
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to create
	default:
		return nil, false, fmt.Errorf("directory: lookup %s: %w", id, err)
	}

	customer = models.Customer{
		Name:       displayName,
		ExternalID: id,
		LeadStatus: models.DefaultLeadStatus,
	}
	createErr := gdb.Create(&customer).Error
	if createErr == nil {
		return &customer, true, nil
	}
	if !db.IsUniqueViolation(createErr) {
		return nil, false, fmt.Errorf("directory: create %s: %w", id, createErr)
	}

	// Lost the race: another request inserted this identifier first.
	var winner models.Customer
	if err := gdb.Where("external_id = ?", id).First(&winner).Error; err != nil {
		return nil, false, fmt.Errorf("directory: re-read %s after race: %w", id, err)
	}
	refreshed, rerr := refreshName(gdb, &winner, displayName)
	return refreshed, false, rerr
}

// refreshName applies a last-write-wins display-name update. An empty
// supplied name leaves the stored one untouched.
func refreshName(gdb *gorm.DB, customer *models.Customer, displayName string) (*models.Customer, error) {
	if displayName == "" || displayName == customer.Name {
		return customer, nil
	}
	if err := gdb.Model(customer).Update("name", displayName).Error; err != nil {
		return nil, fmt.Errorf("directory: update name for %s: %w", customer.ExternalID, err)
	}
	customer.Name = displayName
	return customer, nil
}

// GetByID fetches a customer by internal id.
func GetByID(gdb *gorm.DB, customerID uint) (*models.Customer, error) {
	var customer models.Customer
	if err := gdb.First(&customer, customerID).Error; err != nil {
		return nil, fmt.Errorf("directory: get %d: %w", customerID, err)
	}
	return &customer, nil
}

// List returns all customers, most recently created first.
func List(gdb *gorm.DB) ([]models.Customer, error) {
	var customers []models.Customer
	if err := gdb.Order("created_at DESC, id DESC").Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("directory: list: %w", err)
	}
	return customers, nil
}

// UpdateLeadStatus sets the free-form lead tag on a customer.
func UpdateLeadStatus(gdb *gorm.DB, customerID uint, status string) error {
	result := gdb.Model(&models.Customer{}).Where("id = ?", customerID).
		Update("lead_status", status)
	if result.Error != nil {
		return fmt.Errorf("directory: update lead status %d: %w", customerID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("directory: customer not found: %d", customerID)
	}
	return nil
}
