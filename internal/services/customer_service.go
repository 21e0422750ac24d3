package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"notifyhub/internal/models"

	"gorm.io/gorm"
)

// CustomerService manages the customer directory of a tenant
type CustomerService struct {
	db *gorm.DB
}

// NewCustomerService creates a new customer service
func NewCustomerService(db *gorm.DB) *CustomerService {
	return &CustomerService{db: db}
}

// CustomerView is a customer joined with its cached LINE profile
type CustomerView struct {
	ID              uint      `json:"id"`
	UserID          uint      `json:"user_id"`
	LineUID         string    `json:"line_uid"`
	CustomName      string    `json:"custom_name"`
	Note            string    `json:"note"`
	LineDisplayName string    `json:"line_display_name"`
	LinePictureURL  string    `json:"line_picture_url"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CustomerInput is used for create and update
type CustomerInput struct {
	ID         *uint   `json:"id"`
	LineUID    *string `json:"line_uid"`
	CustomName *string `json:"custom_name"`
	Note       *string `json:"note"`
}

// List returns the customers of userID, optionally filtered by a name or uid substring
func (s *CustomerService) List(ctx context.Context, userID uint, q string) ([]CustomerView, error) {
	query := s.db.WithContext(ctx).
		Table("customers").
		Select(`customers.id, customers.user_id, customers.line_uid, customers.custom_name, customers.note,
			COALESCE(line_users.display_name, '') AS line_display_name,
			COALESCE(line_users.picture_url, '') AS line_picture_url,
			customers.created_at, customers.updated_at`).
		Joins("LEFT JOIN line_users ON line_users.user_id = customers.user_id AND line_users.line_uid = customers.line_uid").
		Where("customers.user_id = ?", userID)

	if q = strings.TrimSpace(q); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		query = query.Where(`(LOWER(customers.custom_name) LIKE ? ESCAPE '\' OR LOWER(customers.line_uid) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	views := []CustomerView{}
	if err := query.Order("customers.id DESC").Scan(&views).Error; err != nil {
		return nil, Wrap(err, "failed to list customers")
	}
	return views, nil
}

// Get returns one customer owned by userID
func (s *CustomerService) Get(ctx context.Context, userID, id uint) (*models.Customer, error) {
	return findCustomer(s.db.WithContext(ctx), userID, id)
}

func findCustomer(db *gorm.DB, userID, id uint) (*models.Customer, error) {
	var customer models.Customer
	err := db.Where("id = ? AND user_id = ?", id, userID).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("customer not found")
		}
		return nil, Wrap(err, "failed to load customer")
	}
	return &customer, nil
}

// Create stores a new customer. Both line_uid and custom_name are required.
func (s *CustomerService) Create(ctx context.Context, userID uint, in CustomerInput) (*models.Customer, error) {
	lineUID := trimmed(in.LineUID)
	name := trimmed(in.CustomName)
	if lineUID == "" || name == "" {
		return nil, ValidationError("line_uid and custom_name are required")
	}

	customer := &models.Customer{
		UserID:     userID,
		LineUID:    lineUID,
		CustomName: name,
		Note:       trimmed(in.Note),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUniqueLineUID(tx, userID, lineUID, 0); err != nil {
			return err
		}
		return tx.Create(customer).Error
	})
	if err != nil {
		return nil, Wrap(err, "failed to create customer")
	}
	return customer, nil
}

// Update changes the fields of a customer owned by userID
func (s *CustomerService) Update(ctx context.Context, userID, id uint, in CustomerInput) (*models.Customer, error) {
	var customer *models.Customer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		customer, err = findCustomer(tx, userID, id)
		if err != nil {
			return err
		}

		if in.LineUID != nil {
			lineUID := trimmed(in.LineUID)
			if lineUID == "" {
				return ValidationError("line_uid must not be empty")
			}
			if lineUID != customer.LineUID {
				if err := ensureUniqueLineUID(tx, userID, lineUID, customer.ID); err != nil {
					return err
				}
			}
			customer.LineUID = lineUID
		}
		if in.CustomName != nil {
			name := trimmed(in.CustomName)
			if name == "" {
				return ValidationError("custom_name must not be empty")
			}
			customer.CustomName = name
		}
		if in.Note != nil {
			customer.Note = trimmed(in.Note)
		}
		return tx.Save(customer).Error
	})
	if err != nil {
		return nil, Wrap(err, "failed to update customer")
	}
	return customer, nil
}

// Delete removes a customer and its message history
func (s *CustomerService) Delete(ctx context.Context, userID, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := findCustomer(tx, userID, id)
		if err != nil {
			return err
		}
		if err := tx.Where("customer_id = ? AND user_id = ?", customer.ID, userID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(customer).Error
	})
	if err != nil {
		return Wrap(err, "failed to delete customer")
	}
	return nil
}

// findOrCreateCustomer returns the customer of (userID, lineUID), creating it
// with defaultName when missing.
func findOrCreateCustomer(tx *gorm.DB, userID uint, lineUID, defaultName string) (*models.Customer, bool, error) {
	var customer models.Customer
	err := tx.Where("user_id = ? AND line_uid = ?", userID, lineUID).First(&customer).Error
	if err == nil {
		return &customer, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	// An empty name lets the LINE display name and the generic greeting apply later
	customer = models.Customer{UserID: userID, LineUID: lineUID, CustomName: defaultName}
	if err := tx.Create(&customer).Error; err != nil {
		return nil, false, err
	}
	return &customer, true, nil
}

func ensureUniqueLineUID(tx *gorm.DB, userID uint, lineUID string, exceptID uint) error {
	var count int64
	err := tx.Model(&models.Customer{}).
		Where("user_id = ? AND line_uid = ? AND id <> ?", userID, lineUID, exceptID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ConflictError("customer with line_uid %s already exists", lineUID)
	}
	return nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
