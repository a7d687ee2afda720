// Package testing provides test utilities and database setup for testing the broadcast dispatch system
package testing

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestOperator creates an active operator with password "TestPass123!"
func (tf *TestFixtures) CreateTestOperator(username string) (*models.Operator, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	operator := &models.Operator{
		UUID:         uuid.New(),
		Username:     username,
		PasswordHash: string(hashedPassword),
		IsActive:     utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(operator).Error; err != nil {
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}
	return operator, nil
}

// CreateTestContact creates a subscribed contact with both an email address
// and a KingsChat user id
func (tf *TestFixtures) CreateTestContact(designation, zone, country string) (*models.Contact, error) {
	n := rand.Intn(900000000) + 100000000
	email := fmt.Sprintf("contact.%d@example.com", n)
	kcUserID := fmt.Sprintf("kc-user-%d", n)
	handle := fmt.Sprintf("handle%d", n)

	contact := &models.Contact{
		FullName:        fmt.Sprintf("Test Contact %d", n),
		Email:           &email,
		KCUserID:        &kcUserID,
		KingschatHandle: &handle,
		Designation:     designation,
		Zone:            zone,
		Country:         country,
		Subscribed:      true,
	}
	if err := tf.DB.DB.Create(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return contact, nil
}

// CreateTestEmailDispatch creates a pending email dispatch targeting everyone
func (tf *TestFixtures) CreateTestEmailDispatch() (*models.EmailDispatch, error) {
	dispatch := &models.EmailDispatch{
		Subject: "Test broadcast",
		Message: "Hello {{name}}",
		Filter: models.AudienceFilter{
			Designation: models.FilterAll,
			Zone:        models.FilterAll,
			Country:     models.FilterAll,
		},
		Status: models.DispatchStatusPending,
	}
	if err := tf.DB.DB.Create(dispatch).Error; err != nil {
		return nil, fmt.Errorf("failed to create email dispatch: %w", err)
	}
	return dispatch, nil
}

// CreateTestChatDispatch creates a pending KingsChat dispatch targeting everyone
func (tf *TestFixtures) CreateTestChatDispatch() (*models.ChatDispatch, error) {
	dispatch := &models.ChatDispatch{
		Title:   "Test broadcast",
		Message: "Hello {{name}}",
		Filter: models.AudienceFilter{
			Designation: models.FilterAll,
			Zone:        models.FilterAll,
			Country:     models.FilterAll,
		},
		Status: models.DispatchStatusPending,
	}
	if err := tf.DB.DB.Create(dispatch).Error; err != nil {
		return nil, fmt.Errorf("failed to create kingschat dispatch: %w", err)
	}
	return dispatch, nil
}

// CreateTestEmailRecipient creates a recipient row under an email dispatch
func (tf *TestFixtures) CreateTestEmailRecipient(dispatchID uint, contact *models.Contact, status models.RecipientStatus) (*models.EmailRecipient, error) {
	token, err := utils.RandomToken(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate unsubscribe token: %w", err)
	}

	email := ""
	if contact.Email != nil {
		email = *contact.Email
	}
	recipient := &models.EmailRecipient{
		DispatchID:       dispatchID,
		ContactID:        contact.ID,
		Email:            email,
		Status:           status,
		UnsubscribeToken: token,
	}
	if err := tf.DB.DB.Create(recipient).Error; err != nil {
		return nil, fmt.Errorf("failed to create email recipient: %w", err)
	}
	return recipient, nil
}

// CreateTestChatRecipient creates a recipient row under a KingsChat dispatch
func (tf *TestFixtures) CreateTestChatRecipient(dispatchID uint, contact *models.Contact, status models.RecipientStatus) (*models.ChatRecipient, error) {
	kcUserID := ""
	if contact.KCUserID != nil {
		kcUserID = *contact.KCUserID
	}
	recipient := &models.ChatRecipient{
		DispatchID: dispatchID,
		ContactID:  contact.ID,
		KCUserID:   kcUserID,
		Status:     status,
	}
	if err := tf.DB.DB.Create(recipient).Error; err != nil {
		return nil, fmt.Errorf("failed to create kingschat recipient: %w", err)
	}
	return recipient, nil
}
