// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/kingsmedia/herald/app/dto"
	"github.com/kingsmedia/herald/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToOperatorDTO converts an operator model for API responses
func ToOperatorDTO(operator models.Operator) dto.OperatorDTO {
	out := dto.OperatorDTO{
		ID:       operator.ID,
		UUID:     operator.UUID.String(),
		Username: operator.Username,
	}
	if operator.LastLoginAt != nil {
		formatted := operator.LastLoginAt.Format(time.RFC3339)
		out.LastLoginAt = &formatted
	}
	return out
}

// ToFilterDTO converts a stored audience filter for API responses
func ToFilterDTO(filter models.AudienceFilter) dto.AudienceFilterDTO {
	return dto.AudienceFilterDTO{
		Designation: filter.Designation,
		Zone:        filter.Zone,
		Country:     filter.Country,
	}
}

// ToModelFilter normalizes an incoming filter: empty dimensions match all
func ToModelFilter(filter dto.AudienceFilterDTO) models.AudienceFilter {
	normalize := func(v string) string {
		if v == "" {
			return models.FilterAll
		}
		return v
	}
	return models.AudienceFilter{
		Designation: normalize(filter.Designation),
		Zone:        normalize(filter.Zone),
		Country:     normalize(filter.Country),
	}
}

// ToErrorLogDTO converts a dispatch error log for API responses
func ToErrorLogDTO(log models.ErrorLog) []dto.ErrorEntryDTO {
	if len(log) == 0 {
		return nil
	}
	out := make([]dto.ErrorEntryDTO, 0, len(log))
	for _, e := range log {
		out = append(out, dto.ErrorEntryDTO{Timestamp: e.Timestamp, Message: e.Message})
	}
	return out
}

// ToContactDTO converts a contact model for API responses
func ToContactDTO(contact models.Contact) dto.ContactDTO {
	return dto.ContactDTO{
		ID:              contact.ID,
		FullName:        contact.FullName,
		Email:           contact.Email,
		KCUserID:        contact.KCUserID,
		KingschatHandle: contact.KingschatHandle,
		Designation:     contact.Designation,
		Zone:            contact.Zone,
		Country:         contact.Country,
		Subscribed:      contact.Subscribed,
	}
}

// normalizePaging applies the defaults used across list endpoints
func normalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
