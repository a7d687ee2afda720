package dto

import "time"

// AudienceFilterDTO narrows a dispatch to a slice of the contact list. Empty
// or "all" on a dimension matches every contact.
type AudienceFilterDTO struct {
	Designation string `json:"designation,omitempty"`
	Zone        string `json:"zone,omitempty"`
	Country     string `json:"country,omitempty"`
}

// CreateEmailDispatchRequest represents the request to create an email dispatch
type CreateEmailDispatchRequest struct {
	Subject        string            `json:"subject" validate:"required,max=255"`
	Message        string            `json:"message" validate:"required"`
	Filter         AudienceFilterDTO `json:"filter"`
	BannerImage    *string           `json:"banner_image,omitempty" validate:"omitempty,url"`
	AttachmentPath *string           `json:"attachment_path,omitempty"`
	AttachmentName *string           `json:"attachment_name,omitempty" validate:"omitempty,max=255"`
}

// CreateChatDispatchRequest represents the request to create a KingsChat dispatch
type CreateChatDispatchRequest struct {
	Title   string            `json:"title" validate:"required,max=255"`
	Message string            `json:"message" validate:"required"`
	Filter  AudienceFilterDTO `json:"filter"`
}

// CreateDispatchResponse represents the response to a dispatch creation
type CreateDispatchResponse struct {
	ID              uint   `json:"id"`
	Status          string `json:"status"`
	TotalRecipients int64  `json:"total_recipients"`
}

// RecipientCountsDTO aggregates recipient task outcomes for one dispatch
type RecipientCountsDTO struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Delivered int64 `json:"delivered"`
	Opened    int64 `json:"opened"`
	Failed    int64 `json:"failed"`
}

// ErrorEntryDTO is one error log entry of a dispatch
type ErrorEntryDTO struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// DispatchSummaryDTO represents a dispatch row in list responses
type DispatchSummaryDTO struct {
	ID          uint               `json:"id"`
	Title       string             `json:"title"`
	Status      string             `json:"status"`
	Filter      AudienceFilterDTO  `json:"filter"`
	SentAt      *time.Time         `json:"sent_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	Counts      RecipientCountsDTO `json:"counts"`
}

// GetDispatchResponse represents the full detail of one dispatch
type GetDispatchResponse struct {
	ID             uint               `json:"id"`
	Title          string             `json:"title"`
	Message        string             `json:"message"`
	Status         string             `json:"status"`
	Filter         AudienceFilterDTO  `json:"filter"`
	BannerImage    *string            `json:"banner_image,omitempty"`
	AttachmentName *string            `json:"attachment_name,omitempty"`
	SentAt         *time.Time         `json:"sent_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	ErrorLog       []ErrorEntryDTO    `json:"error_log,omitempty"`
	Counts         RecipientCountsDTO `json:"counts"`
}

// ListDispatchesRequest represents paging input for dispatch listings
type ListDispatchesRequest struct {
	Page     int `json:"page" validate:"omitempty,min=1"`
	PageSize int `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListDispatchesResponse represents a page of dispatches
type ListDispatchesResponse struct {
	Items      []DispatchSummaryDTO `json:"items"`
	Pagination PaginationDTO        `json:"pagination"`
}

// RecipientDTO represents one recipient task in detail responses
type RecipientDTO struct {
	ID          uint       `json:"id"`
	Address     string     `json:"address"`
	Status      string     `json:"status"`
	Error       *string    `json:"error,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
	ClickedLink *string    `json:"clicked_link,omitempty"`
}
