package dto

// ListContactsRequest represents the contact listing query
type ListContactsRequest struct {
	Designation *string `json:"designation,omitempty"`
	Zone        *string `json:"zone,omitempty"`
	Country     *string `json:"country,omitempty"`
	Page        int     `json:"page" validate:"omitempty,min=1"`
	PageSize    int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ContactDTO represents a contact in API responses
type ContactDTO struct {
	ID              uint    `json:"id"`
	FullName        string  `json:"full_name"`
	Email           *string `json:"email,omitempty"`
	KCUserID        *string `json:"kc_user_id,omitempty"`
	KingschatHandle *string `json:"kingschat_handle,omitempty"`
	Designation     string  `json:"designation"`
	Zone            string  `json:"zone"`
	Country         string  `json:"country"`
	Subscribed      bool    `json:"subscribed"`
}

// ListContactsResponse represents a page of contacts
type ListContactsResponse struct {
	Items      []ContactDTO  `json:"items"`
	Pagination PaginationDTO `json:"pagination"`
}

// ContactFilterOptionsResponse lists the distinct values an operator can
// target a dispatch by
type ContactFilterOptionsResponse struct {
	Designations []string `json:"designations"`
	Zones        []string `json:"zones"`
	Countries    []string `json:"countries"`
}

// UnsubscribeResponse acknowledges an unsubscribe link visit
type UnsubscribeResponse struct {
	Email string `json:"email"`
}
