package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/utils"
)

func TestExpandTemplate(t *testing.T) {
	contact := &models.Contact{
		FullName:        "Ada Okafor",
		Email:           utils.ToPtr("ada@example.com"),
		KingschatHandle: utils.ToPtr("adaokafor"),
		Designation:     "Pastor",
		Zone:            "Zone B",
		Country:         "Nigeria",
	}

	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{
			name:     "no placeholders",
			message:  "Service holds on Sunday.",
			expected: "Service holds on Sunday.",
		},
		{
			name:     "name placeholder",
			message:  "Dear {{name}}, welcome!",
			expected: "Dear Ada Okafor, welcome!",
		},
		{
			name:     "first name",
			message:  "Hi {{first_name}}",
			expected: "Hi Ada",
		},
		{
			name:     "multiple fields",
			message:  "{{full_name}} ({{designation}}, {{zone}}, {{country}})",
			expected: "Ada Okafor (Pastor, Zone B, Nigeria)",
		},
		{
			name:     "whitespace inside braces",
			message:  "Hello {{ name }}",
			expected: "Hello Ada Okafor",
		},
		{
			name:     "unknown placeholder left verbatim",
			message:  "Your code is {{secret_code}}",
			expected: "Your code is {{secret_code}}",
		},
		{
			name:     "model internals are not reachable",
			message:  "{{id}} {{created_at}} {{subscribed}}",
			expected: "{{id}} {{created_at}} {{subscribed}}",
		},
		{
			name:     "email and handle",
			message:  "{{email}} / {{kingschat_handle}}",
			expected: "ada@example.com / adaokafor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandTemplate(tt.message, contact))
		})
	}
}

func TestExpandTemplate_NilOptionalFields(t *testing.T) {
	contact := &models.Contact{FullName: "Ben Carter"}
	assert.Equal(t, "Ben Carter <>", ExpandTemplate("{{name}} <{{email}}>", contact))
}

func TestExpandTemplate_NilContact(t *testing.T) {
	assert.Equal(t, "Hello {{name}}", ExpandTemplate("Hello {{name}}", nil))
}
