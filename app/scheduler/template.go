// Package scheduler
package scheduler

import (
	"regexp"
	"strings"

	"github.com/kingsmedia/herald/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_]+)\s*\}\}`)

// contactFields is the allow-list of placeholders a message template may
// reference. Anything outside this map is left in the text verbatim.
var contactFields = map[string]func(*models.Contact) string{
	"name":      func(c *models.Contact) string { return c.FullName },
	"full_name": func(c *models.Contact) string { return c.FullName },
	"first_name": func(c *models.Contact) string {
		parts := strings.Fields(c.FullName)
		if len(parts) == 0 {
			return ""
		}
		return parts[0]
	},
	"email": func(c *models.Contact) string {
		if c.Email == nil {
			return ""
		}
		return *c.Email
	},
	"designation": func(c *models.Contact) string { return c.Designation },
	"zone":        func(c *models.Contact) string { return c.Zone },
	"country":     func(c *models.Contact) string { return c.Country },
	"kingschat_handle": func(c *models.Contact) string {
		if c.KingschatHandle == nil {
			return ""
		}
		return *c.KingschatHandle
	},
}

// ExpandTemplate replaces {{field}} placeholders in the message with values
// from the contact. Unknown placeholders stay untouched.
func ExpandTemplate(message string, contact *models.Contact) string {
	if contact == nil || !strings.Contains(message, "{{") {
		return message
	}
	return placeholderPattern.ReplaceAllStringFunc(message, func(match string) string {
		field := placeholderPattern.FindStringSubmatch(match)[1]
		accessor, ok := contactFields[field]
		if !ok {
			return match
		}
		return accessor(contact)
	})
}
