// Package extract pulls contact details out of free-text label fields and
// decides whether a label is worth persisting.
package extract

import (
	"regexp"

	"labelscraper/pkg/models"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// optional (+CC), digit groups with optional space/hyphen separators, optional extension token.
	// The leading group accepts 1-3 digits so short area codes like "7 555 0199" still match.
	phonePattern = regexp.MustCompile(`(?:\(?\+[0-9]{1,3}\)? ?-?)?[0-9]{1,3} ?-?[0-9]{3,5} ?-?[0-9]{4}(?: ?-?[0-9]{3})?(?: ?\w{1,10}\s?\d{1,6})?`)
)

// Email returns the first email address in text, or nil.
// Later addresses in the same text are ignored.
func Email(text string) *string {
	return firstMatch(emailPattern, text)
}

// Phone returns the first phone number in text, or nil.
// Later numbers in the same text are ignored.
func Phone(text string) *string {
	return firstMatch(phonePattern, text)
}

func firstMatch(re *regexp.Regexp, text string) *string {
	if text == "" {
		return nil
	}
	match := re.FindString(text)
	if match == "" {
		return nil
	}
	return &match
}

// BuildRecord converts a label into the persisted shape. ok is false when the
// label has neither URLs nor an email address; such labels must not be stored.
func BuildRecord(label models.Label) (record models.ExtractedRecord, ok bool) {
	var email, phone *string
	if label.ContactInfo != "" {
		email = Email(label.ContactInfo)
		phone = Phone(label.ContactInfo)
	}

	if len(label.URLs) == 0 && email == nil {
		return models.ExtractedRecord{}, false
	}

	return models.ExtractedRecord{
		ID:      label.ID,
		Name:    nullable(label.Name),
		Email:   email,
		Phone:   phone,
		URLs:    label.URLs,
		Profile: nullable(label.Profile),
	}, true
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
