// Package outreach handles the public-facing forms: MUN registration
// forwarded to the spreadsheet webhook, and the contact form delivered to
// the society inbox. Both run through the task queue so a slow or down
// third party never blocks the request.
package outreach

// Registration is a conference sign-up submitted from the landing page.
type Registration struct {
	FullName    string `json:"full_name" validate:"required"`
	CoDelegate  string `json:"co_delegate"`
	Committee1  string `json:"committee1" validate:"required"`
	Committee2  string `json:"committee2"`
	Committee3  string `json:"committee3"`
	Email       string `json:"email" validate:"required,email"`
	Hostel      string `json:"hostel"`
	PhoneNumber string `json:"phone_number" validate:"required"`
}

// sheetFields maps a registration onto the spreadsheet's column headers.
// The header spellings (including the trailing space in "Full Name ") are
// what the receiving sheet expects; do not tidy them.
func (r Registration) sheetFields() map[string]string {
	return map[string]string{
		"Full Name ":                       r.FullName,
		"Co-Del(if any)":                   r.CoDelegate,
		"Committee1/Portfolio1/Portfolio2": r.Committee1,
		"Committee2/Portfolio1/Portfolio2": r.Committee2,
		"Committee3/Portfolio1/Portfolio2": r.Committee3,
		"KIIT Email ID":                    r.Email,
		"Hostel":                           r.Hostel,
		"Phone Number":                     r.PhoneNumber,
	}
}

// ContactMessage is a contact form submission.
type ContactMessage struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject"`
	Message string `json:"message" validate:"required"`
}
