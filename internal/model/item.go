package model

// Item is a donated good listed by a donor.
type Item struct {
	ID          int64  `json:"id"`
	Donor       string `json:"donor"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Condition   string `json:"condition"`
	Status      string `json:"status"`
}

// Item statuses. An item never leaves ItemStatusDonated.
const (
	ItemStatusAvailable = "available"
	ItemStatusDonated   = "donated"
)

// Suggested item conditions. Any short text is accepted.
const (
	ConditionNew  = "New"
	ConditionGood = "Good"
	ConditionFair = "Fair"
)

// Field limits shared by the record files and account validation.
const (
	MaxUsernameLen    = 20
	MaxCategoryLen    = 20
	MaxDescriptionLen = 99
	MaxConditionLen   = 20
	MaxStatusLen      = 20
)

// ValidItemStatus reports whether status is a known item status.
func ValidItemStatus(status string) bool {
	return status == ItemStatusAvailable || status == ItemStatusDonated
}
