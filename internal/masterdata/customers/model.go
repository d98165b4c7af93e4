package customers

import "time"

// TagMarketplace marks customers provisioned by marketplace purchase uploads.
const TagMarketplace = "marketplace"

// Customer is a buying party. Natural persons carry a 10-digit personal
// code, legal entities an 11-digit national ID; either may be absent for
// manually entered records.
type Customer struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	PersonalCode  *string   `json:"personal_code,omitempty"`
	NationalID    *string   `json:"national_id,omitempty"`
	EconomicCode  *string   `json:"economic_code,omitempty"`
	Mobile        *string   `json:"mobile,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	Address       *string   `json:"address,omitempty"`
	PostalCode    *string   `json:"postal_code,omitempty"`
	AccountNumber *string   `json:"account_number,omitempty"`
	Tags          []string  `json:"tags"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasTag reports whether the customer already carries tag.
func (c *Customer) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
