package receivers

import "time"

// Receiver is a consignee who may take delivery on behalf of a customer.
// UniqueID is the digits-only national or personal code used as the lookup
// key during delivery-order uploads.
type Receiver struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	UniqueID   string    `json:"unique_id"`
	Mobile     *string   `json:"mobile,omitempty"`
	Address    *string   `json:"address,omitempty"`
	PostalCode *string   `json:"postal_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
