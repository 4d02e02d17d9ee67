// Package product describes the purchased product that gets sent for validation.
//
// The dispatcher treats a Product as mostly opaque. It only ever reads the ID (to
// coalesce requests) and AdditionalData (to fill in the application username). The
// Transaction record and any extra top-level fields are store-specific and are passed
// through to the validation service untouched.
package product

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// ApplicationUsernameKey is the AdditionalData key carrying the
// (hashed) username of the application user that made the purchase.
const ApplicationUsernameKey = "applicationUsername"

var ErrNilProduct = errors.New("product is nil")

// Product is a purchased product, as sent to the validation endpoint.
type Product struct {
	// ID identifies the product. Requests are coalesced on it.
	ID string

	// AdditionalData is free-form data attached by the application.
	AdditionalData map[string]any

	// Transaction is the store-dependent transaction record (receipt,
	// purchase token, signature...). It is never interpreted here.
	Transaction map[string]any

	// Extra holds every other top-level field of the product (price, title,
	// type...). They are flattened into the JSON object on the wire.
	Extra map[string]any
}

// New returns a product with the given id and no other data.
func New(id string) *Product {
	return &Product{ID: id}
}

// ApplicationUsername returns the username stored in AdditionalData, if any.
// Only non-empty strings count as set.
func (p *Product) ApplicationUsername() (string, bool) {
	if p == nil || p.AdditionalData == nil {
		return "", false
	}

	val, ok := p.AdditionalData[ApplicationUsernameKey].(string)
	if !ok || val == "" {
		return "", false
	}

	return val, true
}

// Clone returns a copy of the product. The top-level maps are copied,
// nested values are shared.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}

	return &Product{
		ID:             p.ID,
		AdditionalData: maps.Clone(p.AdditionalData),
		Transaction:    maps.Clone(p.Transaction),
		Extra:          maps.Clone(p.Extra),
	}
}

// MarshalJSON flattens Extra into the top-level object next to
// id, additionalData and transaction.
func (p *Product) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+3)

	for key, val := range p.Extra {
		out[key] = val
	}

	out["id"] = p.ID

	if p.AdditionalData != nil {
		out["additionalData"] = p.AdditionalData
	}

	if p.Transaction != nil {
		out["transaction"] = p.Transaction
	}

	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON. Unknown keys land in Extra.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Product{}

	for key, val := range raw {
		var err error

		switch key {
		case "id":
			err = json.Unmarshal(val, &p.ID)
		case "additionalData":
			err = json.Unmarshal(val, &p.AdditionalData)
		case "transaction":
			err = json.Unmarshal(val, &p.Transaction)
		default:
			var anything any

			err = json.Unmarshal(val, &anything)
			if err == nil {
				if p.Extra == nil {
					p.Extra = make(map[string]any)
				}

				p.Extra[key] = anything
			}
		}

		if err != nil {
			return fmt.Errorf("product field %q: %w", key, err)
		}
	}

	return nil
}

// Validate checks the minimum the dispatcher needs. An empty id is a
// valid coalescing key.
func (p *Product) Validate() error {
	if p == nil {
		return ErrNilProduct
	}

	return nil
}
