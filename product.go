package vulnmirror

import "github.com/google/uuid"

// Vendor is a producer of one or more Products.
//
// Vendor rows are created on demand when a CPE name references them and are
// never deleted, only merged with newly observed metadata.
type Vendor struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Official bool      `json:"official"`
	// Description is free-form; typically the vendor homepage blurb.
	Description string         `json:"description,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Product is one vendor product referenced by CPE names.
//
// (VendorID, Name) is unique.
type Product struct {
	ID       uuid.UUID `json:"id"`
	VendorID uuid.UUID `json:"vendor_id"`
	Name     string    `json:"name"`
	// Part is the CPE part: "a" (application), "o" (OS) or "h" (hardware).
	Part        string         `json:"part"`
	Official    bool           `json:"official"`
	Description string         `json:"description,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}
