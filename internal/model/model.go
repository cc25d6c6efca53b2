// Package model defines the records stored for each tenant: printers, the
// spare-part catalog and the log of spare-part changes.
//
// JSON field names match the column names used by the data store so that the
// same structs decode rows from either gateway and serialize verbatim into a
// backup document.
package model

import (
	"time"
)

// DefaultColor is the printer color used when none (or an invalid one) is given.
const DefaultColor = "#3b82f6"

// Printer is a tracked device with a running page counter.
type Printer struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Counter   int64     `json:"counter"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SparePart is a catalog item that can be replaced in a printer.
type SparePart struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Code         string    `json:"code"`
	Description  string    `json:"description"`
	HighRotation bool      `json:"high_rotation"`
	CreatedAt    time.Time `json:"created_at"`
}

// Change records one spare-part replacement, including the printer's counter
// at that moment. Changes are never updated once created.
type Change struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	PrinterID      string    `json:"printer_id"`
	SparePartID    string    `json:"spare_part_id"`
	ChangeDate     Date      `json:"change_date"`
	PrinterCounter int64     `json:"printer_counter"`
	Quantity       int       `json:"quantity"`
	Detail         *string   `json:"detail"`
	CreatedAt      time.Time `json:"created_at"`
}

// PrinterRef is the subset of a printer embedded in a change listing.
type PrinterRef struct {
	Name string `json:"name"`
}

// SparePartRef is the subset of a spare part embedded in a change listing.
type SparePartRef struct {
	Code         string `json:"code"`
	Description  string `json:"description"`
	HighRotation bool   `json:"high_rotation"`
}

// ChangeDetail is a Change together with its related printer and spare part,
// shaped the way the store returns joined rows. Either reference may be nil
// when the related record is not visible.
type ChangeDetail struct {
	Change
	Printer   *PrinterRef   `json:"printers,omitempty"`
	SparePart *SparePartRef `json:"spare_parts,omitempty"`
}

// IsHighRotation reports whether the related spare part is flagged as high
// rotation. A change without a visible spare part is not.
func (c ChangeDetail) IsHighRotation() bool {
	return c.SparePart != nil && c.SparePart.HighRotation
}

// User is the authenticated owner of a set of records.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}
