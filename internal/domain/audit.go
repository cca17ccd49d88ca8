package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Editable field names as they appear in audit records.
const (
	FieldContractType = "contract_type"
	FieldTenantName   = "tenant_name"
	FieldOccupants    = "occupants"
	FieldPropertyID   = "property_id"
	FieldUnitLabel    = "unit_label"
	FieldRentValue    = "rent_value"
)

// FieldChange captures one field-level before/after pair.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// EditEntry is an immutable audit trail entry on a ticket's edit log.
type EditEntry struct {
	At      time.Time     `json:"at"`
	Actor   string        `json:"actor"`
	Changes []FieldChange `json:"changes"`
}

// TicketEdit carries requested changes to the editable field set. Nil fields
// are left untouched.
type TicketEdit struct {
	ContractType *string
	TenantName   *string
	Occupants    *string
	PropertyID   *string
	UnitLabel    *string
	RentValue    *decimal.Decimal
}

// Empty reports whether the edit requests no changes at all.
func (e TicketEdit) Empty() bool {
	return e.ContractType == nil && e.TenantName == nil && e.Occupants == nil &&
		e.PropertyID == nil && e.UnitLabel == nil && e.RentValue == nil
}

// Apply writes the requested values onto the ticket.
func (e TicketEdit) Apply(t *Ticket) {
	if e.ContractType != nil {
		t.ContractType = *e.ContractType
	}
	if e.TenantName != nil {
		t.TenantName = *e.TenantName
	}
	if e.Occupants != nil {
		t.Occupants = *e.Occupants
	}
	if e.PropertyID != nil {
		t.PropertyID = *e.PropertyID
	}
	if e.UnitLabel != nil {
		t.UnitLabel = *e.UnitLabel
	}
	if e.RentValue != nil {
		t.RentValue = *e.RentValue
	}
}

// Diff compares the editable fields of two ticket snapshots and returns one
// FieldChange per field whose value actually differs. Identical snapshots
// yield an empty diff.
func Diff(before, after *Ticket) []FieldChange {
	var changes []FieldChange
	appendChange := func(field, b, a string) {
		if b != a {
			changes = append(changes, FieldChange{Field: field, Before: b, After: a})
		}
	}
	appendChange(FieldContractType, before.ContractType, after.ContractType)
	appendChange(FieldTenantName, before.TenantName, after.TenantName)
	appendChange(FieldOccupants, before.Occupants, after.Occupants)
	appendChange(FieldPropertyID, before.PropertyID, after.PropertyID)
	appendChange(FieldUnitLabel, before.UnitLabel, after.UnitLabel)
	if !before.RentValue.Equal(after.RentValue) {
		changes = append(changes, FieldChange{
			Field:  FieldRentValue,
			Before: before.RentValue.String(),
			After:  after.RentValue.String(),
		})
	}
	return changes
}
