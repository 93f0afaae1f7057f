// Package invoice holds the typed view of billbook's records.
//
// The sync path moves record.Object values around; this package converts
// them to structs when something needs to compute with them (totals, PDF
// rendering, exports, reports) and back when a computed record is saved.
// Conversions are lenient: a missing or malformed field becomes its zero
// value, never an error.
package invoice
