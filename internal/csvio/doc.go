// Package csvio reads expense CSV files and writes invoice exports.
//
// Import uses a deliberately small parser: one record per line, cells split
// on commas, surrounding quotes stripped, no escaping of embedded commas.
// Exports use encoding/csv; the DATEV variant is semicolon separated with
// decimal commas and encoded as Windows-1252.
package csvio
