// Package document lays out and renders invoice and quote PDFs.
//
// Items are split into A4 pages: the first page leaves room for the
// address block and holds FirstPageItems rows, continuation pages hold
// ContinuationPageItems. Totals and the signature block go on the last
// page only; the payment footer with the GiroCode QR image goes on every
// page of an invoice.
//
// QR images are fetched by URL from a primary and a fallback endpoint. When
// neither answers, the footer prints the EPC payload as text so rendering
// never fails because of the QR service.
package document
