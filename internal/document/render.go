package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/roach88/billbook/internal/industry"
	"github.com/roach88/billbook/internal/invoice"
)

// Page geometry in millimetres.
const (
	pageWidth    = 210.0
	marginLeft   = 20.0
	marginRight  = 20.0
	contentWidth = pageWidth - marginLeft - marginRight
	rowHeight    = 7.0
	footerTop    = 250.0
	qrSize       = 30.0

	firstTableTop        = 105.0
	continuationTableTop = 45.0
)

var defaultAccent = [3]int{33, 37, 41}

// item table columns: position, description, quantity, unit price, amount.
var columns = [5]float64{12, 88, 20, 25, 25}

// Renderer writes documents as PDF.
type Renderer struct {
	fetcher    ImageFetcher
	qr         QREndpoints
	industries *industry.Registry
	logger     *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithQREndpoints overrides the QR image services.
func WithQREndpoints(e QREndpoints) Option {
	return func(r *Renderer) { r.qr = e }
}

// WithIndustries prints industry fields using reg.
func WithIndustries(reg *industry.Registry) Option {
	return func(r *Renderer) { r.industries = reg }
}

// WithLogger sets the logger for QR and logo fetch failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// NewRenderer returns a renderer that loads images through f.
func NewRenderer(f ImageFetcher, opts ...Option) *Renderer {
	r := &Renderer{
		fetcher: f,
		qr:      DefaultQREndpoints(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// sheet is the state of one render.
type sheet struct {
	pdf    *gofpdf.Fpdf
	tr     func(string) string
	doc    invoice.Document
	sender invoice.Profile
	accent [3]int

	qr      []byte
	qrType  string
	epcText string
	logo    []byte
	logoTyp string
	extras  []industry.Entry
}

// Render writes d as a multi-page A4 PDF to w. The sender block uses the
// company snapshot stored on d, falling back to the live profile.
func (r *Renderer) Render(ctx context.Context, d invoice.Document, profile invoice.Profile, w io.Writer) error {
	sender := invoice.SenderFor(d, profile)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginLeft, 20, marginRight)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(title(d), true)
	pdf.SetCreator("billbook", true)

	s := &sheet{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		doc:    d,
		sender: sender,
		accent: defaultAccent,
	}
	if cr, cg, cb, ok := parseHexColor(profile.AccentColor); ok {
		s.accent = [3]int{cr, cg, cb}
	}
	if r.industries != nil {
		s.extras = r.industries.Describe(profile.Industry, d.IndustryData)
	}

	if giroCodeFor(d, sender) {
		s.epcText = EPCPayload(BeneficiaryFor(d, sender))
		if r.fetcher != nil {
			img, err := fetchQR(ctx, r.fetcher, r.qr, s.epcText)
			if err != nil {
				r.logger.Warn("qr image unavailable, printing payload", "document", d.ID, "error", err)
			} else {
				s.qr = img
				s.qrType, _ = imageType(img)
			}
		}
	}
	if profile.LogoURL != "" && r.fetcher != nil {
		img, err := r.fetcher.Fetch(ctx, profile.LogoURL)
		typ, ok := imageType(img)
		switch {
		case err != nil:
			r.logger.Warn("logo unavailable", "url", profile.LogoURL, "error", err)
		case !ok:
			r.logger.Warn("logo is not a PNG or JPEG", "url", profile.LogoURL)
		default:
			s.logo, s.logoTyp = img, typ
		}
	}

	for _, page := range Paginate(d.Items) {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.render(page)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render %s: %w", d.ID, err)
	}
	return nil
}

func title(d invoice.Document) string {
	name := "Rechnung"
	if d.Kind == invoice.KindQuote {
		name = "Angebot"
	}
	if d.Number != "" {
		name += " " + d.Number
	}
	return name
}

func (s *sheet) render(p Page) {
	s.pdf.AddPage()
	s.header()

	top := continuationTableTop
	if p.IsFirst() {
		s.addressBlock()
		top = firstTableTop
	} else {
		s.pdf.SetXY(marginLeft, 32)
		s.font("B", 12)
		s.cell(contentWidth, 8, title(s.doc)+" (Fortsetzung)", "L")
	}

	y := s.table(p, top)
	if p.IsLast() {
		y = s.totals(y + 4)
		y = s.extrasBlock(y + 4)
		y = s.notes(y + 2)
		s.signature(max(y+8, footerTop-28))
	}
	s.footer(p)
}

func (s *sheet) font(style string, size float64) {
	s.pdf.SetFont("Helvetica", style, size)
}

func (s *sheet) cell(w, h float64, text, align string) {
	s.pdf.CellFormat(w, h, s.tr(text), "", 0, align, false, 0, "")
}

func (s *sheet) header() {
	pdf := s.pdf
	if s.logo != nil {
		name := "logo"
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: s.logoTyp}, bytes.NewReader(s.logo))
		pdf.ImageOptions(name, pageWidth-marginRight-35, 12, 35, 0, false, gofpdf.ImageOptions{ImageType: s.logoTyp}, 0, "")
	}

	pdf.SetTextColor(s.accent[0], s.accent[1], s.accent[2])
	pdf.SetXY(marginLeft, 15)
	s.font("B", 16)
	s.cell(120, 8, s.sender.CompanyName, "L")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetDrawColor(s.accent[0], s.accent[1], s.accent[2])
	pdf.Line(marginLeft, 26, pageWidth-marginRight, 26)
	pdf.SetDrawColor(0, 0, 0)
}

func (s *sheet) addressBlock() {
	pdf := s.pdf
	pdf.SetXY(marginLeft, 42)
	s.font("", 7)
	s.cell(100, 4, senderLine(s.sender), "L")

	rc := s.doc.Recipient
	lines := []string{rc.Name}
	lines = append(lines, addressLines(rc)...)

	s.font("", 10)
	y := 48.0
	for _, l := range lines {
		if l == "" {
			continue
		}
		pdf.SetXY(marginLeft, y)
		s.cell(100, 5, l, "L")
		y += 5
	}

	meta := [][2]string{}
	if s.doc.Kind == invoice.KindQuote {
		meta = append(meta,
			[2]string{"Angebotsnummer", s.doc.Number},
			[2]string{"Datum", FormatDate(s.doc.IssueDate)},
			[2]string{"Gültig bis", FormatDate(s.doc.DueDate)},
		)
	} else {
		meta = append(meta,
			[2]string{"Rechnungsnummer", s.doc.Number},
			[2]string{"Rechnungsdatum", FormatDate(s.doc.IssueDate)},
			[2]string{"Fällig am", FormatDate(s.doc.DueDate)},
		)
	}
	if s.sender.TaxID != "" {
		meta = append(meta, [2]string{"Steuernummer", s.sender.TaxID})
	}

	s.font("", 9)
	y = 48
	for _, m := range meta {
		if m[1] == "" {
			continue
		}
		pdf.SetXY(125, y)
		s.cell(32, 5, m[0], "L")
		s.cell(33, 5, m[1], "R")
		y += 5
	}

	pdf.SetXY(marginLeft, 88)
	s.font("B", 14)
	s.cell(contentWidth, 8, title(s.doc), "L")
}

func senderLine(p invoice.Profile) string {
	parts := []string{p.CompanyName}
	street := p.Address
	if street == "" {
		street = strings.TrimSpace(p.Street + " " + p.HouseNumber)
	}
	parts = append(parts, street, strings.TrimSpace(p.Zip+" "+p.City))
	var out []string
	for _, v := range parts {
		if v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, " · ")
}

// addressLines prefers the combined address and falls back to the split
// street parts.
func addressLines(rc invoice.Recipient) []string {
	street := rc.Address
	if street == "" {
		street = strings.TrimSpace(rc.Street + " " + rc.HouseNumber)
	}
	return []string{street, strings.TrimSpace(rc.Zip + " " + rc.City)}
}

func (s *sheet) table(p Page, top float64) float64 {
	pdf := s.pdf
	headers := [5]string{"Pos.", "Beschreibung", "Menge", "Einzelpreis", "Betrag"}
	aligns := [5]string{"L", "L", "R", "R", "R"}

	pdf.SetXY(marginLeft, top)
	pdf.SetFillColor(s.accent[0], s.accent[1], s.accent[2])
	pdf.SetTextColor(255, 255, 255)
	s.font("B", 9)
	for i, h := range headers {
		pdf.CellFormat(columns[i], rowHeight, s.tr(h), "", 0, aligns[i], true, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)

	s.font("", 9)
	y := top + rowHeight
	for i, item := range p.Items {
		pdf.SetXY(marginLeft, y)
		values := [5]string{
			strconv.Itoa(p.Offset + i + 1),
			s.fit(item.Description, columns[1]-2),
			FormatQuantity(item.Quantity),
			FormatMoney(item.UnitPrice, s.doc.Currency),
			FormatMoney(item.Amount(), s.doc.Currency),
		}
		for c, v := range values {
			s.pdf.CellFormat(columns[c], rowHeight, s.tr(v), "B", 0, aligns[c], false, 0, "")
		}
		y += rowHeight
	}
	return y
}

// fit shortens text until it fits width.
func (s *sheet) fit(text string, width float64) string {
	if s.pdf.GetStringWidth(s.tr(text)) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && s.pdf.GetStringWidth(s.tr(string(runes)+"...")) > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func (s *sheet) totals(y float64) float64 {
	d := s.doc
	rows := [][2]string{
		{"Zwischensumme", FormatMoney(d.Subtotal, d.Currency)},
		{"USt. " + FormatQuantity(d.TaxRate) + " %", FormatMoney(d.Tax, d.Currency)},
	}
	s.font("", 9)
	for _, r := range rows {
		s.pdf.SetXY(pageWidth-marginRight-70, y)
		s.cell(45, 6, r[0], "L")
		s.cell(25, 6, r[1], "R")
		y += 6
	}
	s.font("B", 10)
	s.pdf.SetXY(pageWidth-marginRight-70, y)
	s.cell(45, 7, "Gesamtbetrag", "L")
	s.cell(25, 7, FormatMoney(d.Total, d.Currency), "R")
	return y + 7
}

func (s *sheet) extrasBlock(y float64) float64 {
	if len(s.extras) == 0 {
		return y
	}
	s.font("", 9)
	for _, e := range s.extras {
		s.pdf.SetXY(marginLeft, y)
		s.font("B", 9)
		s.cell(45, 5, e.Label+":", "L")
		s.font("", 9)
		s.cell(contentWidth-45, 5, s.fit(e.Value, contentWidth-47), "L")
		y += 5
	}
	return y
}

func (s *sheet) notes(y float64) float64 {
	if strings.TrimSpace(s.doc.Notes) == "" {
		return y
	}
	s.font("", 9)
	s.pdf.SetXY(marginLeft, y)
	s.pdf.MultiCell(contentWidth, 4.5, s.tr(s.doc.Notes), "", "L", false)
	return s.pdf.GetY()
}

func (s *sheet) signature(y float64) {
	y = min(y, footerTop-14)
	s.pdf.Line(marginLeft, y+8, marginLeft+65, y+8)
	s.pdf.Line(pageWidth-marginRight-65, y+8, pageWidth-marginRight, y+8)
	s.font("", 7)
	s.pdf.SetXY(marginLeft, y+9)
	s.cell(65, 4, "Ort, Datum", "L")
	s.pdf.SetXY(pageWidth-marginRight-65, y+9)
	label := "Unterschrift"
	if s.doc.Kind == invoice.KindQuote {
		label = "Auftrag erteilt (Unterschrift)"
	}
	s.cell(65, 4, label, "L")
}

func (s *sheet) footer(p Page) {
	pdf := s.pdf
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(marginLeft, footerTop, pageWidth-marginRight, footerTop)
	pdf.SetDrawColor(0, 0, 0)

	sd := s.sender
	lines := []string{
		"Kontoinhaber: " + sd.AccountHolder,
		"IBAN: " + sd.IBAN,
		"BIC: " + sd.BIC,
		"Bank: " + sd.BankName,
	}
	if sd.Email != "" || sd.Phone != "" {
		lines = append(lines, strings.TrimSpace(sd.Email+"  "+sd.Phone))
	}

	s.font("", 7.5)
	y := footerTop + 3
	for _, l := range lines {
		pdf.SetXY(marginLeft, y)
		s.cell(100, 4, l, "L")
		y += 4
	}

	switch {
	case s.qr != nil:
		name := "qr"
		opt := gofpdf.ImageOptions{ImageType: s.qrType}
		pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(s.qr))
		pdf.ImageOptions(name, pageWidth-marginRight-qrSize, footerTop+3, qrSize, qrSize, false, opt, 0, "")
	case s.epcText != "":
		s.font("", 6)
		pdf.SetXY(pageWidth-marginRight-55, footerTop+3)
		pdf.MultiCell(55, 2.8, s.tr(s.epcText), "", "L", false)
	}

	s.font("", 7)
	pdf.SetXY(marginLeft, 287)
	s.cell(contentWidth, 4, fmt.Sprintf("Seite %d von %d", p.Number, p.Total), "C")
}
