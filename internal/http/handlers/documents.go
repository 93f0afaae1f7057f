package handlers

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/roach88/billbook/internal/billing"
	"github.com/roach88/billbook/internal/http/respond"
	"github.com/roach88/billbook/internal/invoice"
	"github.com/roach88/billbook/internal/middleware"
	"github.com/roach88/billbook/internal/record"
	"github.com/roach88/billbook/internal/report"
)

const maxUpload = 10 << 20

func (h *APIHandler) handlePDF(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	c := record.Collection(vars["collection"])

	var buf bytes.Buffer
	if err := h.svc.RenderPDF(r.Context(), middleware.UserID(r.Context()), c, vars["id"], &buf); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", vars["id"]+".pdf"))
	_, _ = w.Write(buf.Bytes())
}

func (h *APIHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := billing.Format(mux.Vars(r)["format"])
	p, err := h.period(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), middleware.UserID(r.Context()), format, p, &buf); err != nil {
		writeError(w, h.logger, err)
		return
	}
	contentType, name := "text/csv; charset=utf-8", "rechnungen.csv"
	if format == billing.FormatDATEV {
		contentType, name = "text/csv; charset=windows-1252", "EXTF_Buchungsstapel.csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(buf.Bytes())
}

func (h *APIHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	body, _, err := uploadBody(w, r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	defer body.Close()

	res, err := h.svc.ImportExpenses(r.Context(), middleware.UserID(r.Context()), body)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "imported", res)
}

func (h *APIHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, err := h.period(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	sum, err := h.svc.Summary(r.Context(), middleware.UserID(r.Context()), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", sum)
}

func (h *APIHandler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	body, contentType, err := uploadBody(w, r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	defer body.Close()

	url, err := h.svc.UploadReceipt(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["id"], contentType, body)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "uploaded", map[string]string{"receiptUrl": url})
}

// period reads ?year=&month= or ?from=&to= (YYYY-MM-DD, to exclusive).
// Without parameters it is the current year.
func (h *APIHandler) period(r *http.Request) (report.Period, error) {
	q := r.URL.Query()
	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		var p report.Period
		var err error
		if from != "" {
			if p.From, err = time.Parse(invoice.DateLayout, from); err != nil {
				return p, fmt.Errorf("invalid from date %q", from)
			}
		}
		if to != "" {
			if p.To, err = time.Parse(invoice.DateLayout, to); err != nil {
				return p, fmt.Errorf("invalid to date %q", to)
			}
		}
		return p, nil
	}

	year := h.now().Year()
	if s := q.Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y < 1900 || y > 9999 {
			return report.Period{}, fmt.Errorf("invalid year %q", s)
		}
		year = y
	}
	if s := q.Get("month"); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil || m < 1 || m > 12 {
			return report.Period{}, fmt.Errorf("invalid month %q", s)
		}
		return report.Month(year, time.Month(m)), nil
	}
	return report.Year(year), nil
}

// uploadBody returns the "file" part of a multipart form or the raw body.
func uploadBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, mediaType, nil
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("missing file: %w", err)
	}
	ct, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type"))
	return file, ct, nil
}
