package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/roach88/billbook/internal/billing"
	"github.com/roach88/billbook/internal/http/respond"
	"github.com/roach88/billbook/internal/middleware"
	"github.com/roach88/billbook/internal/record"
)

// APIHandler serves the /v1 routes.
type APIHandler struct {
	svc    Billing
	logger *slog.Logger
	now    func() time.Time
}

// NewAPIHandler constructs the handler.
func NewAPIHandler(svc Billing, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{svc: svc, logger: logger, now: time.Now}
}

// Register attaches the API routes. Fixed paths are registered before the
// generic collection routes so they win the match.
func (h *APIHandler) Register(r *mux.Router) {
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/sync", h.handleSync).Methods(http.MethodPost)
	v1.HandleFunc("/outbox", h.handleOutbox).Methods(http.MethodGet)
	v1.HandleFunc("/session", h.handleSignOut).Methods(http.MethodDelete)
	v1.HandleFunc("/export/{format}", h.handleExport).Methods(http.MethodGet)
	v1.HandleFunc("/import/expenses", h.handleImport).Methods(http.MethodPost)
	v1.HandleFunc("/reports/summary", h.handleSummary).Methods(http.MethodGet)
	v1.HandleFunc("/templates/run", h.handleRunTemplates).Methods(http.MethodPost)
	v1.HandleFunc("/expenses/{id}/receipt", h.handleReceipt).Methods(http.MethodPost)
	v1.HandleFunc("/{collection:invoices|quotes}/{id}/pdf", h.handlePDF).Methods(http.MethodGet)

	v1.HandleFunc("/{collection}", h.handleList).Methods(http.MethodGet)
	v1.HandleFunc("/{collection}", h.handleCreate).Methods(http.MethodPost)
	v1.HandleFunc("/{collection}/{id}", h.handleGet).Methods(http.MethodGet)
	v1.HandleFunc("/{collection}/{id}", h.handleUpdate).Methods(http.MethodPut)
	v1.HandleFunc("/{collection}/{id}", h.handleDelete).Methods(http.MethodDelete)
}

func (h *APIHandler) collection(w http.ResponseWriter, r *http.Request) (record.Collection, bool) {
	c, err := billing.ParseCollection(mux.Vars(r)["collection"])
	if err != nil {
		writeError(w, h.logger, err)
		return "", false
	}
	return c, true
}

func (h *APIHandler) handleList(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	rows, err := h.svc.List(r.Context(), middleware.UserID(r.Context()), c)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", rows)
}

func (h *APIHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Get(r.Context(), middleware.UserID(r.Context()), c, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", rec)
}

func (h *APIHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	body, ok := decodeObject(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Create(r.Context(), middleware.UserID(r.Context()), c, body)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, writeStatus(res.Queued, http.StatusCreated), writeMessage(res.Queued, "created"), res)
}

func (h *APIHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	body, ok := decodeObject(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Update(r.Context(), middleware.UserID(r.Context()), c, mux.Vars(r)["id"], body)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, writeStatus(res.Queued, http.StatusOK), writeMessage(res.Queued, "updated"), res)
}

func (h *APIHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Delete(r.Context(), middleware.UserID(r.Context()), c, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, writeStatus(res.Queued, http.StatusOK), writeMessage(res.Queued, "deleted"), res)
}

// Queued writes are accepted locally but not yet on the server.
func writeStatus(queued bool, ok int) int {
	if queued {
		return http.StatusAccepted
	}
	return ok
}

func writeMessage(queued bool, done string) string {
	if queued {
		return "saved offline"
	}
	return done
}

type syncResponse struct {
	Fetched  map[record.Collection]int    `json:"fetched"`
	Failed   map[record.Collection]string `json:"failed,omitempty"`
	Replayed int                          `json:"replayed"`
	Dropped  int                          `json:"dropped"`
	Pending  int                          `json:"pending"`
	Online   bool                         `json:"online"`
}

func (h *APIHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Sync(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out := syncResponse{
		Fetched:  rep.Fetched,
		Replayed: rep.Replayed,
		Dropped:  rep.Dropped,
		Pending:  rep.Pending,
		Online:   rep.Online(),
	}
	if len(rep.Failed) > 0 {
		out.Failed = make(map[record.Collection]string, len(rep.Failed))
		for c, err := range rep.Failed {
			out.Failed[c] = err.Error()
		}
	}
	respond.JSON(w, http.StatusOK, "synced", out)
}

func (h *APIHandler) handleOutbox(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.Outbox(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if pending == nil {
		pending = []record.Mutation{}
	}
	respond.JSON(w, http.StatusOK, "ok", pending)
}

func (h *APIHandler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SignOut(r.Context(), middleware.UserID(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "signed out", nil)
}

func (h *APIHandler) handleRunTemplates(w http.ResponseWriter, r *http.Request) {
	created, err := h.svc.RunRecurring(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", created)
}
