// Package api exposes the assistant over HTTP and MCP. The HTTP surface
// mirrors the web frontend contract: a public chat endpoint, employee
// self-service routes, and bearer-protected admin routes for documents
// and tickets.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-elhaj/hr-bot/internal/docindex"
	"github.com/mohammed-elhaj/hr-bot/internal/history"
	"github.com/mohammed-elhaj/hr-bot/internal/ticket"
	"github.com/mohammed-elhaj/hr-bot/internal/vacation"
)

const maxChatBodySize = 1 << 20    // 1MB
const maxUploadBodySize = 16 << 20 // 16MB

// allowedExtensions is the upload allowlist, matched case-insensitively.
var allowedExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true, ".txt": true,
}

// Responder runs one dialogue turn and always returns something printable.
type Responder interface {
	Respond(ctx context.Context, employeeID, message string) string
}

// AppDeps holds the backends the HTTP surface dispatches to.
type AppDeps struct {
	Agent     Responder
	Registry  *docindex.Registry
	Ledger    *vacation.Ledger
	Tickets   *ticket.Registry
	History   *history.Store
	UploadDir string
	Token     string
}

// NewAppHandler builds the chi router for the full HTTP surface.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/api/chat", handleChat(deps))
	r.Get("/api/chat/history/{employeeID}", handleChatHistory(deps))
	r.Get("/api/employee/vacation-balance/{employeeID}", handleVacationBalance(deps))
	r.Post("/api/employee/vacation-request", handleVacationRequest(deps))
	r.Get("/api/employee/vacation-requests/{employeeID}", handleVacationRequests(deps))

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/upload", handleUpload(deps))
		r.Get("/documents", handleListDocuments(deps))
		r.Post("/documents", handleSetActiveDocuments(deps))
		r.Delete("/documents/{documentID}", handleDeleteDocument(deps))
		r.Get("/tickets", handleListTickets(deps))
		r.Post("/tickets/{ticketID}/status", handleTicketStatus(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type chatRequest struct {
	Message    string `json:"message"`
	EmployeeID string `json:"employee_id"`
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		req.Message = strings.TrimSpace(req.Message)
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		reply := deps.Agent.Respond(r.Context(), req.EmployeeID, req.Message)
		respondJSON(w, http.StatusOK, map[string]string{
			"response":  reply,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func handleChatHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID := chi.URLParam(r, "employeeID")
		turns, err := deps.History.Load(employeeID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load history: %v", err)
			return
		}
		if turns == nil {
			turns = []history.Turn{}
		}
		respondJSON(w, http.StatusOK, map[string]any{"history": turns})
	}
}

func handleVacationBalance(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID := chi.URLParam(r, "employeeID")
		account, err := deps.Ledger.CheckBalance(employeeID)
		switch {
		case errors.Is(err, vacation.ErrBadEmployeeID):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "employee id must be numeric")
			return
		case errors.Is(err, vacation.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found_error", "employee %s not found", employeeID)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to check balance: %v", err)
			return
		}
		respondJSON(w, http.StatusOK, account)
	}
}

type vacationRequest struct {
	EmployeeID  string `json:"employee_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	RequestType string `json:"request_type"`
	Notes       string `json:"notes"`
}

func handleVacationRequest(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
		defer r.Body.Close()

		var req vacationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.EmployeeID == "" || req.StartDate == "" || req.EndDate == "" || req.RequestType == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"employee_id, start_date, end_date and request_type are required")
			return
		}

		t, err := deps.Tickets.CreateVacationTicket(req.EmployeeID, req.StartDate, req.EndDate, req.RequestType, req.Notes)
		switch {
		case errors.Is(err, ticket.ErrBadDate):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "dates must be YYYY-MM-DD")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create ticket: %v", err)
			return
		}
		respondJSON(w, http.StatusOK, t)
	}
}

func handleVacationRequests(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID := chi.URLParam(r, "employeeID")
		tickets, err := deps.Tickets.EmployeeTickets(employeeID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list tickets: %v", err)
			return
		}
		if tickets == nil {
			tickets = []ticket.VacationTicket{}
		}
		respondJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
	}
}

func handleUpload(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no file provided")
			return
		}
		defer file.Close()

		filename := sanitizeFilename(header.Filename)
		if filename == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no file selected")
			return
		}
		if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file type not allowed")
			return
		}

		path, err := saveUpload(deps.UploadDir, filename, file)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save file: %v", err)
			return
		}

		doc, err := deps.Registry.Ingest(r.Context(), path)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to process document: %v", err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"message":  "Document uploaded successfully",
			"filename": filename,
			"document": doc,
		})
	}
}

func handleListDocuments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.Registry.Documents()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}
		if docs == nil {
			docs = []docindex.Document{}
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"documents": docs,
			"active":    deps.Registry.ActiveIDs(),
		})
	}
}

func handleSetActiveDocuments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
		defer r.Body.Close()

		var req struct {
			Documents []string `json:"documents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		deps.Registry.SetActive(req.Documents)
		respondJSON(w, http.StatusOK, map[string]any{
			"message":          "Active documents updated successfully",
			"active_documents": deps.Registry.ActiveIDs(),
		})
	}
}

func handleDeleteDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "documentID")
		err := deps.Registry.RemoveDocument(documentID)
		switch {
		case errors.Is(err, docindex.ErrDocumentNotFound):
			httpError(w, http.StatusNotFound, "not_found_error", "document %s not found", documentID)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete document: %v", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": "Document deleted successfully"})
	}
}

func handleListTickets(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vacations, err := deps.Tickets.AllVacationTickets()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list vacation tickets: %v", err)
			return
		}
		support, err := deps.Tickets.AllSupportTickets()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list support tickets: %v", err)
			return
		}
		if vacations == nil {
			vacations = []ticket.VacationTicket{}
		}
		if support == nil {
			support = []ticket.SupportTicket{}
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"vacation_tickets": vacations,
			"support_tickets":  support,
		})
	}
}

type ticketStatusRequest struct {
	Status    string `json:"status"`
	ManagerID string `json:"manager_id"`
	Notes     string `json:"notes"`
}

func handleTicketStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
		defer r.Body.Close()

		ticketID := chi.URLParam(r, "ticketID")

		var req ticketStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Status != ticket.StatusApproved && req.Status != ticket.StatusRejected {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"status must be %q or %q", ticket.StatusApproved, ticket.StatusRejected)
			return
		}

		err := deps.Tickets.UpdateVacationStatus(ticketID, req.Status, req.ManagerID, req.Notes)
		switch {
		case errors.Is(err, ticket.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found_error", "ticket %s not found", ticketID)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update ticket: %v", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": "Ticket updated successfully"})
	}
}

// sanitizeFilename keeps only the base name so uploads cannot escape the
// upload directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(filepath.Clean(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

func saveUpload(dir, filename string, src multipart.File) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}
	path := filepath.Join(dir, filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("writing upload file: %w", err)
	}
	return path, nil
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	respondJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
