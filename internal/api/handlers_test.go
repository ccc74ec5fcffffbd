package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mohammed-elhaj/hr-bot/internal/docindex"
	"github.com/mohammed-elhaj/hr-bot/internal/history"
	"github.com/mohammed-elhaj/hr-bot/internal/ticket"
	"github.com/mohammed-elhaj/hr-bot/internal/vacation"
)

const testToken = "test-admin-token"

type echoAgent struct {
	reply string
}

func (e *echoAgent) Respond(_ context.Context, _, _ string) string { return e.reply }

type staticEmbedClient struct{}

func (staticEmbedClient) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1, 0}, nil
}

func testApp(t *testing.T) (http.Handler, AppDeps) {
	t.Helper()
	dir := t.TempDir()

	vacationsPath := filepath.Join(dir, "vacations.csv")
	seed := "employee_id,name,position,department,annual_balance,used_days,remaining_balance,last_updated\n" +
		"1001,أحمد محمد,مهندس,التقنية,30,5,25,2025-01-15\n"
	if err := os.WriteFile(vacationsPath, []byte(seed), 0o644); err != nil {
		t.Fatalf("seeding vacations: %v", err)
	}

	reg := docindex.NewRegistry(
		filepath.Join(dir, "collections"),
		filepath.Join(dir, "documents.csv"),
		docindex.NewChunker(500, 50),
		docindex.NewEmbedder(staticEmbedClient{}, "test-embed"),
	)
	t.Cleanup(func() { reg.Close() })
	if err := reg.Load(); err != nil {
		t.Fatalf("loading registry: %v", err)
	}

	deps := AppDeps{
		Agent:     &echoAgent{reply: "أهلاً بك"},
		Registry:  reg,
		Ledger:    vacation.NewLedger(vacationsPath),
		Tickets:   ticket.NewRegistry(filepath.Join(dir, "tickets.csv"), filepath.Join(dir, "support_tickets.csv")),
		History:   history.NewStore(dir),
		UploadDir: filepath.Join(dir, "documents"),
		Token:     testToken,
	}
	return NewAppHandler(deps), deps
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	h, _ := testApp(t)
	w := doJSON(t, h, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestChat(t *testing.T) {
	h, _ := testApp(t)

	t.Run("empty message", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/chat", "", map[string]string{"message": "  "})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("valid message", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/chat", "", map[string]string{
			"message":     "مرحبا",
			"employee_id": "1001",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		var resp struct {
			Response  string `json:"response"`
			Timestamp string `json:"timestamp"`
		}
		decodeBody(t, w, &resp)
		if resp.Response != "أهلاً بك" {
			t.Errorf("response = %q", resp.Response)
		}
		if resp.Timestamp == "" {
			t.Error("timestamp missing")
		}
	})
}

func TestChatHistoryEmpty(t *testing.T) {
	h, _ := testApp(t)
	w := doJSON(t, h, http.MethodGet, "/api/chat/history/1001", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		History []history.Turn `json:"history"`
	}
	decodeBody(t, w, &resp)
	if resp.History == nil || len(resp.History) != 0 {
		t.Errorf("history = %v, want empty array", resp.History)
	}
}

func TestVacationBalance(t *testing.T) {
	h, _ := testApp(t)

	tests := []struct {
		name       string
		employeeID string
		wantCode   int
	}{
		{"known employee", "1001", http.StatusOK},
		{"unknown employee", "9999", http.StatusNotFound},
		{"non-numeric id", "abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodGet, "/api/employee/vacation-balance/"+tt.employeeID, "", nil)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}

	w := doJSON(t, h, http.MethodGet, "/api/employee/vacation-balance/1001", "", nil)
	var account vacation.Account
	decodeBody(t, w, &account)
	if account.RemainingBalance != 25 {
		t.Errorf("RemainingBalance = %v, want 25", account.RemainingBalance)
	}
}

func TestVacationRequest(t *testing.T) {
	h, _ := testApp(t)

	t.Run("missing fields", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/employee/vacation-request", "", map[string]string{
			"employee_id": "1001",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("bad dates", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/employee/vacation-request", "", map[string]string{
			"employee_id":  "1001",
			"start_date":   "July 1st",
			"end_date":     "2025-07-10",
			"request_type": "سنوية",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("valid request", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/employee/vacation-request", "", map[string]string{
			"employee_id":  "1001",
			"start_date":   "2025-07-01",
			"end_date":     "2025-07-10",
			"request_type": "سنوية",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		var created ticket.VacationTicket
		decodeBody(t, w, &created)
		if !strings.HasPrefix(created.TicketID, "VT") {
			t.Errorf("TicketID = %q", created.TicketID)
		}
		if created.DaysCount != -8 {
			t.Errorf("DaysCount = %d, want -8", created.DaysCount)
		}
		if created.Status != ticket.StatusPending {
			t.Errorf("Status = %q", created.Status)
		}
	})
}

func TestVacationRequestsList(t *testing.T) {
	h, deps := testApp(t)
	if _, err := deps.Tickets.CreateVacationTicket("1001", "2025-07-01", "2025-07-10", "سنوية", ""); err != nil {
		t.Fatalf("creating ticket: %v", err)
	}

	w := doJSON(t, h, http.MethodGet, "/api/employee/vacation-requests/1001", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Tickets []ticket.VacationTicket `json:"tickets"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Tickets) != 1 {
		t.Errorf("got %d tickets, want 1", len(resp.Tickets))
	}
}

func TestAdminAuth(t *testing.T) {
	h, _ := testApp(t)

	tests := []struct {
		name     string
		token    string
		wantCode int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"wrong token", "nope", http.StatusUnauthorized},
		{"valid token", testToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodGet, "/api/admin/documents", tt.token, nil)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func uploadFile(t *testing.T, h http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestUpload(t *testing.T) {
	h, deps := testApp(t)

	t.Run("disallowed extension", func(t *testing.T) {
		w := uploadFile(t, h, "macro.xlsm", "data")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
		}
	})

	t.Run("text document", func(t *testing.T) {
		w := uploadFile(t, h, "policy.txt", "سياسة العمل عن بعد: يسمح بالعمل عن بعد لمدة 14 يوم.")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		var resp struct {
			Filename string            `json:"filename"`
			Document docindex.Document `json:"document"`
		}
		decodeBody(t, w, &resp)
		if resp.Filename != "policy.txt" {
			t.Errorf("filename = %q", resp.Filename)
		}
		if resp.Document.Collection.Status != docindex.StatusActive {
			t.Errorf("collection status = %q", resp.Document.Collection.Status)
		}
		if len(deps.Registry.ActiveIDs()) != 1 {
			t.Errorf("active collections = %v", deps.Registry.ActiveIDs())
		}
	})
}

func TestDocumentLifecycle(t *testing.T) {
	h, _ := testApp(t)

	w := uploadFile(t, h, "policy.txt", "محتوى سياسة للاختبار")
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d", w.Code)
	}
	var uploaded struct {
		Document docindex.Document `json:"document"`
	}
	decodeBody(t, w, &uploaded)

	w = doJSON(t, h, http.MethodGet, "/api/admin/documents", testToken, nil)
	var listed struct {
		Documents []docindex.Document `json:"documents"`
		Active    []string            `json:"active"`
	}
	decodeBody(t, w, &listed)
	if len(listed.Documents) != 1 || len(listed.Active) != 1 {
		t.Fatalf("documents = %d, active = %d", len(listed.Documents), len(listed.Active))
	}

	w = doJSON(t, h, http.MethodPost, "/api/admin/documents", testToken, map[string][]string{"documents": {}})
	if w.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", w.Code)
	}
	w = doJSON(t, h, http.MethodGet, "/api/admin/documents", testToken, nil)
	decodeBody(t, w, &listed)
	if len(listed.Active) != 0 {
		t.Errorf("active after toggle = %v", listed.Active)
	}

	w = doJSON(t, h, http.MethodDelete, "/api/admin/documents/"+uploaded.Document.DocumentID, testToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, h, http.MethodDelete, "/api/admin/documents/"+uploaded.Document.DocumentID, testToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestTicketAdmin(t *testing.T) {
	h, deps := testApp(t)
	created, err := deps.Tickets.CreateVacationTicket("1001", "2025-07-01", "2025-07-10", "سنوية", "")
	if err != nil {
		t.Fatalf("creating ticket: %v", err)
	}
	if _, err := deps.Tickets.CreateSupportTicket("1001", "مشكلة", "تفاصيل المشكلة"); err != nil {
		t.Fatalf("creating support ticket: %v", err)
	}

	w := doJSON(t, h, http.MethodGet, "/api/admin/tickets", testToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var listed struct {
		VacationTickets []ticket.VacationTicket `json:"vacation_tickets"`
		SupportTickets  []ticket.SupportTicket  `json:"support_tickets"`
	}
	decodeBody(t, w, &listed)
	if len(listed.VacationTickets) != 1 || len(listed.SupportTickets) != 1 {
		t.Fatalf("vacation = %d, support = %d", len(listed.VacationTickets), len(listed.SupportTickets))
	}

	t.Run("invalid status", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/admin/tickets/"+created.TicketID+"/status", testToken,
			map[string]string{"status": "maybe"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("unknown ticket", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/admin/tickets/VT2099999/status", testToken,
			map[string]string{"status": ticket.StatusApproved, "manager_id": "M1"})
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("approve", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/api/admin/tickets/"+created.TicketID+"/status", testToken,
			map[string]string{"status": ticket.StatusApproved, "manager_id": "M1", "notes": "موافق"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		tickets, err := deps.Tickets.EmployeeTickets("1001")
		if err != nil {
			t.Fatalf("EmployeeTickets: %v", err)
		}
		if tickets[0].Status != ticket.StatusApproved {
			t.Errorf("Status = %q, want approved", tickets[0].Status)
		}
		if tickets[0].ManagerID != "M1" {
			t.Errorf("ManagerID = %q", tickets[0].ManagerID)
		}
	})
}
