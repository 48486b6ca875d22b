package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"kmbot/internal/core"

	goption "google.golang.org/api/option"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Options{SpreadsheetID: "sheet-id"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

type fakeSheets struct {
	mu    sync.Mutex
	paths []string
	rows  [][]any
}

func (f *fakeSheets) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var vr struct {
			Values [][]any `json:"values"`
		}
		if err := json.Unmarshal(body, &vr); err != nil {
			t.Errorf("decode body: %v", err)
		}
		f.mu.Lock()
		f.paths = append(f.paths, r.URL.Path)
		f.rows = append(f.rows, vr.Values...)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"updates":{"updatedRange":"Corridas!A2:E2"}}`)
	}
}

func newFakeClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{
		SpreadsheetID: "sheet-id",
		ClientOptions: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithHTTPClient(srv.Client()),
			goption.WithoutAuthentication(),
		},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, fake
}

func TestAppendRide(t *testing.T) {
	c, fake := newFakeClient(t)
	ts := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	ref, err := c.AppendRide(context.Background(), core.RideEntry{
		ID: 7, User: "whatsapp:+5511999990000", Date: core.NewDate(2024, 5, 10), Timestamp: ts, Amount: 25,
	})
	if err != nil {
		t.Fatalf("append ride: %v", err)
	}
	if ref != "Corridas!A2:E2" {
		t.Fatalf("ref = %q", ref)
	}
	if len(fake.paths) != 1 || !strings.Contains(fake.paths[0], "sheet-id") || !strings.HasSuffix(fake.paths[0], ":append") {
		t.Fatalf("unexpected request paths %v", fake.paths)
	}
	if len(fake.rows) != 1 || len(fake.rows[0]) != 5 || fake.rows[0][2] != "2024-05-10" {
		t.Fatalf("unexpected rows %v", fake.rows)
	}
}

func TestAppendFuelValidates(t *testing.T) {
	c, fake := newFakeClient(t)
	_, err := c.AppendFuel(context.Background(), core.FuelEntry{User: "u", Date: core.NewDate(2024, 5, 10)})
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(fake.paths) != 0 {
		t.Fatalf("invalid entry must not reach the API")
	}
}

func TestAppendWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "x", ridesSheet: "Corridas"}
	_, err := c.AppendRide(context.Background(), core.RideEntry{User: "u", Date: core.NewDate(2024, 5, 10)})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}
