package sheets

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"blastbot/internal/campaign"
	logx "blastbot/pkg/logx"
)

func newTestSource(t *testing.T, handler http.Handler) *Source {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	svc, err := sheetsapi.NewService(context.Background(),
		option.WithoutAuthentication(),
		option.WithEndpoint(ts.URL))
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	return &Source{
		svc:           svc,
		spreadsheetID: "sheet-1",
		retryMax:      3,
		retryDelay:    time.Millisecond,
		log:           logx.Nop(),
		statusCol:     -1,
	}
}

const rowsJSON = `{"range":"A1:Z3","majorDimension":"ROWS","values":[` +
	`["Date","Message_Principal","Statut"],` +
	`["2024-12-25","Bonjour",""],` +
	`["2024-12-26","Salut","ENVOYÉ"]]}`

func TestFetchAllRetriesTransientErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error":{"code":500}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, rowsJSON)
	})
	src := newTestSource(t, handler)

	got, err := src.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 campaigns, got %d", len(got))
	}
	if got[0].Text != "Bonjour" || got[0].Row != 2 {
		t.Errorf("first campaign = %+v", got[0])
	}
	if got[1].Status != campaign.StatusSent {
		t.Errorf("delivered row not marked sent: %+v", got[1])
	}
}

func TestFetchAllGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"code":500}}`, http.StatusInternalServerError)
	})
	src := newTestSource(t, handler)

	if _, err := src.FetchAll(context.Background()); err == nil {
		t.Fatal("expected an error once retries are exhausted")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected exactly retryMax attempts, got %d", calls.Load())
	}
}

func TestMarkSentWritesStatusCell(t *testing.T) {
	t.Parallel()
	var (
		updatePath atomic.Value
		updateBody atomic.Value
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			b, _ := io.ReadAll(r.Body)
			updatePath.Store(r.URL.Path)
			updateBody.Store(string(b))
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, rowsJSON)
	})
	src := newTestSource(t, handler)

	got, err := src.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if err := src.MarkSent(context.Background(), got[0]); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	path, _ := updatePath.Load().(string)
	if !strings.HasSuffix(path, "/values/C2") {
		t.Errorf("status written to %q, want column C row 2", path)
	}
	body, _ := updateBody.Load().(string)
	if !strings.Contains(body, sentMarker) {
		t.Errorf("update body missing sent marker: %s", body)
	}
}

func TestMarkSentWithoutStatusColumn(t *testing.T) {
	t.Parallel()
	src := &Source{retryMax: 1, retryDelay: time.Millisecond, log: logx.Nop(), statusCol: -1}
	if err := src.MarkSent(context.Background(), campaign.Campaign{Row: 2}); err == nil {
		t.Fatal("expected an error when the sheet has no status column")
	}
}

func TestMapHeader(t *testing.T) {
	t.Parallel()
	cols := mapHeader([]any{"Date", "Message_Principal", "ID_Drive_Image", "Legende_Image", "ID_Drive_Video", "Statut"})
	if cols.date != 0 || cols.text != 1 || cols.image != 2 || cols.caption != 3 || cols.video != 4 || cols.status != 5 {
		t.Fatalf("canonical headers mismapped: %+v", cols)
	}

	cols = mapHeader([]any{"date", "Message", "Media_ID", "Caption", "Heure", "Status"})
	if cols.text != 1 || cols.image != 2 || cols.caption != 3 || cols.time != 4 || cols.status != 5 {
		t.Fatalf("alias headers mismapped: %+v", cols)
	}

	cols = mapHeader([]any{"Colonne", "Autre"})
	if cols.date != -1 || cols.text != -1 {
		t.Fatalf("unknown headers should stay unmapped: %+v", cols)
	}
}

func TestColumnLetter(t *testing.T) {
	t.Parallel()
	cases := []struct {
		idx  int
		want string
	}{
		{0, "A"}, {1, "B"}, {25, "Z"}, {26, "AA"}, {27, "AB"}, {51, "AZ"}, {52, "BA"},
	}
	for _, tc := range cases {
		if got := columnLetter(tc.idx); got != tc.want {
			t.Errorf("columnLetter(%d) = %q, want %q", tc.idx, got, tc.want)
		}
	}
}

func TestCell(t *testing.T) {
	t.Parallel()
	row := []any{"a", 42, ""}
	if got := cell(row, 0); got != "a" {
		t.Errorf("cell(0) = %q", got)
	}
	if got := cell(row, 1); got != "42" {
		t.Errorf("cell(1) = %q", got)
	}
	if got := cell(row, 5); got != "" {
		t.Errorf("out-of-range cell = %q", got)
	}
	if got := cell(row, -1); got != "" {
		t.Errorf("unmapped column cell = %q", got)
	}
}
