package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"blastbot/internal/config"
	logx "blastbot/pkg/logx"
)

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	connected := true
	s := New(config.HealthConfig{Enabled: true, Addr: "127.0.0.1:0"}, func() Snapshot {
		return Snapshot{
			Status:           "ok",
			ChannelConnected: connected,
			CampaignCount:    4,
			UptimeSeconds:    12,
			Timestamp:        "2024-12-25T10:00:00Z",
		}
	}, logx.Nop())

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("connected: status = %d", rec.Code)
	}
	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if snap.CampaignCount != 4 || !snap.ChannelConnected {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	connected = false
	rec = httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("disconnected: status = %d, want 503", rec.Code)
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &snap)
	if snap.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", snap.Status)
	}
}

func TestRootEndpoint(t *testing.T) {
	t.Parallel()
	s := New(config.HealthConfig{}, nil, logx.Nop())
	rec := httptest.NewRecorder()
	s.handleRoot(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
		t.Fatalf("root: code=%d body=%q", rec.Code, rec.Body.String())
	}
}
