package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// fakeAPI serves both admin APIs and records the requests it saw.
type fakeAPI struct {
	requests []string
	bodies   []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body bytes.Buffer
	body.ReadFrom(r.Body)
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, body.String())

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/v1/alerts" && r.Method == http.MethodGet:
		if r.URL.Query().Get("offset") == "200" {
			w.Write([]byte(`{"alerts":[],"total":2,"limit":200,"offset":200}`))
			return
		}
		w.Write([]byte(`{"alerts":[
			{"id":"a-1","patient_id":"P1","title":"High Temperature","severity":"Critical","status":"New","alert_date_time":"2026-03-01T12:00:00Z","version":1},
			{"id":"a-2","patient_id":"P2","title":"Low Oxygen","severity":"Warning","status":"Resolved","alert_date_time":"2026-03-01T11:00:00Z","version":3,"resolved_by":"dr.lee"}
		],"total":2,"limit":50,"offset":0}`))
	case r.URL.Path == "/api/v1/alerts/a-1" && r.Method == http.MethodGet:
		w.Write([]byte(`{"id":"a-1","patient_id":"P1","title":"High Temperature","severity":"Critical","status":"Acknowledged","alert_date_time":"2026-03-01T12:00:00Z","version":2,"acknowledged_by":"nurse.kim","triggering_observation_id":"obs-9"}`))
	case r.URL.Path == "/api/v1/alerts/missing":
		http.Error(w, "Alert not found", http.StatusNotFound)
	case r.URL.Path == "/api/v1/alerts/a-1/acknowledge":
		w.Write([]byte(`{"alert_id":"a-1","status":"Acknowledged"}`))
	case r.URL.Path == "/api/v1/alerts/a-1/close":
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"alert cannot be closed from status New","alert_id":"a-1","current_status":"New"}`))
	case r.URL.Path == "/api/v1/alerts/count/active":
		w.Write([]byte(`{"count":3}`))
	case r.URL.Path == "/api/v1/notifications":
		w.Write([]byte(`{"notifications":[{"id":"n-1","patient_id":"P1","recipient_type":"Doctor","channel":"Email","status":"Failed","retry_count":2,"priority":"High","created_at":"2026-03-01T12:00:00Z"}],"total":1,"limit":50,"offset":0}`))
	case r.URL.Path == "/api/v1/notifications/n-1":
		w.Write([]byte(`{"id":"n-1","patient_id":"P1","recipient_type":"Doctor","recipient_id":"doc-1","channel":"Email","status":"Failed","retry_count":2,"priority":"High","subject":"Critical alert","error_message":"smtp timeout","related_entity_id":"a-1","related_entity_type":"Alert"}`))
	case r.URL.Path == "/api/v1/notifications/n-1/retry":
		w.Write([]byte(`{"notification_id":"n-1","status":"Failed","delivered":false}`))
	case r.URL.Path == "/api/v1/notifications/n-1/send":
		w.Write([]byte(`{"notification_id":"n-1","status":"Sent","delivered":true}`))
	case r.URL.Path == "/api/v1/notifications/count/pending":
		w.Write([]byte(`{"pendingNotificationCount":5}`))
	case r.URL.Path == "/api/v1/services/metrics":
		w.Write([]byte(`{"services":{"monitoring-service":{"service_name":"monitoring-service","status":"healthy","messages_published":4,"custom_counters":{"alerts_created":4,"alerts_suppressed":1}}},"known_services":["monitoring-service","notification-service"]}`))
	default:
		http.NotFound(w, r)
	}
}

func runCLI(t *testing.T, api *fakeAPI, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--monitoring-url", srv.URL, "--notification-url", srv.URL, "--no-color"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestAlertsList(t *testing.T) {
	api := &fakeAPI{}
	out, err := runCLI(t, api, "alerts", "list", "--severity", "Critical")
	require.NoError(t, err)

	assert.Contains(t, out, "SEVERITY")
	assert.Contains(t, out, "a-1")
	assert.Contains(t, out, "High Temperature")
	assert.Contains(t, out, "Showing 2 of 2 alerts")
	assert.Equal(t, []string{"GET /api/v1/alerts"}, api.requests)
}

func TestAlertsGet(t *testing.T) {
	out, err := runCLI(t, &fakeAPI{}, "alerts", "get", "a-1")
	require.NoError(t, err)

	assert.Contains(t, out, "Alert a-1 (version 2)")
	assert.Contains(t, out, "Acknowledged by nurse.kim")
	assert.Contains(t, out, "Observation: obs-9")
}

func TestAlertsGet_NotFound(t *testing.T) {
	_, err := runCLI(t, &fakeAPI{}, "alerts", "get", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestAlertsAck(t *testing.T) {
	api := &fakeAPI{}
	out, err := runCLI(t, api, "alerts", "ack", "a-1", "--by", "nurse.kim")
	require.NoError(t, err)

	assert.Contains(t, out, "Alert a-1 acknowledged")
	assert.Equal(t, []string{"PATCH /api/v1/alerts/a-1/acknowledge"}, api.requests)
	assert.JSONEq(t, `{"acknowledged_by":"nurse.kim"}`, api.bodies[0])
}

func TestAlertsAck_RequiresBy(t *testing.T) {
	api := &fakeAPI{}
	_, err := runCLI(t, api, "alerts", "ack", "a-1")
	require.Error(t, err)
	assert.Empty(t, api.requests)
}

func TestAlertsClose_Conflict(t *testing.T) {
	_, err := runCLI(t, &fakeAPI{}, "alerts", "close", "a-1", "--by", "dr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alert cannot be closed from status New")
}

func TestAlertsCount(t *testing.T) {
	out, err := runCLI(t, &fakeAPI{}, "alerts", "count")
	require.NoError(t, err)
	assert.Contains(t, out, "3 active alerts")
}

func TestAlertsExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.xlsx")
	out, err := runCLI(t, &fakeAPI{}, "alerts", "export", "--active", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 alerts")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Alerts")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a-2", rows[2][0])
}

func TestNotificationsList(t *testing.T) {
	api := &fakeAPI{}
	out, err := runCLI(t, api, "notifications", "list", "--failed")
	require.NoError(t, err)

	assert.Contains(t, out, "n-1")
	assert.Contains(t, out, "Failed")
	assert.Contains(t, out, "Showing 1 of 1 notifications")
}

func TestNotificationsGet(t *testing.T) {
	out, err := runCLI(t, &fakeAPI{}, "notifications", "get", "n-1")
	require.NoError(t, err)

	assert.Contains(t, out, "Recipient: Doctor (doc-1)")
	assert.Contains(t, out, "Related:   Alert a-1")
	assert.Contains(t, out, "Error:     smtp timeout")
}

func TestNotificationOperations(t *testing.T) {
	out, err := runCLI(t, &fakeAPI{}, "notifications", "retry", "n-1")
	require.NoError(t, err)
	assert.Contains(t, out, "✗ Notification n-1: Failed")

	out, err = runCLI(t, &fakeAPI{}, "notif", "send", "n-1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Notification n-1: Sent")
}

func TestNotificationsPending(t *testing.T) {
	out, err := runCLI(t, &fakeAPI{}, "notifications", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "5 pending notifications")
}

func TestMetrics(t *testing.T) {
	out, err := runCLI(t, &fakeAPI{}, "metrics")
	require.NoError(t, err)

	assert.Contains(t, out, "monitoring-service healthy")
	assert.Contains(t, out, "alerts_created: 4")
	assert.Contains(t, out, "notification-service offline")
	assert.Less(t, strings.Index(out, "alerts_created"), strings.Index(out, "alerts_suppressed"))
}

func TestConfigPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".pmctl.yaml"),
		[]byte("monitoring-url: http://file:1\nnotification-url: http://file:2\ntimeout: 3s\n"), 0o600))
	t.Setenv("PMCTL_NOTIFICATION_URL", "http://env:2")

	v := newViper()
	require.NoError(t, readConfigFile(v, ""))
	cfg, err := configFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "http://file:1", cfg.MonitoringURL)
	assert.Equal(t, "http://env:2", cfg.NotificationURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
}

func TestConfigFile_Explicit(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	v := newViper()
	err := readConfigFile(v, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "valid", cfg: Config{MonitoringURL: "http://m", NotificationURL: "http://n", Timeout: time.Second}},
		{name: "missing monitoring", cfg: Config{NotificationURL: "http://n", Timeout: time.Second}, wantErr: "monitoring-url cannot be empty"},
		{name: "missing notification", cfg: Config{MonitoringURL: "http://m", Timeout: time.Second}, wantErr: "notification-url cannot be empty"},
		{name: "zero timeout", cfg: Config{MonitoringURL: "http://m", NotificationURL: "http://n"}, wantErr: "timeout must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
