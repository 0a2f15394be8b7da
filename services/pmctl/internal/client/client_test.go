package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{MonitoringURL: srv.URL, NotificationURL: srv.URL + "/", Timeout: 5 * time.Second})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func TestListAlerts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/alerts" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("severity") != "Critical" || q.Get("active") != "true" || q.Get("limit") != "5" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if q.Has("patient_id") || q.Has("offset") {
			t.Errorf("unexpected params in %s", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, `{"alerts":[{"id":"a-1","patient_id":"P1","title":"High Temperature","severity":"Critical","status":"New","version":1,"alert_date_time":"2026-03-01T12:00:00Z"}],"total":1,"limit":5,"offset":0}`)
	})

	list, err := c.ListAlerts(context.Background(), AlertFilter{Severity: "Critical", ActiveOnly: true, Limit: 5})
	if err != nil {
		t.Fatalf("ListAlerts() error = %v", err)
	}
	if list.Total != 1 || len(list.Alerts) != 1 {
		t.Fatalf("ListAlerts() = %+v", list)
	}
	a := list.Alerts[0]
	if a.ID != "a-1" || a.Severity != "Critical" || !a.AlertDateTime.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("alert = %+v", a)
	}
}

func TestGetAlert_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Alert not found", http.StatusNotFound)
	})

	_, err := c.GetAlert(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetAlert() error = %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "Alert not found" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestAlertTransitions(t *testing.T) {
	tests := []struct {
		name     string
		call     func(*Client) (*AlertTransition, error)
		wantPath string
		wantBody map[string]string
	}{
		{
			name:     "acknowledge",
			call:     func(c *Client) (*AlertTransition, error) { return c.AcknowledgeAlert(context.Background(), "a-1", "nurse") },
			wantPath: "/api/v1/alerts/a-1/acknowledge",
			wantBody: map[string]string{"acknowledged_by": "nurse"},
		},
		{
			name:     "resolve with notes",
			call:     func(c *Client) (*AlertTransition, error) { return c.ResolveAlert(context.Background(), "a-1", "dr", "fever down") },
			wantPath: "/api/v1/alerts/a-1/resolve",
			wantBody: map[string]string{"resolved_by": "dr", "resolution_notes": "fever down"},
		},
		{
			name:     "resolve without notes",
			call:     func(c *Client) (*AlertTransition, error) { return c.ResolveAlert(context.Background(), "a-1", "dr", "") },
			wantPath: "/api/v1/alerts/a-1/resolve",
			wantBody: map[string]string{"resolved_by": "dr"},
		},
		{
			name:     "close",
			call:     func(c *Client) (*AlertTransition, error) { return c.CloseAlert(context.Background(), "a-1", "dr") },
			wantPath: "/api/v1/alerts/a-1/close",
			wantBody: map[string]string{"closed_by": "dr"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPatch || r.URL.Path != tt.wantPath {
					t.Errorf("request = %s %s", r.Method, r.URL.Path)
				}
				data, _ := io.ReadAll(r.Body)
				var body map[string]string
				if err := json.Unmarshal(data, &body); err != nil {
					t.Errorf("body %q: %v", data, err)
				}
				if len(body) != len(tt.wantBody) {
					t.Errorf("body = %v, want %v", body, tt.wantBody)
				}
				for k, v := range tt.wantBody {
					if body[k] != v {
						t.Errorf("body[%s] = %q, want %q", k, body[k], v)
					}
				}
				writeJSON(w, http.StatusOK, `{"alert_id":"a-1","status":"Done"}`)
			})

			result, err := tt.call(c)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if result.AlertID != "a-1" || result.Status != "Done" {
				t.Errorf("result = %+v", result)
			}
		})
	}
}

func TestAlertTransition_Conflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, `{"error":"alert cannot be closed from status New","alert_id":"a-1","current_status":"New"}`)
	})

	_, err := c.CloseAlert(context.Background(), "a-1", "dr")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("CloseAlert() error = %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != "alert cannot be closed from status New" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestCountActiveAlerts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/alerts/count/active" || r.URL.Query().Get("patient_id") != "P1" {
			t.Errorf("request = %s", r.URL.String())
		}
		writeJSON(w, http.StatusOK, `{"count":4}`)
	})

	n, err := c.CountActiveAlerts(context.Background(), "P1")
	if err != nil || n != 4 {
		t.Errorf("CountActiveAlerts() = %d, %v", n, err)
	}
}

func TestServiceMetrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"services":{"monitoring-service":{"service_name":"monitoring-service","status":"healthy","messages_published":3}},"known_services":["monitoring-service","notification-service"]}`)
	})

	m, err := c.ServiceMetrics(context.Background())
	if err != nil {
		t.Fatalf("ServiceMetrics() error = %v", err)
	}
	if len(m.KnownServices) != 2 || m.Services["monitoring-service"].MessagesPublished != 3 {
		t.Errorf("ServiceMetrics() = %+v", m)
	}
}

func TestListNotifications(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/notifications" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("status") != "Failed" || q.Get("channel") != "Email" || q.Has("priority") {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, `{"notifications":[{"id":"n-1","patient_id":"P1","recipient_type":"Doctor","channel":"Email","status":"Failed","retry_count":2,"priority":"High"}],"total":1,"limit":50,"offset":0}`)
	})

	list, err := c.ListNotifications(context.Background(), NotificationFilter{Status: "Failed", Channel: "Email"})
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(list.Notifications) != 1 || list.Notifications[0].RetryCount != 2 {
		t.Errorf("ListNotifications() = %+v", list)
	}
}

func TestNotificationOperations(t *testing.T) {
	for _, action := range []string{"send", "retry", "cancel"} {
		t.Run(action, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/v1/notifications/n-1/"+action {
					t.Errorf("request = %s %s", r.Method, r.URL.Path)
				}
				writeJSON(w, http.StatusOK, `{"notification_id":"n-1","status":"Sent","delivered":true}`)
			})

			var op *Operation
			var err error
			switch action {
			case "send":
				op, err = c.SendNotification(context.Background(), "n-1")
			case "retry":
				op, err = c.RetryNotification(context.Background(), "n-1")
			case "cancel":
				op, err = c.CancelNotification(context.Background(), "n-1")
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if op.NotificationID != "n-1" || !op.Delivered {
				t.Errorf("operation = %+v", op)
			}
		})
	}
}

func TestPendingNotificationCount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"pendingNotificationCount":7}`)
	})

	n, err := c.PendingNotificationCount(context.Background())
	if err != nil || n != 7 {
		t.Errorf("PendingNotificationCount() = %d, %v", n, err)
	}
}

func TestTransportError(t *testing.T) {
	c := New(Config{MonitoringURL: "http://127.0.0.1:1", NotificationURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := c.GetNotification(context.Background(), "n-1")
	if err == nil {
		t.Fatal("GetNotification() expected error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("transport failure should not be an APIError: %v", err)
	}
}
