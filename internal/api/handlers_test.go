package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	"github.com/Hibaxbelghith/argus-sub000/internal/preferences"
	"github.com/Hibaxbelghith/argus-sub000/internal/rules"
	"github.com/Hibaxbelghith/argus-sub000/internal/store/memory"
	"github.com/Hibaxbelghith/argus-sub000/pkg/metrics"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupHandlers(t *testing.T, opts ...Option) (*Handlers, *memory.Store, *testClock) {
	t.Helper()
	clock := &testClock{now: testNow}
	st := memory.New()
	st.SetClock(clock.Now)
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewHandlers(st, opts...), st, clock
}

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, w.Body.String())
	}
	return v
}

func seedDelivery(t *testing.T, st *memory.Store, rec *delivery.Record) {
	t.Helper()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = testNow.Add(-time.Hour)
	}
	if rec.Severity == "" {
		rec.Severity = alert.SeverityHigh
	}
	if rec.AlertType == "" {
		rec.AlertType = alert.TypeAnomaly
	}
	if err := st.CreateDelivery(context.Background(), rec); err != nil {
		t.Fatalf("CreateDelivery() error = %v", err)
	}
}

func TestHandlers_GetPreferences(t *testing.T) {
	h, _, _ := setupHandlers(t)

	tests := []struct {
		name           string
		method         string
		target         string
		expectedStatus int
	}{
		{"creates defaults", http.MethodGet, "/api/v1/preferences?user_id=user-1", http.StatusOK},
		{"missing user_id", http.MethodGet, "/api/v1/preferences", http.StatusBadRequest},
		{"wrong method", http.MethodPost, "/api/v1/preferences?user_id=user-1", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h.GetPreferences, tt.method, tt.target, "")
			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.expectedStatus, w.Body.String())
			}
		})
	}

	w := do(h.GetPreferences, http.MethodGet, "/api/v1/preferences?user_id=user-1", "")
	rec := decodeBody[preferences.Record](t, w)
	if rec.UserID != "user-1" || len(rec.EnabledChannels) != 1 || rec.EnabledChannels[0] != delivery.ChannelWeb {
		t.Errorf("defaults = %+v", rec)
	}
	if !rec.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, testNow)
	}
}

func TestHandlers_UpdatePreferences(t *testing.T) {
	h, _, clock := setupHandlers(t)
	do(h.GetPreferences, http.MethodGet, "/api/v1/preferences?user_id=user-1", "")
	clock.Advance(time.Minute)

	tests := []struct {
		name           string
		target         string
		body           string
		expectedStatus int
	}{
		{"unknown channel", "/api/v1/preferences?user_id=user-1", `{"enabled_channels":["fax"]}`, http.StatusBadRequest},
		{"unknown field", "/api/v1/preferences?user_id=user-1", `{"bogus":true}`, http.StatusBadRequest},
		{"invalid JSON", "/api/v1/preferences?user_id=user-1", `{`, http.StatusBadRequest},
		{"negative rate limit", "/api/v1/preferences?user_id=user-1", `{"max_notifications_per_hour":-1}`, http.StatusBadRequest},
		{"bad quiet hours", "/api/v1/preferences?user_id=user-1", `{"quiet_hours":{"enabled":true,"start":"25:00","end":"06:00"}}`, http.StatusBadRequest},
		{"missing user_id", "/api/v1/preferences", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h.UpdatePreferences, http.MethodPut, tt.target, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.expectedStatus, w.Body.String())
			}
		})
	}

	w := do(h.UpdatePreferences, http.MethodPut, "/api/v1/preferences?user_id=user-1",
		`{"user_id":"someone-else","enabled_channels":["web","sms"],"max_notifications_per_hour":5,"quiet_hours":{"enabled":true,"start":"23:00","end":"07:00"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	updated := decodeBody[preferences.Record](t, w)
	if updated.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", updated.UserID)
	}
	if updated.MaxPerHour != 5 || len(updated.EnabledChannels) != 2 {
		t.Errorf("updated = %+v", updated)
	}
	if len(updated.MinSeverity) != len(delivery.Channels) {
		t.Errorf("MinSeverity = %v, want untouched floors", updated.MinSeverity)
	}
	if !updated.CreatedAt.Equal(testNow) || !updated.UpdatedAt.Equal(testNow.Add(time.Minute)) {
		t.Errorf("timestamps = %v / %v", updated.CreatedAt, updated.UpdatedAt)
	}

	w = do(h.GetPreferences, http.MethodGet, "/api/v1/preferences?user_id=user-1", "")
	stored := decodeBody[preferences.Record](t, w)
	if !stored.QuietHours.Enabled || stored.QuietHours.Start.String() != "23:00" {
		t.Errorf("stored quiet hours = %+v", stored.QuietHours)
	}
}

const nightRule = `{"user_id":"user-1","name":" Night guard ","condition_type":"time_range","condition_value":{"start_hour":22,"end_hour":6},"action":"escalate","priority":10}`

func TestHandlers_CreateRule(t *testing.T) {
	h, _, _ := setupHandlers(t)

	tests := []struct {
		name           string
		method         string
		body           string
		expectedStatus int
	}{
		{"successful create", http.MethodPost, nightRule, http.StatusCreated},
		{"wrong method", http.MethodGet, nightRule, http.StatusMethodNotAllowed},
		{"invalid JSON", http.MethodPost, `invalid json`, http.StatusBadRequest},
		{"missing user_id", http.MethodPost, `{"condition_type":"confidence","condition_value":{"min_confidence":0.5},"action":"notify"}`, http.StatusBadRequest},
		{"unknown condition", http.MethodPost, `{"user_id":"user-1","condition_type":"weather","action":"notify"}`, http.StatusBadRequest},
		{"unknown action", http.MethodPost, `{"user_id":"user-1","condition_type":"confidence","condition_value":{"min_confidence":0.5},"action":"page"}`, http.StatusBadRequest},
		{"empty class list", http.MethodPost, `{"user_id":"user-1","condition_type":"object_class","condition_value":{"classes":[]},"action":"notify"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h.CreateRule, tt.method, "/api/v1/rules", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.expectedStatus, w.Body.String())
			}
		})
	}

	w := do(h.CreateRule, http.MethodPost, "/api/v1/rules", nightRule)
	rule := decodeBody[rules.Rule](t, w)
	if rule.ID == "" || rule.Name != "Night guard" || !rule.IsActive {
		t.Errorf("created rule = %+v", rule)
	}
	if rule.Condition.StartHour != 22 || rule.Condition.EndHour != 6 {
		t.Errorf("condition = %+v", rule.Condition)
	}
}

func TestHandlers_RuleLifecycle(t *testing.T) {
	h, _, _ := setupHandlers(t)
	created := decodeBody[rules.Rule](t, do(h.CreateRule, http.MethodPost, "/api/v1/rules", nightRule))
	id := created.ID

	w := do(h.GetRule, http.MethodGet, "/api/v1/rules?rule_id="+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("GetRule status = %d", w.Code)
	}

	w = do(h.ListRules, http.MethodGet, "/api/v1/rules?user_id=user-1", "")
	if list := decodeBody[[]rules.Rule](t, w); len(list) != 1 || list[0].ID != id {
		t.Errorf("ListRules = %+v", list)
	}
	w = do(h.ListRules, http.MethodGet, "/api/v1/rules?user_id=nobody", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty list body = %q, want []", w.Body.String())
	}

	w = do(h.ToggleRule, http.MethodPost, "/api/v1/rules/toggle?rule_id="+id, `{"is_active":false}`)
	if toggled := decodeBody[rules.Rule](t, w); toggled.IsActive {
		t.Error("rule still active after toggle")
	}

	w = do(h.UpdateRule, http.MethodPut, "/api/v1/rules/update?rule_id="+id,
		`{"name":"Low confidence","condition_type":"confidence","condition_value":{"min_confidence":0.3},"action":"suppress","priority":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("UpdateRule status = %d: %s", w.Code, w.Body.String())
	}
	updated := decodeBody[rules.Rule](t, w)
	if updated.UserID != "user-1" || updated.Action != rules.ActionSuppress || updated.IsActive {
		t.Errorf("updated = %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}

	w = do(h.UpdateRule, http.MethodPut, "/api/v1/rules/update?rule_id="+id,
		`{"user_id":"user-2","condition_type":"confidence","condition_value":{"min_confidence":0.3},"action":"notify"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("owner change status = %d, want 400", w.Code)
	}
	w = do(h.UpdateRule, http.MethodPut, "/api/v1/rules/update?rule_id="+id,
		`{"condition_type":"time_range","condition_value":{"start_hour":5,"end_hour":5},"action":"notify"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty time range status = %d, want 400", w.Code)
	}

	w = do(h.DeleteRule, http.MethodDelete, "/api/v1/rules/delete?rule_id="+id, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("DeleteRule status = %d, want 204", w.Code)
	}
	for _, tc := range []struct {
		name string
		h    http.HandlerFunc
		m    string
		url  string
		body string
	}{
		{"get", h.GetRule, http.MethodGet, "/api/v1/rules?rule_id=" + id, ""},
		{"toggle", h.ToggleRule, http.MethodPost, "/api/v1/rules/toggle?rule_id=" + id, `{"is_active":true}`},
		{"update", h.UpdateRule, http.MethodPut, "/api/v1/rules/update?rule_id=" + id, `{"condition_type":"confidence","action":"notify"}`},
		{"delete", h.DeleteRule, http.MethodDelete, "/api/v1/rules/delete?rule_id=" + id, ""},
	} {
		if w := do(tc.h, tc.m, tc.url, tc.body); w.Code != http.StatusNotFound {
			t.Errorf("%s after delete status = %d, want 404", tc.name, w.Code)
		}
	}
}

func TestHandlers_ListDeliveries(t *testing.T) {
	h, st, _ := setupHandlers(t)
	seedDelivery(t, st, &delivery.Record{ID: "d1", UserID: "user-1", Channel: delivery.ChannelWeb, Status: delivery.StatusSent, CreatedAt: testNow.Add(-3 * time.Hour)})
	seedDelivery(t, st, &delivery.Record{ID: "d2", UserID: "user-1", Channel: delivery.ChannelSMS, Status: delivery.StatusFailed, CreatedAt: testNow.Add(-2 * time.Hour)})
	seedDelivery(t, st, &delivery.Record{ID: "d3", UserID: "user-1", Channel: delivery.ChannelWeb, Status: delivery.StatusSuppressed, CreatedAt: testNow.Add(-time.Hour)})
	seedDelivery(t, st, &delivery.Record{ID: "d4", UserID: "user-2", Channel: delivery.ChannelWeb, Status: delivery.StatusSent})

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedIDs    []string
	}{
		{"all for user", "user_id=user-1", http.StatusOK, []string{"d3", "d2", "d1"}},
		{"by status", "user_id=user-1&status=sent", http.StatusOK, []string{"d1"}},
		{"by channel", "user_id=user-1&channel=web", http.StatusOK, []string{"d3", "d1"}},
		{"paged", "user_id=user-1&limit=1&offset=1", http.StatusOK, []string{"d2"}},
		{"no match", "user_id=user-3", http.StatusOK, []string{}},
		{"missing user_id", "status=sent", http.StatusBadRequest, nil},
		{"unknown status", "user_id=user-1&status=lost", http.StatusBadRequest, nil},
		{"unknown channel", "user_id=user-1&channel=fax", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h.ListDeliveries, http.MethodGet, "/api/v1/deliveries?"+tt.query, "")
			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.expectedStatus, w.Body.String())
			}
			if tt.expectedIDs == nil {
				return
			}
			got := decodeBody[[]delivery.Record](t, w)
			if len(got) != len(tt.expectedIDs) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.expectedIDs))
			}
			for i, id := range tt.expectedIDs {
				if got[i].ID != id {
					t.Errorf("record[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestHandlers_GetDeliveryAndLogs(t *testing.T) {
	h, st, _ := setupHandlers(t)
	rec := &delivery.Record{ID: "d1", UserID: "user-1", Channel: delivery.ChannelSMS, Status: delivery.StatusSent, ProviderRef: "SM1"}
	seedDelivery(t, st, rec)
	ctx := context.Background()
	_ = st.AppendLog(ctx, delivery.NewLogEntry(rec, delivery.EventCreated, nil, testNow))
	_ = st.AppendLog(ctx, delivery.TerminalEntry(rec, testNow))

	w := do(h.GetDelivery, http.MethodGet, "/api/v1/deliveries?delivery_id=d1", "")
	if got := decodeBody[delivery.Record](t, w); got.ProviderRef != "SM1" {
		t.Errorf("GetDelivery = %+v", got)
	}
	if w := do(h.GetDelivery, http.MethodGet, "/api/v1/deliveries?delivery_id=missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing delivery status = %d, want 404", w.Code)
	}

	w = do(h.ListLogs, http.MethodGet, "/api/v1/deliveries/logs?delivery_id=d1", "")
	entries := decodeBody[[]delivery.LogEntry](t, w)
	if len(entries) != 2 || entries[0].Event != delivery.EventCreated || entries[1].Event != "sent_sms" {
		t.Errorf("logs = %+v", entries)
	}
	if w := do(h.ListLogs, http.MethodGet, "/api/v1/deliveries/logs?delivery_id=missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("logs of missing delivery status = %d, want 404", w.Code)
	}
}

func TestHandlers_MarkRead(t *testing.T) {
	h, st, clock := setupHandlers(t)
	seedDelivery(t, st, &delivery.Record{ID: "d1", UserID: "user-1", Channel: delivery.ChannelWeb, Status: delivery.StatusSent})

	w := do(h.MarkRead, http.MethodPost, "/api/v1/deliveries/read?delivery_id=d1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	first := decodeBody[delivery.Record](t, w)
	if first.ReadAt == nil || !first.ReadAt.Equal(testNow) {
		t.Fatalf("ReadAt = %v, want %v", first.ReadAt, testNow)
	}

	clock.Advance(time.Hour)
	second := decodeBody[delivery.Record](t, do(h.MarkRead, http.MethodPost, "/api/v1/deliveries/read?delivery_id=d1", ""))
	if !second.ReadAt.Equal(testNow) {
		t.Errorf("second ReadAt = %v, want first read time kept", second.ReadAt)
	}

	entries, _ := st.ListLogs(context.Background(), "d1")
	if len(entries) != 1 || entries[0].Event != delivery.EventMarkedRead {
		t.Errorf("logs = %+v, want a single marked_read", entries)
	}

	if w := do(h.MarkRead, http.MethodPost, "/api/v1/deliveries/read?delivery_id=missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing delivery status = %d, want 404", w.Code)
	}
	if w := do(h.MarkRead, http.MethodGet, "/api/v1/deliveries/read?delivery_id=d1", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", w.Code)
	}
}

func TestHandlers_GetDigest(t *testing.T) {
	h, st, _ := setupHandlers(t)
	seedDelivery(t, st, &delivery.Record{ID: "d1", UserID: "user-1", AlertEventID: "e1", Severity: alert.SeverityCritical, AlertType: alert.TypeSuspiciousObject, Channel: delivery.ChannelWeb, Status: delivery.StatusSent, CreatedAt: testNow.Add(-time.Hour)})
	seedDelivery(t, st, &delivery.Record{ID: "d2", UserID: "user-1", AlertEventID: "e1", Severity: alert.SeverityCritical, AlertType: alert.TypeSuspiciousObject, Channel: delivery.ChannelSMS, Status: delivery.StatusSent, CreatedAt: testNow.Add(-time.Hour)})
	seedDelivery(t, st, &delivery.Record{ID: "d3", UserID: "user-1", AlertEventID: "e2", Severity: alert.SeverityLow, Channel: delivery.ChannelWeb, Status: delivery.StatusSent, CreatedAt: testNow.Add(-2 * time.Hour)})
	seedDelivery(t, st, &delivery.Record{ID: "d4", UserID: "user-1", AlertEventID: "e3", Channel: delivery.ChannelWeb, Status: delivery.StatusSent, CreatedAt: testNow.Add(-30 * time.Hour)})

	w := do(h.GetDigest, http.MethodGet, "/api/v1/digest?user_id=user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	d := decodeBody[delivery.Digest](t, w)
	if d.Total != 2 {
		t.Errorf("Total = %d, want 2", d.Total)
	}
	if d.ByChannel[delivery.ChannelWeb] != 2 || d.ByChannel[delivery.ChannelSMS] != 1 {
		t.Errorf("ByChannel = %v", d.ByChannel)
	}
	if !d.Until.Equal(testNow) || !d.Since.Equal(testNow.Add(-DefaultDigestWindow)) {
		t.Errorf("window = [%v, %v)", d.Since, d.Until)
	}
	if len(d.Top) != 2 || d.Top[0].Severity != alert.SeverityCritical {
		t.Errorf("Top = %+v", d.Top)
	}

	since := testNow.Add(-48 * time.Hour).Format(time.RFC3339)
	d = decodeBody[delivery.Digest](t, do(h.GetDigest, http.MethodGet, "/api/v1/digest?user_id=user-1&since="+since, ""))
	if d.Total != 3 {
		t.Errorf("48h Total = %d, want 3", d.Total)
	}

	for _, q := range []string{
		"since=yesterday&user_id=user-1",
		"user_id=user-1&since=2026-03-01T12:00:00Z&until=2026-03-01T11:00:00Z",
		"since=2026-03-01T00:00:00Z",
	} {
		if w := do(h.GetDigest, http.MethodGet, "/api/v1/digest?"+q, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

type fakeMetricsReader struct {
	all map[string]*metrics.ServiceMetrics
}

func (f *fakeMetricsReader) GetServiceMetrics(_ context.Context, name string) (*metrics.ServiceMetrics, error) {
	if m, ok := f.all[name]; ok {
		return m, nil
	}
	return nil, metrics.ErrNoMetrics
}

func (f *fakeMetricsReader) GetAllServiceMetrics(context.Context) (map[string]*metrics.ServiceMetrics, error) {
	out := make(map[string]*metrics.ServiceMetrics, len(f.all))
	for k, v := range f.all {
		out[k] = v
	}
	return out, nil
}

func TestHandlers_GetServiceMetrics(t *testing.T) {
	h, _, _ := setupHandlers(t)
	if w := do(h.GetServiceMetrics, http.MethodGet, "/api/v1/services/metrics", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured status = %d, want 503", w.Code)
	}

	reader := &fakeMetricsReader{all: map[string]*metrics.ServiceMetrics{
		metrics.ServiceNotifier: {ServiceName: metrics.ServiceNotifier, Status: "healthy", MessagesProcessed: 42},
	}}
	h, _, _ = setupHandlers(t, WithMetricsReader(reader))

	resp := decodeBody[ServiceMetricsResponse](t, do(h.GetServiceMetrics, http.MethodGet, "/api/v1/services/metrics", ""))
	if resp.Services[metrics.ServiceNotifier].MessagesProcessed != 42 {
		t.Errorf("notifier = %+v", resp.Services[metrics.ServiceNotifier])
	}
	if got := resp.Services[metrics.ServiceAlertProducer]; got == nil || got.Status != "offline" {
		t.Errorf("alert-producer = %+v, want offline", got)
	}
	if len(resp.KnownServices) != len(metrics.ServiceNames) {
		t.Errorf("KnownServices = %v", resp.KnownServices)
	}

	one := decodeBody[metrics.ServiceMetrics](t, do(h.GetServiceMetrics, http.MethodGet, "/api/v1/services/metrics?service=notifier-api", ""))
	if one.ServiceName != metrics.ServiceNotifierAPI || one.Status != "offline" {
		t.Errorf("single service = %+v", one)
	}
}
