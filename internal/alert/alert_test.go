package alert

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func validEvent() *Event {
	return &Event{
		ID:       "evt-1",
		UserID:   "user-1",
		Type:     TypeSuspiciousObject,
		Severity: SeverityCritical,
		Title:    "Weapon detected",
		Message:  "Gun detected at front door",
		DetectedObjects: []DetectedObject{
			{Class: "gun", Confidence: 0.95},
			{Class: "person", Confidence: 0.85},
		},
		OccurredAt: time.Date(2026, 3, 1, 23, 15, 0, 0, time.UTC),
		Context: Context{
			Details: SuspiciousObjectContext{Zone: "front_door", CameraID: "cam-7"},
			Extra:   map[string]string{"site": "hq"},
		},
	}
}

func TestTypeCategory(t *testing.T) {
	tests := []struct {
		typ  Type
		want Category
	}{
		{TypeSuspiciousObject, CategorySuspiciousObjects},
		{TypeAnomaly, CategoryAnomalies},
		{TypeTrendChange, CategoryAnomalies},
		{TypeHighFrequency, CategoryHighFrequency},
		{TypeUnusualTime, CategoryUnusualTime},
		{Type("bogus"), ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if got := tt.typ.Category(); got != tt.want {
				t.Errorf("Category() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		sev      Severity
		escalate Severity
		rank     int
	}{
		{SeverityLow, SeverityMedium, 1},
		{SeverityMedium, SeverityHigh, 2},
		{SeverityHigh, SeverityCritical, 3},
		{SeverityCritical, SeverityCritical, 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.sev), func(t *testing.T) {
			if got := tt.sev.Escalate(); got != tt.escalate {
				t.Errorf("Escalate() = %q, want %q", got, tt.escalate)
			}
			if got := tt.sev.Rank(); got != tt.rank {
				t.Errorf("Rank() = %d, want %d", got, tt.rank)
			}
		})
	}

	if !SeverityHigh.AtLeast(SeverityMedium) || !SeverityHigh.AtLeast(SeverityHigh) {
		t.Error("high should meet medium and high floors")
	}
	if SeverityLow.AtLeast(SeverityHigh) {
		t.Error("low should not meet a high floor")
	}
}

func TestParseSeverity(t *testing.T) {
	got, err := ParseSeverity(" CRITICAL ")
	if err != nil || got != SeverityCritical {
		t.Errorf("ParseSeverity() = %q, %v", got, err)
	}
	if _, err := ParseSeverity("urgent"); err == nil {
		t.Error("ParseSeverity(urgent) should fail")
	}
}

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *Event)
		wantErr string
	}{
		{name: "valid", mutate: func(e *Event) {}},
		{name: "missing id", mutate: func(e *Event) { e.ID = "" }, wantErr: "id is required"},
		{name: "missing user", mutate: func(e *Event) { e.UserID = "" }, wantErr: "user_id is required"},
		{name: "unknown type", mutate: func(e *Event) { e.Type = "intrusion"; e.Context = Context{} }, wantErr: "unknown alert_type"},
		{name: "unknown severity", mutate: func(e *Event) { e.Severity = "urgent" }, wantErr: "unknown severity"},
		{name: "zero time", mutate: func(e *Event) { e.OccurredAt = time.Time{} }, wantErr: "occurred_at is required"},
		{name: "bad confidence", mutate: func(e *Event) { e.DetectedObjects[0].Confidence = 1.5 }, wantErr: "outside [0,1]"},
		{name: "context kind mismatch", mutate: func(e *Event) { e.Type = TypeAnomaly }, wantErr: "does not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			tt.mutate(e)
			err := e.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEvent_AverageConfidence(t *testing.T) {
	e := validEvent()
	avg, ok := e.AverageConfidence()
	if !ok || avg < 0.899 || avg > 0.901 {
		t.Errorf("AverageConfidence() = %v, %v, want 0.9, true", avg, ok)
	}
	e.DetectedObjects = nil
	if _, ok := e.AverageConfidence(); ok {
		t.Error("AverageConfidence() with no objects should report false")
	}
}

func TestContext_JSON(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want string
	}{
		{
			name: "anomaly with extra",
			ctx:  Context{Details: AnomalyContext{Metric: "motion", Baseline: 2, Observed: 9}, Extra: map[string]string{"site": "hq"}},
			want: `{"baseline":2,"extra":{"site":"hq"},"kind":"anomaly","metric":"motion","observed":9}`,
		},
		{
			name: "high frequency",
			ctx:  Context{Details: HighFrequencyContext{Count: 12, WindowMinutes: 10}},
			want: `{"count":12,"kind":"high_frequency","window_minutes":10}`,
		},
		{
			name: "extra only",
			ctx:  Context{Extra: map[string]string{"note": "manual"}},
			want: `{"extra":{"note":"manual"}}`,
		},
		{
			name: "empty",
			ctx:  Context{},
			want: `{}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.ctx)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}

			var back Context
			if err := json.Unmarshal(got, &back); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if back.Details != tt.ctx.Details {
				t.Errorf("Details = %#v, want %#v", back.Details, tt.ctx.Details)
			}
			if len(back.Extra) != len(tt.ctx.Extra) {
				t.Errorf("Extra = %v, want %v", back.Extra, tt.ctx.Extra)
			}
		})
	}
}

func TestContext_UnmarshalErrors(t *testing.T) {
	var c Context
	if err := json.Unmarshal([]byte(`{"kind":"weather"}`), &c); err == nil {
		t.Error("unknown kind should fail")
	}
	if err := json.Unmarshal([]byte(`{"kind":"high_frequency","count":"many"}`), &c); err == nil {
		t.Error("mistyped field should fail")
	}
	if err := json.Unmarshal([]byte(`null`), &c); err != nil {
		t.Errorf("null context error = %v", err)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, ct := range []string{ContentTypeJSON, ContentTypeProtobuf, "", "application/json; charset=utf-8"} {
		t.Run(ct, func(t *testing.T) {
			want := validEvent()
			data, err := Encode(want, ct)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := Decode(data, ct)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.ID != want.ID || got.UserID != want.UserID || got.Type != want.Type || got.Severity != want.Severity {
				t.Errorf("Decode() = %+v, want %+v", got, want)
			}
			if !got.OccurredAt.Equal(want.OccurredAt) {
				t.Errorf("OccurredAt = %v, want %v", got.OccurredAt, want.OccurredAt)
			}
			if len(got.DetectedObjects) != 2 || got.DetectedObjects[0] != want.DetectedObjects[0] {
				t.Errorf("DetectedObjects = %+v", got.DetectedObjects)
			}
			if got.Context.Details != want.Context.Details {
				t.Errorf("Context.Details = %#v, want %#v", got.Context.Details, want.Context.Details)
			}
			if got.Context.Extra["site"] != "hq" {
				t.Errorf("Context.Extra = %v", got.Context.Extra)
			}
		})
	}
}

func TestCodec_Errors(t *testing.T) {
	if _, err := Encode(validEvent(), "text/xml"); err == nil {
		t.Error("Encode() with unsupported content type should fail")
	}
	if _, err := Decode([]byte("{}"), "text/xml"); err == nil {
		t.Error("Decode() with unsupported content type should fail")
	}
	if _, err := Decode([]byte("not json"), ContentTypeJSON); err == nil {
		t.Error("Decode() with invalid json should fail")
	}
	if _, err := Decode([]byte{0xff, 0xff, 0xff}, ContentTypeProtobuf); err == nil {
		t.Error("Decode() with invalid protobuf should fail")
	}
}
