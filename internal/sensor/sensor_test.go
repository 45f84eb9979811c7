package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/skylight-chores/internal/model"
)

// --- モック定義 ---

// mockChecker はCompletionCheckerのテスト用モック。
type mockChecker struct {
	checkFunc func(ctx context.Context, categoryID string) (bool, error)
}

func (m *mockChecker) CheckCategoryCompletion(ctx context.Context, categoryID string) (bool, error) {
	if m.checkFunc != nil {
		return m.checkFunc(ctx, categoryID)
	}
	return true, nil
}

// upperSanitizer はLabelSanitizerのテスト用実装。
type upperSanitizer struct{}

func (upperSanitizer) Sanitize(raw string) string {
	return strings.ToUpper(raw)
}

// mockCollector はRecordSensorUpdateの呼び出しを記録する。
type mockCollector struct {
	updates []string
}

func (m *mockCollector) RecordAuthAttempt(string) {}
func (m *mockCollector) RecordReauth() {}
func (m *mockCollector) RecordFetchFailure(string, string) {}
func (m *mockCollector) RecordHTTPStatus(int) {}
func (m *mockCollector) RecordRequestLatency(time.Duration) {}
func (m *mockCollector) RecordSensorUpdate(id, result string) { m.updates = append(m.updates, id+"="+result) }
func (m *mockCollector) ForgetSensor(string) {}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestSensor(t *testing.T, checker CompletionChecker) (*TaskCompletionSensor, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	s := NewTaskCompletionSensor(
		"entry-1",
		model.Category{ID: "42", Label: "Alice", LinkedToProfile: true},
		checker,
		nil,
		nil,
		newTestLogger(&buf),
	)
	return s, &buf
}

func TestNewTaskCompletionSensor_Identity(t *testing.T) {
	s, _ := newTestSensor(t, &mockChecker{})

	if s.UniqueID() != "skylight_calendar_42_tasks_complete" {
		t.Errorf("UniqueID = %q", s.UniqueID())
	}
	if s.Name() != "Alice Tasks Complete" {
		t.Errorf("Name = %q", s.Name())
	}
	if s.DeviceClass() != "connectivity" {
		t.Errorf("DeviceClass = %q", s.DeviceClass())
	}
	if s.EntryID() != "entry-1" || s.CategoryID() != "42" {
		t.Errorf("EntryID/CategoryID = %q/%q", s.EntryID(), s.CategoryID())
	}
	if s.State() != StateUnknown {
		t.Errorf("初期状態 = %v, want unknown", s.State())
	}
}

func TestNewTaskCompletionSensor_SanitizesLabel(t *testing.T) {
	var buf bytes.Buffer
	s := NewTaskCompletionSensor("e", model.Category{ID: "1", Label: "bob"}, &mockChecker{}, upperSanitizer{}, nil, newTestLogger(&buf))

	if s.Name() != "BOB Tasks Complete" {
		t.Errorf("Name = %q, want %q", s.Name(), "BOB Tasks Complete")
	}
}

func TestTaskCompletionSensor_Update_SetsState(t *testing.T) {
	tests := []struct {
		name      string
		completed bool
		want      State
		wantText  string
	}{
		{"完了", true, StateOn, "Completed"},
		{"未完了", false, StateOff, "Incomplete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCategory string
			s, _ := newTestSensor(t, &mockChecker{
				checkFunc: func(ctx context.Context, categoryID string) (bool, error) {
					gotCategory = categoryID
					return tt.completed, nil
				},
			})

			s.Update(context.Background())

			if gotCategory != "42" {
				t.Errorf("categoryID = %q, want %q", gotCategory, "42")
			}
			if s.State() != tt.want {
				t.Errorf("State = %v, want %v", s.State(), tt.want)
			}
			if s.State().Text() != tt.wantText {
				t.Errorf("Text = %q, want %q", s.State().Text(), tt.wantText)
			}
		})
	}
}

func TestTaskCompletionSensor_Update_ErrorSetsUnknown(t *testing.T) {
	completed := true
	var failNext bool
	s, buf := newTestSensor(t, &mockChecker{
		checkFunc: func(ctx context.Context, categoryID string) (bool, error) {
			if failNext {
				return false, errors.New("authentication failed")
			}
			return completed, nil
		},
	})

	s.Update(context.Background())
	if s.State() != StateOn {
		t.Fatalf("State = %v, want on", s.State())
	}

	failNext = true
	s.Update(context.Background())

	if s.State() != StateUnknown {
		t.Errorf("State = %v, want unknown", s.State())
	}
	if s.State().Text() != "" || s.State().Icon() != "" {
		t.Errorf("不明状態のText/Iconは空であるべき: %q/%q", s.State().Text(), s.State().Icon())
	}
	if !strings.Contains(buf.String(), "authentication failed") {
		t.Error("失敗がログに記録されていない")
	}
}

func TestTaskCompletionSensor_Update_RecordsMetrics(t *testing.T) {
	var buf bytes.Buffer
	collector := &mockCollector{}
	s := NewTaskCompletionSensor("e", model.Category{ID: "7", Label: "x"}, &mockChecker{
		checkFunc: func(ctx context.Context, categoryID string) (bool, error) {
			return false, nil
		},
	}, nil, collector, newTestLogger(&buf))

	s.Update(context.Background())

	if len(collector.updates) != 1 || collector.updates[0] != "skylight_calendar_7_tasks_complete=off" {
		t.Errorf("updates = %v", collector.updates)
	}
}

// 登録解除後のUpdateは状態もメトリクスも更新しないことを検証する。
func TestTaskCompletionSensor_Retire_StopsUpdates(t *testing.T) {
	var buf bytes.Buffer
	collector := &mockCollector{}
	s := NewTaskCompletionSensor("e", model.Category{ID: "7", Label: "x"}, &mockChecker{}, nil, collector, newTestLogger(&buf))

	s.Retire()
	s.Update(context.Background())

	if s.State() != StateUnknown {
		t.Errorf("state = %v, want unknown", s.State())
	}
	if len(collector.updates) != 0 {
		t.Errorf("retired sensor recorded metrics: %v", collector.updates)
	}
	if s.Snapshot().UpdatedAt != nil {
		t.Error("retired sensor should not record an update time")
	}
}

func TestTaskCompletionSensor_Snapshot(t *testing.T) {
	s, _ := newTestSensor(t, &mockChecker{})

	before := s.Snapshot()
	if before.UpdatedAt != nil {
		t.Error("未更新のUpdatedAtはnilであるべき")
	}

	s.Update(context.Background())
	snap := s.Snapshot()

	if snap.State != StateOn || snap.StateText != "Completed" || snap.Icon != "mdi:clipboard-check" {
		t.Errorf("Snapshot = %+v", snap)
	}
	if snap.UpdatedAt == nil {
		t.Error("更新後のUpdatedAtがnil")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal がエラーを返した: %v", err)
	}
	if !strings.Contains(string(data), `"state":true`) {
		t.Errorf("JSON = %s, want state:true", data)
	}
}

func TestState_MarshalJSON(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateOn, "true"},
		{StateOff, "false"},
		{StateUnknown, "null"},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.state)
		if err != nil {
			t.Fatalf("Marshal(%v) がエラーを返した: %v", tt.state, err)
		}
		if string(data) != tt.want {
			t.Errorf("Marshal(%v) = %s, want %s", tt.state, data, tt.want)
		}
	}
}
