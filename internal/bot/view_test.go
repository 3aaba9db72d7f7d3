package bot

import (
	"strings"
	"testing"
	"time"

	"daily-driver/internal/model"
)

func TestFormatHome(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	empty := formatHome(nil, nil, now)
	if !strings.Contains(empty, "Saturday, 1 March") || !strings.Contains(empty, "/login") {
		t.Errorf("Unexpected home for signed-out user:\n%s", empty)
	}

	snap := &model.UserData{ID: "ann", Document: model.Document{
		Name: "Ann <3",
		Categories: []model.Category{
			{ID: "c1", Name: "Work", Tasks: []model.Task{{ID: "t1", Task: "report"}}},
			{ID: "c2", Name: "Home", Tasks: []model.Task{{ID: "t2", Task: "a"}, {ID: "t3", Task: "b"}}},
		},
	}}
	recent := []model.Task{{ID: "t1", Task: "report"}}
	got := formatHome(snap, recent, now)
	for _, want := range []string{"Hi, Ann &lt;3!", "Work · 1 task", "Home · 2 tasks", "• report"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected home to contain %q:\n%s", want, got)
		}
	}
}

func TestFormatProfile(t *testing.T) {
	snap := &model.UserData{ID: "ann", Document: model.Document{
		Name:        "Ann",
		Email:       "ann@example.com",
		CreatedAt:   time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC),
		RecentTasks: []model.Task{{ID: "t1"}, {ID: "t2"}, {ID: "t3"}},
	}}
	got := formatProfile(snap)
	for _, want := range []string{"<b>Ann</b>", "ann@example.com", "Member since 17 May 2024", "Total tasks: 3"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected profile to contain %q:\n%s", want, got)
		}
	}

	bare := formatProfile(&model.UserData{ID: "bob"})
	for _, want := range []string{"<b>User</b>", "Member since N/A", "Total tasks: 0"} {
		if !strings.Contains(bare, want) {
			t.Errorf("Expected bare profile to contain %q:\n%s", want, bare)
		}
	}
}

func TestFindTask(t *testing.T) {
	snap := &model.UserData{Document: model.Document{Categories: []model.Category{
		{ID: "c1", Tasks: []model.Task{{ID: "t1", Task: "one"}}},
		{ID: "c2", Tasks: []model.Task{{ID: "t2", Task: "two"}}},
	}}}

	categoryID, task, ok := findTask(snap, "t2")
	if !ok || categoryID != "c2" || task.Task != "two" {
		t.Errorf("findTask(t2) = %q, %+v, %v", categoryID, task, ok)
	}
	if _, _, ok := findTask(snap, "missing"); ok {
		t.Error("Expected missing task not to be found")
	}
	if _, _, ok := findTask(nil, "t1"); ok {
		t.Error("Expected nothing found in an empty cache")
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data       string
		wantAction string
		wantArg    string
	}{
		{"open:c1", cbOpenPrefix, "c1"},
		{"delcat:c1", cbDeleteCat, "c1"},
		{"confirm:c1", cbConfirmPrefix, "c1"},
		{"cancel:c1", cbCancelPrefix, "c1"},
		{"deltask:t9", cbDeleteTask, "t9"},
		{"other", "", ""},
	}
	for _, tt := range tests {
		action, arg := parseCallback(tt.data)
		if action != tt.wantAction || arg != tt.wantArg {
			t.Errorf("parseCallback(%q) = %q, %q; want %q, %q", tt.data, action, arg, tt.wantAction, tt.wantArg)
		}
	}
}

func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	id := "123e4567-e89b-12d3-a456-426614174000"
	c := model.Category{ID: id, Name: "Work", Tasks: []model.Task{{ID: id, Task: "report"}}}

	kb, ok := taskKeyboard(c)
	if !ok {
		t.Fatal("Expected a keyboard for a category with tasks")
	}
	rows := append(kb.InlineKeyboard, categoryListKeyboard([]model.Category{c}).InlineKeyboard...)
	rows = append(rows, confirmKeyboard(id).InlineKeyboard...)
	for _, row := range rows {
		for _, btn := range row {
			if btn.CallbackData == nil || len(*btn.CallbackData) > 64 {
				t.Errorf("Callback data for %q is missing or too long", btn.Text)
			}
		}
	}

	if _, ok := taskKeyboard(model.Category{ID: "empty"}); ok {
		t.Error("Expected no keyboard for an empty category")
	}
}

func TestInputHelpers(t *testing.T) {
	if !isSkipInput(" Skip ") || !isSkipInput(btnSkip) || !isSkipInput("-") || isSkipInput("buy milk") {
		t.Error("isSkipInput mismatch")
	}
	if !isCancelDialogInput(btnCancelDialog) || isCancelDialogInput("keep going") {
		t.Error("isCancelDialogInput mismatch")
	}
	if got := shortText("a very long task name", 6); got != "a ver…" {
		t.Errorf("shortText = %q", got)
	}
	if got := plural(0, "task"); got != "0 tasks" {
		t.Errorf("plural = %q", got)
	}
	if got := formatCategoryList(nil, "x<y"); got != "No categories match «x&lt;y»." {
		t.Errorf("formatCategoryList = %q", got)
	}
}
