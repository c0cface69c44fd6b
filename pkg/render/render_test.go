package render

import (
	"bytes"
	"html/template"
	"strings"
	"testing"

	"fitverse/pkg/workoutapi"
)

type workoutsData struct {
	Workouts []workoutapi.Workout
	Form     struct{ Name, Minutes string }
}

type editData struct {
	Workout      workoutapi.Workout
	Minutes      string
	MinutesKnown bool
}

func TestNewParsesEveryPage(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, name := range []string{"login", "register", "workouts", "edit", "confirm_delete"} {
		if !e.Has(name) {
			t.Fatalf("page %q not loaded", name)
		}
	}
}

func TestWorkoutCard(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	added, _ := workoutapi.ParseTimestamp("2024-02-01T10:00:00Z")
	page := Page{
		Title:         "Workouts",
		Authenticated: true,
		CSRF:          template.HTML(`<input type="hidden" name="gorilla.csrf.Token" value="t">`),
		Flash:         &Flash{Level: "success", Message: "Workout Added!"},
		Data: workoutsData{Workouts: []workoutapi.Workout{
			{ID: "w1", Name: "Run", DurationLabel: "30 minutes", Status: workoutapi.StatusPending, DateAdded: added},
		}},
	}

	out, err := e.Render("workouts", page)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{
		"<h3>Run</h3>",
		"Duration: 30 minutes",
		"Date Added: Feb 1, 2024",
		">PENDING<",
		"Mark Completed",
		"Workout Added!",
		`action="/logout"`,
		`name="gorilla.csrf.Token"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered page missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, `class="card workout"`) != 1 {
		t.Fatalf("expected exactly one workout card")
	}
}

func TestEscapesUserContent(t *testing.T) {
	e, _ := New()
	page := Page{Data: workoutsData{Workouts: []workoutapi.Workout{{ID: "w1", Name: "<script>alert(1)</script>"}}}}
	out, err := e.Render("workouts", page)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Fatalf("workout name was not escaped")
	}
	if !strings.Contains(out, "Date Added: N/A") || !strings.Contains(out, ">PENDING<") {
		t.Fatalf("zero-value fallbacks missing:\n%s", out)
	}
}

func TestEditUnparsableDuration(t *testing.T) {
	e, _ := New()
	var buf bytes.Buffer
	err := e.Execute(&buf, "edit", Page{Data: editData{
		Workout: workoutapi.Workout{ID: "w1", Name: "Yoga", DurationLabel: "half an hour"},
		Minutes: workoutapi.NotAvailable,
	}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `value="N/A"`) || !strings.Contains(out, "has no minute count") {
		t.Fatalf("edit page missing N/A fallback:\n%s", out)
	}
}

func TestUnknownPage(t *testing.T) {
	e, _ := New()
	var buf bytes.Buffer
	if err := e.Execute(&buf, "missing", Page{}); err == nil {
		t.Fatalf("Execute(missing) error = nil")
	}
	if buf.Len() != 0 {
		t.Fatalf("partial output written on failure")
	}
	var nilEngine *Engine
	if _, err := nilEngine.Render("login", nil); err == nil {
		t.Fatalf("nil engine Render() error = nil")
	}
}
