package template

import "testing"

func TestRender_Substitution(t *testing.T) {
	got := Render("Hello {{name}}, welcome to {{product}}!", map[string]any{
		"name":    "Ada",
		"product": "Herald",
	})
	want := "Hello Ada, welcome to Herald!"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRender_WhitespaceInsideBraces(t *testing.T) {
	got := Render("Hi {{ name }}", map[string]any{"name": "Ada"})
	if got != "Hi Ada" {
		t.Errorf("got %q", got)
	}
}

func TestRender_MissingVariableRendersEmpty(t *testing.T) {
	got := Render("Hello {{name}}, your code is {{code}}", map[string]any{"name": "Ada"})
	want := "Hello Ada, your code is "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRender_NilVars(t *testing.T) {
	got := Render("Hello {{name}}", nil)
	if got != "Hello " {
		t.Errorf("got %q", got)
	}
}

func TestRender_NonStringValues(t *testing.T) {
	got := Render("{{count}} attempts in {{hours}}h", map[string]any{
		"count": 3,
		"hours": 1.5,
	})
	if got != "3 attempts in 1.5h" {
		t.Errorf("got %q", got)
	}
}

func TestRender_DottedAndDashedNames(t *testing.T) {
	got := Render("{{user.name}} / {{reset-url}}", map[string]any{
		"user.name": "Ada",
		"reset-url": "https://example.com/r",
	})
	if got != "Ada / https://example.com/r" {
		t.Errorf("got %q", got)
	}
}

func TestRender_NoVariables(t *testing.T) {
	content := "Plain text without placeholders"
	if got := Render(content, map[string]any{"name": "Ada"}); got != content {
		t.Errorf("got %q", got)
	}
}

func TestRender_Empty(t *testing.T) {
	if got := Render("", map[string]any{"name": "Ada"}); got != "" {
		t.Errorf("got %q", got)
	}
}
