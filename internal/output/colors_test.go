package output

import (
	"bytes"
	"testing"
)

func TestColorSchemes(t *testing.T) {
	for name, scheme := range map[string]*ColorScheme{
		"default":  DefaultColorScheme(),
		"no color": NoColorScheme(),
		"forced":   ForcedColorScheme(),
	} {
		if scheme.Title == nil || scheme.Label == nil || scheme.Value == nil || scheme.Dim == nil {
			t.Errorf("%s scheme has nil text colors", name)
		}
		if scheme.Success == nil || scheme.Warn == nil || scheme.Error == nil || scheme.Highlight == nil {
			t.Errorf("%s scheme has nil status colors", name)
		}
	}

	if got := NoColorScheme().Error.Sprint("boom"); got != "boom" {
		t.Errorf("NoColorScheme().Error.Sprint() = %q, want plain text", got)
	}
	if got := ForcedColorScheme().Error.Sprint("boom"); got == "boom" {
		t.Error("ForcedColorScheme().Error.Sprint() should emit color codes")
	}
}

func TestIcons(t *testing.T) {
	tests := []struct {
		name string
		fn   func(bool) string
		want string
	}{
		{name: "success", fn: SuccessIcon, want: "✓"},
		{name: "error", fn: ErrorIcon, want: "✗"},
		{name: "warning", fn: WarningIcon, want: "⚠"},
	}

	for _, tt := range tests {
		if got := tt.fn(true); got != tt.want {
			t.Errorf("%s icon without color = %q, want %q", tt.name, got, tt.want)
		}
		if got := tt.fn(false); !bytes.Contains([]byte(got), []byte(tt.want)) {
			t.Errorf("%s icon with color = %q, should contain %q", tt.name, got, tt.want)
		}
	}
}

func TestUseColors(t *testing.T) {
	var buf bytes.Buffer

	if IsTerminal(&buf) {
		t.Error("IsTerminal() should be false for a buffer")
	}
	if UseColors(&buf, true) {
		t.Error("UseColors() should be false when noColor is set")
	}

	t.Setenv("NO_COLOR", "1")
	t.Setenv("FORCE_COLOR", "1")
	if UseColors(&buf, false) {
		t.Error("UseColors() should honor NO_COLOR first")
	}

	t.Setenv("NO_COLOR", "")
	if !UseColors(&buf, false) {
		t.Error("UseColors() should honor FORCE_COLOR")
	}
}
