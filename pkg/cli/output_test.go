package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type speakerRows [][]string

func (r speakerRows) TableHeaders() []string { return []string{"ID", "VOICE"} }
func (r speakerRows) TableRows() [][]string  { return r }

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{"name": "test", "value": 123}

	if err := Output(data, OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if result["name"] != "test" {
		t.Errorf("name = %v, want %q", result["name"], "test")
	}
}

func TestOutput_YAML(t *testing.T) {
	tests := []struct {
		name   string
		format OutputFormat
	}{
		{"explicit", FormatYAML},
		{"default", ""},
		{"raw fallback", FormatRaw},
		{"table fallback", FormatTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Output(map[string]int{"count": 42}, OutputOptions{Format: tt.format, Writer: &buf}); err != nil {
				t.Fatalf("Output error: %v", err)
			}
			if !strings.Contains(buf.String(), "count: 42") {
				t.Errorf("Output should be YAML, got: %s", buf.String())
			}
		})
	}
}

func TestOutput_Raw(t *testing.T) {
	for _, data := range []any{[]byte("raw data"), "raw data"} {
		var buf bytes.Buffer
		if err := Output(data, OutputOptions{Format: FormatRaw, Writer: &buf}); err != nil {
			t.Fatalf("Output error: %v", err)
		}
		if buf.String() != "raw data" {
			t.Errorf("Output = %q, want %q", buf.String(), "raw data")
		}
	}
}

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	rows := speakerRows{{"Speaker 1", "low"}, {"Speaker 2", "high"}}

	if err := Output(rows, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "VOICE", "Speaker 1", "Speaker 2", "high"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestOutput_TableEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(speakerRows{}, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if !strings.Contains(buf.String(), "(none)") {
		t.Errorf("empty table = %q", buf.String())
	}
}

func TestOutput_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Output("data", OutputOptions{Format: "invalid", Writer: &buf}); err == nil {
		t.Error("Output should fail for unsupported format")
	}
}

func TestOutput_ToFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "output.json")

	if err := Output(map[string]string{"key": "value"}, OutputOptions{Format: FormatJSON, File: filePath}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	content, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	var result map[string]string
	if err := json.Unmarshal(content, &result); err != nil {
		t.Fatalf("Invalid JSON in file: %v", err)
	}
	if result["key"] != "value" {
		t.Errorf("key = %q, want %q", result["key"], "value")
	}
}

func TestOutput_JSONIndent(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(map[string]string{"key": "value"}, OutputOptions{Format: FormatJSON, Writer: &buf, Indent: "    "}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if !strings.Contains(buf.String(), "    \"key\"") {
		t.Errorf("Output should be indented, got: %s", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in     string
		want   OutputFormat
		hasErr bool
	}{
		{"", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"json", FormatJSON, false},
		{"table", FormatTable, false},
		{"raw", FormatRaw, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.hasErr {
				t.Fatalf("ParseOutputFormat(%q) err = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestKeyValues(t *testing.T) {
	out := KeyValues(NewStyles(DefaultTheme), [2]string{"speakers", "2"}, [2]string{"current", "Speaker 1"})
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "speakers:") || !strings.HasSuffix(lines[0], " 2") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "Speaker 1") {
		t.Errorf("line 1 = %q", lines[1])
	}
}
