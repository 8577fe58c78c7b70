package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type sample struct {
	ID      string   `json:"id" yaml:"id"`
	Sent    bool     `json:"sent" yaml:"sent"`
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`
	Secret  string   `json:"-" yaml:"-"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("json format did not return JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML).(*YAMLFormatter); !ok {
		t.Error("yaml format did not return YAMLFormatter")
	}
	if _, ok := NewFormatter(FormatTable).(*TableFormatter); !ok {
		t.Error("table format did not return TableFormatter")
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{}).Format(&buf, sample{ID: "a", Sent: true, Secret: "s3cr3t"}); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got["id"] != "a" || got["sent"] != true {
		t.Errorf("got %v", got)
	}
	if strings.Contains(buf.String(), "s3cr3t") {
		t.Error("ignored field was rendered")
	}
}

func TestJSONFormatter_Verbatim(t *testing.T) {
	var buf bytes.Buffer
	cmd := []string{"sh", "-c", "run <root> && echo done"}
	if err := (&JSONFormatter{}).Format(&buf, sample{ID: "a&b", Command: cmd}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`"a&b"`, `"run <root> && echo done"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
	if strings.Contains(out, `\u0026`) || strings.Contains(out, `\u003c`) {
		t.Errorf("output was HTML-escaped: %q", out)
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLFormatter{}).Format(&buf, sample{ID: "a", Command: []string{"node", "--stdio"}}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"id: a", "sent: false", "- --stdio"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
