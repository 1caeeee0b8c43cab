package output

import (
	"bytes"
	"strings"
	"testing"
)

type pageRow struct {
	PageNumber uint32 `json:"pgno" yaml:"pgno" table:"PGNO"`
	Size       int    `json:"size" yaml:"size" table:"SIZE"`
	Hash       string `json:"hash" yaml:"hash" table:"HASH,wide"`
	internal   int
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
	if _, ok := NewFormatter(FormatJSON, false).(*JSONFormatter); !ok {
		t.Error("json: expected *JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML, false).(*YAMLFormatter); !ok {
		t.Error("yaml: expected *YAMLFormatter")
	}
	tf, ok := NewFormatter("unknown", true).(*TableFormatter)
	if !ok {
		t.Fatal("unknown: expected *TableFormatter")
	}
	if !tf.Wide {
		t.Error("Wide not propagated")
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	rows := []pageRow{{PageNumber: 1, Size: 4096, Hash: "ab"}}
	if err := (&JSONFormatter{}).Format(&buf, rows); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"pgno": 1`, `"size": 4096`, `"hash": "ab"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	rows := []pageRow{{PageNumber: 7, Size: 512}}
	if err := (&YAMLFormatter{}).Format(&buf, rows); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"- pgno: 7", "  size: 512"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
