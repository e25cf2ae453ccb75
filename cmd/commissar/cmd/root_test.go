package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solatis/commissar/internal/core/api"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		wantErr bool
	}{
		{"info", "json", false},
		{"debug", "text", false},
		{"WARN", "JSON", false},
		{"loud", "json", true},
		{"info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			_, err := newLogger(&bytes.Buffer{}, tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("newLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(good, []byte(`
rules:
  - name: title-required
    body: "check Widget; on Save; has_required title"
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte(`
rules:
  - name: title-required
    body: "check Widget; on Save; has_required title"
  - name: broken
    body: "check Widget; on Save; has title"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("valid file", func(t *testing.T) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&bytes.Buffer{})
		rootCmd.SetArgs([]string{"validate", good})
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("validate failed: %v", err)
		}
		if !strings.Contains(out.String(), "1 rules OK") {
			t.Errorf("unexpected output %q", out.String())
		}
	})

	t.Run("invalid rule", func(t *testing.T) {
		rootCmd.SetOut(&bytes.Buffer{})
		rootCmd.SetErr(&bytes.Buffer{})
		rootCmd.SetArgs([]string{"validate", bad})
		err := rootCmd.Execute()
		if err == nil || err.Error() != "1 of 2 rules invalid" {
			t.Errorf("validate error = %v, want 1 of 2 rules invalid", err)
		}
	})
}

func TestCheckCommand_File(t *testing.T) {
	t.Setenv("COMMISSAR_DATABASE_URL", "")
	dir := t.TempDir()
	rulesFile := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(rulesFile, []byte(`
rules:
  - name: title-required
    message: can't be blank
    body: "check Widget; on Save; has_required title; to_complete"
  - name: part-unique
    body: "check Widget; on Save; for_each parts; has_unique sku"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	writeDoc := func(name, doc string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	good := writeDoc("good.json", `{"type": "Widget", "fields": {"title": "Sprocket"},
		"children": {"parts": [{"type": "Part", "fields": {"sku": "A-1"}}]}}`)
	bad := writeDoc("bad.json", `{"type": "Widget", "fields": {}}`)

	run := func(doc string) (api.Response, error) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&bytes.Buffer{})
		rootCmd.SetArgs([]string{"check", "--rules", rulesFile, "--file", doc})
		err := rootCmd.Execute()

		var resp api.Response
		if jsonErr := json.Unmarshal(out.Bytes(), &resp); jsonErr != nil {
			t.Fatalf("output %q is not a response: %v", out.String(), jsonErr)
		}
		return resp, err
	}

	t.Run("passing record", func(t *testing.T) {
		resp, err := run(good)
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if !resp.Passed || len(resp.Errors) != 0 {
			t.Errorf("response = %+v, want passed", resp)
		}
	})

	t.Run("aborting record", func(t *testing.T) {
		resp, err := run(bad)
		if err == nil {
			t.Fatal("check succeeded, want abort error")
		}
		if !resp.Abort || len(resp.Errors) != 1 || resp.Errors[0].Message != "can't be blank" {
			t.Errorf("response = %+v", resp)
		}
	})
}
