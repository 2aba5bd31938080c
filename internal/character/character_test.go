package character_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/troupelabs/troupe/internal/character"
)

func writeSheet(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing sheet: %v", err)
	}
	return path
}

const jamesSheet = `
name = "james"
model = "gemini-2.5-flash"
persona = "You are James, a taciturn innkeeper."
voice = "en-GB-RyanNeural"

[options]
temperature = 0.9
max_output_tokens = 512
`

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeSheet(t, t.TempDir(), "james.toml", jamesSheet)
	sheet, err := character.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if sheet.Name != "james" {
		t.Errorf("Name = %q", sheet.Name)
	}
	if sheet.Model != "gemini-2.5-flash" {
		t.Errorf("Model = %q", sheet.Model)
	}
	if sheet.Voice != "en-GB-RyanNeural" {
		t.Errorf("Voice = %q", sheet.Voice)
	}

	opts := sheet.SessionOptions()
	if opts["system_instruction"] != "You are James, a taciturn innkeeper." {
		t.Errorf("system_instruction = %v", opts["system_instruction"])
	}
	if opts["temperature"] != 0.9 {
		t.Errorf("temperature = %v", opts["temperature"])
	}
	if opts["max_output_tokens"] != int64(512) {
		t.Errorf("max_output_tokens = %v (%T)", opts["max_output_tokens"], opts["max_output_tokens"])
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	t.Parallel()

	path := writeSheet(t, t.TempDir(), "typo.toml", `
name = "typo"
model = "gemini-2.5-flash"
personna = "misspelled"
`)
	_, err := character.Load(path)
	if !errors.Is(err, character.ErrInvalidSheet) {
		t.Fatalf("want ErrInvalidSheet, got %v", err)
	}
	if !strings.Contains(err.Error(), "personna") {
		t.Errorf("error should name the unknown key: %v", err)
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cases := []struct {
		file    string
		content string
		want    string
	}{
		{"noname.toml", `model = "gemini-2.5-flash"`, "name is required"},
		{"nomodel.toml", `name = "ghost"`, "model is required"},
	}
	for _, tc := range cases {
		path := writeSheet(t, dir, tc.file, tc.content)
		_, err := character.Load(path)
		if !errors.Is(err, character.ErrInvalidSheet) {
			t.Fatalf("%s: want ErrInvalidSheet, got %v", tc.file, err)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %v should mention %q", tc.file, err, tc.want)
		}
	}
}

func TestSessionOptions_ExplicitOverrideWins(t *testing.T) {
	t.Parallel()

	sheet := &character.Sheet{
		Name:    "bard",
		Model:   "gemini-2.5-pro",
		Persona: "You sing.",
		Options: map[string]any{"system_instruction": "You whisper."},
	}
	if got := sheet.SessionOptions()["system_instruction"]; got != "You whisper." {
		t.Errorf("system_instruction = %v", got)
	}
}

func TestLoadDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSheet(t, dir, "james.toml", jamesSheet)
	writeSheet(t, dir, "mary.toml", `
name = "mary"
model = "gemini-2.5-pro"
persona = "You are Mary, a traveling scholar."
`)
	writeSheet(t, dir, "notes.txt", "not a sheet")

	sheets, err := character.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(sheets) != 2 {
		t.Fatalf("sheets = %d, want 2", len(sheets))
	}
	if _, ok := sheets["james"]; !ok {
		t.Error("missing james")
	}
	if _, ok := sheets["mary"]; !ok {
		t.Error("missing mary")
	}
}

func TestLoadDir_DuplicateName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSheet(t, dir, "a.toml", "name = \"james\"\nmodel = \"gemini-2.5-flash\"")
	writeSheet(t, dir, "b.toml", "name = \"james\"\nmodel = \"gemini-2.5-pro\"")

	_, err := character.LoadDir(dir)
	if !errors.Is(err, character.ErrInvalidSheet) {
		t.Fatalf("want ErrInvalidSheet, got %v", err)
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate: %v", err)
	}
}
