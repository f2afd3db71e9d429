package buyers

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadCSVAssignsByAttemptID(t *testing.T) {
	path := writeFile(t, "buyers.csv", `user_id,token
u1,alpha
u2,beta
u3,gamma`)

	list, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if list.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", list.Len())
	}

	tests := []struct {
		id       int
		wantUser string
	}{
		{1, "u1"},
		{2, "u2"},
		{3, "u3"},
		{4, "u1"},
		{302, "u2"},
	}
	for _, tt := range tests {
		b := list.ForAttempt(tt.id)
		if b["user_id"] != tt.wantUser {
			t.Errorf("ForAttempt(%d) user_id = %q, want %q", tt.id, b["user_id"], tt.wantUser)
		}
		if b[IDField] == "" {
			t.Errorf("ForAttempt(%d) missing id field", tt.id)
		}
	}
}

func TestLoadJSONKeepsLargeNumbers(t *testing.T) {
	path := writeFile(t, "buyers.json", `[
		{"user_id": 12345678, "vip": true},
		{"user_id": 7, "vip": false}
	]`)

	list, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	b := list.ForAttempt(1)
	if b["user_id"] != "12345678" || b["vip"] != "true" {
		t.Fatalf("ForAttempt(1) = %v", b)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"header only", "b.csv", "user_id\n", "at least one buyer"},
		{"ragged row", "b.csv", "user_id,token\nu1\n", ""},
		{"unnamed column", "b.csv", "user_id,\nu1,x\n", "no name"},
		{"empty json", "b.json", "[]", "empty"},
		{"empty object", "b.json", `[{}]`, "empty"},
		{"not an array", "b.json", `{"user_id": 1}`, "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestNilListYieldsAttemptID(t *testing.T) {
	var list *List
	b := list.ForAttempt(42)
	if len(b) != 1 || b[IDField] != "42" {
		t.Fatalf("ForAttempt(42) = %v", b)
	}
}

func TestRender(t *testing.T) {
	b := Buyer{"id": "9", "user_id": "u9"}
	tests := []struct {
		in, want string
	}{
		{`{"user":"{{user_id}}","req":{{id}}}`, `{"user":"u9","req":9}`},
		{"no placeholders", "no placeholders"},
		{"{{unknown}} stays", "{{unknown}} stays"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Render(tt.in, b); got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestForAttemptConcurrentUse(t *testing.T) {
	list, err := NewList([]Buyer{{"user_id": "a"}, {"user_id": "b"}})
	if err != nil {
		t.Fatalf("NewList() error = %v", err)
	}
	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			b := list.ForAttempt(id)
			b["user_id"] = "mutated"
		}(i)
	}
	wg.Wait()
	if got := list.ForAttempt(1)["user_id"]; got != "a" {
		t.Fatalf("shared buyer was mutated: %q", got)
	}
}
