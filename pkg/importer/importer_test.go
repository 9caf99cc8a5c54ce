package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/forest6511/vaultx/pkg/codec"
	"github.com/forest6511/vaultx/pkg/vault"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		content   string
		source    Source
		wantCount int
		wantLabel string
		wantErr   error
	}{
		{
			name:      "csv by extension",
			file:      "export.csv",
			content:   "URL,Login,Pwd\na.com,alice,pw\nb.com,,pw\n",
			wantCount: 1,
			wantLabel: "CSV",
		},
		{
			name:      "json by extension",
			file:      "backup.JSON",
			content:   `{"entries":[{"site":"a","username":"u","password":"p"}]}`,
			wantCount: 1,
			wantLabel: "JSON",
		},
		{
			name:    "unknown extension",
			file:    "data.txt",
			content: "site,user,password\na,b,c\n",
			wantErr: codec.ErrFormat,
		},
		{
			name:    "no entries",
			file:    "empty.json",
			content: `{"entries":[]}`,
			wantErr: ErrNoEntries,
		},
		{
			name:    "only incomplete rows",
			file:    "partial.csv",
			content: "site,user,password\na,,c\n",
			wantErr: ErrNoEntries,
		},
		{
			name:      "lastpass source ignores extension",
			file:      "lp.txt",
			content:   "url,username,password,totp,extra,name,grouping,fav\nhttps://github.com,jd,pw,,,GitHub,,0\n",
			source:    SourceLastPass,
			wantCount: 1,
			wantLabel: "LastPass",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)

			batch, err := Load(context.Background(), path, tt.source)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(batch.Candidates) != tt.wantCount {
				t.Errorf("candidates = %d, want %d", len(batch.Candidates), tt.wantCount)
			}
			if batch.Label() != tt.wantLabel {
				t.Errorf("Label() = %q, want %q", batch.Label(), tt.wantLabel)
			}
		})
	}
}

func TestLoad_UnknownExtensionDoesNotRead(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), SourceVaultX)
	var fe *codec.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *codec.FormatError, got %v", err)
	}
}

func TestLoadAndMerge(t *testing.T) {
	path := writeFile(t, "import.csv", "Site,Username,Password,Notes\nexample.com,Bob,pw,\"a, \"\"b\"\"\"\nother.org,amy,pw2,\n")
	store := vault.NewStore()
	if _, err := store.Add(vault.Fields{Site: "EXAMPLE.com", Username: "bob", Password: "x"}); err != nil {
		t.Fatal(err)
	}

	batch, err := Load(context.Background(), path, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	report, err := Merge(batch.Candidates, store)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if report.Imported != 1 || report.Skipped != 1 {
		t.Errorf("report = %+v, want 1 imported 1 skipped", report)
	}
	if store.Records()[0].Site != "other.org" {
		t.Errorf("front record = %q, want other.org", store.Records()[0].Site)
	}
}

func TestReadFile(t *testing.T) {
	path := writeFile(t, "a.csv", "hello")

	data, err := ReadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("ReadFile() = %q", data)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ReadFile(ctx, path); !errors.Is(err, context.Canceled) {
		t.Errorf("ReadFile(cancelled) error = %v, want context.Canceled", err)
	}

	if _, err := ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv")); err == nil ||
		!strings.Contains(err.Error(), "file not found") {
		t.Errorf("ReadFile(missing) error = %v", err)
	}

	if _, err := ReadFile(context.Background(), t.TempDir()); !errors.Is(err, ErrNotRegular) {
		t.Errorf("ReadFile(dir) error = %v, want ErrNotRegular", err)
	}
}

func TestReadFile_RejectsSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	target := writeFile(t, "real.csv", "x")
	link := filepath.Join(t.TempDir(), "link.csv")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(context.Background(), link); !errors.Is(err, ErrNotRegular) {
		t.Errorf("ReadFile(symlink) error = %v, want ErrNotRegular", err)
	}
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		in      string
		want    Source
		wantErr bool
	}{
		{"", SourceVaultX, false},
		{"Bitwarden", SourceBitwarden, false},
		{" lastpass ", SourceLastPass, false},
		{"1password", Source1Password, false},
		{"keepass", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSource(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSource(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSource(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, err := GetParser(SourceVaultX); !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("GetParser(vaultx) error = %v", err)
	}
}

func TestExtractHostname(t *testing.T) {
	tests := map[string]string{
		"https://www.github.com/login": "github.com",
		"http://example.com:8080/x":    "example.com",
		"mail.test":                    "mail.test",
		"":                             "",
	}
	for in, want := range tests {
		if got := extractHostname(in); got != want {
			t.Errorf("extractHostname(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeHTMLEntities(t *testing.T) {
	got := DecodeHTMLEntities("a &amp; b &lt;c&gt; &quot;d&quot; &#39;e&apos;")
	if want := `a & b <c> "d" 'e'`; got != want {
		t.Errorf("DecodeHTMLEntities() = %q, want %q", got, want)
	}
}
