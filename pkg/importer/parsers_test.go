package importer

import (
	"errors"
	"testing"

	"github.com/forest6511/vaultx/pkg/codec"
	"github.com/forest6511/vaultx/pkg/vault"
)

func TestParsers(t *testing.T) {
	tests := []struct {
		name        string
		source      Source
		data        string
		want        []vault.Fields
		wantSkipped int
	}{
		{
			name:   "lastpass login and secure note",
			source: SourceLastPass,
			data: `url,username,password,totp,extra,name,grouping,fav
https://github.com,johndoe,pass&amp;word,JBSWY3DPEHPK3PXP,My GitHub notes,GitHub,Work,1
http://sn,,,,"This is a secure note",My Secret Note,Notes,0
https://www.example.com/login,jane,pw,,,,,0`,
			want: []vault.Fields{
				{Site: "GitHub", Username: "johndoe", Password: "pass&word", Notes: "My GitHub notes"},
				{Site: "example.com", Username: "jane", Password: "pw"},
			},
			wantSkipped: 1,
		},
		{
			name:   "1password with archived item",
			source: Source1Password,
			data: `Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
AWS,https://aws.amazon.com,admin,secret,,false,false,"work,cloud",root account
Old,https://old.example,me,pw,,false,true,,
No Password,https://x.example,me,,,false,false,,`,
			want: []vault.Fields{
				{Site: "AWS", Username: "admin", Password: "secret", Notes: "root account"},
			},
			wantSkipped: 2,
		},
		{
			name:   "bitwarden logins only",
			source: SourceBitwarden,
			data: `{"encrypted":false,"items":[
				{"type":1,"name":"GitHub","notes":"n","login":{"uris":[{"uri":"https://github.com"}],"username":"jd","password":"pw"}},
				{"type":1,"name":"","login":{"uris":[{"uri":"https://www.gitlab.com/users"}],"username":"jd","password":"pw2"}},
				{"type":2,"name":"Note","notes":"secret"},
				{"type":3,"name":"Visa"},
				{"type":1,"name":"Empty","login":null}
			]}`,
			want: []vault.Fields{
				{Site: "GitHub", Username: "jd", Password: "pw", Notes: "n"},
				{Site: "gitlab.com", Username: "jd", Password: "pw2"},
			},
			wantSkipped: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := GetParser(tt.source)
			if err != nil {
				t.Fatalf("GetParser() error = %v", err)
			}
			if p.Source() != tt.source {
				t.Errorf("Source() = %q, want %q", p.Source(), tt.source)
			}

			got, err := p.Parse([]byte(tt.data))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(got.Candidates) != len(tt.want) {
				t.Fatalf("candidates = %+v, want %+v", got.Candidates, tt.want)
			}
			for i := range tt.want {
				if got.Candidates[i] != tt.want[i] {
					t.Errorf("candidate %d = %+v, want %+v", i, got.Candidates[i], tt.want[i])
				}
			}
			if len(got.Skipped) != tt.wantSkipped {
				t.Errorf("skipped = %+v, want %d", got.Skipped, tt.wantSkipped)
			}
		})
	}
}

func TestParsers_FormatErrors(t *testing.T) {
	tests := []struct {
		name   string
		source Source
		data   string
	}{
		{"lastpass missing name column", SourceLastPass, "url,username,password\nx,y,z\n"},
		{"lastpass empty", SourceLastPass, ""},
		{"1password missing title", Source1Password, "Website,Username\nx,y\n"},
		{"bitwarden invalid json", SourceBitwarden, "{"},
		{"bitwarden encrypted", SourceBitwarden, `{"encrypted":true,"items":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := GetParser(tt.source)
			_, err := p.Parse([]byte(tt.data))
			if !errors.Is(err, codec.ErrFormat) {
				t.Errorf("Parse() error = %v, want codec.ErrFormat", err)
			}
		})
	}
}
