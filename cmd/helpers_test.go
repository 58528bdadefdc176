package cmd

import (
	"testing"

	"github.com/walter/stb/internal/localstore"
)

func repoFor(url, user, realm string) localstore.Repository {
	return localstore.Repository{URL: url, Username: user, Realm: realm}
}

func TestFormatValueSet(t *testing.T) {
	var f formatValue
	for _, valid := range []string{"stbcsv", "csv", "other"} {
		if err := f.Set(valid); err != nil {
			t.Errorf("Set(%q): %v", valid, err)
		}
		if f.String() != valid {
			t.Errorf("String() = %q after Set(%q)", f.String(), valid)
		}
	}

	f = formatValue("stbcsv")
	if err := f.Set("xml"); err == nil {
		t.Error("Set(\"xml\") must fail")
	}
	if f.String() != "stbcsv" {
		t.Errorf("failed Set changed the value to %q", f.String())
	}

	if f.Type() != "format" {
		t.Errorf("Type() = %q", f.Type())
	}
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("STB_PASSWORD", "")
	t.Setenv("STB_USERNAME", "")

	creds := envCredentials{username: "alice"}
	if _, _, err := creds.Credentials(); err == nil {
		t.Error("expected error without STB_PASSWORD")
	}

	t.Setenv("STB_PASSWORD", "wonderland")
	user, pass, err := creds.Credentials()
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if user != "alice" || pass != "wonderland" {
		t.Errorf("got %q/%q, want alice/wonderland", user, pass)
	}

	t.Setenv("STB_USERNAME", "bob")
	user, _, err = creds.Credentials()
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if user != "bob" {
		t.Errorf("STB_USERNAME override: got %q, want bob", user)
	}
}

func TestValidateRepo(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		user    string
		realm   string
		wantErr bool
	}{
		{name: "valid", url: "http://example.net:8080/people", user: "alice", realm: "shared"},
		{name: "https", url: "https://example.net/people", user: "alice"},
		{name: "empty url", url: "", user: "alice", wantErr: true},
		{name: "bad scheme", url: "ftp://example.net/people", user: "alice", wantErr: true},
		{name: "no host", url: "http://", user: "alice", wantErr: true},
		{name: "empty user", url: "http://example.net/people", user: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repoFor(tt.url, tt.user, tt.realm)
			err := validateRepo(&repo)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("validateRepo: %v", err)
			}
			if repo.Realm == "" {
				t.Error("realm must default when empty")
			}
		})
	}
}

func TestValidateRepoDefaultsRealm(t *testing.T) {
	repo := repoFor("http://example.net/people", "alice", "")
	if err := validateRepo(&repo); err != nil {
		t.Fatalf("validateRepo: %v", err)
	}
	if repo.Realm != "shared" {
		t.Errorf("realm = %q, want shared", repo.Realm)
	}
}

func TestValidateRepoTrimsSpace(t *testing.T) {
	repo := repoFor("  http://example.net/people ", " alice ", " shared ")
	if err := validateRepo(&repo); err != nil {
		t.Fatalf("validateRepo: %v", err)
	}
	if repo.URL != "http://example.net/people" || repo.Username != "alice" || repo.Realm != "shared" {
		t.Errorf("not trimmed: %+v", repo)
	}
}
