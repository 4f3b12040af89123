package lightning

import (
	"errors"
	"strings"
	"testing"
)

const testPubkey = "0331f80652fb840239df8dc99205792bba2e559a05469915804c08420230e23c7c"

func TestParseNodeAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKey  string
		wantHost string
		wantErr  error
	}{
		{"bare pubkey", testPubkey, testPubkey, "", nil},
		{"pubkey with host", testPubkey + "@lightningpowerusers.com", testPubkey, "lightningpowerusers.com", nil},
		{"pubkey with host and port", testPubkey + "@1.2.3.4:9735", testPubkey, "1.2.3.4:9735", nil},
		{"surrounding whitespace", "  " + testPubkey + "  ", testPubkey, "", nil},
		{"empty", "", "", "", ErrEmptyPubkey},
		{"whitespace only", "   ", "", "", ErrEmptyPubkey},
		{"too short", testPubkey[:64], "", "", ErrPubkeyLength},
		{"too long", testPubkey + "ab", "", "", ErrPubkeyLength},
		{"not hex", strings.Repeat("z", 66), "", "", ErrPubkeyFormat},
		{"double at", testPubkey + "@host@host", "", "", ErrPubkeyFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseNodeAddress(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if addr.Pubkey != tt.wantKey || addr.Host != tt.wantHost {
				t.Errorf("got %q@%q, want %q@%q", addr.Pubkey, addr.Host, tt.wantKey, tt.wantHost)
			}
		})
	}
}

func TestNodeAddressString(t *testing.T) {
	a := NodeAddress{Pubkey: testPubkey}
	if a.String() != testPubkey {
		t.Errorf("bare pubkey String() = %q", a.String())
	}
	a.Host = "example.com:9735"
	if want := testPubkey + "@example.com:9735"; a.String() != want {
		t.Errorf("String() = %q, want %q", a.String(), want)
	}
}
