package reply

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/ragq/internal/domain"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"1": "a"}`, `{"1": "a"}`},
		{"```json\n{\"1\": \"a\"}\n```", `{"1": "a"}`},
		{"```\n{\"1\": \"a\"}```", `{"1": "a"}`},
		{"  plain  ", "plain"},
		{"```", ""},
	}
	for _, tc := range tests {
		if got := StripFences(tc.in); got != tc.want {
			t.Errorf("StripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsNone(t *testing.T) {
	for _, s := range []string{"None", "none", " NONE. ", `"None"`, "'none'"} {
		if !IsNone(s) {
			t.Errorf("IsNone(%q) = false", s)
		}
	}
	for _, s := range []string{"Nonesuch", "2022", ""} {
		if IsNone(s) {
			t.Errorf("IsNone(%q) = true", s)
		}
	}
}

func TestList(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{"sentinel", "None", nil, false},
		{"single", "2022", []string{"2022"}, false},
		{"spaces and quotes", ` "2021", '2022' `, []string{"2021", "2022"}, false},
		{"trailing comma", "Arsenal, Chelsea,", []string{"Arsenal", "Chelsea"}, false},
		{"empty", "   ", nil, true},
		{"multiline", "Arsenal\nChelsea", nil, true},
		{"only commas", ",,", nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := List(tc.in, nil)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrMalformedResponse) {
					t.Fatalf("expected ErrMalformedResponse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestList_Validator(t *testing.T) {
	isDigit := func(s string) bool { return s != "" && s[0] >= '0' && s[0] <= '9' }
	if _, err := List("2022, soon", isDigit); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNames(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"trailing periods kept", "Bukayo Saka, A.F.C.", []string{"Bukayo Saka", "A.F.C."}},
		{"quotes", `"A.F.C.", 'Cole Palmer'`, []string{"A.F.C.", "Cole Palmer"}},
		{"enclosing brackets", "[A.F.C., Cole Palmer]", []string{"A.F.C.", "Cole Palmer"}},
		{"sentinel", "None.", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Names(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
	if _, err := Names("Arsenal\nChelsea"); !errors.Is(err, domain.ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse for multi-line reply, got %v", err)
	}
}
