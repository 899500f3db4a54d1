package normalize

import "testing"

func TestIdentity(t *testing.T) {
	in := "  65f1c2a9e4b0a1b2c3d4e5f6 \n"
	want := "65f1c2a9e4b0a1b2c3d4e5f6"
	got := Identity(in)
	if got != want {
		t.Fatalf("Identity(%q) = %q, want %q", in, got, want)
	}
}

func TestIdentityKeepsCase(t *testing.T) {
	if got := Identity("Doctor-A"); got != "Doctor-A" {
		t.Fatalf("Identity changed case: %q", got)
	}
}

func TestIdentities(t *testing.T) {
	got := Identities(" a", "b ")
	if got[0] != "a" || got[1] != "b" {
		t.Fatalf("Identities = %v", got)
	}
}

func TestValidKey(t *testing.T) {
	cases := map[string]bool{
		"65f1c2a9e4b0a1b2c3d4e5f6": true,
		"":                         false,
		"$where":                   false,
		"a.b":                      false,
	}
	for in, want := range cases {
		if got := ValidKey(in); got != want {
			t.Fatalf("ValidKey(%q) = %v, want %v", in, got, want)
		}
	}
}
