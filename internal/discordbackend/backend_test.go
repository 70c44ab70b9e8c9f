package discordbackend

import "testing"

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"My Cool Folder!!":    "my-cool-folder",
		"  leading trailing ": "leading-trailing",
		"a___b--c":             "a___b-c",
		"multiple   spaces":    "multiple-spaces",
		"!!!":                  "file",
		"":                     "file",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeNameCapsLength(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	got := SanitizeName(long)
	if len(got) != 100 {
		t.Fatalf("expected length 100, got %d", len(got))
	}
}
