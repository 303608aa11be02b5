package raw

import "testing"

func TestGetTrimsAndDefaults(t *testing.T) {
	t.Setenv("RAWTEST_NAME", "  hello  ")
	c := New().Prefix("RAWTEST_")
	if got := c.Get("NAME", "def"); got != "hello" {
		t.Fatalf("Get = %q, want hello", got)
	}
	if got := c.Get("MISSING", "def"); got != "def" {
		t.Fatalf("Get missing = %q, want def", got)
	}
}

func TestPrefixComposes(t *testing.T) {
	t.Setenv("A_B_KEY", "v")
	c := New().Prefix("A_").Prefix("B_")
	if got := c.Get("KEY", ""); got != "v" {
		t.Fatalf("composed prefix Get = %q, want v", got)
	}
}

func TestGetBool(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "YES": true,
		"0": false, "no": false, "junk": false,
	}
	for in, want := range cases {
		t.Setenv("RAWTEST_FLAG", in)
		c := New().Prefix("RAWTEST_")
		if got := c.GetBool("FLAG", false); got != want {
			t.Fatalf("GetBool(%q) = %v, want %v", in, got, want)
		}
	}
	c := New().Prefix("RAWTEST_")
	if !c.GetBool("ABSENT", true) {
		t.Fatal("GetBool absent should return default")
	}
}

func TestGetInt(t *testing.T) {
	t.Setenv("RAWTEST_N", "42")
	c := New().Prefix("RAWTEST_")
	if got := c.GetInt("N", 7); got != 42 {
		t.Fatalf("GetInt = %d, want 42", got)
	}
	t.Setenv("RAWTEST_N", "-1")
	if got := c.GetInt("N", 7); got != 7 {
		t.Fatalf("GetInt non-numeric = %d, want default 7", got)
	}
	if got := c.GetInt("ABSENT", 9); got != 9 {
		t.Fatalf("GetInt absent = %d, want 9", got)
	}
}
