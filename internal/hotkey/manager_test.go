package hotkey

import "testing"

func TestLookupKeysym(t *testing.T) {
	cases := []struct {
		name string
		want uint32
	}{
		{"r", 'r'},
		{"Space", 0x0020},
		{"enter", 0xff0d},
		{"F5", 0xffc2},
	}
	for _, c := range cases {
		got, err := lookupKeysym(c.name)
		if err != nil {
			t.Errorf("lookupKeysym(%q) error: %v", c.name, err)
			continue
		}
		if got != c.want {
			t.Errorf("lookupKeysym(%q) = %#x, want %#x", c.name, got, c.want)
		}
	}
}

func TestLookupKeysymUnknown(t *testing.T) {
	if _, err := lookupKeysym("hyperspace"); err == nil {
		t.Error("unknown key name accepted")
	}
}
