package sanitize

import "testing"

func TestLineCollapsesAndStrips(t *testing.T) {
	got := Line("  Jane   <b>Doe</b>\n")
	if got != "Jane Doe" {
		t.Fatalf("got %q", got)
	}
}

func TestStripHTMLRemovesEncodedTags(t *testing.T) {
	got := StripHTML("hi &lt;script&gt;alert(1)&lt;/script&gt;")
	if got != "hi alert(1)" {
		t.Fatalf("got %q", got)
	}
}

func TestEmailLowercases(t *testing.T) {
	if got := Email("  Jane@Example.COM "); got != "jane@example.com" {
		t.Fatalf("got %q", got)
	}
}
