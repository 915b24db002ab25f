package sjis

import "testing"

func TestByteLen(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"ABC123", 6},
		{"訪問看護", 8},
		{"A看B", 4},
		{"ステーション", 12},
	}
	for _, c := range cases {
		if got := ByteLen(c.in); got != c.want {
			t.Errorf("ByteLen(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTruncate_NeverSplitsCharacters(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"訪問看護", 8, "訪問看護"},
		{"訪問看護", 7, "訪問看"},
		{"訪問看護", 1, ""},
		{"A訪問", 2, "A"},
		{"A訪問", 3, "A訪"},
		{"ABCDEF", 4, "ABCD"},
	}
	for _, c := range cases {
		got := Truncate(c.in, c.max)
		if got != c.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", c.in, c.max, got, c.want)
		}
		if ByteLen(got) > c.max {
			t.Errorf("Truncate(%q, %d) exceeds cap: %d bytes", c.in, c.max, ByteLen(got))
		}
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ｱｲｳ", "アイウ"},
		{"東京都,新宿区", "東京都，新宿区"},
		{"line1\r\nline2", "line1  line2"},
		{"😀看護", "？看護"},
	}
	for _, c := range cases {
		if got := Sanitize(c.in); got != c.want {
			t.Errorf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	in := "HM,13,6,1234567,訪問看護ステーション"
	b, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(b) != ByteLen(in) {
		t.Errorf("encoded length %d, ByteLen %d", len(b), ByteLen(in))
	}
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != in {
		t.Errorf("round trip: got %q", out)
	}
}

func TestEncode_RejectsUnrepresentable(t *testing.T) {
	if _, err := Encode("😀"); err == nil {
		t.Fatal("expected error for emoji")
	}
}
