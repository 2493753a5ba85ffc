package source

import (
	"recast/internal/core/errors"
	"testing"
	"time"
)

func TestPosition_LineEndings(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[int]Position
	}{
		{
			name: "lf",
			text: "ab\ncd\n",
			want: map[int]Position{
				0: {1, 1}, 2: {1, 3}, 3: {2, 1}, 5: {2, 3}, 6: {3, 1},
			},
		},
		{
			name: "crlf",
			text: "a\r\nb",
			want: map[int]Position{
				0: {1, 1}, 1: {1, 2}, 2: {1, 3}, 3: {2, 1}, 4: {2, 2},
			},
		},
		{
			name: "bare cr",
			text: "a\rb\rc",
			want: map[int]Position{
				0: {1, 1}, 1: {1, 2}, 2: {2, 1}, 4: {3, 1}, 5: {3, 2},
			},
		},
		{
			name: "mixed",
			text: "x\r\n\ry\nz",
			want: map[int]Position{
				3: {2, 1}, 4: {3, 1}, 5: {3, 2}, 6: {4, 1}, 7: {4, 2},
			},
		},
		{
			name: "empty",
			text: "",
			want: map[int]Position{0: {1, 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := New("f.txt", tt.text, time.Time{})
			for offset, want := range tt.want {
				got, err := fc.Position(offset)
				if err != nil {
					t.Fatalf("Position(%d): %v", offset, err)
				}
				if got != want {
					t.Fatalf("Position(%d) = %s, want %s", offset, got, want)
				}
			}
		})
	}
}

func TestPosition_RoundTrip(t *testing.T) {
	texts := []string{
		"",
		"single line",
		"one\ntwo\nthree\n",
		"dos\r\nline\r\n\r\nend",
		"old\rmac\r\rstyle",
		"\n\n\r\n\r",
		"unicode: héllo\nwörld",
	}
	for _, text := range texts {
		fc := New("f", text, time.Time{})
		for offset := 0; offset <= len(text); offset++ {
			pos, err := fc.Position(offset)
			if err != nil {
				t.Fatalf("%q: Position(%d): %v", text, offset, err)
			}
			back, err := fc.Offset(pos)
			if err != nil {
				t.Fatalf("%q: Offset(%s): %v", text, pos, err)
			}
			if back != offset {
				t.Fatalf("%q: round trip %d -> %s -> %d", text, offset, pos, back)
			}
		}
	}
}

func TestFormatAndSlice(t *testing.T) {
	fc := New("f.txt", "see foo here\nand foo there", time.Time{})

	got, err := fc.Format(Range{Start: 4, End: 7})
	if err != nil {
		t.Fatal(err)
	}
	if got != "1:5-1:8" {
		t.Fatalf("Format = %q", got)
	}

	got, err = fc.Format(Range{Start: 17, End: 20})
	if err != nil {
		t.Fatal(err)
	}
	if got != "2:5-2:8" {
		t.Fatalf("Format = %q", got)
	}

	text, err := fc.Slice(Range{Start: 4, End: 7})
	if err != nil || text != "foo" {
		t.Fatalf("Slice = %q, %v", text, err)
	}

	text, err = fc.Slice(Range{Start: 3, End: 3})
	if err != nil || text != "" {
		t.Fatalf("empty Slice = %q, %v", text, err)
	}
}

func TestLineRange(t *testing.T) {
	fc := New("f", "a\r\nbb\ncc", time.Time{})
	tests := []struct {
		offset int
		want   Range
	}{
		{0, Range{0, 3}},
		{2, Range{0, 3}},
		{4, Range{3, 6}},
		{7, Range{6, 8}},
	}
	for _, tt := range tests {
		got, err := fc.LineRange(tt.offset)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Fatalf("LineRange(%d) = %s, want %s", tt.offset, got, tt.want)
		}
	}
}

func TestMisuse(t *testing.T) {
	fc := New("f", "abc\ndef", time.Time{})

	if _, err := fc.Position(-1); !errors.IsCode(err, errors.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument for negative offset, got %v", err)
	}
	if _, err := fc.Position(8); !errors.IsCode(err, errors.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument past end, got %v", err)
	}
	if _, err := fc.Offset(Position{Line: 3, Column: 1}); err == nil {
		t.Fatal("expected error for line past end")
	}
	if _, err := fc.Offset(Position{Line: 1, Column: 6}); err == nil {
		t.Fatal("expected error for column past end of line")
	}
	if _, err := fc.Slice(Range{Start: 5, End: 2}); err == nil {
		t.Fatal("expected error for inverted range")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on nil FileContents")
		}
	}()
	var unloaded *FileContents
	_, _ = unloaded.Position(0)
}
