package series

import (
	"errors"
	"testing"
	"time"
)

func TestExpand(t *testing.T) {
	anchor := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		dir    Direction
		offset time.Duration
		want   Window
	}{
		{"add", DirectionAdd, 2 * time.Minute, Window{Start: anchor, End: anchor.Add(2 * time.Minute)}},
		{"diff", DirectionDiff, 2 * time.Minute, Window{Start: anchor.Add(-2 * time.Minute), End: anchor}},
		{"negative offset", DirectionAdd, -5 * time.Minute, Window{Start: anchor, End: anchor.Add(5 * time.Minute)}},
		{"zero offset", DirectionDiff, 0, Window{Start: anchor, End: anchor}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Expand(anchor, tc.dir, tc.offset)
			if !got.Start.Equal(tc.want.Start) || !got.End.Equal(tc.want.End) {
				t.Fatalf("window mismatch: got=%v want=%v", got, tc.want)
			}
			if got.Start.After(got.End) {
				t.Fatalf("start after end: %v", got)
			}
		})
	}
}

func TestCorrectDirection(t *testing.T) {
	first := Boundary{At: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), Recorded: true}
	last := Boundary{At: time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC), Recorded: true}
	mid := first.At.Add(6 * time.Hour)

	if got := CorrectDirection(first.At, first, last, DirectionDiff); got != DirectionAdd {
		t.Fatalf("anchor on first: got=%s want=ADD", got)
	}
	if got := CorrectDirection(last.At, first, last, DirectionAdd); got != DirectionDiff {
		t.Fatalf("anchor on last: got=%s want=DIFF", got)
	}
	if got := CorrectDirection(mid, first, last, DirectionDiff); got != DirectionDiff {
		t.Fatalf("anchor inside: got=%s want=DIFF", got)
	}
	if got := CorrectDirection(mid, first, last, DirectionAdd); got != DirectionAdd {
		t.Fatalf("anchor inside: got=%s want=ADD", got)
	}

	single := Boundary{At: first.At, Recorded: true}
	if got := CorrectDirection(first.At, single, single, DirectionDiff); got != DirectionAdd {
		t.Fatalf("single sample: got=%s want=ADD", got)
	}
}

func TestMonthWindow(t *testing.T) {
	w, err := MonthWindow(2023, time.February, time.UTC)
	if err != nil {
		t.Fatalf("month window: %v", err)
	}
	if !w.Start.Equal(time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start mismatch: %v", w.Start)
	}
	if !w.End.Equal(time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end mismatch: %v", w.End)
	}
	if w.Duration() != 28*24*time.Hour {
		t.Fatalf("february length: %v", w.Duration())
	}

	dec, err := MonthWindow(2024, time.December, time.UTC)
	if err != nil {
		t.Fatalf("december window: %v", err)
	}
	if !dec.End.Equal(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("december rollover: %v", dec.End)
	}

	if _, err := MonthWindow(2024, 13, time.UTC); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
	if _, err := MonthWindow(2024, 0, time.UTC); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"ADD":   KindAdd,
		"diff":  KindDiff,
		"FECHA": KindNearest,
		"MES":   KindMonth,
	}
	for token, want := range cases {
		got, err := ParseKind(token)
		if err != nil {
			t.Fatalf("parse %q: %v", token, err)
		}
		if got != want {
			t.Fatalf("parse %q: got=%v want=%v", token, got, want)
		}
	}
	for _, token := range []string{"", "TABLA", "WEEK"} {
		if _, err := ParseKind(token); !errors.Is(err, ErrInvalidMode) {
			t.Fatalf("parse %q: expected ErrInvalidMode, got %v", token, err)
		}
	}
}

func TestWindowRequestValidate(t *testing.T) {
	ref := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		req  WindowRequest
		want error
	}{
		{"add ok", NewAddRequest("DELL_PC1", 10), nil},
		{"bad name", NewAddRequest("x; DROP TABLE y", 10), ErrInvalidSeries},
		{"empty name", NewDiffRequest("", 10), ErrInvalidSeries},
		{"nearest ok", NewNearestRequest("s1", ref, -5), nil},
		{"nearest without reference", NewNearestRequest("s1", time.Time{}, 5), ErrMalformedRequest},
		{"month ok", NewMonthRequest("s1", time.March), nil},
		{"month out of range", NewMonthRequest("s1", 13), ErrInvalidMonth},
		{"unknown kind", WindowRequest{Series: "s1", Kind: 42}, ErrInvalidMode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewNearestRequestDirection(t *testing.T) {
	ref := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	forward := NewNearestRequest("s1", ref, 30)
	if forward.Direction != DirectionAdd || forward.OffsetMinutes != 30 {
		t.Fatalf("forward request: %+v", forward)
	}
	backward := NewNearestRequest("s1", ref, -30)
	if backward.Direction != DirectionDiff || backward.OffsetMinutes != 30 {
		t.Fatalf("backward request: %+v", backward)
	}
	zero := NewNearestRequest("s1", ref, 0)
	if zero.Direction != DirectionDiff {
		t.Fatalf("zero offset should expand backward: %+v", zero)
	}
}
