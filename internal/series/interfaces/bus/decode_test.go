package bus

import (
	"errors"
	"strconv"
	"testing"
	"time"

	series "energy-series/internal/series/domain"
)

func testDecoder() Decoder {
	return Decoder{Location: time.UTC, HourCorrection: DefaultHourCorrection}
}

func TestDecode_AddAndDiff(t *testing.T) {
	req, err := testDecoder().Decode([]byte(`{"nombre":"medidor1","mode":"ADD","deltatime":"-10.4"}`))
	if err != nil {
		t.Fatalf("decode add: %v", err)
	}
	if req.Window.Kind != series.KindAdd || req.Window.OffsetMinutes != 10 || req.Window.Series != "medidor1" {
		t.Fatalf("unexpected add request: %+v", req.Window)
	}
	if !req.Window.Reference.IsZero() {
		t.Fatalf("expected boundary anchored request")
	}

	req, err = testDecoder().Decode([]byte(`{"nombre":"medidor1","mode":"diff","deltatime":30}`))
	if err != nil {
		t.Fatalf("decode diff: %v", err)
	}
	if req.Window.Kind != series.KindDiff || req.Window.OffsetMinutes != 30 || req.Mode != "DIFF" {
		t.Fatalf("unexpected diff request: %+v", req)
	}
}

func TestDecode_NearestCombinesDateAndCorrectedHour(t *testing.T) {
	fecha := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	hora := time.Date(1970, time.January, 1, 4, 30, 15, 0, time.UTC).UnixMilli()

	cases := []struct {
		delta     string
		direction series.Direction
		offset    int
	}{
		{delta: `"2.5"`, direction: series.DirectionAdd, offset: 2},
		{delta: `"-5.5"`, direction: series.DirectionDiff, offset: 6},
		{delta: `0`, direction: series.DirectionDiff, offset: 0},
	}
	for _, tc := range cases {
		payload := []byte(`{"nombre":"S","mode":"FECHA","fecha":` + strconv.FormatInt(fecha, 10) + `,"hora":"` + strconv.FormatInt(hora, 10) + `","deltatime":` + tc.delta + `}`)
		req, err := testDecoder().Decode(payload)
		if err != nil {
			t.Fatalf("decode %s: %v", tc.delta, err)
		}
		want := time.Date(2024, time.January, 1, 10, 30, 15, 0, time.UTC)
		if !req.Window.Reference.Equal(want) {
			t.Fatalf("reference = %s, want %s", req.Window.Reference, want)
		}
		if req.Window.Direction != tc.direction || req.Window.OffsetMinutes != tc.offset {
			t.Fatalf("delta %s: got direction %s offset %d", tc.delta, req.Window.Direction, req.Window.OffsetMinutes)
		}
	}
}

func TestDecode_Month(t *testing.T) {
	req, err := testDecoder().Decode([]byte(`{"nombre":"S","mode":"MES","fecha":2}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Window.Kind != series.KindMonth || req.Window.Month != time.February {
		t.Fatalf("unexpected month request: %+v", req.Window)
	}

	for _, payload := range []string{
		`{"nombre":"S","mode":"MES","fecha":13}`,
		`{"nombre":"S","mode":"MES","fecha":0}`,
		`{"nombre":"S","mode":"MES","fecha":2.5}`,
	} {
		if _, err := testDecoder().Decode([]byte(payload)); !errors.Is(err, series.ErrInvalidMonth) {
			t.Fatalf("%s: expected ErrInvalidMonth, got %v", payload, err)
		}
	}
}

func TestDecode_Tables(t *testing.T) {
	req, err := testDecoder().Decode([]byte(`{"mode":"TABLA"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !req.Tables {
		t.Fatalf("expected table listing request")
	}
}

func TestDecode_Errors(t *testing.T) {
	cases := []struct {
		payload string
		want    error
	}{
		{payload: `not json`, want: series.ErrMalformedRequest},
		{payload: `{"nombre":"S"}`, want: series.ErrMalformedRequest},
		{payload: `{"nombre":"S","mode":"WEEK","deltatime":5}`, want: series.ErrInvalidMode},
		{payload: `{"nombre":"S","mode":"ADD"}`, want: series.ErrMalformedRequest},
		{payload: `{"nombre":"S","mode":"ADD","deltatime":"abc"}`, want: series.ErrMalformedRequest},
		{payload: `{"nombre":"S","mode":"FECHA","fecha":1,"deltatime":5}`, want: series.ErrMalformedRequest},
		{payload: `{"nombre":"bad name;","mode":"DIFF","deltatime":5}`, want: series.ErrInvalidSeries},
		{payload: `{"mode":"DIFF","deltatime":5}`, want: series.ErrInvalidSeries},
	}
	for _, tc := range cases {
		if _, err := testDecoder().Decode([]byte(tc.payload)); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.payload, tc.want, err)
		}
	}
}
