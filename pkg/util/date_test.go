package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseDateISO(t *testing.T) {
	got, ok := ParseDate("2024-10-10")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseDateDayFirst(t *testing.T) {
	for _, s := range []string{"03-02-2024", "03/02/2024", "03 Feb 2024", "3 Feb 2024", "03-Feb-2024"} {
		got, ok := ParseDate(s)
		if !ok {
			t.Fatalf("%q: expected ok", s)
		}
		if got.Month() != time.February || got.Day() != 3 {
			t.Fatalf("%q: unexpected time %v", s, got)
		}
	}
}

func TestParseDateUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseDate(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseFloat(t *testing.T) {
	v, ok := ParseFloat("1,250.50")
	if !ok || v != 1250.5 {
		t.Fatalf("unexpected %v %v", v, ok)
	}
	if _, ok := ParseFloat(""); ok {
		t.Fatalf("expected empty to fail")
	}
	if _, ok := ParseFloat("n/a"); ok {
		t.Fatalf("expected garbage to fail")
	}
}
