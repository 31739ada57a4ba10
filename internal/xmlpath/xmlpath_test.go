package xmlpath

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/speedata/cxpath"
)

const sample = `<doc>
  <id>R-1</id>
  <empty></empty>
  <amount>119.00</amount>
  <badamount>12,50</badamount>
  <basic>20250115</basic>
  <extended>2025-01-15</extended>
  <baddate>15.01.2025</baddate>
</doc>`

func parse(t *testing.T) *cxpath.Context {
	t.Helper()
	ctx, err := cxpath.NewFromReader(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	return ctx.Root()
}

func TestMandatoryText(t *testing.T) {
	root := parse(t)

	got, err := MandatoryText(root, "id")
	if err != nil {
		t.Fatal(err)
	}
	if got != "R-1" {
		t.Errorf("got %q, want R-1", got)
	}

	_, err = MandatoryText(root, "empty")
	var me *MappingError
	if !errors.As(err, &me) {
		t.Fatalf("want MappingError, got %v", err)
	}
	if !me.Missing() {
		t.Error("empty element must report as missing")
	}
	if me.Path != "empty" {
		t.Errorf("error must carry the query, got %q", me.Path)
	}
}

func TestDecimal(t *testing.T) {
	root := parse(t)

	got, err := MandatoryDecimal(root, "amount")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(decimal.RequireFromString("119.00")) {
		t.Errorf("got %s, want 119.00", got)
	}

	_, err = MandatoryDecimal(root, "badamount")
	var me *MappingError
	if !errors.As(err, &me) {
		t.Fatalf("want MappingError, got %v", err)
	}
	if me.Missing() {
		t.Error("unparsable value must not report as missing")
	}

	var warnedPath, warnedValue string
	def := decimal.NewFromInt(7)
	d := Decimal(root, "badamount", def, func(path, value string) {
		warnedPath, warnedValue = path, value
	})
	if !d.Equal(def) {
		t.Errorf("optional unparsable value must fall back to default, got %s", d)
	}
	if warnedPath != "badamount" || warnedValue != "12,50" {
		t.Errorf("warn sink got (%q, %q)", warnedPath, warnedValue)
	}

	if d := Decimal(root, "missing", decimal.Zero, nil); !d.IsZero() {
		t.Errorf("missing optional decimal must return default, got %s", d)
	}
}

func TestDate(t *testing.T) {
	root := parse(t)
	want := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	for _, path := range []string{"basic", "extended"} {
		got, err := Date(root, path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if !got.Equal(want) {
			t.Errorf("%s: got %v, want %v", path, got, want)
		}
	}

	if _, err := Date(root, "baddate"); err == nil {
		t.Error("dotted date must be rejected")
	}

	got, err := Date(root, "missing")
	if err != nil || !got.IsZero() {
		t.Errorf("missing optional date: got %v, %v", got, err)
	}

	if _, err := MandatoryDate(root, "missing"); err == nil {
		t.Error("missing mandatory date must fail")
	}
}
