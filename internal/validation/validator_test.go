package validation

import (
	"errors"
	"math"
	"strings"
	"testing"
)

type sample struct {
	Lat    float64  `json:"lat" validate:"min=-90,max=90"`
	Radius float64  `json:"radius" validate:"gt=0"`
	Kind   string   `json:"kind" validate:"omitempty,oneof=a b"`
	Tags   []string `json:"tags" validate:"dive,required"`
}

func TestStructValid(t *testing.T) {
	if err := Struct(sample{Lat: 45, Radius: 10, Kind: "a", Tags: []string{"x"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStructCollectsErrors(t *testing.T) {
	err := Struct(sample{Lat: 100, Radius: 0, Kind: "c"})
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var verrs Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected Errors, got %T", err)
	}
	if len(verrs) != 3 {
		t.Fatalf("expected 3 field errors, got %d: %v", len(verrs), verrs)
	}
	if verrs[0].Field != "lat" || verrs[0].Tag != "max" {
		t.Fatalf("expected json field names, got %+v", verrs[0])
	}
	if !strings.Contains(err.Error(), "radius must be greater than 0") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestStructRejectsNaN(t *testing.T) {
	if err := Struct(sample{Lat: math.NaN(), Radius: 1}); err == nil {
		t.Fatalf("expected NaN latitude to fail validation")
	}
}
