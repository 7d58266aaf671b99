package audit

import (
	"reflect"
	"testing"
)

func TestSanitizeRedactsSensitiveFields(t *testing.T) {
	in := map[string]any{
		"username":     "root",
		"password":     "hunter2",
		"api_key":      "key-123",
		"note":         "password reset requested",
		"old_password": "previous",
	}
	got := Sanitize(in)

	want := map[string]any{
		"username":     "root",
		"password":     RedactionMarker,
		"api_key":      RedactionMarker,
		"note":         "password reset requested",
		"old_password": RedactionMarker,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Sanitize = %v, want %v", got, want)
	}
	// The input payload is left untouched.
	if in["password"] != "hunter2" {
		t.Fatal("Sanitize mutated its input")
	}
}

func TestSanitizeWalksNestedStructures(t *testing.T) {
	in := map[string]any{
		"cards": []any{
			map[string]any{"card_number": "4111111111111111", "holder": "A"},
			map[string]any{"card_number": "5500000000000004", "holder": "B"},
		},
		"meta": map[string]any{
			"client_secret": "s3cret",
			"depth": map[string]any{
				"pin": "0000",
			},
		},
		"amount": 12.5,
	}
	got := Sanitize(in)

	cards := got["cards"].([]any)
	for i, raw := range cards {
		card := raw.(map[string]any)
		if card["card_number"] != RedactionMarker {
			t.Fatalf("card %d not redacted: %v", i, card)
		}
	}
	meta := got["meta"].(map[string]any)
	if meta["client_secret"] != RedactionMarker {
		t.Fatalf("client_secret not redacted: %v", meta)
	}
	if meta["depth"].(map[string]any)["pin"] != RedactionMarker {
		t.Fatalf("nested pin not redacted: %v", meta)
	}
	if got["amount"] != 12.5 {
		t.Fatalf("amount changed: %v", got["amount"])
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	in := map[string]any{"token": "abc", "name": "x"}
	once := Sanitize(in)
	twice := Sanitize(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("second pass changed the payload: %v vs %v", once, twice)
	}
}

func TestSanitizeNil(t *testing.T) {
	if Sanitize(nil) != nil {
		t.Fatal("Sanitize(nil) should stay nil")
	}
}
