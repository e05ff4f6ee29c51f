package domain

import (
	"encoding/json"
	"testing"
)

func TestFieldValue_EqualIgnoresMapOrder(t *testing.T) {
	a := ObjectValue(map[string]FieldValue{
		"street": StringValue("Elm"),
		"number": NumberValue(7),
	})
	b := ObjectValue(map[string]FieldValue{
		"number": NumberValue(7),
		"street": StringValue("Elm"),
	})

	if !a.Equal(b) {
		t.Error("object equality must not depend on map iteration order")
	}
}

func TestFieldValue_EqualDistinguishesKinds(t *testing.T) {
	if NumberValue(3).Equal(CounterValue(3)) {
		t.Error("number and counter carrying the same value are different fields")
	}
	if StringValue("true").Equal(BoolValue(true)) {
		t.Error("string and bool must never compare equal")
	}
}

func TestFieldValue_ListEqualityIgnoresItemOrder(t *testing.T) {
	a := ListValue(
		ListItem{Key: "home", Value: StringValue("home")},
		ListItem{Key: "urgent", Value: StringValue("urgent")},
	)
	b := ListValue(
		ListItem{Key: "urgent", Value: StringValue("urgent")},
		ListItem{Key: "home", Value: StringValue("home")},
	)

	if !a.Equal(b) {
		t.Error("list equality keys on item identity, not position")
	}
}

func TestFieldValue_CloneIsDeep(t *testing.T) {
	original := ListValue(ListItem{Key: "s1", Value: StringValue("wash car")})
	clone := original.Clone()

	clone.List[0].Value.Str = "wax car"

	if original.List[0].Value.Str != "wash car" {
		t.Error("mutating the clone leaked into the original")
	}
}

func TestFieldValue_Validate(t *testing.T) {
	tests := []struct {
		name    string
		value   FieldValue
		wantErr bool
	}{
		{"valid string", StringValue("ok"), false},
		{"valid list", ListValue(ListItem{Key: "a", Value: StringValue("x")}), false},
		{"unknown kind", FieldValue{Kind: "blob"}, true},
		{"list item without key", ListValue(ListItem{Value: StringValue("x")}), true},
		{"duplicate list keys", ListValue(
			ListItem{Key: "a", Value: StringValue("x")},
			ListItem{Key: "a", Value: StringValue("y")},
		), true},
		{"nested invalid in object", ObjectValue(map[string]FieldValue{
			"inner": {Kind: "blob"},
		}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.value.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected an error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFieldValue_JSONRoundTrip(t *testing.T) {
	values := []FieldValue{
		StringValue("Buy milk"),
		NumberValue(3.5),
		CounterValue(7),
		BoolValue(true),
		ListValue(ListItem{Key: "s1", Value: StringValue("wash car")}),
		ObjectValue(map[string]FieldValue{"nested": NumberValue(1)}),
	}

	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %v: %v", v.Kind, err)
		}
		var back FieldValue
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %v: %v", v.Kind, err)
		}
		if !v.Equal(back) {
			t.Errorf("%v did not survive the round trip: %s", v.Kind, data)
		}
	}
}

func TestFieldValue_CounterKindSurvivesJSON(t *testing.T) {
	data, err := json.Marshal(CounterValue(7))
	if err != nil {
		t.Fatal(err)
	}
	var back FieldValue
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Kind != FieldCounter {
		t.Errorf("counter kind collapsed to %q over the wire", back.Kind)
	}
}

func TestFields_CanonicalIsStable(t *testing.T) {
	fields := Fields{
		"title":    StringValue("Buy milk"),
		"priority": StringValue("high"),
		"tags": ListValue(
			ListItem{Key: "b", Value: StringValue("b")},
			ListItem{Key: "a", Value: StringValue("a")},
		),
	}

	first := string(fields.Canonical())
	for i := 0; i < 20; i++ {
		if got := string(fields.Canonical()); got != first {
			t.Fatalf("canonical form changed between calls:\n%s\nvs\n%s", first, got)
		}
	}
}
