package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBalance_WireFormat(t *testing.T) {
	t.Run("marshals as a decimal string", func(t *testing.T) {
		b, err := BalanceFromString("300000000000000000000000")
		if err != nil {
			t.Fatalf("BalanceFromString: %v", err)
		}
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if got, want := string(data), `"300000000000000000000000"`; got != want {
			t.Errorf("marshaled %s, want %s", got, want)
		}
	})

	t.Run("parses amounts beyond int64", func(t *testing.T) {
		var b Balance
		if err := json.Unmarshal([]byte(`"123456789012345678901234567890"`), &b); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if b.String() != "123456789012345678901234567890" {
			t.Errorf("parsed %s", b)
		}
	})

	t.Run("rejects bare numbers and negatives", func(t *testing.T) {
		var b Balance
		if err := json.Unmarshal([]byte(`300`), &b); err == nil {
			t.Error("bare number accepted")
		}
		if err := json.Unmarshal([]byte(`"-5"`), &b); err == nil {
			t.Error("negative amount accepted")
		}
	})
}

func TestBalance_ArithmeticDoesNotMutate(t *testing.T) {
	a := BalanceFromInt64(300)
	b := BalanceFromInt64(200)

	if sum := a.Add(b); sum.String() != "500" {
		t.Errorf("Add = %s, want 500", sum)
	}
	if diff := a.Sub(b); diff.String() != "100" {
		t.Errorf("Sub = %s, want 100", diff)
	}
	if a.String() != "300" || b.String() != "200" {
		t.Errorf("operands mutated: a=%s b=%s", a, b)
	}
}

func TestTimestamp_WireFormat(t *testing.T) {
	instant := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	ts := TimestampFromTime(instant)

	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got, want := string(data), `"1612137600000000000"`; got != want {
		t.Errorf("marshaled %s, want %s", got, want)
	}

	var back Timestamp
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.Time().Equal(instant) {
		t.Errorf("round trip produced %v, want %v", back.Time(), instant)
	}

	if err := json.Unmarshal([]byte(`1612137600000000000`), &back); err == nil {
		t.Error("bare number accepted")
	}
}
