package models

import (
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// Balance is a token amount in minor units (24 decimal places). On the wire
// it travels as a decimal-string integer to avoid floating-point loss.
type Balance struct {
	i big.Int
}

// NewBalance copies i into a Balance.
func NewBalance(i *big.Int) Balance {
	var b Balance
	b.i.Set(i)
	return b
}

// BalanceFromInt64 returns a Balance holding v minor units.
func BalanceFromInt64(v int64) Balance {
	var b Balance
	b.i.SetInt64(v)
	return b
}

// BalanceFromString parses a decimal-string integer amount.
func BalanceFromString(s string) (Balance, error) {
	var b Balance
	if _, ok := b.i.SetString(s, 10); !ok {
		return Balance{}, fmt.Errorf("invalid balance string %q", s)
	}
	if b.i.Sign() < 0 {
		return Balance{}, fmt.Errorf("negative balance %q", s)
	}
	return b, nil
}

// BigInt returns a copy of the underlying integer.
func (b Balance) BigInt() *big.Int {
	return new(big.Int).Set(&b.i)
}

// Add returns b + o.
func (b Balance) Add(o Balance) Balance {
	var r Balance
	r.i.Add(&b.i, &o.i)
	return r
}

// Sub returns b - o.
func (b Balance) Sub(o Balance) Balance {
	var r Balance
	r.i.Sub(&b.i, &o.i)
	return r
}

// Cmp compares b against o like big.Int.Cmp.
func (b Balance) Cmp(o Balance) int {
	return b.i.Cmp(&o.i)
}

// Sign reports the sign of the amount.
func (b Balance) Sign() int {
	return b.i.Sign()
}

// IsZero reports whether the amount is zero.
func (b Balance) IsZero() bool {
	return b.i.Sign() == 0
}

func (b Balance) String() string {
	return b.i.String()
}

func (b Balance) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(b.i.String())), nil
}

func (b *Balance) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("balance must be a decimal string: %w", err)
	}
	parsed, err := BalanceFromString(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Timestamp is a nanosecond-resolution instant, serialized as a decimal
// string per the wire convention for timestamps.
type Timestamp int64

// TimestampFromTime converts a time.Time to a Timestamp.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixNano())
}

// Time converts the Timestamp back to a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t))
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(t), 10))), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("timestamp must be a decimal string: %w", err)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	*t = Timestamp(v)
	return nil
}
