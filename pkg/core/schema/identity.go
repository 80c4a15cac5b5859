package schema

import (
	"fmt"
	"math"
	"strconv"
)

// Integer is the set of Go kinds an identity field may have.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// IdentityKind tells how an identity field represents "not yet assigned".
type IdentityKind int

const (
	// IdentityZero means the zero value is unset.
	IdentityZero IdentityKind = iota + 1
	// IdentityNullable means a nil pointer is unset.
	IdentityNullable
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityZero:
		return "zero"
	case IdentityNullable:
		return "nullable"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// IdentityField accesses the field that receives server-generated keys.
// The only implementations are returned by ZeroIdentity and NullableIdentity.
type IdentityField[T any] interface {
	Kind() IdentityKind
	Unset(rec *T) bool
	Value(rec *T) any
	Assign(rec *T, v any) error
	sealed()
}

// ZeroIdentity binds a numeric identity field where 0 means unset.
func ZeroIdentity[T any, N Integer](field func(*T) *N) IdentityField[T] {
	return zeroIdentity[T, N]{field: field}
}

// NullableIdentity binds a pointer identity field where nil means unset.
func NullableIdentity[T any, N Integer](field func(*T) **N) IdentityField[T] {
	return nullableIdentity[T, N]{field: field}
}

type zeroIdentity[T any, N Integer] struct {
	field func(*T) *N
}

func (zeroIdentity[T, N]) Kind() IdentityKind { return IdentityZero }
func (zeroIdentity[T, N]) sealed()            {}

func (z zeroIdentity[T, N]) Unset(rec *T) bool { return *z.field(rec) == 0 }

func (z zeroIdentity[T, N]) Value(rec *T) any {
	v := *z.field(rec)
	if v == 0 {
		return nil
	}
	return widen(v)
}

func (z zeroIdentity[T, N]) Assign(rec *T, v any) error {
	n, err := convertInteger[N](v)
	if err != nil {
		return err
	}
	*z.field(rec) = n
	return nil
}

type nullableIdentity[T any, N Integer] struct {
	field func(*T) **N
}

func (nullableIdentity[T, N]) Kind() IdentityKind { return IdentityNullable }
func (nullableIdentity[T, N]) sealed()            {}

func (z nullableIdentity[T, N]) Unset(rec *T) bool { return *z.field(rec) == nil }

func (z nullableIdentity[T, N]) Value(rec *T) any {
	p := *z.field(rec)
	if p == nil {
		return nil
	}
	return widen(*p)
}

func (z nullableIdentity[T, N]) Assign(rec *T, v any) error {
	n, err := convertInteger[N](v)
	if err != nil {
		return err
	}
	*z.field(rec) = &n
	return nil
}

// widen turns any integer kind into the int64/uint64 form drivers accept.
func widen[N Integer](v N) any {
	if N(0)-1 > 0 {
		return uint64(v)
	}
	return int64(v)
}

// convertInteger converts a scanned driver value to N.
func convertInteger[N Integer](v any) (N, error) {
	unsigned := N(0)-1 > 0

	var (
		i   int64
		u   uint64
		neg bool
	)

	switch x := v.(type) {
	case int64:
		i, neg = x, x < 0
	case int32:
		i, neg = int64(x), x < 0
	case int16:
		i, neg = int64(x), x < 0
	case int8:
		i, neg = int64(x), x < 0
	case int:
		i, neg = int64(x), x < 0
	case uint64:
		u = x
	case uint32:
		u = uint64(x)
	case uint:
		u = uint64(x)
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("identity value %v is not an integer", x)
		}
		i, neg = int64(x), x < 0
	case []byte:
		return parseInteger[N](string(x), unsigned)
	case string:
		return parseInteger[N](x, unsigned)
	case nil:
		return 0, fmt.Errorf("identity value is NULL")
	default:
		return 0, fmt.Errorf("unsupported identity value type %T", v)
	}

	switch {
	case neg && unsigned:
		return 0, fmt.Errorf("negative identity value %d for unsigned field", i)
	case u != 0:
		n := N(u)
		if uint64(n) != u || (!unsigned && u > math.MaxInt64) {
			return 0, fmt.Errorf("identity value %d overflows field", u)
		}
		return n, nil
	default:
		n := N(i)
		if int64(n) != i {
			return 0, fmt.Errorf("identity value %d overflows field", i)
		}
		return n, nil
	}
}

func parseInteger[N Integer](s string, unsigned bool) (N, error) {
	if unsigned {
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse identity value %q: %w", s, err)
		}
		return convertInteger[N](u)
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse identity value %q: %w", s, err)
	}
	return convertInteger[N](i)
}
