package odm

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validationMessage(t *testing.T, f Field, v any) string {
	t.Helper()
	_, err := f.Validate(v)
	require.Error(t, err)
	return err.Error()
}

func TestStringField(t *testing.T) {
	f := String(MinLength(2), MaxLength(4))
	v, err := f.Validate("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	assert.Equal(t, "value is not a string", validationMessage(t, f, 1))
	assert.Equal(t, "string is shorter than 2 characters", validationMessage(t, f, "a"))
	assert.Equal(t, "string is longer than 4 characters", validationMessage(t, f, "abcde"))

	blank := String(AllowBlank(false))
	assert.Equal(t, "blank value is not allowed", validationMessage(t, blank, ""))
	_, err = String().Validate("")
	require.NoError(t, err)

	choice := String(Choices("red", "green"))
	_, err = choice.Validate("red")
	require.NoError(t, err)
	assert.Equal(t, "value doesn't match any variant", validationMessage(t, choice, "blue"))
}

func TestEmailAndURLFields(t *testing.T) {
	email := Email()
	_, err := email.Validate("ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "value is not a valid email address", validationMessage(t, email, "not-an-email"))
	assert.Equal(t, "blank value is not allowed", validationMessage(t, email, ""))

	u := URL()
	_, err = u.Validate("https://example.com/path")
	require.NoError(t, err)
	assert.Equal(t, "value is not URL", validationMessage(t, u, "no scheme here"))
}

func TestNumericFields(t *testing.T) {
	i := Int(Gte(1), Lte(3))
	v, err := i.Validate(json.Number("2"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	v, err = i.Validate(float64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	assert.Equal(t, "value can't be converted to int", validationMessage(t, i, 2.5))
	assert.Equal(t, "value can't be converted to int", validationMessage(t, i, true))
	assert.Equal(t, "value is less than 1", validationMessage(t, i, 0))
	assert.Equal(t, "value is greater than 3", validationMessage(t, i, 4))

	f := Float(Gt(0))
	v, err = f.Validate(int32(2))
	require.NoError(t, err)
	assert.Equal(t, float64(2), v)
	assert.Equal(t, "value should be greater than 0", validationMessage(t, f, 0.0))
	assert.Equal(t, "value can't be converted to float", validationMessage(t, f, "1.5"))

	b := Bool()
	_, err = b.Validate(false)
	require.NoError(t, err)
	assert.Equal(t, "value should be True or False", validationMessage(t, b, "yes"))
}

func TestDateTimeField(t *testing.T) {
	f := DateTime()
	local := time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.FixedZone("X", 3600))

	v, err := f.Validate(local)
	require.NoError(t, err)
	got := v.(time.Time)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 123000000, got.Nanosecond())
	assert.True(t, got.Equal(local.Truncate(time.Millisecond)))

	v, err = f.Validate("2024-05-01T11:30:00.123Z")
	require.NoError(t, err)
	assert.True(t, v.(time.Time).Equal(got))

	back, err := f.FromWire(f.ToWire(got))
	require.NoError(t, err)
	assert.Equal(t, got, back)

	assert.Equal(t, "value is not datetime", validationMessage(t, f, 12))
}

func TestObjectIDAndUUIDFields(t *testing.T) {
	oid := ObjectID()
	id := primitive.NewObjectID()
	v, err := oid.Validate(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, id, v)
	assert.Equal(t, "value is not ObjectId", validationMessage(t, oid, "zz"))

	u := UUID()
	want := uuid.New()
	v, err = u.Validate(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, v)
	assert.Equal(t, want.String(), u.ToWire(v))
	back, err := u.FromWire(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, back)
	assert.Equal(t, "value is not UUID", validationMessage(t, u, "nope"))
}

func TestDecimalField(t *testing.T) {
	f := Decimal(Gte(0), Lt(100))
	v, err := f.Validate("12.50")
	require.NoError(t, err)
	d := v.(primitive.Decimal128)
	assert.Equal(t, "12.50", d.String())

	v, err = f.Validate(3)
	require.NoError(t, err)
	assert.Equal(t, "3", v.(primitive.Decimal128).String())

	assert.Equal(t, "value is less than 0", validationMessage(t, f, "-0.01"))
	assert.Equal(t, "value should be less than 100", validationMessage(t, f, 100))
	assert.Equal(t, "value can't be converted to decimal", validationMessage(t, f, "abc"))
}

func TestIntFieldRange(t *testing.T) {
	// 2^63 as a float does not fit in int64
	assert.Equal(t, "value can't be converted to int", validationMessage(t, Int(), float64(math.MaxInt64)))
	assert.Equal(t, "value can't be converted to int", validationMessage(t, Int(), json.Number("9223372036854775808")))
	v, err := Int().Validate(float64(math.MinInt64))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), v)

	// bounds beyond 2^53 are compared without rounding
	const limit = 1 << 53
	f := Int(Lte(limit))
	v, err = f.Validate(int64(limit))
	require.NoError(t, err)
	assert.Equal(t, int64(limit), v)
	assert.Contains(t, validationMessage(t, f, int64(limit+1)), "value is greater than")
	g := Int(Gt(limit))
	assert.Contains(t, validationMessage(t, g, int64(limit)), "value should be greater than")
	_, err = g.Validate(int64(limit + 1))
	require.NoError(t, err)
}

func TestListField(t *testing.T) {
	f := List(Int(), MaxLength(3))
	v, err := f.Validate([]int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, v)

	assert.Equal(t, "list length is greater than 3", validationMessage(t, f, []any{1, 2, 3, 4}))
	assert.Equal(t, "value is not a list", validationMessage(t, f, "abc"))

	_, err = f.Validate([]any{1, "x", "y"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"1", "2"}, verr.Keys())
}

func TestDefaultFactoryRunsPerCall(t *testing.T) {
	n := 0
	f := Int(DefaultFunc(func() any { n++; return n }))
	a, ok := f.Default()
	require.True(t, ok)
	b, _ := f.Default()
	assert.NotEqual(t, a, b)

	_, ok = Int().Default()
	assert.False(t, ok)
}
