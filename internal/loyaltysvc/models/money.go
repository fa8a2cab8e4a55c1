package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"gopkg.in/yaml.v3"
)

// Money is an exact menu price. It is stored as a decimal string in BSON so
// prices survive round trips without float drift; JSON comes from decimal.Decimal.
type Money struct {
	decimal.Decimal
}

func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("price %q: %w", s, ErrInvalidInput)
	}
	return Money{d}, nil
}

func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(m.Decimal.String())
}

func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.String:
		d, err := decimal.NewFromString(rv.StringValue())
		if err != nil {
			return err
		}
		m.Decimal = d
	case bsontype.Double:
		m.Decimal = decimal.NewFromFloat(rv.Double())
	case bsontype.Int32:
		m.Decimal = decimal.NewFromInt32(rv.Int32())
	case bsontype.Int64:
		m.Decimal = decimal.NewFromInt(rv.Int64())
	case bsontype.Decimal128:
		d, err := decimal.NewFromString(rv.Decimal128().String())
		if err != nil {
			return err
		}
		m.Decimal = d
	case bsontype.Null, bsontype.Undefined:
		m.Decimal = decimal.Zero
	default:
		return fmt.Errorf("cannot decode %s into Money", t)
	}
	return nil
}

func (m *Money) UnmarshalYAML(value *yaml.Node) error {
	d, err := decimal.NewFromString(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: price %q: %w", value.Line, value.Value, err)
	}
	m.Decimal = d
	return nil
}
