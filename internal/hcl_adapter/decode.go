package hcl_adapter

import (
	"context"
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var ctyValueType = reflect.TypeOf(cty.Value{})

// decode stores val into dst, a settable value, guided by want, the type
// the manifest declares. A dynamic want accepts whatever val holds.
func (c *Converter) decode(ctx context.Context, val cty.Value, want cty.Type, dst reflect.Value) error {
	if dst.Type() == ctyValueType {
		if val.IsKnown() {
			dst.Set(reflect.ValueOf(val))
		}
		return nil
	}
	if !val.IsKnown() || val.IsNull() {
		return nil
	}
	if want == cty.NilType || want == cty.DynamicPseudoType {
		want = val.Type()
	}

	switch dst.Kind() {
	case reflect.Interface:
		return setNative(val, dst)
	case reflect.Struct:
		return c.decodeStruct(ctx, val, want, dst)
	case reflect.Slice:
		return c.decodeSlice(ctx, val, want, dst)
	case reflect.Map:
		return c.decodeMap(ctx, val, want, dst)
	default:
		converted, err := convert.Convert(val, want)
		if err != nil {
			return fmt.Errorf("cannot convert %s to %s: %w", val.Type().FriendlyName(), want.FriendlyName(), err)
		}
		return gocty.FromCtyValue(converted, dst.Addr().Interface())
	}
}

func setNative(val cty.Value, dst reflect.Value) error {
	native, err := ctyToNative(val)
	if err != nil {
		return err
	}
	if native != nil {
		dst.Set(reflect.ValueOf(native))
	}
	return nil
}

// decodeStruct fills the tagged fields of dst from the attributes of an
// object value. Attributes without a field are ignored.
func (c *Converter) decodeStruct(ctx context.Context, val cty.Value, want cty.Type, dst reflect.Value) error {
	if !val.Type().IsObjectType() || !want.IsObjectType() {
		return fmt.Errorf("type mismatch: %s %s needs an object, got %s", dst.Type(), want.FriendlyName(), val.Type().FriendlyName())
	}
	attrs := val.AsValueMap()
	for i := 0; i < dst.NumField(); i++ {
		name := paramName(dst.Type().Field(i))
		attr, ok := attrs[name]
		if name == "" || !ok {
			continue
		}
		var attrType cty.Type
		if want.HasAttribute(name) {
			attrType = want.AttributeType(name)
		}
		if err := c.decode(ctx, attr, attrType, dst.Field(i)); err != nil {
			return fmt.Errorf("in attribute '%s': %w", name, err)
		}
	}
	return nil
}

// decodeSlice fills dst from a list, a set or a tuple. The element type comes
// from the manifest, or from the Go element type for tuples.
func (c *Converter) decodeSlice(ctx context.Context, val cty.Value, want cty.Type, dst reflect.Value) error {
	ty := val.Type()
	if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() {
		return fmt.Errorf("type mismatch: cannot decode %s into %s", ty.FriendlyName(), dst.Type())
	}

	elemType := cty.DynamicPseudoType
	switch {
	case want.IsListType() || want.IsSetType():
		elemType = want.ElementType()
	case !want.IsTupleType():
		return fmt.Errorf("type mismatch: manifest declares %s for %s", want.FriendlyName(), dst.Type())
	case dst.Type().Elem().Kind() != reflect.Interface:
		implied, err := gocty.ImpliedType(reflect.Zero(dst.Type().Elem()).Interface())
		if err != nil {
			return fmt.Errorf("cannot imply element type of %s: %w", dst.Type(), err)
		}
		elemType = implied
	}
	if !ty.IsListType() && elemType != cty.DynamicPseudoType {
		list, err := convert.Convert(val, cty.List(elemType))
		if err != nil {
			return fmt.Errorf("cannot convert %s to a list for %s: %w", ty.FriendlyName(), dst.Type(), err)
		}
		val = list
	}

	out := reflect.MakeSlice(dst.Type(), val.LengthInt(), val.LengthInt())
	it := val.ElementIterator()
	for i := 0; it.Next(); i++ {
		_, elem := it.Element()
		if err := c.decode(ctx, elem, elemType, out.Index(i)); err != nil {
			return fmt.Errorf("in element %d: %w", i, err)
		}
	}
	dst.Set(out)
	return nil
}

// decodeMap fills dst from a map or an object. map[string]any takes the
// native form of every element.
func (c *Converter) decodeMap(ctx context.Context, val cty.Value, want cty.Type, dst reflect.Value) error {
	ty := val.Type()
	if !ty.IsMapType() && !ty.IsObjectType() {
		return fmt.Errorf("type mismatch: cannot decode %s into %s", ty.FriendlyName(), dst.Type())
	}
	if dst.Type().Elem().Kind() == reflect.Interface {
		return setNative(val, dst)
	}

	out := reflect.MakeMapWithSize(dst.Type(), val.LengthInt())
	it := val.ElementIterator()
	for it.Next() {
		key, elem := it.Element()
		elemType := elem.Type()
		if want.IsMapType() {
			elemType = want.ElementType()
		}
		v := reflect.New(dst.Type().Elem()).Elem()
		if err := c.decode(ctx, elem, elemType, v); err != nil {
			return fmt.Errorf("in key '%s': %w", key.AsString(), err)
		}
		out.SetMapIndex(reflect.ValueOf(key.AsString()).Convert(dst.Type().Key()), v)
	}
	dst.Set(out)
	return nil
}
