package remote

import "github.com/zclconf/go-cty/cty"

// ctyToNative lowers a cty value into plain Go values for the wire. The
// socket layer JSON-encodes whatever it is given, so maps, slices, and
// primitives are all it needs.
func ctyToNative(v cty.Value) any {
	if v.IsNull() {
		return nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString()
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f
	case ty == cty.Bool:
		return v.True()
	case ty.IsObjectType() || ty.IsMapType():
		out := map[string]any{}
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			out[k.AsString()] = ctyToNative(ev)
		}
		return out
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		var out []any
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			out = append(out, ctyToNative(ev))
		}
		return out
	default:
		return v.GoString()
	}
}
