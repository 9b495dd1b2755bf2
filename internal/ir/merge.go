package ir

// Equal reports whether a and b are structurally equal.
// Object identity is irrelevant; nil and IRNull are equal, and numbers
// compare by value whether they are IRInt or IRFloat.
func Equal(a, b IRValue) bool {
	switch av := a.(type) {
	case nil, IRNull:
		switch b.(type) {
		case nil, IRNull:
			return true
		}
		return false
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRInt:
		switch bv := b.(type) {
		case IRInt:
			return av == bv
		case IRFloat:
			return float64(av) == float64(bv)
		}
		return false
	case IRFloat:
		switch bv := b.(type) {
		case IRFloat:
			return av == bv
		case IRInt:
			return float64(av) == float64(bv)
		}
		return false
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, ok := bv[k]
			if !ok || !Equal(ae, be) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of v.
func Clone(v IRValue) IRValue {
	switch val := v.(type) {
	case IRArray:
		if val == nil {
			return IRArray(nil)
		}
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case IRObject:
		return CloneObject(val)
	default:
		// Scalars are immutable values.
		return v
	}
}

// CloneObject returns a deep copy of obj. A nil object yields an empty one.
func CloneObject(obj IRObject) IRObject {
	out := make(IRObject, len(obj))
	for k, v := range obj {
		out[k] = Clone(v)
	}
	return out
}

// DeepMerge returns base with overrides merged on top. Neither input is modified.
//
// Only objects are mergeable: when both sides hold an object at the same
// key the two are merged recursively. Arrays and scalars in overrides
// replace the base value as a whole, since ordered content must not be
// combined element by element.
func DeepMerge(base, overrides IRObject) IRObject {
	out := CloneObject(base)
	for k, ov := range overrides {
		if oo, ok := ov.(IRObject); ok {
			if bo, ok := out[k].(IRObject); ok {
				out[k] = DeepMerge(bo, oo)
				continue
			}
		}
		out[k] = Clone(ov)
	}
	return out
}
