package iterator

import (
	"context"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/ctxlog"
)

// accumulate folds one iteration's data into the accumulator: numeric
// array-likes are summed elementwise, scalars are summed, nested maps merge
// key-by-key, and nil source values are skipped. A length mismatch between
// iterations is deliberately a soft failure: the key is skipped with a loud
// warning, because a hard error here would lose the data of every other key
// in a long acquisition. See the warning text before trusting averaged data.
func (it *Iterator) accumulate(ctx context.Context, dst map[string]any, src map[string]any) {
	logger := ctxlog.FromContext(ctx)

	for key, sv := range src {
		if sv == nil {
			continue
		}

		dv, exists := dst[key]
		if !exists {
			if cp, ok := copyNumeric(sv); ok {
				dst[key] = cp
			} else {
				logger.Debug("Skipping non-numeric data key during loop aggregation.", "key", key)
			}
			continue
		}

		switch dvt := dv.(type) {
		case []float64:
			svs, ok := toFloatSlice(sv)
			if !ok {
				logger.Warn("Loop aggregation type changed between iterations; key skipped. Averaged output for this key is incomplete.", "key", key)
				it.Logf("aggregation skipped key %q: type changed between iterations", key)
				continue
			}
			if len(svs) != len(dvt) {
				logger.Warn("Loop aggregation length mismatch between iterations; key skipped. Averaged output for this key is incomplete.",
					"key", key, "have", len(dvt), "got", len(svs))
				it.Logf("aggregation skipped key %q: length %d != %d", key, len(svs), len(dvt))
				continue
			}
			for i, v := range svs {
				dvt[i] += v
			}
		case float64:
			svf, ok := toFloat(sv)
			if !ok {
				logger.Warn("Loop aggregation type changed between iterations; key skipped. Averaged output for this key is incomplete.", "key", key)
				it.Logf("aggregation skipped key %q: type changed between iterations", key)
				continue
			}
			dst[key] = dvt + svf
		case map[string]any:
			svm, ok := sv.(map[string]any)
			if !ok {
				logger.Warn("Loop aggregation type changed between iterations; key skipped. Averaged output for this key is incomplete.", "key", key)
				it.Logf("aggregation skipped key %q: type changed between iterations", key)
				continue
			}
			it.accumulate(ctx, dvt, svm)
		}
	}
}

// divideInPlace divides every accumulated value by n, recursing into nested
// maps. Integers were already promoted to float64 during accumulation.
func divideInPlace(acc map[string]any, n float64) {
	for key, val := range acc {
		switch v := val.(type) {
		case []float64:
			for i := range v {
				v[i] /= n
			}
		case float64:
			acc[key] = v / n
		case map[string]any:
			divideInPlace(v, n)
		}
	}
}

// copyNumeric converts a value into its accumulation representation:
// []float64 for array-likes, float64 for scalars, map[string]any recursed.
// Non-numeric values report ok=false.
func copyNumeric(v any) (any, bool) {
	if s, ok := toFloatSlice(v); ok {
		return s, true
	}
	if f, ok := toFloat(v); ok {
		return f, true
	}
	if m, ok := v.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for key, val := range m {
			if val == nil {
				continue
			}
			if cp, ok := copyNumeric(val); ok {
				out[key] = cp
			}
		}
		return out, true
	}
	return nil, false
}

// toFloat converts any numeric scalar to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// toFloatSlice converts numeric array-likes to a fresh []float64.
func toFloatSlice(v any) ([]float64, bool) {
	switch s := v.(type) {
	case []float64:
		out := make([]float64, len(s))
		copy(out, s)
		return out, true
	case []float32:
		out := make([]float64, len(s))
		for i, n := range s {
			out[i] = float64(n)
		}
		return out, true
	case []int:
		out := make([]float64, len(s))
		for i, n := range s {
			out[i] = float64(n)
		}
		return out, true
	case []int64:
		out := make([]float64, len(s))
		for i, n := range s {
			out[i] = float64(n)
		}
		return out, true
	case []any:
		out := make([]float64, len(s))
		for i, el := range s {
			f, ok := toFloat(el)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

// deepCopyValue copies data values so sweep points and inherited data never
// alias a child's live output.
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case []float64:
		out := make([]float64, len(t))
		copy(out, t)
		return out
	case []int:
		out := make([]int, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = deepCopyValue(el)
		}
		return out
	case map[string]any:
		return deepCopyMap(t)
	default:
		return v
	}
}

// deepCopyMap deep-copies a data map.
func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for key, val := range m {
		out[key] = deepCopyValue(val)
	}
	return out
}
