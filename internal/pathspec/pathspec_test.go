package pathspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name         string
		raw          string
		wantChildren []string
		wantParams   []string
		wantErr      string
	}{
		{
			name:         "single hop",
			raw:          "probe->integration_time",
			wantChildren: []string{"probe"},
			wantParams:   []string{"integration_time"},
		},
		{
			name:         "nested hops",
			raw:          "inner->probe->integration_time",
			wantChildren: []string{"inner", "probe"},
			wantParams:   []string{"integration_time"},
		},
		{
			name:         "dotted parameter path",
			raw:          "inner->sweep_range.max_value",
			wantChildren: []string{"inner"},
			wantParams:   []string{"sweep_range", "max_value"},
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: "cannot be empty",
		},
		{
			name:    "no hop separator",
			raw:     "integration_time",
			wantErr: "must name a child and a parameter",
		},
		{
			name:    "empty child segment",
			raw:     "->integration_time",
			wantErr: "invalid child segment",
		},
		{
			name:    "dotted child segment",
			raw:     "inner.probe->integration_time",
			wantErr: "invalid child segment",
		},
		{
			name:    "empty parameter segment",
			raw:     "probe->sweep_range.",
			wantErr: "invalid parameter segment",
		},
		{
			name:    "whitespace in segment",
			raw:     "probe->integration time",
			wantErr: "invalid parameter segment",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			target, err := Parse(tc.raw)
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantChildren, target.Children)
			assert.Equal(t, tc.wantParams, target.Params)
		})
	}
}

func TestTarget_Accessors(t *testing.T) {
	target, err := Parse("inner->probe->sweep_range.max_value")
	require.NoError(t, err)

	assert.Equal(t, "sweep_range.max_value", target.ParamPath())
	assert.Equal(t, "max_value", target.ParamName())
	assert.Equal(t, "inner->probe->sweep_range.max_value", target.String())
}

func TestTarget_StringRoundTrip(t *testing.T) {
	for _, raw := range []string{
		"probe->integration_time",
		"a->b->c->x.y.z",
	} {
		target, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, target.String())
	}

	var nilTarget *Target
	assert.Equal(t, "", nilTarget.String())
}

func TestJoin(t *testing.T) {
	raw := Join("probe", "sweep_range.max_value")
	assert.Equal(t, "probe->sweep_range.max_value", raw)

	// Join output must parse back.
	target, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"probe"}, target.Children)
}
