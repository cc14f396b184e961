package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleStringRoundTrip(t *testing.T) {
	h := Handle{JobID: "abc", PostProcess: `{"name":"post"}`}
	parsed, err := ParseHandle(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	empty := Handle{JobID: "abc"}
	assert.Equal(t, `["abc","null"]`, empty.String())
	assert.Nil(t, empty.PostProcessJSON())
	assert.Equal(t, empty.key(), Handle{JobID: "abc", PostProcess: "null"}.key())

	parsed, err = ParseHandle(empty.String())
	require.NoError(t, err)
	assert.Equal(t, empty.Normalize(), parsed)
	assert.Equal(t, Handle{JobID: "abc", PostProcess: "null"}, empty.Normalize())
}

func TestParseHandleRejects(t *testing.T) {
	for _, s := range []string{`"abc"`, `["abc"]`, `["abc","{not json"]`, `nope`} {
		_, err := ParseHandle(s)
		assert.Error(t, err, s)
	}
}

func TestDebugMarker(t *testing.T) {
	h := DebugHandle(3, 10, 2, "")
	assert.True(t, h.IsDebug())
	assert.Equal(t, "_MACHINE_DEBUG_(3, 10, 2)", h.JobID)

	shots, width, err := parseDebugMarker(h.JobID)
	require.NoError(t, err)
	assert.Equal(t, 10, shots)
	assert.Equal(t, 2, width)

	shots, width, err = parseDebugMarker("_MACHINE_DEBUG_(4, 7)")
	require.NoError(t, err)
	assert.Equal(t, 7, shots)
	assert.Equal(t, 4, width)

	for _, bad := range []string{"job-1", "_MACHINE_DEBUG_(1)", "_MACHINE_DEBUG_(a, 2)", "_MACHINE_DEBUG_(1, -2, 0)"} {
		_, _, err := parseDebugMarker(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseCost(t *testing.T) {
	c, err := parseCost([]byte(`12.5`))
	require.NoError(t, err)
	assert.Equal(t, 12.5, *c)

	c, err = parseCost([]byte(`"3"`))
	require.NoError(t, err)
	assert.Equal(t, 3.0, *c)

	c, err = parseCost([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = parseCost(nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = parseCost([]byte(`{}`))
	assert.Error(t, err)
}
