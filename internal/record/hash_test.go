package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_StableAndSensitive(t *testing.T) {
	a, err := Fingerprint(sampleRecord())
	require.NoError(t, err)
	b, err := Fingerprint(sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changed := sampleRecord()
	changed.Default["title"][0]["value"] = "Goodbye"
	c, err := Fingerprint(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestFingerprint_IgnoresSourcePath(t *testing.T) {
	a := sampleRecord()
	b := sampleRecord()
	b.SourcePath = "/elsewhere/a1b2.yml"

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}
