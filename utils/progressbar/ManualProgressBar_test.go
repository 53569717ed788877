package progressbar

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualProgressBar(t *testing.T) {
	var buf bytes.Buffer
	p := NewManualProgressBar(&buf, 4, 8)

	assert.Equal(t, 0.0, p.Fraction())
	p.Increment()
	p.Increment()
	assert.Equal(t, 0.25, p.Fraction())
	assert.True(t, strings.HasPrefix(p.String(), "|█   |"), p.String())

	p.Set(100)
	assert.Equal(t, 1.0, p.Fraction())
	p.Set(-3)
	assert.Equal(t, 0.0, p.Fraction())

	p.Set(4)
	require.NoError(t, p.Display())
	assert.Contains(t, buf.String(), "[50.00%")
	assert.Contains(t, buf.String(), "|██  |")
}
