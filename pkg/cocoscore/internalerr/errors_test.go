package internalerr

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatErrorIsErrFormat(t *testing.T) {
	err := Formatf("scores.tsv", 3, "expected %d columns, got %d", 6, 4)

	assert.True(t, errors.Is(err, ErrFormat))
	assert.Equal(t, "format error: scores.tsv:3: expected 6 columns, got 4", err.Error())
}

func TestFormatErrorWrapsCause(t *testing.T) {
	err := &FormatError{Path: "taxonomy.tsv.gz", Msg: "read", Err: io.ErrUnexpectedEOF}

	assert.True(t, errors.Is(err, ErrFormat))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Contains(t, err.Error(), "taxonomy.tsv.gz: read")
}

func TestConfigf(t *testing.T) {
	err := Configf("weighting exponent %v outside [0,1]", 1.5)

	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.False(t, errors.Is(err, ErrFormat))
	assert.Contains(t, err.Error(), "1.5")
}
