package ipaerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/stretchr/testify/assert"
)

func TestWrapAndKind(t *testing.T) {
	base := fmt.Errorf("peer closed")
	err := ipaerr.New(ipaerr.Network, base, "H2")

	assert.True(t, ipaerr.Of(err, ipaerr.Network))
	assert.False(t, ipaerr.Of(err, ipaerr.Inconsistent))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "H2")
}

func TestErrorsIsByKind(t *testing.T) {
	a := ipaerr.New(ipaerr.ShuffleValidationFailed, fmt.Errorf("x"))
	b := ipaerr.New(ipaerr.ShuffleValidationFailed, fmt.Errorf("y"))
	assert.True(t, errors.Is(a, b))
}
