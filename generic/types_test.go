package generic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/planning-engine/generic"
)

func TestMustParseDecimal(t *testing.T) {
	assert.Equal(t, "0.5", generic.MustParseDecimal("0.5").String())
	assert.Equal(t, "-3", generic.MustParseDecimal("-3").String())

	assert.Panics(t, func() { generic.MustParseDecimal("half") })
	assert.Panics(t, func() { generic.MustParseDecimal("") })
}
