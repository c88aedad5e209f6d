package pointer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_To(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		give any
	}{
		{name: "string", give: "1.5"},
		{name: "uint64", give: uint64(1337)},
		{name: "address", give: common.HexToAddress("0x36D65942d98b6Ed2CA01A1f85e7ca7afA1C04CE6")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.give, *To(tt.give))
		})
	}
}

func Test_Copy(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Copy[uint64](nil))

	orig := To(uint64(1))
	got := Copy(orig)
	require.NotNil(t, got)
	assert.NotSame(t, orig, got)

	*orig = 2
	assert.Equal(t, uint64(1), *got)
}
