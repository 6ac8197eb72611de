package vm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

func TestCopyInStr(t *testing.T) {
	as := New(NewPool(8))
	require.NoError(t, as.DefineRegion("a", TextBase, 1))
	require.NoError(t, as.DefineRegion("b", TextBase+PageSize, 1))

	require.NoError(t, as.Store(TextBase, []byte("hello\x00")))

	// string straddling two adjacent segments
	straddle := uint32(TextBase + PageSize - 3)
	require.NoError(t, as.Store(straddle, []byte("abc")))
	require.NoError(t, as.Store(TextBase+PageSize, []byte("def\x00")))

	tests := []struct {
		name    string
		addr    uint32
		maxlen  int
		want    string
		wantLen int
		wantErr error
	}{
		{"simple", TextBase, 64, "hello", 6, nil},
		{"exact fit", TextBase, 6, "hello", 6, nil},
		{"too long", TextBase, 5, "", 0, abi.ENAMETOOLONG},
		{"straddles segments", straddle, 64, "abcdef", 7, nil},
		{"null pointer", 0, 64, "", 0, abi.EFAULT},
		{"unmapped", 0x10000000, 64, "", 0, abi.EFAULT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, err := CopyInStr(as, tt.addr, tt.maxlen)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantLen, n)
		})
	}
}

func TestCopyInStrRunsOffMapping(t *testing.T) {
	as := New(NewPool(8))
	require.NoError(t, as.DefineRegion("a", TextBase, 1))
	require.NoError(t, as.Store(TextBase, []byte(strings.Repeat("x", PageSize))))

	_, _, err := CopyInStr(as, TextBase, 2*PageSize)
	assert.ErrorIs(t, err, abi.EFAULT)
}

func TestCopyOutWord(t *testing.T) {
	as := New(NewPool(8))
	require.NoError(t, as.DefineRegion("a", TextBase, 1))

	require.NoError(t, CopyOutWord(as, TextBase+8, 42))
	b, err := CopyIn(as, TextBase+8, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 42}, b)

	assert.ErrorIs(t, CopyOutWord(as, 0, 1), abi.EFAULT)
}
