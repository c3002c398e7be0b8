package ufs1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModeStringRegularFile(t *testing.T) {
	// -rwxr-xr-x, DT_REG
	mode := uint16(DTReg<<12) | 0755
	require.Equal(t, "-rwxr-xr-x", ModeString(mode))
}

func TestModeStringDirectoryWithSetgidAndSticky(t *testing.T) {
	mode := uint16(DTDir<<12) | 02777 | 01000
	got := ModeString(mode)
	require.Equal(t, byte('d'), got[0])
	require.Equal(t, byte('s'), got[5]) // group exec + setgid
	require.Equal(t, byte('t'), got[9]) // other exec + sticky
}

func TestModeStringSetuidWithoutOwnerExec(t *testing.T) {
	mode := uint16(DTReg<<12) | 04644
	got := ModeString(mode)
	require.Equal(t, byte('S'), got[3])
}

func TestMajorMinorMakedevRoundTrip(t *testing.T) {
	rdev := Makedev(7, 0x1234)
	require.EqualValues(t, 7, Major(rdev))
	require.EqualValues(t, 0x1234, Minor(rdev))
}

func TestDirentValid(t *testing.T) {
	rec := make([]byte, 16)
	rec[4] = 16 // reclen
	rec[6] = DTReg
	rec[7] = 4 // namlen
	copy(rec[8:], "abcd")

	require.True(t, direntValid(rec, 16))

	bad := make([]byte, 16)
	copy(bad, rec)
	bad[4] = 15
	require.False(t, direntValid(bad, 16))

	tooSmall := make([]byte, 16)
	copy(tooSmall, rec)
	tooSmall[4] = 8 // reclen too small to hold namlen=4 bytes of name
	require.False(t, direntValid(tooSmall, 16))
}
