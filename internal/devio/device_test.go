package devio_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ikle/go-ufs1/internal/devio"
)

func openTempDevice(t *testing.T, contents []byte) (*devio.Registry, devio.Handle, func()) {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "devio")
	require.NoError(t, err)

	_, err = f.Write(contents)
	require.NoError(t, err)

	reg := devio.NewRegistry()
	h := reg.Open(int(f.Fd()))

	return reg, h, func() { f.Close() }
}

func TestPullExact(t *testing.T) {
	want := []byte("0123456789abcdef")
	reg, h, closeFn := openTempDevice(t, want)
	defer closeFn()

	got, err := reg.Pull(h, 4, 8)
	require.NoError(t, err)
	require.Equal(t, want[4:12], got)
}

func TestPullShortReadFails(t *testing.T) {
	reg, h, closeFn := openTempDevice(t, []byte("short"))
	defer closeFn()

	_, err := reg.Pull(h, 0, 4096)
	require.Error(t, err)
}

func TestPushThenPullRoundTrips(t *testing.T) {
	reg, h, closeFn := openTempDevice(t, make([]byte, 16))
	defer closeFn()

	payload := []byte("deadbeef")
	require.NoError(t, reg.Push(h, 4, payload))

	got, err := reg.Pull(h, 4, len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestPullUnknownHandle(t *testing.T) {
	reg := devio.NewRegistry()

	_, err := reg.Pull(devio.Handle(99), 0, 4)
	require.Error(t, err)
}

func TestAsyncSubmitUnknownHandleFailsImmediately(t *testing.T) {
	reg := devio.NewRegistry()

	a := devio.NewAsync(reg, devio.Handle(99), 0, make([]byte, 4), devio.OpRead)
	require.Error(t, a.Submit())
}

func TestAsyncReadJoin(t *testing.T) {
	want := []byte("0123456789abcdef")
	reg, h, closeFn := openTempDevice(t, want)
	defer closeFn()

	buf := make([]byte, 8)
	a := devio.NewAsync(reg, h, 4, buf, devio.OpRead)
	require.NoError(t, a.Submit())

	n, err := a.Join()
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, want[4:12], buf)
}

func TestAsyncWriteJoin(t *testing.T) {
	reg, h, closeFn := openTempDevice(t, make([]byte, 16))
	defer closeFn()

	payload := []byte("deadbeef")
	a := devio.NewAsync(reg, h, 4, payload, devio.OpWrite)
	require.NoError(t, a.Submit())

	n, err := a.Join()
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	got, err := reg.Pull(h, 4, len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}
