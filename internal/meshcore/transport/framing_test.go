package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFraming_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	frames := [][]byte{
		{0x01},
		{0x02, 0xAA, 0xBB},
		bytes.Repeat([]byte{0x7E}, MaxFrameSize),
	}
	for _, f := range frames {
		require.NoError(t, WriteFrame(&buf, MarkerToDevice, f))
	}
	for _, want := range frames {
		got, err := ReadFrame(&buf, MarkerToDevice)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ReadFrame(&buf, MarkerToDevice)
	require.ErrorIs(t, err, io.EOF)
}

func TestWriteFrame_SizeLimits(t *testing.T) {
	var buf bytes.Buffer
	require.ErrorIs(t, WriteFrame(&buf, MarkerToDevice, nil), ErrFrameSize)
	require.ErrorIs(t, WriteFrame(&buf, MarkerToDevice, make([]byte, MaxFrameSize+1)), ErrFrameSize)
	require.Zero(t, buf.Len())
}

func TestReadFrame_BadMarker(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, MarkerToDevice, []byte{0x01}))

	_, err := ReadFrame(&buf, MarkerFromDevice)
	require.ErrorIs(t, err, ErrBadMarker)
}

func TestReadFrame_OversizedLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{MarkerToDevice, 0xFF, 0xFF})
	_, err := ReadFrame(buf, MarkerToDevice)
	require.ErrorIs(t, err, ErrFrameSize)
}

func TestReadFrame_TruncatedPayload(t *testing.T) {
	buf := bytes.NewBuffer([]byte{MarkerToDevice, 0x05, 0x00, 0x01, 0x02})
	_, err := ReadFrame(buf, MarkerToDevice)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
