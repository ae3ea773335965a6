package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactIntRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 255, 256, 65535, 65536, 1 << 40, -(1 << 40)}
	for _, v := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteCompactInt64(&buf, v))
		got, err := ReadCompactInt64(&buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestCompactInt32RoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, 127, 128, 70000, -70000}
	for _, v := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteCompactInt32(&buf, v))
		got, err := ReadCompactInt32(&buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestCompactSequenceRoundTrip(t *testing.T) {
	cases := [][2]int64{
		{0, 0},
		{0, 1},
		{5, 5},
		{10, 20},
		{1 << 20, 1<<20 + 3},
		{1 << 40, 1 << 41},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteCompactSequence(&buf, c[0], c[1]))
		hd, hr, err := ReadCompactSequence(&buf)
		require.NoError(t, err)
		assert.Equal(t, c[0], hd)
		assert.Equal(t, c[1], hr)
	}
}

func TestCompactSequenceRejectsDescending(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCompactSequence(&buf, 10, 5)
	assert.Error(t, err)
}

func TestUTFStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUTFString(&buf, nil))
	got, err := ReadUTFString(&buf)
	require.NoError(t, err)
	assert.Nil(t, got)

	buf.Reset()
	s := "hello, group"
	require.NoError(t, WriteUTFString(&buf, &s))
	got, err = ReadUTFString(&buf)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s, *got)
}

func TestASCIIStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteASCIIString(&buf, nil))
	got, err := ReadASCIIString(&buf)
	require.NoError(t, err)
	assert.Nil(t, got)

	buf.Reset()
	s := "g1"
	require.NoError(t, WriteASCIIString(&buf, &s))
	got, err = ReadASCIIString(&buf)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s, *got)
}

func TestByteBlockRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteByteBlock(&buf, nil))
	got, err := ReadByteBlock(&buf)
	require.NoError(t, err)
	assert.Nil(t, got)

	buf.Reset()
	payload := []byte("hello")
	require.NoError(t, WriteByteBlock(&buf, payload))
	got, err = ReadByteBlock(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	buf.Reset()
	require.NoError(t, WriteByteBlock(&buf, []byte{}))
	got, err = ReadByteBlock(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{}, got)
}
