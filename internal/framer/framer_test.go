package framer

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSBPFrame(msgType, senderID uint16, payload []byte) []byte {
	buf := make([]byte, 0, sbpHeaderLen+len(payload)+sbpCRCLen)
	buf = append(buf, sbpPreamble)
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], msgType)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint16(tmp[:], senderID)
	buf = append(buf, tmp[:]...)
	buf = append(buf, byte(len(payload)))
	buf = append(buf, payload...)
	crc := crc16CCITT(buf[1:])
	binary.LittleEndian.PutUint16(tmp[:], crc)
	buf = append(buf, tmp[:]...)
	return buf
}

func buildRTCM3Frame(payload []byte) []byte {
	buf := make([]byte, 0, rtcm3HeaderLen+len(payload)+rtcm3CRCLen)
	buf = append(buf, rtcm3Preamble)
	buf = append(buf, byte(len(payload)>>8), byte(len(payload)))
	buf = append(buf, payload...)
	crc := crc24Q(buf)
	buf = append(buf, byte(crc>>16), byte(crc>>8), byte(crc))
	return buf
}

func TestNoneFramerIdentity(t *testing.T) {
	f := New(None)

	consumed, frame := f.Process(nil)
	assert.Equal(t, 0, consumed)
	assert.Nil(t, frame)

	input := []byte("arbitrary bytes")
	consumed, frame = f.Process(input)
	assert.Equal(t, len(input), consumed)
	assert.Equal(t, input, frame)
}

func TestSBPFramerSingleFrame(t *testing.T) {
	f1 := buildSBPFrame(65, 1, []byte("hello"))

	f := New(SBP)
	consumed, frame := f.Process(f1)
	require.Equal(t, len(f1), consumed)
	require.Equal(t, f1, frame)
}

func TestSBPFramerResync(t *testing.T) {
	f1 := buildSBPFrame(65, 1, []byte("payload"))
	garbage := []byte{0x00, 0x00}
	input := append(append([]byte{}, garbage...), f1...)

	f := New(SBP)
	consumed, frame := f.Process(input)
	require.Equal(t, len(input), consumed)
	require.Equal(t, f1, frame)
}

func TestSBPFramerSplitAcrossCalls(t *testing.T) {
	f1 := buildSBPFrame(66, 2, []byte("x"))

	f := New(SBP)

	_, frame := f.Process(f1[:3])
	assert.Nil(t, frame)

	_, frame = f.Process(f1[3:])
	assert.Equal(t, f1, frame)
}

func TestSBPFramerTwoFramesOneCall(t *testing.T) {
	f1 := buildSBPFrame(65, 1, []byte("one"))
	f2 := buildSBPFrame(66, 1, []byte("two"))
	input := append(append([]byte{}, f1...), f2...)

	f := New(SBP)
	_, frame := f.Process(input)
	require.Equal(t, f1, frame)

	// Second call with no new input drains the already-buffered frame.
	_, frame = f.Process(nil)
	require.Equal(t, f2, frame)

	_, frame = f.Process(nil)
	assert.Nil(t, frame)
}

func TestRTCM3FramerSingleFrame(t *testing.T) {
	msg := buildRTCM3Frame([]byte{1, 2, 3, 4})

	f := New(RTCM3)
	consumed, frame := f.Process(msg)
	require.Equal(t, len(msg), consumed)
	require.Equal(t, msg, frame)
}

func TestRTCM3FramerCorruptedCRCResyncs(t *testing.T) {
	msg := buildRTCM3Frame([]byte{9, 9})
	corrupt := append([]byte{}, msg...)
	corrupt[len(corrupt)-1] ^= 0xFF // flip every bit of the last CRC byte

	f := New(RTCM3)
	_, frame := f.Process(corrupt)
	// CRC mismatch means no valid frame is found; the bad bytes are
	// dropped one at a time rather than crashing or looping forever.
	assert.Nil(t, frame)
}

func TestFramerEmptyInput(t *testing.T) {
	for _, kind := range []Kind{None, SBP, RTCM3} {
		f := New(kind)
		consumed, frame := f.Process(nil)
		assert.Equal(t, 0, consumed)
		assert.Nil(t, frame)
	}
}

func TestSBPFramerConservationOverRandomSplit(t *testing.T) {
	f1 := buildSBPFrame(10, 20, []byte("navigation"))
	f2 := buildSBPFrame(11, 20, []byte("solution"))
	input := append(append([]byte{}, f1...), f2...)

	r := rand.New(rand.NewSource(42))
	k := r.Intn(len(input))

	f := New(SBP)
	var got [][]byte
	drain := func(chunk []byte) {
		for {
			_, frame := f.Process(chunk)
			chunk = nil
			if frame == nil {
				return
			}
			cp := append([]byte{}, frame...)
			got = append(got, cp)
		}
	}
	drain(input[:k])
	drain(input[k:])

	require.Len(t, got, 2)
	assert.Equal(t, f1, got[0])
	assert.Equal(t, f2, got[1])
}
