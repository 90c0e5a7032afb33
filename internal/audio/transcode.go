// Package audio converts between the telephony wire format (G.711 mu-law at
// 8 kHz) and the agent's native format (16-bit linear PCM at 24 kHz).
//
// Every conversion is a pure function over one chunk. The resampler carries
// no state across chunks, so each chunk is interpolated in isolation; the
// per-chunk boundary artifacts that introduces are accepted in exchange for
// stateless call sites.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrOddPCMLength = errors.New("pcm chunk length must be a multiple of 2")

const (
	mulawBias = 0x84
	mulawClip = 32635
)

// DownlinkToAgent converts a mu-law 8 kHz chunk into PCM16LE at 24 kHz.
func DownlinkToAgent(mulaw []byte) ([]byte, error) {
	if len(mulaw) == 0 {
		return nil, nil
	}
	pcm8k := make([]int16, len(mulaw))
	for i, b := range mulaw {
		pcm8k[i] = DecodeSample(b)
	}
	pcm24k := upsample3x(pcm8k)
	return samplesToBytes(pcm24k), nil
}

// UplinkFromAgent converts a PCM16LE 24 kHz chunk into mu-law at 8 kHz.
func UplinkFromAgent(pcm []byte) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrOddPCMLength, len(pcm))
	}
	pcm24k := bytesToSamples(pcm)
	pcm8k := downsample3x(pcm24k)
	out := make([]byte, len(pcm8k))
	for i, s := range pcm8k {
		out[i] = EncodeSample(s)
	}
	return out, nil
}

// DecodeSample expands one mu-law byte to a linear 16-bit sample.
func DecodeSample(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := int32(u & 0x0F)
	magnitude := ((mant<<3 + mulawBias) << exp) - mulawBias
	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// EncodeSample compresses one linear 16-bit sample to a mu-law byte.
func EncodeSample(s int16) byte {
	x := int32(s)
	var sign byte
	if x < 0 {
		x = -x
		sign = 0x80
	}
	if x > mulawClip {
		x = mulawClip
	}
	x += mulawBias

	exp := byte(7)
	for mask := int32(0x4000); exp > 0 && x&mask == 0; mask >>= 1 {
		exp--
	}
	mant := byte((x >> (exp + 3)) & 0x0F)
	return ^(sign | exp<<4 | mant)
}

// upsample3x triples the sample rate with linear interpolation between
// neighbours. The final input sample is held for its interpolation partners.
func upsample3x(in []int16) []int16 {
	out := make([]int16, 0, len(in)*3)
	for i, cur := range in {
		next := cur
		if i+1 < len(in) {
			next = in[i+1]
		}
		c, n := int32(cur), int32(next)
		out = append(out,
			cur,
			int16(c+(n-c)/3),
			int16(c+2*(n-c)/3),
		)
	}
	return out
}

// downsample3x reduces the sample rate by three, averaging each group of
// three samples as a cheap anti-alias step. A trailing partial group is
// averaged over the samples it has.
func downsample3x(in []int16) []int16 {
	out := make([]int16, 0, (len(in)+2)/3)
	for i := 0; i < len(in); i += 3 {
		var sum, n int32
		for j := i; j < i+3 && j < len(in); j++ {
			sum += int32(in[j])
			n++
		}
		out = append(out, int16(sum/n))
	}
	return out
}

func samplesToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func bytesToSamples(in []byte) []int16 {
	out := make([]int16, len(in)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(in[i*2:]))
	}
	return out
}
