// Package audio 提供PCM采样格式转换
package audio

import (
	"encoding/binary"
	"math"
)

const (
	// SampleRate 评测服务要求的采样率
	SampleRate = 16000
	// FrameBytes 每帧40ms的16bit单声道PCM
	FrameBytes = 1280
	// FrameSamples 每帧采样数
	FrameSamples = FrameBytes / 2
)

// Float32ToInt16 将[-1,1]浮点采样线性量化为16bit，超出范围的值先截断
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		if s < 0 {
			out[i] = int16(s * 0x8000)
		} else {
			out[i] = int16(s * 0x7FFF)
		}
	}
	return out
}

// Int16ToBytes 小端序编码
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16 小端序解码，末尾不足一个采样的字节被丢弃
func BytesToInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// BytesToFloat32 解码浏览器发送的小端序float32采样
func BytesToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// Resample 线性插值重采样
func Resample(input []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return input
	}

	ratio := float64(toRate) / float64(fromRate)
	output := make([]float32, int(math.Ceil(float64(len(input))*ratio)))
	for i := range output {
		srcPos := float64(i) / ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx+1 < len(input) {
			output[i] = input[srcIdx]*(1-frac) + input[srcIdx+1]*frac
		} else if srcIdx < len(input) {
			output[i] = input[srcIdx]
		}
	}
	return output
}

// Chunk 将采样按帧切分，最后一帧可能不足 size
func Chunk(pcm []int16, size int) [][]int16 {
	if size <= 0 {
		size = FrameSamples
	}
	var frames [][]int16
	for i := 0; i < len(pcm); i += size {
		end := i + size
		if end > len(pcm) {
			end = len(pcm)
		}
		frames = append(frames, pcm[i:end])
	}
	return frames
}
