package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/voice"
)

// ErrInvalidWAV 不是可识别的 WAV 数据
var ErrInvalidWAV = errors.New("engine: invalid wav")

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// EncodeWAV 把 [-1,1] 的 float32 采样编码为 16bit 单声道 PCM WAV
func EncodeWAV(samples []float32, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	pcm := buf[44:]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(floatToPCM16(s)))
	}
	return buf
}

// DecodeWAV 解析 16bit PCM 或 32bit float 的 WAV，多声道只取第一声道
func DecodeWAV(data []byte) (voice.Audio, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return voice.Audio{}, ErrInvalidWAV
	}

	var (
		format, channels, bits uint16
		rate                   uint32
		haveFmt                bool
	)
	r := bytes.NewReader(data[12:])
	for {
		var hdr struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return voice.Audio{}, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
			}
			return voice.Audio{}, err
		}
		size := int(hdr.Size)
		if size < 0 || size > r.Len() {
			// 流式写出的 WAV 常把 data 长度写成 0xFFFFFFFF
			size = r.Len()
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return voice.Audio{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		if size%2 == 1 && r.Len() > 0 {
			_, _ = r.ReadByte()
		}

		switch string(hdr.ID[:]) {
		case "fmt ":
			if len(chunk) < 16 {
				return voice.Audio{}, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			format = binary.LittleEndian.Uint16(chunk[0:2])
			channels = binary.LittleEndian.Uint16(chunk[2:4])
			rate = binary.LittleEndian.Uint32(chunk[4:8])
			bits = binary.LittleEndian.Uint16(chunk[14:16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return voice.Audio{}, fmt.Errorf("%w: data before fmt", ErrInvalidWAV)
			}
			samples, err := decodeSamples(chunk, format, channels, bits)
			if err != nil {
				return voice.Audio{}, err
			}
			return voice.Audio{Samples: samples, SampleRate: int(rate)}, nil
		}
	}
}

func decodeSamples(data []byte, format, channels, bits uint16) ([]float32, error) {
	if channels == 0 {
		return nil, fmt.Errorf("%w: zero channels", ErrInvalidWAV)
	}
	switch {
	case format == wavFormatPCM && bits == 16:
		frame := 2 * int(channels)
		out := make([]float32, len(data)/frame)
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(data[i*frame:]))) / 32768
		}
		return out, nil
	case format == wavFormatFloat && bits == 32:
		frame := 4 * int(channels)
		out := make([]float32, len(data)/frame)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*frame:]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported format %d/%d bits", ErrInvalidWAV, format, bits)
	}
}

func floatToPCM16(s float32) int16 {
	switch {
	case s >= 1:
		return math.MaxInt16
	case s <= -1:
		return math.MinInt16
	default:
		return int16(s * 32767)
	}
}

// PCM16ToFloat 把 16bit 小端 PCM 转成 float32 采样，末尾不足一个采样的字节被忽略
func PCM16ToFloat(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
	}
	return out
}
