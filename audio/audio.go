// Package audio validates and normalizes inbound binary audio frames into
// decodable segments for the transcription pipeline.
package audio

import (
	"bytes"
	"errors"
	"fmt"
)

// Encoding identifies a container/codec for an audio segment.
type Encoding string

const (
	EncodingWebM Encoding = "webm"
	EncodingWAV  Encoding = "wav"
	EncodingOgg  Encoding = "ogg"
	EncodingMP3  Encoding = "mp3"
)

// ErrTooSmall marks a frame below the minimum useful size. Trailing
// silence produces these constantly; callers drop the frame without
// surfacing an error to the user.
var ErrTooSmall = errors.New("audio chunk below minimum size")

// ErrUnsupported marks a frame whose encoding could not be determined or
// is not accepted by the pipeline.
var ErrUnsupported = errors.New("unsupported or corrupt audio encoding")

// Segment is a validated audio unit ready for transcription.
type Segment struct {
	Encoding Encoding
	Data     []byte
}

var (
	magicEBML = []byte{0x1a, 0x45, 0xdf, 0xa3}
	magicRIFF = []byte("RIFF")
	magicWAVE = []byte("WAVE")
	magicOggS = []byte("OggS")
	magicID3  = []byte("ID3")
)

// Decoder normalizes raw frames. The zero value accepts every size; real
// deployments set MinBytes to filter empty trailing frames.
type Decoder struct {
	// MinBytes is the smallest frame considered to carry speech.
	MinBytes int
}

// Decode validates raw bytes against the declared encoding. The container
// magic wins over the declaration when the two disagree; an empty
// declaration relies on sniffing alone.
func (d Decoder) Decode(data []byte, declared Encoding) (Segment, error) {
	if len(data) < d.MinBytes {
		return Segment{}, fmt.Errorf("%w: %d bytes", ErrTooSmall, len(data))
	}

	if enc, ok := sniff(data); ok {
		return Segment{Encoding: enc, Data: data}, nil
	}

	switch declared {
	case EncodingWebM, EncodingWAV, EncodingOgg, EncodingMP3:
		return Segment{Encoding: declared, Data: data}, nil
	case "":
		return Segment{}, fmt.Errorf("%w: no container magic and no declared encoding", ErrUnsupported)
	default:
		return Segment{}, fmt.Errorf("%w: %q", ErrUnsupported, declared)
	}
}

func sniff(data []byte) (Encoding, bool) {
	switch {
	case bytes.HasPrefix(data, magicEBML):
		return EncodingWebM, true
	case len(data) >= 12 && bytes.HasPrefix(data, magicRIFF) && bytes.Equal(data[8:12], magicWAVE):
		return EncodingWAV, true
	case bytes.HasPrefix(data, magicOggS):
		return EncodingOgg, true
	case bytes.HasPrefix(data, magicID3):
		return EncodingMP3, true
	}
	return "", false
}
