package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-stomp/stomp/v3/frame"
)

// Encode serializes a frame into a single WebSocket payload.
// A nil frame encodes the heart-beat EOL.
func Encode(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", command(f), err)
	}
	return buf.Bytes(), nil
}

// Decode parses every frame contained in a WebSocket payload.
// Heart-beat EOLs are skipped; a payload made only of heart-beats yields no frames.
func Decode(data []byte) ([]*frame.Frame, error) {
	r := frame.NewReader(bytes.NewReader(data))
	var frames []*frame.Frame
	for {
		f, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return frames, fmt.Errorf("failed to decode frame: %w", err)
		}
		if f == nil {
			continue
		}
		frames = append(frames, f)
	}
}

func command(f *frame.Frame) string {
	if f == nil {
		return "heart-beat"
	}
	return f.Command
}
