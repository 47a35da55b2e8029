package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Parse decodes a frame body into the payload variant of its topic and validates it.
// Anything that does not match is rejected rather than passed on partially typed.
func Parse(topic string, body []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch KindOf(topic) {
	case KindChat:
		p, err = decode[ChatMessage](body)
	case KindNotification:
		p, err = decode[Notification](body)
	case KindLocation:
		p, err = decode[LocationUpdate](body)
	default:
		p = Raw(bytes.Clone(body))
	}
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func decode[T Payload](body []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return v, nil
}
