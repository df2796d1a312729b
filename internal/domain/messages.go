package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// WebSocket message types from client.
const (
	MsgTypeDraw  = "draw"
	MsgTypeClear = "clear"
	MsgTypePing  = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeReceive = "receive"
	MsgTypePong    = "pong"
)

var (
	// ErrMalformedEvent covers undecodable frames and frames with missing or
	// wrongly typed fields.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrUnknownType is returned for frames whose type is not part of the protocol.
	ErrUnknownType = fmt.Errorf("%w: unknown type", ErrMalformedEvent)
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// SegmentMessage is the wire form of a segment. Clients send it as "draw";
// the relay forwards it as "receive" with the same fields.
type SegmentMessage struct {
	Type  string  `json:"type"`
	PrevX float64 `json:"prevX"`
	PrevY float64 `json:"prevY"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color Color   `json:"color"`
}

// segmentFrame decodes a segment with pointer fields so a missing field can
// be told apart from a zero coordinate.
type segmentFrame struct {
	Type  string   `json:"type"`
	PrevX *float64 `json:"prevX"`
	PrevY *float64 `json:"prevY"`
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	Color *string  `json:"color"`
}

// Frame is a decoded WebSocket message. Segment is set for draw and receive.
type Frame struct {
	Type    string
	Segment Segment
}

// DecodeFrame parses and validates one WebSocket text frame.
func DecodeFrame(data []byte) (Frame, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch base.Type {
	case MsgTypeDraw, MsgTypeReceive:
		seg, err := decodeSegment(data)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Type: base.Type, Segment: seg}, nil
	case MsgTypeClear, MsgTypePing, MsgTypePong:
		return Frame{Type: base.Type}, nil
	default:
		return Frame{}, fmt.Errorf("%w %q", ErrUnknownType, base.Type)
	}
}

func decodeSegment(data []byte) (Segment, error) {
	var f segmentFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return Segment{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if f.PrevX == nil || f.PrevY == nil || f.X == nil || f.Y == nil {
		return Segment{}, fmt.Errorf("%w: missing coordinate", ErrMalformedEvent)
	}
	if f.Color == nil {
		return Segment{}, fmt.Errorf("%w: missing color", ErrMalformedEvent)
	}
	c, err := ParseColor(*f.Color)
	if err != nil {
		return Segment{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	seg := Segment{PrevX: *f.PrevX, PrevY: *f.PrevY, X: *f.X, Y: *f.Y, Color: c}
	if err := seg.Validate(); err != nil {
		return Segment{}, err
	}
	return seg, nil
}

func encodeSegment(msgType string, seg Segment) ([]byte, error) {
	if err := seg.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(SegmentMessage{
		Type:  msgType,
		PrevX: seg.PrevX,
		PrevY: seg.PrevY,
		X:     seg.X,
		Y:     seg.Y,
		Color: seg.Color,
	})
}

// EncodeDraw encodes a client -> relay draw frame.
func EncodeDraw(seg Segment) ([]byte, error) {
	return encodeSegment(MsgTypeDraw, seg)
}

// EncodeReceive encodes a relay -> client receive frame.
func EncodeReceive(seg Segment) ([]byte, error) {
	return encodeSegment(MsgTypeReceive, seg)
}

// EncodeType encodes a payload-less frame such as clear, ping or pong.
func EncodeType(msgType string) []byte {
	data, _ := json.Marshal(BaseMessage{Type: msgType})
	return data
}
