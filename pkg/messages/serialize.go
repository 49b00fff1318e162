package messages

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	messagefb "github.com/cbodonnell/cardstage/flatbuffers/message"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
)

// FrameType distinguishes websocket text frames from binary frames.
type FrameType uint8

const (
	FrameTypeText FrameType = iota
	FrameTypeBinary
)

// Frame is one websocket message.
type Frame struct {
	Type FrameType
	Data []byte
}

const lengthPrefixSize = 4

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MessageBufferSize*16))
)

// Encode serializes an action into a frame. Text actions become text frames,
// everything else a length-prefixed binary frame.
func Encode(a Action) (Frame, error) {
	if text, ok := a.(*Text); ok {
		if !utf8.ValidString(text.Body) {
			return Frame{}, fmt.Errorf("text action is not valid UTF-8")
		}
		return Frame{Type: FrameTypeText, Data: []byte(text.Body)}, nil
	}

	b, err := SerializeAction(a)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to serialize action: %v", err)
	}

	data := make([]byte, lengthPrefixSize, lengthPrefixSize+len(b))
	binary.BigEndian.PutUint32(data, uint32(len(b)))
	data = append(data, b...)
	return Frame{Type: FrameTypeBinary, Data: data}, nil
}

// Decode parses a frame. It never fails: anything malformed decodes to an
// Invalid action describing the problem.
func Decode(f Frame) Action {
	switch f.Type {
	case FrameTypeText:
		if !utf8.Valid(f.Data) {
			return &Invalid{Reason: "text frame is not valid UTF-8"}
		}
		return &Text{Body: string(f.Data)}
	case FrameTypeBinary:
		if len(f.Data) < lengthPrefixSize {
			return &Invalid{Reason: "binary frame is shorter than its length prefix"}
		}
		n := binary.BigEndian.Uint32(f.Data)
		body := f.Data[lengthPrefixSize:]
		if uint64(n) != uint64(len(body)) {
			return &Invalid{Reason: fmt.Sprintf("binary frame declares %d bytes but carries %d", n, len(body))}
		}
		a, err := DeserializeAction(body)
		if err != nil {
			return &Invalid{Reason: err.Error()}
		}
		return a
	default:
		return &Invalid{Reason: fmt.Sprintf("unknown frame type %d", f.Type)}
	}
}

// SerializeAction encodes an action as a zstd-compressed flatbuffer Message
// whose payload is the JSON body of the action.
func SerializeAction(a Action) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", a.Type(), err)
	}

	var participant uint32
	if attributed, ok := a.(Attributed); ok {
		participant = attributed.ParticipantID()
	}

	builder := flatbuffers.NewBuilder(len(payload) + 32)
	payloadOffset := builder.CreateByteVector(payload)
	messagefb.MessageStart(builder)
	messagefb.MessageAddParticipantId(builder, participant)
	messagefb.MessageAddType(builder, byte(a.Type()))
	messagefb.MessageAddPayload(builder, payloadOffset)
	builder.Finish(messagefb.MessageEnd(builder))

	return encoder.EncodeAll(builder.FinishedBytes(), nil), nil
}

// DeserializeAction reverses SerializeAction.
func DeserializeAction(data []byte) (a Action, err error) {
	b, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress message: %v", err)
	}

	// flatbuffers accessors index into the buffer without bounds checks of
	// their own
	defer func() {
		if r := recover(); r != nil {
			a = nil
			err = fmt.Errorf("malformed message: %v", r)
		}
	}()

	if len(b) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("message of %d bytes is too short", len(b))
	}
	message := messagefb.GetRootAsMessage(b, 0)
	actionType := ActionType(message.Type())
	a = newAction(actionType)
	if a == nil {
		return nil, fmt.Errorf("unknown action type %d", actionType)
	}
	if err := json.Unmarshal(message.PayloadBytes(), a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %v", actionType, err)
	}
	if attributed, ok := a.(Attributed); ok && attributed.ParticipantID() != message.ParticipantId() {
		return nil, fmt.Errorf("%s payload is attributed to participant %d but envelope says %d", actionType, attributed.ParticipantID(), message.ParticipantId())
	}
	return a, nil
}
