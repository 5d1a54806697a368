package telemplot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Protocol constants
const (
	// ProtocolVersion is the current version of the plot protocol
	ProtocolVersion byte = 1

	// Message type constants. A plot is sent as METADATA, one DATA message
	// per series, ANNOTATIONS and finally PLOT_END.
	MessageTypeData        byte = 0x01
	MessageTypeMetadata    byte = 0x02
	MessageTypeAnnotations byte = 0x03
	MessageTypeError       byte = 0x04
	MessageTypePlotEnd     byte = 0x05

	// Header size in bytes
	EnvelopeHeaderSize = 8
)

// EnvelopeHeader represents the message envelope header
type EnvelopeHeader struct {
	Version  byte
	Reserved [2]byte // Reserved for future use
	Type     byte
	Length   uint32 // Payload length in bytes
}

// DataMessage represents a DATA message payload (type 0x01)
type DataMessage struct {
	SeriesID uint32
	Length   uint32    // Number of X/Y pairs
	X        []float64 // X values, unix seconds
	Y        []float64 // Y values
}

// SeriesMetadata describes one series of a plot on the wire. ID matches
// DataMessage.SeriesID.
type SeriesMetadata struct {
	ID         uint32         `json:"id"`
	Name       string         `json:"name"`
	Index      int            `json:"index"`
	Color      Color          `json:"color"`
	AxisIndex  int            `json:"axisIndex"`
	AxisOffset float64        `json:"axisOffset"`
	Extremum   SeriesExtremum `json:"extremum"`
}

// PlotMetadata represents a METADATA message payload (type 0x02)
type PlotMetadata struct {
	Title       string           `json:"title"`
	WindowTitle string           `json:"windowTitle"`
	TimeLabel   string           `json:"timeLabel"`
	Selection   Selection        `json:"selection"`
	Range       SharedAxisRange  `json:"range"`
	Series      []SeriesMetadata `json:"series"`
	Warnings    []string         `json:"warnings,omitempty"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
}

// AnnotationsMessage represents an ANNOTATIONS message payload (type 0x03)
type AnnotationsMessage struct {
	Slots []AnnotationSlot `json:"slots"`
}

// ErrorMessage represents an ERROR message payload (type 0x04). Sent to the
// client whose request failed; the previous plot stays valid.
type ErrorMessage struct {
	Kind string `json:"kind"`
	Msg  string `json:"msg"`
}

// PlotEndMessage represents a PLOT_END message payload (type 0x05)
type PlotEndMessage struct {
	SeriesCount int `json:"seriesCount"`
}

// WSMessage represents a complete websocket message with header and payload
type WSMessage struct {
	Header  EnvelopeHeader
	Payload interface{} // One of: DataMessage, PlotMetadata, AnnotationsMessage, ErrorMessage, PlotEndMessage
}

// EncodeEnvelopeHeader encodes the envelope header into a byte slice
func EncodeEnvelopeHeader(env EnvelopeHeader) []byte {
	buf := make([]byte, EnvelopeHeaderSize)
	buf[0] = env.Version
	buf[1] = env.Reserved[0]
	buf[2] = env.Reserved[1]
	buf[3] = env.Type
	binary.LittleEndian.PutUint32(buf[4:8], env.Length)
	return buf
}

// DecodeEnvelopeHeader decodes the envelope header from a byte slice
// Returns the envelope and an error if the buffer is too short
func DecodeEnvelopeHeader(buf []byte) (EnvelopeHeader, error) {
	if len(buf) < EnvelopeHeaderSize {
		return EnvelopeHeader{}, fmt.Errorf("buffer too short: expected at least %d bytes, got %d", EnvelopeHeaderSize, len(buf))
	}

	env := EnvelopeHeader{
		Version: buf[0],
		Type:    buf[3],
		Length:  binary.LittleEndian.Uint32(buf[4:8]),
	}
	env.Reserved[0] = buf[1]
	env.Reserved[1] = buf[2]

	return env, nil
}

// EncodeDataMessage encodes a DATA message payload
// Returns error if X and Y arrays don't match in length
func EncodeDataMessage(msg DataMessage) ([]byte, error) {
	if len(msg.X) != len(msg.Y) {
		return nil, fmt.Errorf("X and Y arrays must have same length: X=%d, Y=%d", len(msg.X), len(msg.Y))
	}
	if uint32(len(msg.X)) != msg.Length {
		return nil, fmt.Errorf("Length field (%d) doesn't match array length (%d)", msg.Length, len(msg.X))
	}

	// Calculate payload size: SeriesID(4) + Length(4) + X array + Y array
	payloadSize := 8 + (msg.Length * 8 * 2)
	buf := make([]byte, payloadSize)

	// Encode SeriesID and Length
	binary.LittleEndian.PutUint32(buf[0:4], msg.SeriesID)
	binary.LittleEndian.PutUint32(buf[4:8], msg.Length)

	// Encode X array
	offset := 8
	for _, x := range msg.X {
		binary.LittleEndian.PutUint64(buf[offset:offset+8], math.Float64bits(x))
		offset += 8
	}

	// Encode Y array
	for _, y := range msg.Y {
		binary.LittleEndian.PutUint64(buf[offset:offset+8], math.Float64bits(y))
		offset += 8
	}

	return buf, nil
}

// DecodeDataMessage decodes a DATA message payload
func DecodeDataMessage(buf []byte) (DataMessage, error) {
	if len(buf) < 8 {
		return DataMessage{}, fmt.Errorf("buffer too short for DATA message: expected at least 8 bytes, got %d", len(buf))
	}

	msg := DataMessage{
		SeriesID: binary.LittleEndian.Uint32(buf[0:4]),
		Length:   binary.LittleEndian.Uint32(buf[4:8]),
	}

	// Validate buffer size
	expectedSize := 8 + (msg.Length * 8 * 2)
	if uint32(len(buf)) != expectedSize {
		return DataMessage{}, fmt.Errorf("buffer size mismatch: expected %d bytes for %d pairs, got %d", expectedSize, msg.Length, len(buf))
	}

	// Decode X array
	msg.X = make([]float64, msg.Length)
	offset := 8
	for i := uint32(0); i < msg.Length; i++ {
		bits := binary.LittleEndian.Uint64(buf[offset : offset+8])
		msg.X[i] = math.Float64frombits(bits)
		offset += 8
	}

	// Decode Y array
	msg.Y = make([]float64, msg.Length)
	for i := uint32(0); i < msg.Length; i++ {
		bits := binary.LittleEndian.Uint64(buf[offset : offset+8])
		msg.Y[i] = math.Float64frombits(bits)
		offset += 8
	}

	return msg, nil
}

// encodeJSONPayload encodes a JSON payload prefixed by its length
func encodeJSONPayload(v interface{}, what string) ([]byte, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", what, err)
	}

	// Payload: JSON Length (4 bytes) + JSON data
	payloadSize := 4 + len(jsonData)
	buf := make([]byte, payloadSize)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(jsonData)))
	copy(buf[4:], jsonData)

	return buf, nil
}

// decodeJSONPayload decodes a length prefixed JSON payload into v
func decodeJSONPayload(buf []byte, v interface{}, what string) error {
	if len(buf) < 4 {
		return fmt.Errorf("buffer too short for %s message: expected at least 4 bytes, got %d", what, len(buf))
	}

	jsonLength := binary.LittleEndian.Uint32(buf[0:4])

	// Validate buffer size
	expectedSize := 4 + uint64(jsonLength)
	if uint64(len(buf)) != expectedSize {
		return fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", expectedSize, len(buf))
	}

	if err := json.Unmarshal(buf[4:], v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", what, err)
	}

	return nil
}

// EncodeWSMessage encodes a WSMessage into a complete message byte slice
// Returns error if payload encoding fails or if payload type is invalid
func EncodeWSMessage(msg WSMessage) ([]byte, error) {
	var payload []byte
	var err error

	// Encode payload based on message type
	switch msg.Header.Type {
	case MessageTypeData:
		dataMsg, ok := msg.Payload.(DataMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected DataMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeDataMessage(dataMsg)
	case MessageTypeMetadata:
		metadata, ok := msg.Payload.(PlotMetadata)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected PlotMetadata for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = encodeJSONPayload(metadata, "metadata")
	case MessageTypeAnnotations:
		annotations, ok := msg.Payload.(AnnotationsMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected AnnotationsMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = encodeJSONPayload(annotations, "annotations")
	case MessageTypeError:
		errMsg, ok := msg.Payload.(ErrorMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected ErrorMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = encodeJSONPayload(errMsg, "error")
	case MessageTypePlotEnd:
		plotEnd, ok := msg.Payload.(PlotEndMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected PlotEndMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = encodeJSONPayload(plotEnd, "plot end")
	default:
		return nil, fmt.Errorf("unknown message type: 0x%02x", msg.Header.Type)
	}

	if err != nil {
		return nil, err
	}

	// Update header length to match actual payload size
	msg.Header.Length = uint32(len(payload))

	// Encode header
	header := EncodeEnvelopeHeader(msg.Header)

	// Combine header and payload
	fullMsg := make([]byte, len(header)+len(payload))
	copy(fullMsg, header)
	copy(fullMsg[len(header):], payload)

	return fullMsg, nil
}

// DecodeWSMessage decodes a complete message (envelope + payload) into a WSMessage
// Returns error if buffer is too short or payload decoding fails
func DecodeWSMessage(buf []byte) (WSMessage, error) {
	env, err := DecodeEnvelopeHeader(buf)
	if err != nil {
		return WSMessage{}, err
	}

	// Validate full message size
	expectedSize := EnvelopeHeaderSize + env.Length
	if uint32(len(buf)) < expectedSize {
		return WSMessage{}, fmt.Errorf("buffer too short: expected %d bytes (header + payload), got %d", expectedSize, len(buf))
	}

	payloadBytes := buf[EnvelopeHeaderSize : EnvelopeHeaderSize+env.Length]

	// Decode payload based on message type
	var payload interface{}
	switch env.Type {
	case MessageTypeData:
		dataMsg, err := DecodeDataMessage(payloadBytes)
		if err != nil {
			return WSMessage{}, err
		}
		payload = dataMsg
	case MessageTypeMetadata:
		var metadata PlotMetadata
		if err := decodeJSONPayload(payloadBytes, &metadata, "metadata"); err != nil {
			return WSMessage{}, err
		}
		payload = metadata
	case MessageTypeAnnotations:
		var annotations AnnotationsMessage
		if err := decodeJSONPayload(payloadBytes, &annotations, "annotations"); err != nil {
			return WSMessage{}, err
		}
		payload = annotations
	case MessageTypeError:
		var errMsg ErrorMessage
		if err := decodeJSONPayload(payloadBytes, &errMsg, "error"); err != nil {
			return WSMessage{}, err
		}
		payload = errMsg
	case MessageTypePlotEnd:
		var plotEnd PlotEndMessage
		if err := decodeJSONPayload(payloadBytes, &plotEnd, "plot end"); err != nil {
			return WSMessage{}, err
		}
		payload = plotEnd
	default:
		return WSMessage{}, fmt.Errorf("unknown message type: 0x%02x", env.Type)
	}

	return WSMessage{
		Header:  env,
		Payload: payload,
	}, nil
}

func newMessage(msgType byte, payload interface{}) WSMessage {
	return WSMessage{
		Header:  EnvelopeHeader{Version: ProtocolVersion, Type: msgType},
		Payload: payload,
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}

// PlotMessages splits a plot into the message sequence sent to clients.
func PlotMessages(plot *Plot) []WSMessage {
	metadata := PlotMetadata{
		Title:       plot.Title,
		WindowTitle: plot.WindowTitle,
		TimeLabel:   plot.TimeLabel,
		Selection:   plot.Selection,
		Range:       plot.Range,
		Warnings:    plot.Warnings,
		Width:       plot.Width,
		Height:      plot.Height,
	}

	messages := make([]WSMessage, 0, len(plot.Series)+3)
	data := make([]WSMessage, 0, len(plot.Series))

	for i, series := range plot.Series {
		metadata.Series = append(metadata.Series, SeriesMetadata{
			ID:         uint32(i),
			Name:       series.Name,
			Index:      series.Index,
			Color:      series.Color,
			AxisIndex:  series.AxisIndex,
			AxisOffset: series.AxisOffset,
			Extremum:   series.Extremum,
		})

		dataMsg := DataMessage{
			SeriesID: uint32(i),
			Length:   uint32(len(series.Points)),
			X:        make([]float64, len(series.Points)),
			Y:        make([]float64, len(series.Points)),
		}
		for j, p := range series.Points {
			dataMsg.X[j] = unixSeconds(p.Time)
			dataMsg.Y[j] = p.Value
		}
		data = append(data, newMessage(MessageTypeData, dataMsg))
	}

	messages = append(messages, newMessage(MessageTypeMetadata, metadata))
	messages = append(messages, data...)
	messages = append(messages, newMessage(MessageTypeAnnotations, AnnotationsMessage{Slots: plot.Annotations}))
	messages = append(messages, newMessage(MessageTypePlotEnd, PlotEndMessage{SeriesCount: len(plot.Series)}))

	return messages
}

// EncodePlot encodes the full message sequence of a plot.
func EncodePlot(plot *Plot) ([][]byte, error) {
	messages := PlotMessages(plot)
	encoded := make([][]byte, 0, len(messages))
	for _, msg := range messages {
		buf, err := EncodeWSMessage(msg)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, buf)
	}
	return encoded, nil
}

// EncodeError encodes an ERROR message for err.
func EncodeError(err error) ([]byte, error) {
	return EncodeWSMessage(newMessage(MessageTypeError, ErrorMessage{Kind: ErrorKind(err), Msg: err.Error()}))
}

// PlotAssembler rebuilds plots from a stream of decoded messages.
type PlotAssembler struct {
	plot *Plot
}

// Push feeds the next message. It returns the finished plot when msg is the
// PLOT_END of a complete sequence. ERROR messages are returned as errors.
func (a *PlotAssembler) Push(msg WSMessage) (*Plot, error) {
	switch payload := msg.Payload.(type) {
	case PlotMetadata:
		a.plot = &Plot{
			Title:       payload.Title,
			WindowTitle: payload.WindowTitle,
			TimeLabel:   payload.TimeLabel,
			Selection:   payload.Selection,
			Range:       payload.Range,
			Warnings:    payload.Warnings,
			Width:       payload.Width,
			Height:      payload.Height,
		}
		for _, s := range payload.Series {
			a.plot.Series = append(a.plot.Series, PlottedSeries{
				Index:      s.Index,
				Name:       s.Name,
				Color:      s.Color,
				AxisIndex:  s.AxisIndex,
				AxisOffset: s.AxisOffset,
				Extremum:   s.Extremum,
			})
		}
	case DataMessage:
		if a.plot == nil {
			return nil, fmt.Errorf("DATA message before METADATA")
		}
		if int(payload.SeriesID) >= len(a.plot.Series) {
			return nil, fmt.Errorf("DATA message for unknown series %d", payload.SeriesID)
		}
		points := make([]Point, payload.Length)
		for i := range points {
			points[i] = Point{Time: fromUnixSeconds(payload.X[i]), Value: payload.Y[i]}
		}
		a.plot.Series[payload.SeriesID].Points = points
	case AnnotationsMessage:
		if a.plot == nil {
			return nil, fmt.Errorf("ANNOTATIONS message before METADATA")
		}
		a.plot.Annotations = payload.Slots
	case ErrorMessage:
		return nil, &RemoteError{Kind: payload.Kind, Msg: payload.Msg}
	case PlotEndMessage:
		if a.plot == nil {
			return nil, fmt.Errorf("PLOT_END message before METADATA")
		}
		plot := a.plot
		a.plot = nil
		return plot, nil
	default:
		return nil, fmt.Errorf("unexpected payload type %T", msg.Payload)
	}

	return nil, nil
}

// RemoteError is a request failure reported by the server.
type RemoteError struct {
	Kind string
	Msg  string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}
