package telemplot

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestEncodeDecodeEnvelopeHeader(t *testing.T) {
	tests := []struct {
		name string
		env  EnvelopeHeader
	}{
		{"data", EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeData, Length: 1024}},
		{"zero length payload", EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeMetadata}},
		{"large payload", EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypePlotEnd, Length: 1000000}},
		{"reserved bytes", EnvelopeHeader{Version: ProtocolVersion, Reserved: [2]byte{0xAB, 0xCD}, Type: MessageTypeError, Length: 512}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeEnvelopeHeader(tt.env)
			if len(encoded) != EnvelopeHeaderSize {
				t.Fatalf("encoded header size = %d, want %d", len(encoded), EnvelopeHeaderSize)
			}

			decoded, err := DecodeEnvelopeHeader(encoded)
			if err != nil {
				t.Fatalf("DecodeEnvelopeHeader() error = %v", err)
			}
			if decoded != tt.env {
				t.Errorf("decoded = %+v, want %+v", decoded, tt.env)
			}
		})
	}

	t.Run("byte order", func(t *testing.T) {
		encoded := EncodeEnvelopeHeader(EnvelopeHeader{Version: 1, Type: MessageTypeAnnotations, Length: 0x01020304})
		want := []byte{1, 0, 0, MessageTypeAnnotations, 0x04, 0x03, 0x02, 0x01}
		if !reflect.DeepEqual(encoded, want) {
			t.Fatalf("encoded = %v, want %v", encoded, want)
		}
	})

	t.Run("too short", func(t *testing.T) {
		for _, buf := range [][]byte{{}, {1, 2, 3, 4, 5, 6, 7}} {
			_, err := DecodeEnvelopeHeader(buf)
			if err == nil || !strings.Contains(err.Error(), "buffer too short") {
				t.Errorf("%d bytes: unexpected error %v", len(buf), err)
			}
		}
	})
}

func TestEncodeDecodeDataMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  DataMessage
	}{
		{"single point", DataMessage{SeriesID: 0, Length: 1, X: []float64{1.0}, Y: []float64{10.5}}},
		{"multiple points", DataMessage{SeriesID: 1, Length: 3, X: []float64{1, 2, 3}, Y: []float64{10.5, 20.3, 15.7}}},
		{"empty", DataMessage{SeriesID: 2, Length: 0, X: []float64{}, Y: []float64{}}},
		{"large", DataMessage{SeriesID: 0, Length: 1000, X: makeSampleData(1000), Y: makeSampleData(1000)}},
		{"missing values", DataMessage{SeriesID: 0, Length: 3, X: []float64{1, 2, 3}, Y: []float64{math.NaN(), math.Inf(1), -0.0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeDataMessage(tt.msg)
			if err != nil {
				t.Fatalf("EncodeDataMessage() error = %v", err)
			}
			if want := 8 + tt.msg.Length*16; uint32(len(encoded)) != want {
				t.Errorf("encoded size = %d, want %d", len(encoded), want)
			}

			decoded, err := DecodeDataMessage(encoded)
			if err != nil {
				t.Fatalf("DecodeDataMessage() error = %v", err)
			}
			if decoded.SeriesID != tt.msg.SeriesID || decoded.Length != tt.msg.Length {
				t.Fatalf("decoded header %d/%d, want %d/%d", decoded.SeriesID, decoded.Length, tt.msg.SeriesID, tt.msg.Length)
			}
			for i := range tt.msg.X {
				if !floatEqual(decoded.X[i], tt.msg.X[i]) || !floatEqual(decoded.Y[i], tt.msg.Y[i]) {
					t.Errorf("pair %d = (%v, %v), want (%v, %v)", i, decoded.X[i], decoded.Y[i], tt.msg.X[i], tt.msg.Y[i])
				}
			}
		})
	}
}

func TestDataMessageErrors(t *testing.T) {
	t.Run("encode", func(t *testing.T) {
		tests := []struct {
			name        string
			msg         DataMessage
			errContains string
		}{
			{"X and Y length mismatch", DataMessage{Length: 2, X: []float64{1, 2}, Y: []float64{10}}, "must have same length"},
			{"Length mismatch", DataMessage{Length: 5, X: []float64{1, 2}, Y: []float64{10, 20}}, "doesn't match array length"},
		}
		for _, tt := range tests {
			if _, err := EncodeDataMessage(tt.msg); err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("%s: error = %v, want error containing %q", tt.name, err, tt.errContains)
			}
		}
	})

	t.Run("decode", func(t *testing.T) {
		missing := make([]byte, 8)
		missing[4] = 10 // 10 pairs announced, none present

		extra := make([]byte, 8+3*16)
		extra[4] = 1 // 1 pair announced, 3 present

		tests := []struct {
			name        string
			buf         []byte
			errContains string
		}{
			{"empty", []byte{}, "buffer too short"},
			{"7 bytes", []byte{1, 2, 3, 4, 5, 6, 7}, "buffer too short"},
			{"missing data", missing, "buffer size mismatch"},
			{"too much data", extra, "buffer size mismatch"},
		}
		for _, tt := range tests {
			if _, err := DecodeDataMessage(tt.buf); err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("%s: error = %v, want error containing %q", tt.name, err, tt.errContains)
			}
		}
	})
}

func TestEncodeDecodeWSMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType byte
		payload interface{}
	}{
		{"data", MessageTypeData, DataMessage{SeriesID: 1, Length: 2, X: []float64{1, 2}, Y: []float64{3, 4}}},
		{"metadata", MessageTypeMetadata, PlotMetadata{
			Title:     "Satellite Telemetry: Temp",
			TimeLabel: "Time",
			Selection: Selection{1},
			Range:     SharedAxisRange{Low: 17.65, High: 25.35},
			Series:    []SeriesMetadata{{ID: 0, Name: "Temp", Index: 1, Color: "tab:blue"}},
			Width:     1000,
			Height:    600,
		}},
		{"annotations", MessageTypeAnnotations, AnnotationsMessage{Slots: []AnnotationSlot{{
			Series:     "Temp",
			Kind:       AnnotationPeak,
			Label:      "Peak Temp",
			Anchor:     Point{ts(60), 25},
			TextOffset: Vec{X: 10, Y: -7},
			ArrowRad:   -0.2,
			ArrowStyle: ArrowStyleWedge,
			Color:      "tab:blue",
			FontSize:   8,
			Level:      1,
		}}}},
		{"error", MessageTypeError, ErrorMessage{Kind: "selection_syntax", Msg: "bad"}},
		{"plot end", MessageTypePlotEnd, PlotEndMessage{SeriesCount: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeWSMessage(newMessage(tt.msgType, tt.payload))
			if err != nil {
				t.Fatalf("EncodeWSMessage() error = %v", err)
			}

			decoded, err := DecodeWSMessage(encoded)
			if err != nil {
				t.Fatalf("DecodeWSMessage() error = %v", err)
			}

			if decoded.Header.Type != tt.msgType || decoded.Header.Version != ProtocolVersion {
				t.Fatalf("unexpected header %+v", decoded.Header)
			}
			if int(decoded.Header.Length) != len(encoded)-EnvelopeHeaderSize {
				t.Fatalf("header length %d, payload is %d", decoded.Header.Length, len(encoded)-EnvelopeHeaderSize)
			}
			if !reflect.DeepEqual(decoded.Payload, tt.payload) {
				t.Fatalf("payload = %+v, want %+v", decoded.Payload, tt.payload)
			}
		})
	}
}

func TestWSMessageErrors(t *testing.T) {
	t.Run("payload type mismatch", func(t *testing.T) {
		for _, msgType := range []byte{MessageTypeData, MessageTypeMetadata, MessageTypeAnnotations, MessageTypeError, MessageTypePlotEnd} {
			_, err := EncodeWSMessage(newMessage(msgType, "not a payload"))
			if err == nil || !strings.Contains(err.Error(), "payload type mismatch") {
				t.Errorf("type 0x%02x: unexpected error %v", msgType, err)
			}
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := EncodeWSMessage(newMessage(0x7f, nil)); err == nil || !strings.Contains(err.Error(), "unknown message type") {
			t.Errorf("unexpected encode error %v", err)
		}

		buf := EncodeEnvelopeHeader(EnvelopeHeader{Version: ProtocolVersion, Type: 0x7f})
		if _, err := DecodeWSMessage(buf); err == nil || !strings.Contains(err.Error(), "unknown message type") {
			t.Errorf("unexpected decode error %v", err)
		}
	})

	t.Run("truncated payload", func(t *testing.T) {
		encoded, _ := EncodeWSMessage(newMessage(MessageTypePlotEnd, PlotEndMessage{SeriesCount: 1}))
		if _, err := DecodeWSMessage(encoded[:len(encoded)-1]); err == nil || !strings.Contains(err.Error(), "buffer too short") {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("bad JSON", func(t *testing.T) {
		payload := []byte{3, 0, 0, 0, '{', '{', '{'}
		buf := append(EncodeEnvelopeHeader(EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeMetadata, Length: uint32(len(payload))}), payload...)
		if _, err := DecodeWSMessage(buf); err == nil || !strings.Contains(err.Error(), "failed to unmarshal metadata") {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("JSON length mismatch", func(t *testing.T) {
		payload := []byte{9, 0, 0, 0, '{', '}'}
		buf := append(EncodeEnvelopeHeader(EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypePlotEnd, Length: uint32(len(payload))}), payload...)
		if _, err := DecodeWSMessage(buf); err == nil || !strings.Contains(err.Error(), "buffer size mismatch") {
			t.Errorf("unexpected error %v", err)
		}
	})
}

func TestPlotMessages(t *testing.T) {
	plot, err := BuildPlot(testTable(t), Selection{1, 3}, DefaultPlotOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("sequence", func(t *testing.T) {
		messages := PlotMessages(plot)
		want := []byte{MessageTypeMetadata, MessageTypeData, MessageTypeData, MessageTypeAnnotations, MessageTypePlotEnd}
		if len(messages) != len(want) {
			t.Fatalf("got %d messages, want %d", len(messages), len(want))
		}
		for i, msg := range messages {
			if msg.Header.Type != want[i] {
				t.Errorf("message %d type 0x%02x, want 0x%02x", i, msg.Header.Type, want[i])
			}
		}
	})

	t.Run("round trip", func(t *testing.T) {
		frames, err := EncodePlot(plot)
		if err != nil {
			t.Fatalf("EncodePlot() error = %v", err)
		}

		var assembler PlotAssembler
		var got *Plot
		for i, frame := range frames {
			msg, err := DecodeWSMessage(frame)
			if err != nil {
				t.Fatalf("frame %d: %v", i, err)
			}
			got, err = assembler.Push(msg)
			if err != nil {
				t.Fatalf("frame %d: %v", i, err)
			}
			if got != nil && i != len(frames)-1 {
				t.Fatalf("plot completed early at frame %d", i)
			}
		}

		if !reflect.DeepEqual(got, plot) {
			t.Fatalf("round trip mismatch\ngot  %+v\nwant %+v", got, plot)
		}
	})

	t.Run("error", func(t *testing.T) {
		frame, err := EncodeError(&SelectionCountError{Count: 4, Max: 3})
		if err != nil {
			t.Fatalf("EncodeError() error = %v", err)
		}
		msg, _ := DecodeWSMessage(frame)

		var assembler PlotAssembler
		_, err = assembler.Push(msg)
		var remote *RemoteError
		if !errors.As(err, &remote) || remote.Kind != "selection_count" || !strings.Contains(remote.Msg, "between 1 and 3") {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("out of order", func(t *testing.T) {
		var assembler PlotAssembler
		for _, msg := range []WSMessage{
			newMessage(MessageTypeData, DataMessage{}),
			newMessage(MessageTypeAnnotations, AnnotationsMessage{}),
			newMessage(MessageTypePlotEnd, PlotEndMessage{}),
		} {
			if _, err := assembler.Push(msg); err == nil {
				t.Errorf("type 0x%02x before metadata must fail", msg.Header.Type)
			}
		}

		_, _ = assembler.Push(newMessage(MessageTypeMetadata, PlotMetadata{}))
		if _, err := assembler.Push(newMessage(MessageTypeData, DataMessage{SeriesID: 4})); err == nil {
			t.Errorf("data for an unknown series must fail")
		}
	})
}

func makeSampleData(n int) []float64 {
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i) * 1.5
	}
	return data
}

// floatEqual treats NaN as equal to NaN and distinguishes signed zeros.
func floatEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Float64bits(a) == math.Float64bits(b)
}
