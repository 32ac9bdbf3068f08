package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Engine.IO v4 packet types.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineNoop    = '6'
)

// Socket.IO v4 packet types.
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketAck          = '3'
	socketConnectError = '4'
)

var errEmptyPacket = errors.New("empty packet")

// handshake is the payload of the Engine.IO open packet.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
	MaxPayload   int    `json:"maxPayload"`
}

// socketPacket is a decoded Socket.IO packet.
type socketPacket struct {
	kind      byte
	namespace string
	ackID     string
	data      []byte
}

// decodeSocket parses a Socket.IO packet: type, optional "/ns," prefix,
// optional numeric ack id, then the JSON data.
func decodeSocket(b []byte) (socketPacket, error) {
	if len(b) == 0 {
		return socketPacket{}, errEmptyPacket
	}

	p := socketPacket{kind: b[0], namespace: "/"}
	rest := b[1:]

	if len(rest) > 0 && rest[0] == '/' {
		i := bytes.IndexByte(rest, ',')
		if i < 0 {
			p.namespace = string(rest)
			return p, nil
		}
		p.namespace = string(rest[:i])
		rest = rest[i+1:]
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	p.ackID = string(rest[:i])
	p.data = rest[i:]

	return p, nil
}

// decodeEvent splits an event packet's data into name and first argument.
func decodeEvent(data []byte) (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return "", nil, fmt.Errorf("decoding event: %w", err)
	}
	if len(args) == 0 {
		return "", nil, errors.New("decoding event: missing name")
	}

	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("decoding event name: %w", err)
	}

	payload := json.RawMessage("null")
	if len(args) > 1 {
		payload = args[1]
	}
	return name, payload, nil
}

// encodeEvent frames an outbound event on the default namespace.
func encodeEvent(event string, payload any) ([]byte, error) {
	args, err := json.Marshal([]any{event, payload})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", event, err)
	}

	frame := make([]byte, 0, len(args)+2)
	frame = append(frame, engineMessage, socketEvent)
	return append(frame, args...), nil
}

// encodeConnect frames the namespace connect request, with an optional
// auth payload.
func encodeConnect(auth any) ([]byte, error) {
	frame := []byte{engineMessage, socketConnect}
	if auth == nil {
		return frame, nil
	}
	b, err := json.Marshal(auth)
	if err != nil {
		return nil, fmt.Errorf("encoding auth: %w", err)
	}
	return append(frame, b...), nil
}
