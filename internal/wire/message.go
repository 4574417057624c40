// Package wire implements the control-plane message schema spec.md §6
// specifies: a fixed header followed by typed TLV attributes, encoded with
// encoding/binary the same way the teacher's src/server.go frames AGWPE
// messages (fixed header, verb byte, then a payload to interpret by kind).
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Verb identifies the control-plane request kind.
type Verb uint8

const (
	VerbNew Verb = iota // NEW: create a job
	VerbDel              // DEL: delete a job (or all jobs)
	VerbGet              // GET: dump jobs
)

// Family is the routing family identifier. CAN is the only value this
// gateway accepts.
type Family uint16

const FamilyCAN Family = 29 // AF_CAN on Linux; gw.Create rejects any other family.

// Tag identifies one TLV attribute.
type Tag uint8

const (
	TagModAND Tag = iota
	TagModOR
	TagModXOR
	TagModSET
	TagCSXOR
	TagCSCRC8
	TagFilter
	TagSrcIF
	TagDstIF
	TagHandled
	TagDropped
	TagErrorKind
)

// Header is the 7-byte fixed header preceding every request/response body.
type Header struct {
	Family Family
	_      uint16 // pad
	GWType uint8
	Flags  uint16
}

const headerSize = 7

// Attr is one decoded TLV attribute: a tag and its raw payload bytes.
type Attr struct {
	Tag     Tag
	Payload []byte
}

// Message is a decoded control-plane request or response: a verb, a
// header, and zero or more attributes.
type Message struct {
	Verb   Verb
	Header Header
	Attrs  []Attr
}

// Encode writes m to w: verb byte, header, then each attribute as
// (tag uint8, length uint16, payload).
func Encode(w io.Writer, m Message) error {
	if err := binary.Write(w, binary.BigEndian, uint8(m.Verb)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, m.Header.Family); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint16(0)); err != nil { // pad
		return err
	}
	if err := binary.Write(w, binary.BigEndian, m.Header.GWType); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, m.Header.Flags); err != nil {
		return err
	}
	for _, a := range m.Attrs {
		if err := binary.Write(w, binary.BigEndian, uint8(a.Tag)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint16(len(a.Payload))); err != nil {
			return err
		}
		if _, err := w.Write(a.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads a Message from buf. It returns a message-too-small error
// (matching spec.md §7's KindMessageTooSmall surface, mirrored here as a
// plain error since internal/wire has no dependency on internal/gw) if buf
// is shorter than the fixed header.
func Decode(buf []byte) (Message, error) {
	if len(buf) < 1+headerSize {
		return Message{}, fmt.Errorf("wire: message too small: %d bytes", len(buf))
	}

	var m Message
	m.Verb = Verb(buf[0])
	b := buf[1:]
	m.Header.Family = Family(binary.BigEndian.Uint16(b[0:2]))
	m.Header.GWType = b[4]
	m.Header.Flags = binary.BigEndian.Uint16(b[5:7])
	b = b[headerSize:]

	for len(b) > 0 {
		if len(b) < 3 {
			return Message{}, fmt.Errorf("wire: truncated attribute header")
		}
		tag := Tag(b[0])
		length := binary.BigEndian.Uint16(b[1:3])
		b = b[3:]
		if len(b) < int(length) {
			return Message{}, fmt.Errorf("wire: truncated attribute payload")
		}
		m.Attrs = append(m.Attrs, Attr{Tag: tag, Payload: b[:length:length]})
		b = b[length:]
	}
	return m, nil
}

// Find returns the first attribute with the given tag, if any.
func (m Message) Find(tag Tag) (Attr, bool) {
	for _, a := range m.Attrs {
		if a.Tag == tag {
			return a, true
		}
	}
	return Attr{}, false
}
