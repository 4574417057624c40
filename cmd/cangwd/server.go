package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/canfleet/cangw/internal/canframe"
	"github.com/canfleet/cangw/internal/checksum"
	"github.com/canfleet/cangw/internal/gw"
	"github.com/canfleet/cangw/internal/job"
	"github.com/canfleet/cangw/internal/modpipe"
	"github.com/canfleet/cangw/internal/wire"
)

// Server accepts control-plane connections on a Unix domain socket and
// dispatches each decoded wire.Message to the gateway core, the Go-idiomatic
// analogue of the teacher's server_connect_listen_thread accept loop.
type Server struct {
	core     *gw.Core
	listener net.Listener
	log      *log.Logger
	mu       sync.Mutex // serializes control-plane requests across connections
}

// NewServer binds path, removing a stale socket file left by a previous
// run first.
func NewServer(core *gw.Core, path string, logger *log.Logger) (*Server, error) {
	_ = os.Remove(path)

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", path, err)
	}
	return &Server{core: core, listener: l, log: logger}, nil
}

// Serve accepts connections until ctx is done.
func (s *Server) Serve(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", "err", err)
			continue
		}
		go s.handleConn(conn)
	}
}

// Close shuts the listener down.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		s.log.Warn("read failed", "err", err)
		return
	}

	msg, err := wire.Decode(buf[:n])
	if err != nil {
		s.log.Warn("decode failed", "err", err)
		return
	}

	s.mu.Lock()
	resp := s.handle(msg)
	s.mu.Unlock()

	var out []byte
	w := &byteWriter{buf: &out}
	if err := wire.Encode(w, resp); err != nil {
		s.log.Warn("encode failed", "err", err)
		return
	}
	if _, err := conn.Write(out); err != nil {
		s.log.Warn("write failed", "err", err)
	}
}

func (s *Server) handle(msg wire.Message) wire.Message {
	switch msg.Verb {
	case wire.VerbNew:
		return s.handleNew(msg)
	case wire.VerbDel:
		return s.handleDel(msg)
	case wire.VerbGet:
		return s.handleGet(msg)
	default:
		return errResponse(msg, gw.ErrInvalidArgument)
	}
}

func (s *Server) handleNew(msg wire.Message) wire.Message {
	req := gw.CreateRequest{
		Family: gw.Family(msg.Header.Family),
		GWType: job.GWType(msg.Header.GWType),
		Flags:  job.Flags(msg.Header.Flags),
		XOR:    checksum.XORSpec{FromIdx: checksum.Disabled},
		CRC8:   checksum.CRC8Spec{FromIdx: checksum.Disabled},
	}

	if a, ok := msg.Find(wire.TagSrcIF); ok && len(a.Payload) == 4 {
		req.SrcIdx = be32(a.Payload)
	}
	if a, ok := msg.Find(wire.TagDstIF); ok && len(a.Payload) == 4 {
		req.DstIdx = be32(a.Payload)
	}
	if a, ok := msg.Find(wire.TagFilter); ok && len(a.Payload) == 8 {
		req.Filter = canframe.Filter{CANID: be32(a.Payload[:4]), Mask: be32(a.Payload[4:])}
	}
	if a, ok := msg.Find(wire.TagCSXOR); ok {
		req.XOR = decodeXORSpec(a.Payload)
	}
	if a, ok := msg.Find(wire.TagCSCRC8); ok {
		req.CRC8 = decodeCRC8Spec(a.Payload)
	}
	// Fixed AND, OR, XOR, SET order: modpipe.Build does not reorder slots.
	slotTags := []struct {
		tag wire.Tag
		op  modpipe.Operator
	}{
		{wire.TagModAND, modpipe.OpAND},
		{wire.TagModOR, modpipe.OpOR},
		{wire.TagModXOR, modpipe.OpXOR},
		{wire.TagModSET, modpipe.OpSET},
	}
	for _, st := range slotTags {
		if a, ok := msg.Find(st.tag); ok {
			req.Slots = append(req.Slots, decodeSlot(st.op, a.Payload))
		}
	}

	r, err := s.core.Create(req)
	if err != nil {
		return errResponse(msg, err)
	}
	return wire.Message{Verb: wire.VerbNew, Header: msg.Header, Attrs: []wire.Attr{
		{Tag: wire.TagSrcIF, Payload: u32be(r.SrcIdx)},
		{Tag: wire.TagDstIF, Payload: u32be(r.DstIdx)},
	}}
}

func (s *Server) handleDel(msg wire.Message) wire.Message {
	req := gw.DeleteRequest{Flags: job.Flags(msg.Header.Flags)}
	if a, ok := msg.Find(wire.TagSrcIF); ok && len(a.Payload) == 4 {
		req.CCGW.SrcIdx = be32(a.Payload)
	}
	if a, ok := msg.Find(wire.TagDstIF); ok && len(a.Payload) == 4 {
		req.CCGW.DstIdx = be32(a.Payload)
	}
	if a, ok := msg.Find(wire.TagFilter); ok && len(a.Payload) == 8 {
		req.CCGW.Filter = canframe.Filter{CANID: be32(a.Payload[:4]), Mask: be32(a.Payload[4:])}
	}

	if err := s.core.Delete(req); err != nil {
		return errResponse(msg, err)
	}
	return wire.Message{Verb: wire.VerbDel, Header: msg.Header}
}

func (s *Server) handleGet(msg wire.Message) wire.Message {
	out := make([]gw.Descriptor, 64)
	n, _, err := s.core.Dump(0, out)
	if err != nil {
		return errResponse(msg, err)
	}

	resp := wire.Message{Verb: wire.VerbGet, Header: msg.Header}
	for i := 0; i < n; i++ {
		d := out[i]
		resp.Attrs = append(resp.Attrs,
			wire.Attr{Tag: wire.TagSrcIF, Payload: u32be(d.SrcIdx)},
			wire.Attr{Tag: wire.TagDstIF, Payload: u32be(d.DstIdx)},
			wire.Attr{Tag: wire.TagHandled, Payload: u32be(d.Handled)},
			wire.Attr{Tag: wire.TagDropped, Payload: u32be(d.Dropped)},
		)
	}
	return resp
}

func decodeSlot(op modpipe.Operator, payload []byte) modpipe.Slot {
	var tpl canframe.Frame
	var mask modpipe.TypeMask
	if len(payload) >= 4 {
		tpl.ID = be32(payload[:4])
		mask |= modpipe.TypeID
	}
	if len(payload) >= 5 {
		tpl.DLC = payload[4]
		mask |= modpipe.TypeDLC
	}
	if len(payload) >= 13 {
		copy(tpl.Data[:], payload[5:13])
		mask |= modpipe.TypeData
	}
	return modpipe.Slot{Op: op, Template: tpl, Mask: mask}
}

func decodeXORSpec(payload []byte) checksum.XORSpec {
	if len(payload) < 4 {
		return checksum.XORSpec{FromIdx: checksum.Disabled}
	}
	return checksum.XORSpec{
		FromIdx:   int8(payload[0]),
		ToIdx:     int8(payload[1]),
		ResultIdx: int8(payload[2]),
		InitXOR:   payload[3],
	}
}

func decodeCRC8Spec(payload []byte) checksum.CRC8Spec {
	if len(payload) < 262 {
		return checksum.CRC8Spec{FromIdx: checksum.Disabled}
	}
	s := checksum.CRC8Spec{
		FromIdx:   int8(payload[0]),
		ToIdx:     int8(payload[1]),
		ResultIdx: int8(payload[2]),
		Profile:   checksum.CRC8Profile(payload[3]),
		InitCRC:   payload[4],
		XORValue:  payload[5],
	}
	copy(s.CRCTab[:], payload[6:262])
	return s
}

func errResponse(req wire.Message, err error) wire.Message {
	var kind byte
	var gerr *gw.Error
	if errors.As(err, &gerr) {
		kind = byte(gerr.Kind)
	} else {
		kind = byte(gw.KindInvalidArgument)
	}
	return wire.Message{
		Verb:   req.Verb,
		Header: req.Header,
		Attrs:  []wire.Attr{{Tag: wire.TagErrorKind, Payload: []byte{kind}}},
	}
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func u32be(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

type byteWriter struct{ buf *[]byte }

func (w *byteWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}
