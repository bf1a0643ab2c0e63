// Package bridge drives the host side of the startup exchange with the
// sense bridge and keeps a decoded view of its identity: mac, firmware
// versions, and the bound sensor list.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sensebridge/go-sense-server/internal/metrics"
	"github.com/sensebridge/go-sense-server/internal/packet"
	"github.com/sensebridge/go-sense-server/internal/sense"
)

// SendFunc transmits one frame toward the device backend.
type SendFunc func(sense.Frame) error

var errNoTransport = errors.New("bridge: no transport bound")

// DeviceInfo is a point-in-time view of what the bridge has told us.
type DeviceInfo struct {
	Inquiry      byte
	MAC          string
	Firmware     string
	Hardware     string
	HardwareType string
	Magic        string
	SensorCount  int
	Sensors      []string
	AuthDone     bool
}

// Session decodes every validated inbound frame and answers the ones
// that advance the identification sequence:
//
//	inquiry → mac → version → sensor count → sensor list (count entries)
//	→ auth(done)
//
// Unknown and malformed packets are counted and logged, never fatal.
type Session struct {
	mu   sync.Mutex
	reg  *packet.Registry
	send SendFunc
	log  *slog.Logger

	info      DeviceInfo
	listAsked bool
	authSent  bool
}

func New(reg *packet.Registry, log *slog.Logger) *Session {
	return &Session{reg: reg, log: log}
}

// BindSend attaches the device transport. Frames cannot be sent before
// this; the backend is constructed after the session because the RX
// callback needs the session.
func (s *Session) BindSend(send SendFunc) {
	s.mu.Lock()
	s.send = send
	s.mu.Unlock()
}

// Start sends the identification commands the host issues after claiming
// the bridge. The sensor list request and the final auth are triggered by
// the responses as they arrive.
func (s *Session) Start() error {
	for _, p := range []packet.Packet{
		packet.InquiryCommand{},
		packet.MacCommand{},
		packet.VersionCommand{},
		packet.SensorCountCommand{},
	} {
		if err := s.sendPacket(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) sendPacket(p packet.Packet) error {
	s.mu.Lock()
	send := s.send
	s.mu.Unlock()
	if send == nil {
		return errNoTransport
	}
	fr, err := s.reg.Frame(p, sense.HostToBridge)
	if err != nil {
		return err
	}
	if err := send(fr); err != nil {
		return fmt.Errorf("send %s: %w", packet.Name(p), err)
	}
	s.log.Debug("packet_sent", "kind", packet.Name(p))
	return nil
}

// HandleFrame decodes one validated inbound frame and updates session
// state, sending follow-up commands where the sequence calls for them.
func (s *Session) HandleFrame(fr sense.Frame) {
	p, err := s.reg.DecodeFrame(&fr)
	if err != nil {
		switch {
		case errors.Is(err, packet.ErrUnknownCommand):
			metrics.IncUnknownCommand()
			s.log.Debug("packet_unknown", "id", fmt.Sprintf("0x%02X", fr.ID), "len", fr.Len)
		case errors.Is(err, packet.ErrMalformed):
			metrics.IncMalformedPayload()
			s.log.Warn("packet_malformed", "id", fmt.Sprintf("0x%02X", fr.ID), "error", err)
		default:
			s.log.Warn("packet_decode_error", "id", fmt.Sprintf("0x%02X", fr.ID), "error", err)
		}
		return
	}

	var follow packet.Packet
	s.mu.Lock()
	switch p := p.(type) {
	case packet.InquiryResponse:
		s.info.Inquiry = p.Value
	case packet.MacResponse:
		s.info.MAC = p.MAC
	case packet.VersionResponse:
		s.info.Firmware = p.Firmware
		s.info.Hardware = p.Hardware
		s.info.HardwareType = p.HardwareType
		s.info.Magic = p.Magic
	case packet.SensorCountResponse:
		s.info.SensorCount = int(p.Count)
		if !s.listAsked {
			s.listAsked = true
			if p.Count > 0 {
				follow = packet.SensorListCommand{Count: p.Count}
			} else if !s.authSent {
				s.authSent = true
				follow = packet.AuthCommand{Completion: packet.AuthDone}
			}
		}
	case packet.SensorListResponse:
		s.info.Sensors = append(s.info.Sensors, p.MAC)
		if len(s.info.Sensors) >= s.info.SensorCount && !s.authSent {
			s.authSent = true
			follow = packet.AuthCommand{Completion: packet.AuthDone}
		}
	case packet.AuthResponse:
		s.info.AuthDone = true
	}
	s.mu.Unlock()

	s.log.Info("packet_rx", "kind", packet.Name(p))
	if follow != nil {
		if err := s.sendPacket(follow); err != nil {
			s.log.Error("followup_send_failed", "kind", packet.Name(follow), "error", err)
		}
	}
}

// Info returns a snapshot copy of the device state.
func (s *Session) Info() DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.info
	out.Sensors = append([]string(nil), s.info.Sensors...)
	return out
}
