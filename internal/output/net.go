package output

import (
	"errors"
	"net"
)

// ErrNetworkSendFailure is counted, never returned to a blocking caller,
// per spec.md §7: the scheduler continues regardless.
var ErrNetworkSendFailure = errors.New("output: network send failure")

// PacketSender abstracts the UDP transport so the scheduler is testable
// without opening real sockets.
type PacketSender interface {
	Send(packet []byte) error
}

// UDPSender sends RTP-MIDI datagrams to a fixed control-port destination
// (default 5004, per spec.md §4.5).
type UDPSender struct {
	conn *net.UDPConn
}

// DialUDPSender resolves and connects to addr (host:port).
func DialUDPSender(addr string) (*UDPSender, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &UDPSender{conn: conn}, nil
}

func (s *UDPSender) Send(packet []byte) error {
	_, err := s.conn.Write(packet)
	if err != nil {
		return errors.Join(ErrNetworkSendFailure, err)
	}
	return nil
}

func (s *UDPSender) Close() error {
	return s.conn.Close()
}
