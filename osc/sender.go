package osc

import (
	"fmt"
	"net"
)

// Sender owns the UDP socket control messages leave through. Resolved
// destinations are cached; a show addresses the same few hosts every tick.
type Sender struct {
	conn  *net.UDPConn
	addrs map[string]*net.UDPAddr
}

func NewSender() (*Sender, error) {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("could not open control-message socket: %w", err)
	}
	return &Sender{conn: conn, addrs: make(map[string]*net.UDPAddr)}, nil
}

// Send encodes and transmits one message to host:port.
func (s *Sender) Send(host string, port int, msg Message) error {
	key := fmt.Sprintf("%s:%d", host, port)
	addr, ok := s.addrs[key]
	if !ok {
		var err error
		addr, err = net.ResolveUDPAddr("udp", key)
		if err != nil {
			return fmt.Errorf("could not resolve %q: %w", key, err)
		}
		s.addrs[key] = addr
	}
	if _, err := s.conn.WriteToUDP(msg.Encode(), addr); err != nil {
		return fmt.Errorf("control-message send to %q failed: %w", key, err)
	}
	return nil
}

func (s *Sender) Close() error {
	return s.conn.Close()
}
