// Package artnet implements the lighting-network frame codec and the UDP
// sender used to carry DMX512 universes to lighting nodes.
package artnet

import (
	"fmt"
	"net"
)

// DefaultPort is the well-known Art-Net UDP port.
const DefaultPort = 6454

const (
	headerSize  = 18
	payloadSize = 512

	opDMX       = 0x5000
	opPoll      = 0x2000
	opPollReply = 0x2100

	protocolVersion = 14
)

var packetID = [8]byte{'A', 'r', 't', '-', 'N', 'e', 't', 0}

// EncodeDMX builds one ArtDMX packet: the fixed 18-byte header followed by
// the full 512-byte channel payload. Channels beyond len(channels) are zero;
// the universe is clamped to the 15 bits the header can carry.
func EncodeDMX(seq uint8, universe int, channels []byte) []byte {
	if universe < 0 {
		universe = 0
	}
	if universe > 0x7FFF {
		universe = 0x7FFF
	}
	packet := make([]byte, headerSize+payloadSize)
	copy(packet[0:], packetID[:])
	packet[8], packet[9] = byte(opDMX&0xFF), byte(opDMX>>8) // opcode, little endian
	packet[10], packet[11] = 0x00, protocolVersion          // protocol version, big endian
	packet[12] = seq
	packet[13] = 0x00 // physical port
	packet[14], packet[15] = byte(universe&0xFF), byte(universe>>8)
	packet[16], packet[17] = byte(payloadSize>>8), byte(payloadSize&0xFF)
	copy(packet[headerSize:], channels)
	return packet
}

// EncodePoll builds an ArtPoll packet for node discovery.
func EncodePoll() []byte {
	pkt := make([]byte, 14)
	copy(pkt[0:], packetID[:])
	pkt[8], pkt[9] = byte(opPoll&0xFF), byte(opPoll>>8)
	pkt[10], pkt[11] = 0x00, protocolVersion
	pkt[12] = 0x06 // TalkToMe: send replies without hard reset
	return pkt
}

// DecodePollReply extracts the node short name from an ArtPollReply packet.
// ok is false for anything that is not a well-formed reply.
func DecodePollReply(data []byte) (name string, ok bool) {
	if len(data) < 44 || string(data[0:8]) != string(packetID[:]) {
		return "", false
	}
	if data[8] != byte(opPollReply&0xFF) || data[9] != byte(opPollReply>>8) {
		return "", false
	}
	raw := data[26:44]
	for i, b := range raw {
		if b == 0 {
			raw = raw[:i]
			break
		}
	}
	return string(raw), true
}

// Sender owns the UDP socket the lighting dispatcher writes frames through.
// Destinations are resolved per send; one show typically only addresses a
// handful of nodes, so the resolution cache stays small.
type Sender struct {
	conn  *net.UDPConn
	addrs map[string]*net.UDPAddr
}

func NewSender() (*Sender, error) {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("could not open lighting socket: %w", err)
	}
	return &Sender{conn: conn, addrs: make(map[string]*net.UDPAddr)}, nil
}

// Send transmits one encoded packet to host. The host may carry an explicit
// ":port"; otherwise DefaultPort is used.
func (s *Sender) Send(host string, packet []byte) error {
	addr, ok := s.addrs[host]
	if !ok {
		var err error
		h, port := host, fmt.Sprint(DefaultPort)
		if hh, pp, splitErr := net.SplitHostPort(host); splitErr == nil {
			h, port = hh, pp
		}
		addr, err = net.ResolveUDPAddr("udp", net.JoinHostPort(h, port))
		if err != nil {
			return fmt.Errorf("could not resolve lighting node %q: %w", host, err)
		}
		s.addrs[host] = addr
	}
	if _, err := s.conn.WriteToUDP(packet, addr); err != nil {
		return fmt.Errorf("lighting send to %q failed: %w", host, err)
	}
	return nil
}

func (s *Sender) Close() error {
	return s.conn.Close()
}
