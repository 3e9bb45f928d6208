// Command showsignal-poll broadcasts an ArtPoll and prints the nodes that
// answer, which is the quickest way to verify the lighting network before
// a show.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/luminet/showsignal/artnet"
)

var (
	broadcast = flag.String("broadcast", "255.255.255.255", "broadcast address to poll")
	timeout   = flag.Duration("timeout", 3*time.Second, "how long to collect replies")
)

func main() {
	flag.Parse()
	if err := poll(); err != nil {
		log.Fatal(err)
	}
}

func poll() error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: artnet.DefaultPort})
	if err != nil {
		return fmt.Errorf("binding poll socket: %w", err)
	}
	defer conn.Close()
	dest := &net.UDPAddr{IP: net.ParseIP(*broadcast), Port: artnet.DefaultPort}
	if dest.IP == nil {
		return fmt.Errorf("bad broadcast address %q", *broadcast)
	}
	if _, err := conn.WriteToUDP(artnet.EncodePoll(), dest); err != nil {
		return fmt.Errorf("sending poll: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(*timeout))
	buf := make([]byte, 1024)
	found := 0
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			break // deadline reached
		}
		name, ok := artnet.DecodePollReply(buf[:n])
		if !ok {
			continue
		}
		found++
		fmt.Printf("%-15s  %s\n", addr.IP, name)
	}
	if found == 0 {
		fmt.Fprintln(os.Stderr, "no nodes answered")
	}
	return nil
}
