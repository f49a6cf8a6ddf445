package nbns

import (
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"sync"

	"github.com/cdwhistler/netscan/logger"
)

var log = logger.GetLogger("nbns")

const maxDatagram = 1024

// Datagram is a name-service packet and the address it came from.
type Datagram struct {
	From netip.Addr
	Data []byte
}

// Conn is the UDP socket name queries leave from and responses arrive on.
type Conn struct {
	conn *net.UDPConn
	port int

	mu  sync.Mutex
	rnd *rand.Rand
}

// Listen binds the name-service socket. Port 0 picks an ephemeral port;
// queries still go to the well-known port of the remote host.
func Listen(bind string, port int) (*Conn, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(bind), Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen nbns %s: %w", addr, err)
	}
	log.Infof("Listening for NetBIOS name service on %s", conn.LocalAddr())
	return &Conn{
		conn: conn,
		port: Port,
		rnd:  rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

// QueryName sends a node status request to ip. The answer, if any, arrives
// through ReadDatagram.
func (c *Conn) QueryName(ip netip.Addr) error {
	c.mu.Lock()
	id := uint16(c.rnd.Intn(1 << 16))
	c.mu.Unlock()

	dst := net.UDPAddrFromAddrPort(netip.AddrPortFrom(ip, uint16(c.port)))
	if _, err := c.conn.WriteToUDP(NodeStatusRequest(id), dst); err != nil {
		return fmt.Errorf("send node status to %s: %w", ip, err)
	}
	log.Debugf("Sent node status request %#04x to %s", id, ip)
	return nil
}

// ReadDatagram blocks until a datagram arrives or the socket is closed.
func (c *Conn) ReadDatagram() (Datagram, error) {
	buf := make([]byte, maxDatagram)
	n, from, err := c.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return Datagram{}, err
	}
	return Datagram{From: from.Addr().Unmap(), Data: buf[:n]}, nil
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
