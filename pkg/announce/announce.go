// Package announce receives and validates the record-sync server's UDP
// discovery datagrams.
package announce

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/r2northstar/recsync/pkg/wire"
)

// DatagramSize is the number of useful bytes in a discovery datagram. Longer
// datagrams are accepted and the trailing bytes ignored; shorter ones are
// rejected.
const DatagramSize = 16

const (
	protoVersion    = 0
	broadcastV4Addr = 0xFFFFFFFF
)

// Announcement is a decoded discovery datagram.
type Announcement struct {
	ServerAddr netip.Addr
	ServerPort uint16
	ServerKey  uint32
}

// Parse validates and decodes a discovery datagram received from src. If the
// datagram's server address is the IPv4 broadcast address, it is replaced
// with src's address, per the protocol's broadcast-substitution rule. src
// must carry an IPv4 address; datagrams that would need substitution from an
// IPv6 source are rejected, since this protocol has no IPv6 transport.
func Parse(data []byte, src netip.Addr) (Announcement, error) {
	if len(data) < DatagramSize {
		return Announcement{}, fmt.Errorf("announce: datagram too short (%d < %d)", len(data), DatagramSize)
	}

	magic := binary.BigEndian.Uint16(data[0:2])
	if magic != wire.Magic {
		return Announcement{}, fmt.Errorf("announce: bad magic word 0x%04x", magic)
	}

	if version := data[2]; version != protoVersion {
		return Announcement{}, fmt.Errorf("announce: unsupported version %d", version)
	}

	addr := netip.AddrFrom4([4]byte{data[4], data[5], data[6], data[7]})
	port := binary.BigEndian.Uint16(data[8:10])
	key := binary.BigEndian.Uint32(data[12:16])

	if binary.BigEndian.Uint32(addr.AsSlice()) == broadcastV4Addr {
		if !src.Is4() && !src.Is4In6() {
			return Announcement{}, fmt.Errorf("announce: broadcast substitution requires an IPv4 source, got %s", src)
		}
		addr = src.Unmap()
	}

	return Announcement{
		ServerAddr: addr,
		ServerPort: port,
		ServerKey:  key,
	}, nil
}
