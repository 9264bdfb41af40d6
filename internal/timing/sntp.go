package timing

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// sntpLeapVersionMode packs LI=0 (no warning), VN=4 (NTPv4), Mode=3
// (client), matching the first-byte layout used throughout SNTP/NTP
// implementations (leap indicator in bits 7-6, version in bits 5-3, mode
// in bits 2-0).
const sntpLeapVersionMode = 0<<6 | 4<<3 | 3

// SNTPClient is a minimal SNTP client sufficient for Service.SyncRTC: send
// a client-mode request, read back the server's transmit timestamp. It
// does not implement the full NTP clock-filtering algorithm; one
// round-trip is all §4.1 of the spec calls for.
type SNTPClient struct {
	// Addr is host:port of the NTP server, e.g. "pool.ntp.org:123".
	Addr string
}

func NewSNTPClient(addr string) *SNTPClient {
	if addr == "" {
		addr = "pool.ntp.org:123"
	}
	return &SNTPClient{Addr: addr}
}

func (c *SNTPClient) Query(ctx context.Context) (time.Time, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", c.Addr)
	if err != nil {
		return time.Time{}, fmt.Errorf("timing: sntp dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	var packet [48]byte
	packet[0] = sntpLeapVersionMode

	if _, err := conn.Write(packet[:]); err != nil {
		return time.Time{}, fmt.Errorf("timing: sntp send: %w", err)
	}

	var resp [48]byte
	if _, err := conn.Read(resp[:]); err != nil {
		return time.Time{}, fmt.Errorf("timing: sntp recv: %w", err)
	}

	// Transmit Timestamp occupies bytes 40-47: 32-bit seconds since the
	// NTP epoch followed by a 32-bit fraction.
	seconds := binary.BigEndian.Uint32(resp[40:44])
	fraction := binary.BigEndian.Uint32(resp[44:48])

	secs := int64(seconds) - ntpEpochOffset
	nanos := int64(float64(fraction) / (1 << 32) * 1e9)

	return time.Unix(secs, nanos).UTC(), nil
}
