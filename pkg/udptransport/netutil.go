package udptransport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// deadlineFor returns a short read deadline so receiveLoop can periodically
// recheck ctx without blocking forever on a socket read.
func deadlineFor(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < time.Second {
		return dl
	}
	return time.Now().Add(time.Second)
}

// broadcastAddresses enumerates the IPv4 broadcast address of every
// non-loopback, broadcast-capable interface, per SPEC_FULL.md §4.3 strategy
// 1 ("send a UID-query datagram to the broadcast address of every
// non-loopback interface").
func broadcastAddresses(port int) ([]*net.UDPAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("udptransport: interfaces: %w", err)
	}
	var out []*net.UDPAddr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagBroadcast == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			bcast := make(net.IP, len(ip4))
			for i := range ip4 {
				bcast[i] = ip4[i] | ^ipnet.Mask[i]
			}
			out = append(out, &net.UDPAddr{IP: bcast, Port: port})
		}
	}
	return out, nil
}
