package discovery

import (
	"fmt"
	"net"

	"github.com/pion/stun/v3"
)

// buildUIDBindingRequest encodes a vendor address-lookup request as a
// STUN-shaped binding request carrying the camera UID in a SOFTWARE
// attribute slot (the vendor protocol's "what is my public endpoint, for
// this UID" exchange is wire-compatible with a minimal STUN attribute set;
// SPEC_FULL.md §4.3 step 3, §10.3).
func buildUIDBindingRequest(uid string) (*stun.Message, error) {
	m, err := stun.Build(stun.TransactionID, stun.BindingRequest, stun.NewSoftware(uid))
	if err != nil {
		return nil, fmt.Errorf("discovery: building binding request: %w", err)
	}
	return m, nil
}

// parseAddressReport decodes a vendor server's reply, extracting the
// reported public endpoint from its XOR-MAPPED-ADDRESS attribute.
func parseAddressReport(raw []byte) (*net.UDPAddr, error) {
	m := &stun.Message{Raw: raw}
	if err := m.Decode(); err != nil {
		return nil, fmt.Errorf("discovery: decoding binding response: %w", err)
	}
	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(m); err != nil {
		return nil, fmt.Errorf("discovery: reading XOR-MAPPED-ADDRESS: %w", err)
	}
	return &net.UDPAddr{IP: xorAddr.IP, Port: xorAddr.Port}, nil
}
