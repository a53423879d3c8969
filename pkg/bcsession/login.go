package bcsession

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"

	"github.com/gtfodev/neolink/pkg/wire"
)

// encryptionNonce is the nonce carrier in the reply to the legacy login
// probe (SPEC_FULL.md §8 scenario 1).
type encryptionNonce struct {
	XMLName xml.Name `xml:"Encryption"`
	Type    string   `xml:"type,attr"`
	Nonce   string   `xml:"nonce"`
}

type loginUser struct {
	XMLName  xml.Name `xml:"LoginUser"`
	Version  string   `xml:"version,attr"`
	UserName string   `xml:"userName"`
	Password string   `xml:"password"`
}

type loginNet struct {
	XMLName xml.Name `xml:"LoginNet"`
	Version string   `xml:"version,attr"`
	Type    string   `xml:"type"`
	UDPPort int      `xml:"udpPort"`
}

type deviceInfo struct {
	XMLName xml.Name `xml:"DeviceInfo"`
}

// Login drives the full legacy-probe -> modern-login handshake described in
// SPEC_FULL.md §4.4, leaving the session in StateActive on success.
func (s *Session) Login(ctx context.Context) error {
	s.setState(StateConnected)

	lctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	// Legacy probe: unauthenticated request, no encryption, to elicit the
	// nonce that determines the modern AES handshake.
	probe, err := s.Request(lctx, wire.MsgIDLogin, nil, []byte(`<LoginUser version="1.1"></LoginUser>`))
	if err != nil {
		return fmt.Errorf("bcsession: legacy login probe: %w", err)
	}

	var nonce encryptionNonce
	if err := xml.Unmarshal(probe.Payload, &nonce); err != nil {
		return fmt.Errorf("bcsession: %w: parsing nonce: %v", wire.ErrSchema, err)
	}

	s.setState(StateAuthenticating)

	creds := wire.NewCredentials(s.username, s.password)
	keys, err := wire.DeriveAESKeys(nonce.Nonce, creds)
	if err != nil {
		return fmt.Errorf("bcsession: deriving keys: %w", err)
	}
	s.codec.SetAES(keys)

	body := loginUser{
		Version:  "1.1",
		UserName: base64.StdEncoding.EncodeToString([]byte(s.username)),
		Password: base64.StdEncoding.EncodeToString([]byte(s.password)),
	}
	payload, err := xml.Marshal(body)
	if err != nil {
		return fmt.Errorf("bcsession: marshalling login: %w", err)
	}

	reply, err := s.Request(lctx, wire.MsgIDLogin, nil, payload)
	if err != nil {
		if se, ok := err.(*Error); ok && se.Kind == "RemoteStatus" {
			return fmt.Errorf("bcsession: %w", ErrNotAuthorized)
		}
		return fmt.Errorf("bcsession: modern login: %w", err)
	}

	var info deviceInfo
	if err := xml.Unmarshal(reply.Payload, &info); err != nil {
		// Some firmware replies with an empty or minimal DeviceInfo; a
		// successful status code is the authoritative signal.
		if s.logger != nil {
			s.logger.Debug("device info did not parse, continuing", "error", err)
		}
	}

	s.setState(StateActive)
	return nil
}
