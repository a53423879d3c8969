// Package discovery resolves a camera UID to an established transport using
// the local/direct/remote/map/relay strategies of SPEC_FULL.md §4.3.
package discovery

import "fmt"

// Error is the DiscoveryError taxonomy (SPEC_FULL.md §7).
type Error struct {
	Kind string // Unreachable, VendorRefused, UidUnknown
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discovery: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("discovery: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func errUnreachable(err error) *Error   { return &Error{Kind: "Unreachable", Err: err} }
func errVendorRefused(err error) *Error { return &Error{Kind: "VendorRefused", Err: err} }
func errUIDUnknown(err error) *Error    { return &Error{Kind: "UidUnknown", Err: err} }
