package discovery

// Strategy selects which discovery path(s) a camera config permits.
type Strategy string

const (
	StrategyLocal     Strategy = "local"
	StrategyRemote    Strategy = "remote"
	StrategyMap       Strategy = "map"
	StrategyRelay     Strategy = "relay"
	StrategyCellular  Strategy = "cellular"
)

// DefaultVendorServers are the well-known vendor discovery DNS names
// (SPEC_FULL.md §6). Contacted over UDP port 9999.
var DefaultVendorServers = []string{
	"p2p.reolink.com",
	"p2p1.reolink.com",
	"p2p2.reolink.com",
}

const VendorPort = 9999

// order returns the ordered list of concrete attempts for a configured
// strategy. Each strategy also tries the ones before it in the chain
// local, remote, map, relay; a direct address replaces the local broadcast.
// "cellular" skips local+remote broadcast/lookup, matching SPEC_FULL.md
// §4.3: "cellular skips local+remote".
func order(s Strategy, hasDirectAddress bool) []string {
	first := "local"
	if hasDirectAddress {
		first = "direct"
	}
	switch s {
	case StrategyRemote:
		return []string{first, "remote"}
	case StrategyMap:
		return []string{first, "remote", "map"}
	case StrategyRelay:
		return []string{first, "remote", "map", "relay"}
	case StrategyCellular:
		return []string{"map", "relay"}
	default:
		return []string{first}
	}
}
