package radio

import (
	"errors"
	"fmt"
	"net"
)

// ErrUnsupported is returned by drivers for operations the underlying
// hardware or service cannot perform.
var ErrUnsupported = errors.New("radio: operation not supported by driver")

// Mode selects which interfaces the radio runs.
type Mode int

const (
	ModeOff Mode = iota
	ModeSTA
	ModeAP
	ModeAPSTA
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeSTA:
		return "sta"
	case ModeAP:
		return "ap"
	case ModeAPSTA:
		return "ap+sta"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// HasSTA reports whether the station interface is up in this mode.
func (m Mode) HasSTA() bool { return m == ModeSTA || m == ModeAPSTA }

// HasAP reports whether the soft access point is up in this mode.
func (m Mode) HasAP() bool { return m == ModeAP || m == ModeAPSTA }

// Status is the station link status. The numeric values are the ones
// embedded WiFi stacks report, so they can be passed on as-is in the
// lastResult field of status payloads.
type Status uint8

const (
	StatusIdle           Status = 0
	StatusNoSSIDAvail    Status = 1
	StatusScanCompleted  Status = 2
	StatusConnected      Status = 3
	StatusConnectFailed  Status = 4
	StatusConnectionLost Status = 5
	StatusDisconnected   Status = 6
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusNoSSIDAvail:
		return "no-ssid-avail"
	case StatusScanCompleted:
		return "scan-completed"
	case StatusConnected:
		return "connected"
	case StatusConnectFailed:
		return "connect-failed"
	case StatusConnectionLost:
		return "connection-lost"
	case StatusDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Encryption types reported in scan results.
const (
	EncryptionOpen    uint8 = 0
	EncryptionWEP     uint8 = 1
	EncryptionWPA     uint8 = 2
	EncryptionWPA2    uint8 = 3
	EncryptionWPAWPA2 uint8 = 4
	EncryptionWPA3    uint8 = 6
)

// Network is one access point seen by a scan.
type Network struct {
	SSID       string
	RSSI       int32
	Encryption uint8
}

// IPConfig is a static address assignment. A nil DNS leaves the resolver
// unchanged.
type IPConfig struct {
	IP      net.IP
	Gateway net.IP
	Netmask net.IPMask
	DNS     net.IP
}

// Driver is the radio underneath the manager.
//
// Begin and Reconnect start a connection and return immediately; callers
// poll Status to learn the outcome. Implementations must be safe for use
// from multiple goroutines.
type Driver interface {
	SetMode(m Mode) error
	Mode() Mode

	// Begin starts joining ssid and remembers the credentials as the
	// stored network.
	Begin(ssid, password string) error
	// Reconnect starts joining the stored network.
	Reconnect() error
	Status() Status
	StoredSSID() string
	// Disconnect drops the station link. With erase set the stored
	// credentials are forgotten too.
	Disconnect(erase bool) error

	// SoftAP brings up an access point. An empty password means open.
	SoftAP(ssid, password string) error
	SoftAPDisconnect() error
	SoftAPIP() net.IP
	SoftAPConfig(cfg IPConfig) error
	STAConfig(cfg IPConfig) error

	LocalIP() net.IP
	RSSI() int32

	// Scan returns visible networks. Unless force is set a driver may
	// return results from a recent scan.
	Scan(force bool) ([]Network, error)
}
