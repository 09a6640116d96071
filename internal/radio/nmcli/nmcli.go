// Package nmcli drives a Linux WiFi interface through NetworkManager's
// command line client.
//
// Station and access point can share one interface only if the hardware
// supports concurrent modes; set Config.APInterface to a second adapter
// when it does not.
package nmcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/radio"
)

// Config holds the driver configuration.
type Config struct {
	// NmcliPath is the nmcli binary. Default: "nmcli" (searches PATH)
	NmcliPath string

	// Interface is the station interface. Default: "wlan0"
	Interface string

	// APInterface carries the soft AP. Default: same as Interface
	APInterface string

	// APConnection is the NetworkManager profile name used for the soft AP.
	// Default: "wifiportal-ap"
	APConnection string

	// CommandTimeout bounds each nmcli invocation. Connection attempts are
	// bounded by ConnectWait instead.
	// Default: 15 seconds
	CommandTimeout time.Duration

	// ConnectWait is passed to nmcli --wait for connection attempts.
	// Default: 30 seconds
	ConnectWait time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		NmcliPath:      "nmcli",
		Interface:      "wlan0",
		APConnection:   "wifiportal-ap",
		CommandTimeout: 15 * time.Second,
		ConnectWait:    30 * time.Second,
	}
}

// CommandError is returned when nmcli exits unsuccessfully.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("nmcli %s: exit %d: %s", strings.Join(e.Args, " "), e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (e *CommandError) Unwrap() error { return e.Err }

// pendingAttempt is the connection command currently running in the
// background.
type pendingAttempt struct {
	id     uint64
	ssid   string
	cancel context.CancelFunc
}

type runFunc func(ctx context.Context, path string, args ...string) (stdout string, err error)

// Driver implements radio.Driver on top of nmcli.
type Driver struct {
	config Config
	logger *zap.Logger
	run    runFunc

	mu         sync.Mutex
	mode       radio.Mode
	inFlight   *pendingAttempt
	attempts   uint64
	lastResult radio.Status
	storedSSID string
	apIP       net.IP
	apMask     net.IPMask
	static     *radio.IPConfig
}

// New creates a driver for the configured interface.
func New(config Config, logger *zap.Logger) *Driver {
	if config.NmcliPath == "" {
		config.NmcliPath = "nmcli"
	}
	if config.APInterface == "" {
		config.APInterface = config.Interface
	}
	if config.APConnection == "" {
		config.APConnection = "wifiportal-ap"
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = 15 * time.Second
	}
	if config.ConnectWait <= 0 {
		config.ConnectWait = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		config:     config,
		logger:     logger,
		run:        execRun,
		lastResult: radio.StatusIdle,
		apIP:       net.IPv4(192, 168, 4, 1),
		apMask:     net.CIDRMask(24, 32),
	}
}

func execRun(ctx context.Context, path string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return stdout.String(), &CommandError{Args: args, ExitCode: exitCode, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

func (d *Driver) nmcli(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.CommandTimeout)
	defer cancel()

	d.logger.Debug("running nmcli", zap.Strings("args", redact(args)))
	out, err := d.run(ctx, d.config.NmcliPath, args...)
	if err != nil {
		d.logger.Debug("nmcli failed", zap.Strings("args", redact(args)), zap.Error(err))
	}
	return out, err
}

// redact hides the value following any password argument.
func redact(args []string) []string {
	out := append([]string(nil), args...)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "password" || out[i] == "wifi-sec.psk" {
			out[i+1] = "***"
		}
	}
	return out
}

func (d *Driver) SetMode(m radio.Mode) error {
	state := "on"
	if m == radio.ModeOff {
		state = "off"
	}
	if _, err := d.nmcli("radio", "wifi", state); err != nil {
		return fmt.Errorf("set mode %v: %w", m, err)
	}
	d.mu.Lock()
	prev := d.mode
	d.mode = m
	d.mu.Unlock()

	if prev.HasAP() && !m.HasAP() {
		return d.SoftAPDisconnect()
	}
	return nil
}

func (d *Driver) Mode() radio.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

func (d *Driver) Begin(ssid, password string) error {
	args := []string{"--wait", waitSeconds(d.config.ConnectWait), "device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	args = append(args, "ifname", d.config.Interface)
	return d.startAttempt(ssid, args)
}

func (d *Driver) Reconnect() error {
	ssid := d.StoredSSID()
	if ssid == "" {
		return fmt.Errorf("reconnect: no stored network")
	}
	return d.startAttempt(ssid, []string{"--wait", waitSeconds(d.config.ConnectWait), "connection", "up", "id", ssid})
}

// startAttempt runs a connection command in the background and records
// its outcome for Status. A command still running from an earlier attempt
// is cancelled first; its outcome is discarded.
func (d *Driver) startAttempt(ssid string, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.ConnectWait+d.config.CommandTimeout)

	d.mu.Lock()
	if prev := d.inFlight; prev != nil {
		d.logger.Info("abandoning unfinished connection attempt",
			zap.String("ssid", prev.ssid),
			zap.String("next_ssid", ssid),
		)
		prev.cancel()
	}
	d.attempts++
	pending := &pendingAttempt{id: d.attempts, ssid: ssid, cancel: cancel}
	d.inFlight = pending
	d.lastResult = radio.StatusDisconnected
	d.mu.Unlock()

	go func() {
		defer cancel()

		_, err := d.run(ctx, d.config.NmcliPath, args...)
		result := classifyConnectError(err)

		d.mu.Lock()
		if d.inFlight != pending {
			d.mu.Unlock()
			d.logger.Debug("discarding superseded connection attempt", zap.String("ssid", ssid), zap.Error(err))
			return
		}
		d.inFlight = nil
		d.lastResult = result
		if result == radio.StatusConnected {
			d.storedSSID = ssid
		}
		d.mu.Unlock()

		if result == radio.StatusConnected {
			d.applyStatic(ssid)
		}
		d.logger.Info("nmcli connection attempt finished",
			zap.String("ssid", ssid),
			zap.Stringer("result", result),
			zap.Error(err),
		)
	}()
	return nil
}

// abandonAttempt cancels the running connection command, if any.
func (d *Driver) abandonAttempt() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight != nil {
		d.inFlight.cancel()
		d.inFlight = nil
	}
}

func (d *Driver) applyStatic(ssid string) {
	d.mu.Lock()
	static := d.static
	d.mu.Unlock()
	if static == nil {
		return
	}

	args := []string{"connection", "modify", "id", ssid,
		"ipv4.method", "manual",
		"ipv4.addresses", cidr(static.IP, static.Netmask),
	}
	if static.Gateway != nil {
		args = append(args, "ipv4.gateway", static.Gateway.String())
	}
	if static.DNS != nil {
		args = append(args, "ipv4.dns", static.DNS.String())
	}
	if _, err := d.nmcli(args...); err != nil {
		d.logger.Warn("failed to apply static station address", zap.String("ssid", ssid), zap.Error(err))
		return
	}
	if _, err := d.nmcli("connection", "up", "id", ssid); err != nil {
		d.logger.Warn("failed to reactivate connection after static address", zap.String("ssid", ssid), zap.Error(err))
	}
}

// classifyConnectError maps nmcli's failure text onto a station status.
func classifyConnectError(err error) radio.Status {
	if err == nil {
		return radio.StatusConnected
	}
	msg := strings.ToLower(err.Error())
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		msg = strings.ToLower(cmdErr.Stderr)
	}
	if strings.Contains(msg, "no network with ssid") || strings.Contains(msg, "not found") {
		return radio.StatusNoSSIDAvail
	}
	// Wrong secrets, activation timeouts and supplicant failures all
	// surface as a failed attempt.
	return radio.StatusConnectFailed
}

func (d *Driver) Status() radio.Status {
	d.mu.Lock()
	if d.inFlight != nil {
		d.mu.Unlock()
		return radio.StatusDisconnected
	}
	last := d.lastResult
	d.mu.Unlock()

	out, err := d.nmcli("-t", "-f", "GENERAL.STATE", "device", "show", d.config.Interface)
	if err != nil {
		return last
	}
	state := parseDeviceState(out)
	switch {
	case state == 100:
		return radio.StatusConnected
	case state >= 40 && state < 100:
		return radio.StatusDisconnected
	case last == radio.StatusConnected:
		return radio.StatusConnectionLost
	case state == 20 || state == 10:
		return radio.StatusIdle
	default:
		return last
	}
}

// parseDeviceState reads the numeric NetworkManager device state from a
// "GENERAL.STATE:100 (connected)" line.
func parseDeviceState(out string) int {
	for _, line := range strings.Split(out, "\n") {
		_, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		code, _, _ := strings.Cut(strings.TrimSpace(value), " ")
		if n, err := strconv.Atoi(code); err == nil {
			return n
		}
	}
	return 0
}

func (d *Driver) StoredSSID() string {
	d.mu.Lock()
	stored := d.storedSSID
	d.mu.Unlock()
	if stored != "" {
		return stored
	}

	out, err := d.nmcli("-t", "-f", "NAME,TYPE,TIMESTAMP", "connection", "show")
	if err != nil {
		return ""
	}
	return d.latestWirelessProfile(out)
}

func (d *Driver) latestWirelessProfile(out string) string {
	var best string
	var bestTS int64 = -1
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := splitTerse(line)
		if len(fields) < 3 || fields[1] != "802-11-wireless" || fields[0] == d.config.APConnection {
			continue
		}
		ts, _ := strconv.ParseInt(fields[2], 10, 64)
		if ts > bestTS {
			best, bestTS = fields[0], ts
		}
	}
	return best
}

func (d *Driver) Disconnect(erase bool) error {
	d.abandonAttempt()
	ssid := d.StoredSSID()
	if _, err := d.nmcli("device", "disconnect", d.config.Interface); err != nil {
		d.logger.Debug("device disconnect failed", zap.Error(err))
	}

	d.mu.Lock()
	d.lastResult = radio.StatusDisconnected
	if erase {
		d.storedSSID = ""
	}
	d.mu.Unlock()

	if erase && ssid != "" {
		if _, err := d.nmcli("connection", "delete", "id", ssid); err != nil {
			return fmt.Errorf("forget %q: %w", ssid, err)
		}
	}
	return nil
}

func (d *Driver) SoftAP(ssid, password string) error {
	d.mu.Lock()
	addr := cidr(d.apIP, d.apMask)
	d.mu.Unlock()

	// Replace any previous profile so settings never accumulate.
	_, _ = d.nmcli("connection", "delete", "id", d.config.APConnection)

	args := []string{"connection", "add", "type", "wifi",
		"ifname", d.config.APInterface,
		"con-name", d.config.APConnection,
		"autoconnect", "no",
		"ssid", ssid,
		"802-11-wireless.mode", "ap",
		"ipv4.method", "shared",
		"ipv4.addresses", addr,
	}
	if password != "" {
		args = append(args, "wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk", password)
	}
	if _, err := d.nmcli(args...); err != nil {
		return fmt.Errorf("create access point %q: %w", ssid, err)
	}
	if _, err := d.nmcli("connection", "up", "id", d.config.APConnection); err != nil {
		return fmt.Errorf("start access point %q: %w", ssid, err)
	}
	return nil
}

func (d *Driver) SoftAPDisconnect() error {
	if _, err := d.nmcli("connection", "down", "id", d.config.APConnection); err != nil {
		return fmt.Errorf("stop access point: %w", err)
	}
	return nil
}

func (d *Driver) SoftAPIP() net.IP {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.apIP
}

func (d *Driver) SoftAPConfig(cfg radio.IPConfig) error {
	if cfg.IP.To4() == nil {
		return fmt.Errorf("soft AP config: %v is not an IPv4 address", cfg.IP)
	}
	d.mu.Lock()
	d.apIP = cfg.IP
	if cfg.Netmask != nil {
		d.apMask = cfg.Netmask
	}
	d.mu.Unlock()
	return nil
}

func (d *Driver) STAConfig(cfg radio.IPConfig) error {
	if cfg.IP.To4() == nil {
		return fmt.Errorf("station config: %v is not an IPv4 address", cfg.IP)
	}
	d.mu.Lock()
	c := cfg
	d.static = &c
	d.mu.Unlock()
	return nil
}

func (d *Driver) LocalIP() net.IP {
	out, err := d.nmcli("-g", "IP4.ADDRESS", "device", "show", d.config.Interface)
	if err != nil {
		return nil
	}
	first, _, _ := strings.Cut(strings.TrimSpace(out), "|")
	ip, _, err := net.ParseCIDR(strings.TrimSpace(first))
	if err != nil {
		return nil
	}
	return ip
}

func (d *Driver) RSSI() int32 {
	out, err := d.nmcli("-t", "-f", "IN-USE,SIGNAL", "device", "wifi", "list", "ifname", d.config.Interface, "--rescan", "no")
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(out, "\n") {
		fields := splitTerse(line)
		if len(fields) == 2 && fields[0] == "*" {
			signal, _ := strconv.Atoi(fields[1])
			return signalToDBm(signal)
		}
	}
	return 0
}

func (d *Driver) Scan(force bool) ([]radio.Network, error) {
	rescan := "auto"
	if force {
		rescan = "yes"
	}
	out, err := d.nmcli("-t", "-f", "SSID,SIGNAL,SECURITY", "device", "wifi", "list", "ifname", d.config.Interface, "--rescan", rescan)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return parseScan(out), nil
}

// parseScan turns terse "SSID:SIGNAL:SECURITY" lines into networks,
// skipping hidden SSIDs.
func parseScan(out string) []radio.Network {
	var nets []radio.Network
	for _, line := range strings.Split(out, "\n") {
		fields := splitTerse(line)
		if len(fields) < 3 || fields[0] == "" {
			continue
		}
		signal, _ := strconv.Atoi(fields[1])
		nets = append(nets, radio.Network{
			SSID:       fields[0],
			RSSI:       signalToDBm(signal),
			Encryption: encryptionFromSecurity(fields[2]),
		})
	}
	return nets
}

// splitTerse splits an nmcli terse line on unescaped colons.
func splitTerse(line string) []string {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return nil
	}
	var fields []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}

func encryptionFromSecurity(sec string) uint8 {
	switch {
	case sec == "" || sec == "--":
		return radio.EncryptionOpen
	case strings.Contains(sec, "WPA3"):
		return radio.EncryptionWPA3
	case strings.Contains(sec, "WPA2") && strings.Contains(sec, "WPA1"):
		return radio.EncryptionWPAWPA2
	case strings.Contains(sec, "WPA2"):
		return radio.EncryptionWPA2
	case strings.Contains(sec, "WPA1"):
		return radio.EncryptionWPA
	case strings.Contains(sec, "WEP"):
		return radio.EncryptionWEP
	default:
		return radio.EncryptionWPA2
	}
}

// signalToDBm converts NetworkManager's 0-100 signal quality to dBm.
func signalToDBm(signal int) int32 {
	if signal <= 0 {
		return -100
	}
	if signal >= 100 {
		return -50
	}
	return int32(signal/2 - 100)
}

func cidr(ip net.IP, mask net.IPMask) string {
	ones := 24
	if mask != nil {
		ones, _ = mask.Size()
	}
	return fmt.Sprintf("%s/%d", ip.String(), ones)
}

func waitSeconds(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

var _ radio.Driver = (*Driver)(nil)
