package rpi

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// DefaultID is returned by DeviceID when no serial number is available.
const DefaultID = "n/a"

var cpuinfoPath = "/proc/cpuinfo"

// SerialNumber returns the board serial number from /proc/cpuinfo, or ""
// when the file is missing or has no Serial line.
func SerialNumber() string {
	f, err := os.Open(cpuinfoPath)
	if err != nil {
		return ""
	}
	defer f.Close()
	return parseSerial(f)
}

func parseSerial(r io.Reader) string {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Serial") {
			continue
		}
		_, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		return strings.TrimSpace(v)
	}
	return ""
}

// DeviceID returns prefix+serial+suffix, or def when there is no serial
// number. An empty def falls back to DefaultID.
func DeviceID(prefix, suffix, def string) string {
	return deviceID(SerialNumber(), prefix, suffix, def)
}

func deviceID(serial, prefix, suffix, def string) string {
	if serial == "" {
		if def == "" {
			return DefaultID
		}
		return def
	}
	return prefix + serial + suffix
}

// interfaces is replaced in tests.
var interfaces = psnet.InterfacesWithContext

// CheckWiFi reports whether any interface holds a non-loopback IPv4 address.
// It does not tell WiFi from wired links.
func CheckWiFi(ctx context.Context) (bool, error) {
	ifs, err := interfaces(ctx)
	if err != nil {
		return false, fmt.Errorf("rpi: list interfaces: %w", err)
	}
	for _, i := range ifs {
		for _, a := range i.Addrs {
			p, err := netip.ParsePrefix(a.Addr)
			if err != nil {
				continue
			}
			if ip := p.Addr(); ip.Is4() && !ip.IsLoopback() {
				return true, nil
			}
		}
	}
	return false, nil
}

// Hostname returns the host name as reported by the OS.
func Hostname(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("rpi: host info: %w", err)
	}
	return info.Hostname, nil
}
