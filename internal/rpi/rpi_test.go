package rpi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	psnet "github.com/shirou/gopsutil/v3/net"
)

const cpuinfo = `processor	: 0
model name	: ARMv7 Processor rev 3 (v7l)
Hardware	: BCM2835
Revision	: a020d3
Serial		: 00000000a1b2c3d4
Model		: Raspberry Pi 3 Model B Plus Rev 1.3
`

func TestParseSerial(t *testing.T) {
	if got := parseSerial(strings.NewReader(cpuinfo)); got != "00000000a1b2c3d4" {
		t.Errorf("serial = %q", got)
	}
	if got := parseSerial(strings.NewReader("processor : 0\n")); got != "" {
		t.Errorf("expected empty serial, got %q", got)
	}
}

func TestSerialNumber_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpuinfo")
	if err := os.WriteFile(path, []byte(cpuinfo), 0o644); err != nil {
		t.Fatal(err)
	}
	old := cpuinfoPath
	t.Cleanup(func() { cpuinfoPath = old })

	cpuinfoPath = path
	if got := DeviceID("raspi-", "-x", ""); got != "raspi-00000000a1b2c3d4-x" {
		t.Errorf("DeviceID = %q", got)
	}

	cpuinfoPath = filepath.Join(t.TempDir(), "missing")
	if got := SerialNumber(); got != "" {
		t.Errorf("missing file should give empty serial, got %q", got)
	}
	if got := DeviceID("raspi-", "", "unknown"); got != "unknown" {
		t.Errorf("DeviceID fallback = %q", got)
	}
}

func TestDeviceID_DefaultFallback(t *testing.T) {
	if got := deviceID("", "p", "s", ""); got != DefaultID {
		t.Errorf("got %q, want %q", got, DefaultID)
	}
}

func TestCheckWiFi(t *testing.T) {
	old := interfaces
	t.Cleanup(func() { interfaces = old })

	tests := []struct {
		name  string
		addrs []string
		want  bool
	}{
		{"loopback only", []string{"127.0.0.1/8", "::1/128"}, false},
		{"ipv6 only", []string{"fe80::1/64"}, false},
		{"lan address", []string{"127.0.0.1/8", "192.168.1.20/24"}, true},
		{"no addresses", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var addrs psnet.InterfaceAddrList
			for _, a := range tc.addrs {
				addrs = append(addrs, psnet.InterfaceAddr{Addr: a})
			}
			interfaces = func(context.Context) (psnet.InterfaceStatList, error) {
				return psnet.InterfaceStatList{{Name: "wlan0", Addrs: addrs}}, nil
			}
			got, err := CheckWiFi(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("CheckWiFi = %v, want %v", got, tc.want)
			}
		})
	}

	interfaces = func(context.Context) (psnet.InterfaceStatList, error) {
		return nil, errors.New("boom")
	}
	if _, err := CheckWiFi(context.Background()); err == nil {
		t.Error("expected error")
	}
}
