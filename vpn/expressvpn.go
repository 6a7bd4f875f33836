package vpn

import (
	"errors"
	"os/exec"
	"strings"
	"time"
)

var (
	ErrVPNNotConnected = errors.New("VPN not connected")
	ErrVPNConnectFail  = errors.New("failed to connect VPN")
)

type Config struct {
	AutoConnect bool
	Region      string
}

// ExpressVPN shells out to the expressvpnctl client. Marketplaces ban egress
// IPs that scrape too hard; rotating the tunnel gets a fresh one without
// touching the proxy config.
type ExpressVPN struct {
	cfg *Config
}

func NewExpressVPN(cfg *Config) *ExpressVPN {
	return &ExpressVPN{cfg: cfg}
}

func (v *ExpressVPN) IsConnected() bool {
	out, err := exec.Command("expressvpnctl", "status").Output()
	if err != nil {
		return false
	}
	status := strings.ToLower(string(out))
	return strings.Contains(status, "connected") && !strings.Contains(status, "disconnected")
}

func (v *ExpressVPN) Connect() error {
	if v.IsConnected() {
		return nil
	}

	if !v.cfg.AutoConnect {
		return ErrVPNNotConnected
	}

	region := v.cfg.Region
	if region == "" {
		region = "smart"
	}

	cmd := exec.Command("expressvpnctl", "connect", region)
	if err := cmd.Run(); err != nil {
		return ErrVPNConnectFail
	}

	for i := 0; i < 30; i++ {
		time.Sleep(time.Second)
		if v.IsConnected() {
			return nil
		}
	}

	return ErrVPNConnectFail
}

func (v *ExpressVPN) EnsureConnected() error {
	if v.IsConnected() {
		return nil
	}
	return v.Connect()
}

// Rotate tears the tunnel down and reconnects, landing on a new exit IP.
// Used when every source in a run comes back blocked.
func (v *ExpressVPN) Rotate() error {
	if err := v.Disconnect(); err != nil {
		return err
	}
	time.Sleep(2 * time.Second)
	return v.Connect()
}

func (v *ExpressVPN) Disconnect() error {
	return exec.Command("expressvpnctl", "disconnect").Run()
}

func (v *ExpressVPN) GetStatus() (string, error) {
	out, err := exec.Command("expressvpnctl", "status").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
