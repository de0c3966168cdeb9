package usbgadget

import (
	"os"
	"strings"
	"time"

	"github.com/soyea/cpe-manager/pkg/shell"
)

const (
	usbInterfaceIP  = "192.168.66.1"
	usbInterfaceMAC = "CC:E8:AC:C0:00:00"

	sfpEnablePath       = "/proc/net/sfp/enable"
	sfpTetherSchemePath = "/proc/net/sfp/tether_scheme"

	usbNetworkMarker = "/tmp/sipa_usb0_ok"
)

// configureUsbNetwork rebuilds the usb0 network path after the host
// enumerates the new gadget: bounce connman tethering, assign the fixed
// address, kill the conflicting IPA interface, and enable forwarding
// acceleration. All steps are best-effort; the gadget is already live.
func (c *Composer) configureUsbNetwork() {
	// Let the interface appear.
	time.Sleep(500 * time.Millisecond)

	// Bounce connman gadget tethering; re-enabling without the off/disable
	// prefix fails with "Already enabled".
	shell.RunQuiet("connmanctl", "tether", "gadget", "off")
	time.Sleep(100 * time.Millisecond)
	shell.RunQuiet("connmanctl", "disable", "gadget")
	time.Sleep(200 * time.Millisecond)
	shell.RunQuiet("connmanctl", "enable", "gadget")
	time.Sleep(100 * time.Millisecond)
	shell.RunQuiet("connmanctl", "tether", "gadget", "on")
	time.Sleep(300 * time.Millisecond)

	// Wait for usb0 with retries before forcing the address.
	const maxRetries = 5
	for retry := 0; retry < maxRetries; retry++ {
		res, err := shell.Run("ifconfig", "-a")
		if err == nil && (strings.Contains(res.Stdout, "usb0") || strings.Contains(res.Stdout, usbInterfaceIP)) {
			break
		}
		if retry < maxRetries-1 {
			shell.RunQuiet("ifconfig", "usb0", "add", usbInterfaceIP)
			time.Sleep(1 * time.Second)
		}
	}

	shell.RunQuiet("ifconfig", "usb0", usbInterfaceIP, "netmask", "255.255.255.0")
	shell.RunQuiet("ifconfig", "usb0", "hw", "ether", usbInterfaceMAC)
	shell.RunQuiet("ip", "link", "set", "dev", "usb0", "up")
	shell.RunQuiet("ip", "route", "add", "default", "via", "192.168.66.2")

	// sipa_usb0 is the IPA-owned interface; it conflicts with usb0.
	shell.RunQuiet("ifconfig", "sipa_usb0", "down")

	writeFileIfPresent(sfpEnablePath, "1")
	writeFileIfPresent(sfpTetherSchemePath, "1")

	_ = os.WriteFile(usbNetworkMarker, nil, 0644)

	c.log.Info("usb network configured", "ip", usbInterfaceIP)
}
