// Package watchdog drives the modem toward an online, usable data bearer.
// It runs forever on a fixed period; each tick flushes any firewall rules
// that appeared and reconciles the packet context, auto-selecting the APN
// by operator identity when none is configured.
package watchdog

import (
	"fmt"
	"time"

	"github.com/soyea/cpe-manager/internal/logger"
	"github.com/soyea/cpe-manager/pkg/firewall"
	"github.com/soyea/cpe-manager/pkg/modem"
)

// operatorAPN is the per-operator packet profile.
type operatorAPN struct {
	apn      string
	protocol string
}

// operatorAPNs maps MCC+MNC to the carrier APN. All CN carriers run
// dual-stack contexts.
var operatorAPNs = map[string]operatorAPN{
	// China Mobile
	"460-00": {"cmnet", "dual"},
	"460-02": {"cmnet", "dual"},
	"460-07": {"cmnet", "dual"},
	"460-08": {"cmnet", "dual"},
	// China Unicom
	"460-01": {"3gnet", "dual"},
	"460-06": {"3gnet", "dual"},
	"460-09": {"3gnet", "dual"},
	// China Telecom
	"460-03": {"ctnet", "dual"},
	"460-05": {"ctnet", "dual"},
	"460-11": {"ctnet", "dual"},
	// China Broadnet
	"460-15": {"cbnet", "dual"},
}

// recommendedAPN looks up the carrier profile for an MCC/MNC pair.
func recommendedAPN(mcc, mnc string) (operatorAPN, bool) {
	apn, ok := operatorAPNs[mcc+"-"+mnc]
	return apn, ok
}

// Watchdog reconciles connectivity on a timer.
type Watchdog struct {
	client *modem.Client
	log    *logger.Logger

	interval     time.Duration
	initialDelay time.Duration

	lastStatus     string
	flushedAlready bool
}

// New creates a watchdog around the modem client.
func New(client *modem.Client, log *logger.Logger) *Watchdog {
	return &Watchdog{
		client:       client,
		log:          log.WithComponent("watchdog"),
		interval:     5 * time.Second,
		initialDelay: 5 * time.Second,
	}
}

// Run loops forever. Call in its own goroutine; it stops when the process
// exits.
func (w *Watchdog) Run() {
	time.Sleep(w.initialDelay)
	w.log.Info("watchdog started", "interval_secs", int(w.interval.Seconds()))

	for {
		time.Sleep(w.interval)
		w.firewallPass()
		w.dataPass()
	}
}

// firewallPass flushes any rules present, logging only on the transition
// from clean to flushed.
func (w *Watchdog) firewallPass() {
	count, err := firewall.CountRules()
	if err != nil {
		w.log.Warn("iptables check failed", "error", err.Error())
		return
	}

	if !count.HasRules() {
		w.flushedAlready = false
		return
	}

	if err := firewall.Flush(); err != nil {
		w.log.Warn("iptables flush failed", "error", err.Error())
		return
	}
	if !w.flushedAlready {
		w.log.Info("iptables flushed",
			"total", count.Total(), "ipv4", count.IPv4, "ipv6", count.IPv6)
	}
	w.flushedAlready = true
}

// dataPass reconciles the data bearer and logs the outcome only when it
// changes.
func (w *Watchdog) dataPass() {
	status := w.checkAndRestore()
	if status != w.lastStatus {
		w.log.Info("data connection", "status", status)
		w.lastStatus = status
	}
}

// checkAndRestore performs one reconciliation pass and returns a status
// string. Errors never propagate past here; they exist only in logs.
func (w *Watchdog) checkAndRestore() string {
	netStatus, err := w.client.RegistrationStatus()
	if err != nil {
		return fmt.Sprintf("network proxy unavailable: %v", err)
	}
	if netStatus != "registered" && netStatus != "roaming" {
		return fmt.Sprintf("waiting for network (status: %s)", netStatus)
	}

	ctxPath, err := w.client.FindInternetContext()
	if err != nil {
		return fmt.Sprintf("no internet context: %v", err)
	}

	props, err := w.client.ContextProperties(ctxPath)
	if err != nil {
		return fmt.Sprintf("get properties error: %v", err)
	}

	apn := ""
	active := false
	if v, ok := props["AccessPointName"]; ok {
		apn, _ = v.Value().(string)
	}
	if v, ok := props["Active"]; ok {
		active, _ = v.Value().(bool)
	}

	if active {
		return fmt.Sprintf("connected (APN: %s)", apn)
	}

	if apn == "" {
		msg, err := w.autoConfigureAPN(ctxPath)
		if err != nil {
			return fmt.Sprintf("APN not configured: %v", err)
		}
		if actErr := w.client.SetDataConnection(true); actErr != nil {
			return fmt.Sprintf("%s, but activation failed: %v", msg, actErr)
		}
		return fmt.Sprintf("%s, connection activated", msg)
	}

	if err := w.client.SetDataConnection(true); err != nil {
		return fmt.Sprintf("activation failed: %v", err)
	}
	return fmt.Sprintf("connection restored (APN: %s)", apn)
}

// autoConfigureAPN sets the carrier-recommended APN on the context, chosen
// by the registered network's MCC/MNC.
func (w *Watchdog) autoConfigureAPN(ctxPath string) (string, error) {
	info, err := w.client.NetworkInfo()
	if err != nil {
		return "", fmt.Errorf("failed to get network properties: %w", err)
	}
	if info.MCC == "" || info.MNC == "" {
		return "", fmt.Errorf("MCC/MNC not available")
	}

	profile, ok := recommendedAPN(info.MCC, info.MNC)
	if !ok {
		return "", fmt.Errorf("no recommended APN for MCC=%s MNC=%s", info.MCC, info.MNC)
	}

	if err := w.client.SetContextProperty(ctxPath, "AccessPointName", profile.apn); err != nil {
		return "", fmt.Errorf("failed to set APN: %w", err)
	}
	if err := w.client.SetContextProperty(ctxPath, "Protocol", profile.protocol); err != nil {
		return "", fmt.Errorf("failed to set protocol: %w", err)
	}

	return fmt.Sprintf("auto-configured APN: %s (%s)", profile.apn, profile.protocol), nil
}

// InitDataConnection is the one-shot boot pass: activate the context if the
// network is up and an APN is already configured. It never auto-selects an
// APN; the periodic loop handles that.
func InitDataConnection(client *modem.Client) string {
	status, err := client.RegistrationStatus()
	if err != nil {
		return fmt.Sprintf("failed to check network status: %v", err)
	}
	if status != "registered" && status != "roaming" {
		return fmt.Sprintf("network not registered (status: %s), skipping data connection", status)
	}

	ctxPath, err := client.FindInternetContext()
	if err != nil {
		return fmt.Sprintf("failed to find internet context: %v", err)
	}

	props, err := client.ContextProperties(ctxPath)
	if err != nil {
		return fmt.Sprintf("failed to get context properties: %v", err)
	}

	if v, ok := props["Active"]; ok {
		if active, _ := v.Value().(bool); active {
			return fmt.Sprintf("data connection already active (%s)", ctxPath)
		}
	}

	apn := ""
	if v, ok := props["AccessPointName"]; ok {
		apn, _ = v.Value().(string)
	}
	if apn == "" {
		return fmt.Sprintf("APN not configured on %s, skipping auto-connect", ctxPath)
	}

	if err := client.SetDataConnection(true); err != nil {
		return fmt.Sprintf("failed to activate data connection: %v", err)
	}
	return fmt.Sprintf("data connection activated on %s (APN: %s)", ctxPath, apn)
}
