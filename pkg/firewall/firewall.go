// Package firewall checks and flushes netfilter rules. The device's
// upstream does not tolerate local filtering, so the watchdog clears any
// rule that appears.
package firewall

import (
	"fmt"
	"strings"

	"github.com/soyea/cpe-manager/pkg/shell"
)

// RuleCount is the per-family count of appended rules.
type RuleCount struct {
	IPv4 int
	IPv6 int
}

// HasRules reports whether either family carries rules.
func (c RuleCount) HasRules() bool {
	return c.IPv4 > 0 || c.IPv6 > 0
}

// Total returns the combined rule count.
func (c RuleCount) Total() int {
	return c.IPv4 + c.IPv6
}

// countAppendedRules counts `-A ` lines in iptables -S output; -P policy
// and -N chain lines are not rules.
func countAppendedRules(listing string) int {
	count := 0
	for _, line := range strings.Split(listing, "\n") {
		if strings.HasPrefix(line, "-A ") {
			count++
		}
	}
	return count
}

// CountRules lists both families and counts appended rules.
func CountRules() (RuleCount, error) {
	var count RuleCount

	res, err := shell.Run("iptables", "-S")
	if err != nil {
		return count, err
	}
	if res.Ok() {
		count.IPv4 = countAppendedRules(res.Stdout)
	}

	res, err = shell.Run("ip6tables", "-S")
	if err != nil {
		return count, err
	}
	if res.Ok() {
		count.IPv6 = countAppendedRules(res.Stdout)
	}

	return count, nil
}

// Flush clears the filter table for both families.
func Flush() error {
	res, err := shell.Run("iptables", "-F")
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("iptables -F failed: %s", strings.TrimSpace(res.Stderr))
	}

	res, err = shell.Run("ip6tables", "-F")
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("ip6tables -F failed: %s", strings.TrimSpace(res.Stderr))
	}

	return nil
}
