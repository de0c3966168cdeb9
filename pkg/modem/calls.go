package modem

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// Call is a live voice call as exported by VoiceCallManager.
type Call struct {
	Path        string `json:"path"`
	PhoneNumber string `json:"phone_number"`
	State       string `json:"state"`
	Direction   string `json:"direction"`
	StartTime   string `json:"start_time"`
}

// ListCalls enumerates active calls. Guarded.
func (c *Client) ListCalls() ([]Call, error) {
	var raw []struct {
		Path  dbus.ObjectPath
		Props map[string]dbus.Variant
	}
	err := c.gate.Do(func() error {
		if err := c.modemObj().Call(ifaceVoiceCallManager+".GetCalls", 0).Store(&raw); err != nil {
			return fmt.Errorf("GetCalls: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	calls := make([]Call, 0, len(raw))
	for _, rc := range raw {
		state := propString(rc.Props, "State")
		direction := "outgoing"
		if state == "incoming" || state == "waiting" {
			direction = "incoming"
		}
		calls = append(calls, Call{
			Path:        string(rc.Path),
			PhoneNumber: propString(rc.Props, "LineIdentification"),
			State:       state,
			Direction:   direction,
			StartTime:   propString(rc.Props, "StartTime"),
		})
	}
	return calls, nil
}

// Dial places an outgoing call and returns its synthesized snapshot.
// Guarded.
func (c *Client) Dial(number string) (Call, error) {
	var path dbus.ObjectPath
	err := c.gate.Do(func() error {
		if err := c.modemObj().Call(ifaceVoiceCallManager+".Dial", 0, number, "").Store(&path); err != nil {
			return fmt.Errorf("Dial %s: %w", number, err)
		}
		return nil
	})
	if err != nil {
		return Call{}, err
	}

	return Call{
		Path:        string(path),
		PhoneNumber: number,
		State:       "dialing",
		Direction:   "outgoing",
		StartTime:   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Answer accepts an incoming call by its object path. Guarded.
func (c *Client) Answer(path string) error {
	return c.gate.Do(func() error {
		call := c.pathObj(path).Call(ifaceVoiceCall+".Answer", 0)
		if call.Err != nil {
			return fmt.Errorf("Answer %s: %w", path, call.Err)
		}
		return nil
	})
}

// Hangup terminates one call by its object path. Guarded.
func (c *Client) Hangup(path string) error {
	return c.gate.Do(func() error {
		call := c.pathObj(path).Call(ifaceVoiceCall+".Hangup", 0)
		if call.Err != nil {
			return fmt.Errorf("Hangup %s: %w", path, call.Err)
		}
		return nil
	})
}

// HangupAll terminates every active call and returns how many were hung up.
func (c *Client) HangupAll() (int, error) {
	calls, err := c.ListCalls()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, call := range calls {
		if err := c.Hangup(call.Path); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
