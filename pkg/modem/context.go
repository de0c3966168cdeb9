package modem

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// fallbackContextPath is used when the modem exports no internet context at
// all; /ril_0/context2 is where udx710 firmware conventionally puts it.
const fallbackContextPath = modemPath + "/context2"

// ApnContext is one packet-data profile as exported by ConnectionManager.
type ApnContext struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	APN        string `json:"apn"`
	Protocol   string `json:"protocol"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	AuthMethod string `json:"auth_method"`
	Type       string `json:"context_type"`
}

// ApnUpdate carries optional context mutations; nil fields are untouched.
type ApnUpdate struct {
	APN        *string
	Protocol   *string
	Username   *string
	Password   *string
	AuthMethod *string
}

func (c *Client) getContexts() ([]struct {
	Path  dbus.ObjectPath
	Props map[string]dbus.Variant
}, error) {
	var contexts []struct {
		Path  dbus.ObjectPath
		Props map[string]dbus.Variant
	}
	if err := c.modemObj().Call(ifaceConnectionManager+".GetContexts", 0).Store(&contexts); err != nil {
		return nil, fmt.Errorf("GetContexts: %w", err)
	}
	return contexts, nil
}

// FindInternetContext returns the object path of the data-bearing context:
// the first internet-typed context with a configured APN, else the first
// internet-typed one, else the conventional fallback path.
func (c *Client) FindInternetContext() (string, error) {
	contexts, err := c.getContexts()
	if err != nil {
		return "", err
	}

	firstInternet := ""
	for _, ctx := range contexts {
		if propString(ctx.Props, "Type") != "internet" {
			continue
		}
		if propString(ctx.Props, "AccessPointName") != "" {
			return string(ctx.Path), nil
		}
		if firstInternet == "" {
			firstInternet = string(ctx.Path)
		}
	}

	if firstInternet != "" {
		return firstInternet, nil
	}
	return fallbackContextPath, nil
}

// ApnContexts lists all internet-typed contexts.
func (c *Client) ApnContexts() ([]ApnContext, error) {
	contexts, err := c.getContexts()
	if err != nil {
		return nil, err
	}

	result := make([]ApnContext, 0, len(contexts))
	for _, ctx := range contexts {
		ctxType := propString(ctx.Props, "Type")
		if ctxType != "internet" {
			continue
		}
		result = append(result, ApnContext{
			Path:       string(ctx.Path),
			Name:       propStringDefault(ctx.Props, "Name", "Internet"),
			Active:     propBool(ctx.Props, "Active"),
			APN:        propString(ctx.Props, "AccessPointName"),
			Protocol:   propStringDefault(ctx.Props, "Protocol", "ip"),
			Username:   propString(ctx.Props, "Username"),
			Password:   propString(ctx.Props, "Password"),
			AuthMethod: propStringDefault(ctx.Props, "AuthenticationMethod", "chap"),
			Type:       ctxType,
		})
	}
	return result, nil
}

// ContextProperties reads all properties of one context. Unguarded.
func (c *Client) ContextProperties(path string) (map[string]dbus.Variant, error) {
	return c.getPropertiesAt(path, ifaceConnectionContext)
}

// SetContextProperty writes one context property under the gate.
func (c *Client) SetContextProperty(path, name string, value interface{}) error {
	return c.setPropertyAt(path, ifaceConnectionContext, name, value)
}

// SetApnProperties applies a batch of context mutations. The cellular stack
// rejects property writes on an active context, so an active one is bounced:
// deactivate, settle, write, settle, reactivate. Each phase takes the gate
// independently — signal traffic is allowed to drain in between, and callers
// must not rely on atomicity across the sequence.
func (c *Client) SetApnProperties(path string, update ApnUpdate) error {
	props, err := c.ContextProperties(path)
	if err != nil {
		return err
	}
	wasActive := propBool(props, "Active")

	if wasActive {
		if err := c.SetContextProperty(path, "Active", false); err != nil {
			return err
		}
		time.Sleep(500 * time.Millisecond)
	}

	if update.APN != nil {
		if err := c.SetContextProperty(path, "AccessPointName", *update.APN); err != nil {
			return err
		}
	}
	if update.Protocol != nil {
		if err := c.SetContextProperty(path, "Protocol", *update.Protocol); err != nil {
			return err
		}
	}
	if update.Username != nil {
		if err := c.SetContextProperty(path, "Username", *update.Username); err != nil {
			return err
		}
	}
	if update.Password != nil {
		if err := c.SetContextProperty(path, "Password", *update.Password); err != nil {
			return err
		}
	}
	if update.AuthMethod != nil {
		if err := c.SetContextProperty(path, "AuthenticationMethod", *update.AuthMethod); err != nil {
			return err
		}
	}

	if wasActive {
		time.Sleep(500 * time.Millisecond)
		if err := c.SetContextProperty(path, "Active", true); err != nil {
			return err
		}
	}

	return nil
}

// SetDataConnection activates or deactivates the selected internet context.
func (c *Client) SetDataConnection(active bool) error {
	path, err := c.FindInternetContext()
	if err != nil {
		return err
	}
	return c.SetContextProperty(path, "Active", active)
}

// DataConnectionStatus reports whether the internet context is active.
func (c *Client) DataConnectionStatus() (bool, error) {
	path, err := c.FindInternetContext()
	if err != nil {
		return false, err
	}
	props, err := c.ContextProperties(path)
	if err != nil {
		return false, err
	}
	return propBool(props, "Active"), nil
}

// RoamingStatus returns (allowed, roaming). allowed is the ConnectionManager
// RoamingAllowed property; roaming is derived from the registration status.
func (c *Client) RoamingStatus() (bool, bool, error) {
	cmProps, err := c.getProperties(ifaceConnectionManager)
	if err != nil {
		return false, false, err
	}
	status, err := c.RegistrationStatus()
	if err != nil {
		return false, false, err
	}
	return propBool(cmProps, "RoamingAllowed"), status == "roaming", nil
}

// SetRoamingAllowed toggles data roaming. Guarded.
func (c *Client) SetRoamingAllowed(allowed bool) error {
	return c.setProperty(ifaceConnectionManager, "RoamingAllowed", allowed)
}
