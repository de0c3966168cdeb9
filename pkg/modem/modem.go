// Package modem is the typed facade over the ofono D-Bus service that
// models the UDX710 cellular stack. All state-changing operations and AT
// passthrough are serialized through the Gate; plain property reads are
// cheap and idempotent and run unguarded.
package modem

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	ofonoService = "org.ofono"
	modemPath    = "/ril_0"

	ifaceModem               = "org.ofono.Modem"
	ifaceSimManager          = "org.ofono.SimManager"
	ifaceMessageManager      = "org.ofono.MessageManager"
	ifaceNetworkRegistration = "org.ofono.NetworkRegistration"
	ifaceRadioSettings       = "org.ofono.RadioSettings"
	ifaceNetworkMonitor      = "org.ofono.NetworkMonitor"
	ifaceConnectionManager   = "org.ofono.ConnectionManager"
	ifaceConnectionContext   = "org.ofono.ConnectionContext"
	ifaceVoiceCallManager    = "org.ofono.VoiceCallManager"
	ifaceVoiceCall           = "org.ofono.VoiceCall"
	ifaceCallVolume          = "org.ofono.CallVolume"
	ifaceCallForwarding      = "org.ofono.CallForwarding"
	ifaceCallSettings        = "org.ofono.CallSettings"
	ifaceMessageWaiting      = "org.ofono.MessageWaiting"
	ifaceIMS                 = "org.ofono.IpMultimediaSystem"
	ifaceNetworkOperator     = "org.ofono.NetworkOperator"
)

// Client exposes typed operations over the single modem at /ril_0.
type Client struct {
	conn *dbus.Conn
	gate *Gate
}

// New creates a modem client on an established system-bus connection.
func New(conn *dbus.Conn, gate *Gate) *Client {
	return &Client{conn: conn, gate: gate}
}

// Gate returns the serialization gate shared by all modem-bound operations.
func (c *Client) Gate() *Gate {
	return c.gate
}

func (c *Client) modemObj() dbus.BusObject {
	return c.conn.Object(ofonoService, modemPath)
}

func (c *Client) pathObj(path string) dbus.BusObject {
	return c.conn.Object(ofonoService, dbus.ObjectPath(path))
}

// getProperties calls <iface>.GetProperties on /ril_0.
func (c *Client) getProperties(iface string) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	if err := c.modemObj().Call(iface+".GetProperties", 0).Store(&props); err != nil {
		return nil, fmt.Errorf("%s.GetProperties: %w", iface, err)
	}
	return props, nil
}

// getPropertiesAt calls <iface>.GetProperties on an arbitrary object path.
func (c *Client) getPropertiesAt(path, iface string) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	if err := c.pathObj(path).Call(iface+".GetProperties", 0).Store(&props); err != nil {
		return nil, fmt.Errorf("%s.GetProperties on %s: %w", iface, path, err)
	}
	return props, nil
}

// setProperty calls <iface>.SetProperty on /ril_0 under the gate.
func (c *Client) setProperty(iface, name string, value interface{}) error {
	return c.gate.Do(func() error {
		call := c.modemObj().Call(iface+".SetProperty", 0, name, dbus.MakeVariant(value))
		if call.Err != nil {
			return fmt.Errorf("%s.SetProperty %s: %w", iface, name, call.Err)
		}
		return nil
	})
}

// setPropertyAt calls <iface>.SetProperty on an arbitrary object path under
// the gate.
func (c *Client) setPropertyAt(path, iface, name string, value interface{}) error {
	return c.gate.Do(func() error {
		call := c.pathObj(path).Call(iface+".SetProperty", 0, name, dbus.MakeVariant(value))
		if call.Err != nil {
			return fmt.Errorf("%s.SetProperty %s on %s: %w", iface, name, path, call.Err)
		}
		return nil
	})
}

// SendAT sends a raw AT command through ofono's vendor passthrough and
// returns the response text. Guarded.
func (c *Client) SendAT(cmd string) (string, error) {
	var result string
	err := c.gate.Do(func() error {
		if err := c.modemObj().Call(ifaceModem+".SendAtcmd", 0, cmd).Store(&result); err != nil {
			return fmt.Errorf("SendAtcmd %q: %w", cmd, err)
		}
		return nil
	})
	return result, err
}

// SimInfo merges SimManager and MessageManager properties.
type SimInfo struct {
	Present            bool     `json:"present"`
	ICCID              string   `json:"iccid"`
	IMSI               string   `json:"imsi"`
	PhoneNumbers       []string `json:"phone_numbers"`
	SmsCenter          string   `json:"sms_center"`
	MCC                string   `json:"mcc"`
	MNC                string   `json:"mnc"`
	PinRequired        string   `json:"pin_required"`
	PreferredLanguages []string `json:"preferred_languages"`
}

// SimInfo reads the combined SIM view. Unguarded.
func (c *Client) SimInfo() (SimInfo, error) {
	simProps, err := c.getProperties(ifaceSimManager)
	if err != nil {
		return SimInfo{}, err
	}
	msgProps, err := c.getProperties(ifaceMessageManager)
	if err != nil {
		return SimInfo{}, err
	}

	return SimInfo{
		Present:            propBool(simProps, "Present"),
		ICCID:              propString(simProps, "CardIdentifier"),
		IMSI:               propString(simProps, "SubscriberIdentity"),
		PhoneNumbers:       propStrings(simProps, "SubscriberNumbers"),
		SmsCenter:          propString(msgProps, "ServiceCenterAddress"),
		MCC:                propString(simProps, "MobileCountryCode"),
		MNC:                propString(simProps, "MobileNetworkCode"),
		PinRequired:        propStringDefault(simProps, "PinRequired", "none"),
		PreferredLanguages: propStrings(simProps, "PreferredLanguages"),
	}, nil
}

// NetworkInfo is the registration + radio preference snapshot.
type NetworkInfo struct {
	OperatorName         string `json:"operator_name"`
	RegistrationStatus   string `json:"registration_status"`
	TechnologyPreference string `json:"technology_preference"`
	SignalStrength       uint8  `json:"signal_strength"`
	MCC                  string `json:"mcc,omitempty"`
	MNC                  string `json:"mnc,omitempty"`
}

// NetworkInfo reads NetworkRegistration + RadioSettings. Unguarded.
func (c *Client) NetworkInfo() (NetworkInfo, error) {
	netProps, err := c.getProperties(ifaceNetworkRegistration)
	if err != nil {
		return NetworkInfo{}, err
	}
	radioProps, err := c.getProperties(ifaceRadioSettings)
	if err != nil {
		return NetworkInfo{}, err
	}

	return NetworkInfo{
		OperatorName:         propString(netProps, "Name"),
		RegistrationStatus:   propStringDefault(netProps, "Status", "unknown"),
		TechnologyPreference: propString(radioProps, "TechnologyPreference"),
		SignalStrength:       propUint8(netProps, "Strength"),
		MCC:                  propString(netProps, "MobileCountryCode"),
		MNC:                  propString(netProps, "MobileNetworkCode"),
	}, nil
}

// RegistrationStatus returns just NetworkRegistration.Status. Unguarded.
func (c *Client) RegistrationStatus() (string, error) {
	props, err := c.getProperties(ifaceNetworkRegistration)
	if err != nil {
		return "unknown", err
	}
	return propStringDefault(props, "Status", "unknown"), nil
}

// SignalStrength returns the 0..100 registration strength. Unguarded.
func (c *Client) SignalStrength() (uint8, error) {
	props, err := c.getProperties(ifaceNetworkRegistration)
	if err != nil {
		return 0, err
	}
	return propUint8(props, "Strength"), nil
}

// DeviceInfo is the Modem interface identity snapshot.
type DeviceInfo struct {
	IMEI         string `json:"imei"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Revision     string `json:"revision,omitempty"`
	Online       bool   `json:"online"`
	Powered      bool   `json:"powered"`
}

// DeviceInfo reads the Modem identity properties. Unguarded.
func (c *Client) DeviceInfo() (DeviceInfo, error) {
	props, err := c.getProperties(ifaceModem)
	if err != nil {
		return DeviceInfo{}, err
	}

	return DeviceInfo{
		IMEI:         propString(props, "Serial"),
		Manufacturer: propString(props, "Manufacturer"),
		Model:        propString(props, "Model"),
		Revision:     propString(props, "Revision"),
		Online:       propBool(props, "Online"),
		Powered:      propBool(props, "Powered"),
	}, nil
}

// AirplaneMode reports the radio power state. enabled == !Online.
type AirplaneMode struct {
	Enabled bool `json:"enabled"`
	Powered bool `json:"powered"`
	Online  bool `json:"online"`
}

// AirplaneMode reads the Modem power/online state. Unguarded.
func (c *Client) AirplaneMode() (AirplaneMode, error) {
	props, err := c.getProperties(ifaceModem)
	if err != nil {
		return AirplaneMode{}, err
	}

	online := propBool(props, "Online")
	return AirplaneMode{
		Enabled: !online,
		Powered: propBool(props, "Powered"),
		Online:  online,
	}, nil
}

// SetAirplaneMode toggles the radio by driving Modem.Online. Guarded.
func (c *Client) SetAirplaneMode(enabled bool) error {
	return c.setProperty(ifaceModem, "Online", !enabled)
}

// ServingCell is the NetworkMonitor snapshot.
type ServingCell struct {
	Tech   string `json:"tech"`
	CellID uint32 `json:"cell_id"`
	TAC    uint32 `json:"tac"`
}

// ServingCellInfo queries NetworkMonitor for the serving cell. Guarded —
// the query reaches the radio.
func (c *Client) ServingCellInfo() (ServingCell, error) {
	var info map[string]dbus.Variant
	err := c.gate.Do(func() error {
		call := c.modemObj().Call(ifaceNetworkMonitor+".GetServingCellInformation", 0)
		if call.Err != nil {
			return fmt.Errorf("GetServingCellInformation: %w", call.Err)
		}
		return call.Store(&info)
	})
	if err != nil {
		return ServingCell{}, err
	}

	return ServingCell{
		Tech:   propStringDefault(info, "Technology", "unknown"),
		CellID: propUint32Any(info, "NCellId", "CellId", "NRCellID"),
		TAC:    propUint32Any(info, "TrackingAreaCode"),
	}, nil
}

// SendSMS submits a message through MessageManager and returns the message
// object path. Guarded.
func (c *Client) SendSMS(to, content string) (string, error) {
	var path dbus.ObjectPath
	err := c.gate.Do(func() error {
		if err := c.modemObj().Call(ifaceMessageManager+".SendMessage", 0, to, content).Store(&path); err != nil {
			return fmt.Errorf("SendMessage to %s: %w", to, err)
		}
		return nil
	})
	return string(path), err
}
