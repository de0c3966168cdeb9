package modem

import "fmt"

// RadioMode is the user-facing radio technology selection.
type RadioMode string

const (
	RadioAuto    RadioMode = "auto"
	RadioLteOnly RadioMode = "lte"
	RadioNrOnly  RadioMode = "nr"
)

// ofonoValue maps the mode to ofono's TechnologyPreference string.
func (m RadioMode) ofonoValue() (string, error) {
	switch m {
	case RadioAuto:
		return "NR 5G/LTE auto", nil
	case RadioLteOnly:
		return "LTE only", nil
	case RadioNrOnly:
		return "NR 5G only", nil
	}
	return "", fmt.Errorf("invalid radio mode: %q", string(m))
}

// radioModeFromOfono parses ofono's TechnologyPreference string; firmware
// reports several spellings of the auto preference.
func radioModeFromOfono(value string) (RadioMode, bool) {
	switch value {
	case "NR 5G/LTE auto", "LTE/GSM/WCDMA auto", "NR 5G/LTE/GSM/WCDMA auto":
		return RadioAuto, true
	case "LTE only":
		return RadioLteOnly, true
	case "NR 5G only":
		return RadioNrOnly, true
	}
	return "", false
}

// RadioModeInfo pairs the mapped mode with the raw preference string.
type RadioModeInfo struct {
	Mode                 string `json:"mode"`
	TechnologyPreference string `json:"technology_preference"`
}

// RadioMode reads RadioSettings.TechnologyPreference. Guarded — the read
// reaches the radio on this firmware.
func (c *Client) RadioMode() (RadioModeInfo, error) {
	var info RadioModeInfo
	err := c.gate.Do(func() error {
		props, err := c.getProperties(ifaceRadioSettings)
		if err != nil {
			return err
		}
		pref := propStringDefault(props, "TechnologyPreference", "unknown")
		info.TechnologyPreference = pref
		if mode, ok := radioModeFromOfono(pref); ok {
			info.Mode = string(mode)
		} else {
			info.Mode = "unknown"
		}
		return nil
	})
	return info, err
}

// SetRadioMode writes RadioSettings.TechnologyPreference. Guarded.
func (c *Client) SetRadioMode(mode RadioMode) error {
	value, err := mode.ofonoValue()
	if err != nil {
		return err
	}
	return c.setProperty(ifaceRadioSettings, "TechnologyPreference", value)
}
