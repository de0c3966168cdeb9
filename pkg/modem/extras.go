package modem

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
)

// QosInfo is the dedicated-bearer QoS readback from AT+CGEQOSRDP.
type QosInfo struct {
	QCI         uint8  `json:"qci"`
	DlSpeed     uint32 `json:"dl_speed"`
	UlSpeed     uint32 `json:"ul_speed"`
	RawResponse string `json:"raw_response,omitempty"`
}

// QoS queries the active bearer QoS parameters. Guarded AT send.
func (c *Client) QoS() (QosInfo, error) {
	resp, err := c.SendAT("AT+CGEQOSRDP")
	if err != nil {
		return QosInfo{}, err
	}
	return parseQosResponse(resp), nil
}

// parseQosResponse parses
// "+CGEQOSRDP: <cid>,<QCI>,<DL_GBR>,<UL_GBR>,<DL_MBR>,<UL_MBR>,<DL_AMBR>,<UL_AMBR>".
// GBR wins when non-zero, then MBR, then AMBR.
func parseQosResponse(response string) QosInfo {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "+CGEQOSRDP:") {
			continue
		}
		parts := strings.Split(strings.TrimSpace(strings.TrimPrefix(line, "+CGEQOSRDP:")), ",")
		if len(parts) < 8 {
			continue
		}

		num := func(i int) uint32 {
			n, err := strconv.ParseUint(strings.TrimSpace(parts[i]), 10, 32)
			if err != nil {
				return 0
			}
			return uint32(n)
		}

		pick := func(gbr, mbr, ambr uint32) uint32 {
			if gbr > 0 {
				return gbr
			}
			if mbr > 0 {
				return mbr
			}
			return ambr
		}

		return QosInfo{
			QCI:     uint8(num(1)),
			DlSpeed: pick(num(2), num(4), num(6)),
			UlSpeed: pick(num(3), num(5), num(7)),
		}
	}

	return QosInfo{RawResponse: response}
}

// NitzInfo is the network clock readback. available=false means the parse
// produced nothing usable.
type NitzInfo struct {
	Available bool   `json:"available"`
	Time      string `json:"time"`
	Timezone  string `json:"timezone"`
	Raw       string `json:"raw,omitempty"`
}

// NITZ reads the network-synchronized clock via AT+CCLK?. Guarded.
func (c *Client) NITZ() (NitzInfo, error) {
	resp, err := c.SendAT("AT+CCLK?")
	if err != nil {
		return NitzInfo{}, err
	}
	return parseCclkResponse(resp), nil
}

// parseCclkResponse parses `+CCLK: "yy/MM/dd,hh:mm:ss±zz"`.
func parseCclkResponse(response string) NitzInfo {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "+CCLK:") {
			continue
		}
		raw := strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "+CCLK:")), "\"")
		if raw == "" {
			break
		}

		tz := ""
		timePart := raw
		if idx := strings.LastIndexAny(raw, "+-"); idx > 0 {
			timePart = raw[:idx]
			tz = raw[idx:]
		}

		return NitzInfo{
			Available: true,
			Time:      timePart,
			Timezone:  tz,
			Raw:       raw,
		}
	}

	return NitzInfo{Raw: strings.TrimSpace(response)}
}

// ImeisvInfo carries the IMEISV readback.
type ImeisvInfo struct {
	Available bool   `json:"available"`
	IMEISV    string `json:"imeisv"`
}

// IMEISV queries the software-version-qualified IMEI via AT+CGSN=2.
// Guarded.
func (c *Client) IMEISV() (ImeisvInfo, error) {
	resp, err := c.SendAT("AT+CGSN=2")
	if err != nil {
		return ImeisvInfo{}, err
	}
	return parseImeisvResponse(resp), nil
}

func parseImeisvResponse(response string) ImeisvInfo {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "OK" {
			continue
		}
		line = strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "+CGSN:")), "\"")
		if line == "" {
			continue
		}
		// IMEISV is 16 digits; plain IMEI responses are accepted too.
		digits := true
		for _, r := range line {
			if r < '0' || r > '9' {
				digits = false
				break
			}
		}
		if digits {
			return ImeisvInfo{Available: true, IMEISV: line}
		}
	}
	return ImeisvInfo{}
}

// SIM slot switch values as programmed by the vendor tool. The slot-2 value
// is carried from the firmware scripts and has not been confirmed against
// device documentation; the raw value is always surfaced so operators can
// verify.
const (
	simSlot1Value = 66051
	simSlot2Value = 66306
)

// SimSlotInfo is the active-slot readback.
type SimSlotInfo struct {
	ActiveSlot uint8  `json:"active_slot"`
	RawValue   string `json:"raw_value"`
}

// SimSlot reads the active SIM slot via AT+SPCONFIGSIMSLOT?. Guarded.
func (c *Client) SimSlot() (SimSlotInfo, error) {
	resp, err := c.SendAT("AT+SPCONFIGSIMSLOT?")
	if err != nil {
		return SimSlotInfo{}, err
	}
	return parseSimSlotResponse(resp), nil
}

func parseSimSlotResponse(response string) SimSlotInfo {
	info := SimSlotInfo{RawValue: strings.TrimSpace(response)}
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "+SPCONFIGSIMSLOT:"))
		n, err := strconv.ParseUint(line, 10, 32)
		if err != nil {
			continue
		}
		info.RawValue = line
		switch n {
		case simSlot1Value:
			info.ActiveSlot = 1
		case simSlot2Value:
			info.ActiveSlot = 2
		}
		return info
	}
	return info
}

// SwitchSimSlot selects SIM slot 1 or 2. Guarded.
func (c *Client) SwitchSimSlot(slot uint8) error {
	var value int
	switch slot {
	case 1:
		value = simSlot1Value
	case 2:
		value = simSlot2Value
	default:
		return fmt.Errorf("invalid SIM slot: %d (valid: 1, 2)", slot)
	}
	_, err := c.SendAT(fmt.Sprintf("AT+SPCONFIGSIMSLOT=%d", value))
	return err
}

// CellLockStatus reports the forced-frequency state.
type CellLockStatus struct {
	Locked      bool   `json:"locked"`
	RawResponse string `json:"raw_response"`
}

// CellLock reads the forced-frequency state via AT+SPFORCEFRQ?. Guarded.
func (c *Client) CellLock() (CellLockStatus, error) {
	resp, err := c.SendAT("AT+SPFORCEFRQ?")
	if err != nil {
		return CellLockStatus{}, err
	}

	trimmed := strings.TrimSpace(resp)
	status := CellLockStatus{RawResponse: trimmed}
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "+SPFORCEFRQ:") {
			continue
		}
		fields := strings.Split(strings.TrimPrefix(line, "+SPFORCEFRQ:"), ",")
		if len(fields) > 0 {
			if mode, err := strconv.Atoi(strings.TrimSpace(fields[0])); err == nil && mode != 0 {
				status.Locked = true
			}
		}
	}
	return status, nil
}

// SetCellLock forces the radio onto one carrier frequency (and optionally
// one PCI). tech selects the encoding: 1 for LTE EARFCN, 2 for NR ARFCN.
func (c *Client) SetCellLock(tech string, arfcn uint32, pci *uint32) error {
	var kind int
	switch tech {
	case "lte":
		kind = 1
	case "nr":
		kind = 2
	default:
		return fmt.Errorf("invalid cell lock tech: %q (valid: lte, nr)", tech)
	}

	cmd := fmt.Sprintf("AT+SPFORCEFRQ=%d,%d", kind, arfcn)
	if pci != nil {
		cmd = fmt.Sprintf("%s,%d", cmd, *pci)
	}
	_, err := c.SendAT(cmd)
	return err
}

// UnlockAllCells clears any forced frequency. Guarded.
func (c *Client) UnlockAllCells() error {
	_, err := c.SendAT("AT+SPFORCEFRQ=0")
	return err
}

// Operator is one entry from NetworkRegistration.GetOperators/Scan.
type Operator struct {
	Path         string   `json:"path"`
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	MCC          string   `json:"mcc"`
	MNC          string   `json:"mnc"`
	Technologies []string `json:"technologies"`
}

func (c *Client) operatorCall(method string) ([]Operator, error) {
	var raw []struct {
		Path  dbus.ObjectPath
		Props map[string]dbus.Variant
	}
	err := c.gate.Do(func() error {
		if err := c.modemObj().Call(ifaceNetworkRegistration+"."+method, 0).Store(&raw); err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ops := make([]Operator, 0, len(raw))
	for _, op := range raw {
		ops = append(ops, Operator{
			Path:         string(op.Path),
			Name:         propString(op.Props, "Name"),
			Status:       propString(op.Props, "Status"),
			MCC:          propString(op.Props, "MobileCountryCode"),
			MNC:          propString(op.Props, "MobileNetworkCode"),
			Technologies: propStrings(op.Props, "Technologies"),
		})
	}
	return ops, nil
}

// Operators returns the cached operator list. Guarded.
func (c *Client) Operators() ([]Operator, error) {
	return c.operatorCall("GetOperators")
}

// ScanOperators runs a full network scan; this takes tens of seconds on
// air. Guarded for its whole duration.
func (c *Client) ScanOperators() ([]Operator, error) {
	return c.operatorCall("Scan")
}

// RegisterAuto returns the modem to automatic operator selection. Guarded.
func (c *Client) RegisterAuto() error {
	return c.gate.Do(func() error {
		call := c.modemObj().Call(ifaceNetworkRegistration+".Register", 0)
		if call.Err != nil {
			return fmt.Errorf("Register: %w", call.Err)
		}
		return nil
	})
}

// RegisterManual registers on one operator by its object path. Guarded.
func (c *Client) RegisterManual(operatorPath string) error {
	return c.gate.Do(func() error {
		call := c.pathObj(operatorPath).Call(ifaceNetworkOperator+".Register", 0)
		if call.Err != nil {
			return fmt.Errorf("Register on %s: %w", operatorPath, call.Err)
		}
		return nil
	})
}

// CallVolumeInfo mirrors the CallVolume interface properties.
type CallVolumeInfo struct {
	Muted            bool  `json:"muted"`
	SpeakerVolume    uint8 `json:"speaker_volume"`
	MicrophoneVolume uint8 `json:"microphone_volume"`
}

// CallVolume reads the CallVolume properties. Guarded.
func (c *Client) CallVolume() (CallVolumeInfo, error) {
	var info CallVolumeInfo
	err := c.gate.Do(func() error {
		props, err := c.getProperties(ifaceCallVolume)
		if err != nil {
			return err
		}
		info = CallVolumeInfo{
			Muted:            propBool(props, "Muted"),
			SpeakerVolume:    propUint8(props, "SpeakerVolume"),
			MicrophoneVolume: propUint8(props, "MicrophoneVolume"),
		}
		return nil
	})
	return info, err
}

// SetCallVolume writes one CallVolume property. Guarded.
func (c *Client) SetCallVolume(name string, value interface{}) error {
	switch name {
	case "Muted", "SpeakerVolume", "MicrophoneVolume":
	default:
		return fmt.Errorf("invalid call volume property: %q", name)
	}
	return c.setProperty(ifaceCallVolume, name, value)
}

// forwardingProps maps API forward types to CallForwarding property names.
var forwardingProps = map[string]string{
	"unconditional": "VoiceUnconditional",
	"busy":          "VoiceBusy",
	"noreply":       "VoiceNoReply",
	"unreachable":   "VoiceNotReachable",
}

// CallForwardingInfo is the per-condition forwarding number set; empty
// string means not forwarded.
type CallForwardingInfo struct {
	Unconditional string `json:"unconditional"`
	Busy          string `json:"busy"`
	NoReply       string `json:"noreply"`
	Unreachable   string `json:"unreachable"`
}

// CallForwarding reads all voice forwarding rules. Guarded.
func (c *Client) CallForwarding() (CallForwardingInfo, error) {
	var info CallForwardingInfo
	err := c.gate.Do(func() error {
		props, err := c.getProperties(ifaceCallForwarding)
		if err != nil {
			return err
		}
		info = CallForwardingInfo{
			Unconditional: propString(props, "VoiceUnconditional"),
			Busy:          propString(props, "VoiceBusy"),
			NoReply:       propString(props, "VoiceNoReply"),
			Unreachable:   propString(props, "VoiceNotReachable"),
		}
		return nil
	})
	return info, err
}

// SetCallForwarding sets or clears one forwarding rule; an empty number
// clears it. Guarded.
func (c *Client) SetCallForwarding(forwardType, number string) error {
	prop, ok := forwardingProps[forwardType]
	if !ok {
		return fmt.Errorf("invalid forward type: %q (valid: unconditional, busy, noreply, unreachable)", forwardType)
	}
	return c.setProperty(ifaceCallForwarding, prop, number)
}

// CallSettingsInfo mirrors the CallSettings supplementary-service state.
type CallSettingsInfo struct {
	VoiceCallWaiting    string `json:"voice_call_waiting"`
	CallingLinePresent  string `json:"calling_line_presentation"`
	CallingLineRestrict string `json:"calling_line_restriction"`
	HideCallerID        string `json:"hide_caller_id"`
}

// CallSettings reads the CallSettings properties. Guarded.
func (c *Client) CallSettings() (CallSettingsInfo, error) {
	var info CallSettingsInfo
	err := c.gate.Do(func() error {
		props, err := c.getProperties(ifaceCallSettings)
		if err != nil {
			return err
		}
		info = CallSettingsInfo{
			VoiceCallWaiting:    propString(props, "VoiceCallWaiting"),
			CallingLinePresent:  propString(props, "CallingLinePresentation"),
			CallingLineRestrict: propString(props, "CallingLineRestriction"),
			HideCallerID:        propString(props, "HideCallerId"),
		}
		return nil
	})
	return info, err
}

// SetCallWaiting toggles voice call waiting. Guarded.
func (c *Client) SetCallWaiting(enabled bool) error {
	value := "disabled"
	if enabled {
		value = "enabled"
	}
	return c.setProperty(ifaceCallSettings, "VoiceCallWaiting", value)
}

// IMSStatus mirrors the IpMultimediaSystem registration state.
type IMSStatus struct {
	Registered   bool `json:"registered"`
	VoiceCapable bool `json:"voice_capable"`
	SmsCapable   bool `json:"sms_capable"`
}

// IMSStatus reads the IMS/VoLTE registration state. Unguarded property
// read.
func (c *Client) IMSStatus() (IMSStatus, error) {
	props, err := c.getProperties(ifaceIMS)
	if err != nil {
		return IMSStatus{}, err
	}
	return IMSStatus{
		Registered:   propBool(props, "Registered"),
		VoiceCapable: propBool(props, "VoiceCapable"),
		SmsCapable:   propBool(props, "SmsCapable"),
	}, nil
}

// VoicemailStatus mirrors the MessageWaiting indicator.
type VoicemailStatus struct {
	Waiting       bool   `json:"waiting"`
	MessageCount  uint8  `json:"message_count"`
	MailboxNumber string `json:"mailbox_number"`
}

// VoicemailStatus reads the voicemail waiting indicator. Unguarded.
func (c *Client) VoicemailStatus() (VoicemailStatus, error) {
	props, err := c.getProperties(ifaceMessageWaiting)
	if err != nil {
		return VoicemailStatus{}, err
	}
	return VoicemailStatus{
		Waiting:       propBool(props, "VoicemailWaiting"),
		MessageCount:  propUint8(props, "VoicemailMessageCount"),
		MailboxNumber: propString(props, "VoicemailMailboxNumber"),
	}, nil
}

// CellLocationInfo is the parameter set a geolocation API needs for one
// cell.
type CellLocationInfo struct {
	MCC            string  `json:"mcc"`
	MNC            string  `json:"mnc"`
	LAC            uint32  `json:"lac"`
	CID            uint32  `json:"cid"`
	SignalStrength int32   `json:"signal_strength"`
	RadioType      string  `json:"radio_type"`
	ARFCN          *uint32 `json:"arfcn,omitempty"`
	PCI            *uint32 `json:"pci,omitempty"`
}

// CellLocation aggregates serving + neighbor parameters for cell-based
// geolocation.
type CellLocation struct {
	Available     bool               `json:"available"`
	CellInfo      *CellLocationInfo  `json:"cell_info,omitempty"`
	NeighborCells []CellLocationInfo `json:"neighbor_cells"`
	UsageHint     string             `json:"usage_hint"`
}

// CellLocation merges SIM identity and cell measurements into geolocation
// query parameters.
func (c *Client) CellLocation() (CellLocation, error) {
	result := CellLocation{
		NeighborCells: []CellLocationInfo{},
		UsageHint:     "Submit cell_info to a geolocation API (Google Geolocation, OpenCellID) to resolve coordinates",
	}

	sim, err := c.SimInfo()
	if err != nil {
		return result, err
	}
	serving, err := c.ServingCellInfo()
	if err != nil {
		return result, err
	}
	if serving.CellID == 0 || sim.MCC == "" {
		return result, nil
	}

	cells, err := c.CellInfo()
	if err != nil {
		return result, err
	}

	info := CellLocationInfo{
		MCC:       sim.MCC,
		MNC:       sim.MNC,
		LAC:       serving.TAC,
		CID:       serving.CellID,
		RadioType: serving.Tech,
	}
	for _, cell := range cells.Cells {
		loc := cellToLocation(sim.MCC, sim.MNC, serving, cell)
		if cell.IsServing {
			if loc.ARFCN != nil {
				info.ARFCN = loc.ARFCN
				info.PCI = loc.PCI
				info.SignalStrength = loc.SignalStrength
			}
			continue
		}
		result.NeighborCells = append(result.NeighborCells, loc)
	}

	result.Available = true
	result.CellInfo = &info
	return result, nil
}

func cellToLocation(mcc, mnc string, serving ServingCell, cell CellInfo) CellLocationInfo {
	loc := CellLocationInfo{
		MCC:       mcc,
		MNC:       mnc,
		LAC:       serving.TAC,
		RadioType: cell.Tech,
	}
	if n, err := strconv.ParseUint(cell.ARFCN, 10, 32); err == nil {
		v := uint32(n)
		loc.ARFCN = &v
	}
	if n, err := strconv.ParseUint(cell.PCI, 10, 32); err == nil {
		v := uint32(n)
		loc.PCI = &v
	}
	// RSRP arrives ×100; geolocation APIs want plain dBm.
	if n, err := strconv.ParseInt(cell.RSRP, 10, 32); err == nil {
		loc.SignalStrength = int32(n / 100)
	}
	return loc
}
