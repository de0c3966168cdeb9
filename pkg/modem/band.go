package modem

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Band selection travels to the firmware as 16-bit masks on AT+SPLBAND.
// LTE masks are linear (bit = band - base); NR masks use vendor-specific
// bit assignments.

const (
	lteFddBase = 1  // B1..B16
	lteTddBase = 33 // B33..B48
)

var nrFddBandBits = map[uint8]uint16{
	1:  0x001,
	2:  0x002,
	3:  0x004,
	5:  0x010,
	7:  0x040,
	8:  0x080,
	28: 0x200,
}

var nrTddBandBits = map[uint8]uint16{
	34: 0x001,
	38: 0x002,
	39: 0x004,
	40: 0x008,
	41: 0x010,
	77: 0x080,
	78: 0x100,
	79: 0x200,
}

// lteBandsToMask encodes a linear-regime band list. Bands outside the
// 16-bit window are silently dropped.
func lteBandsToMask(bands []uint8, base uint8) uint16 {
	var mask uint16
	for _, band := range bands {
		if band < base || band >= base+16 {
			continue
		}
		mask |= 1 << (band - base)
	}
	return mask
}

// lteMaskToBands decodes a linear-regime mask into a sorted band list.
func lteMaskToBands(mask uint16, base uint8) []uint8 {
	bands := []uint8{}
	for i := uint8(0); i < 16; i++ {
		if mask&(1<<i) != 0 {
			bands = append(bands, base+i)
		}
	}
	return bands
}

// nrBandsToMask encodes an NR band list through the vendor bit table.
// Unknown bands are silently dropped.
func nrBandsToMask(bands []uint8, table map[uint8]uint16) uint16 {
	var mask uint16
	for _, band := range bands {
		mask |= table[band]
	}
	return mask
}

// nrMaskToBands decodes a vendor-table mask into a sorted band list.
func nrMaskToBands(mask uint16, table map[uint8]uint16) []uint8 {
	bands := []uint8{}
	for band, bit := range table {
		if mask&bit != 0 {
			bands = append(bands, band)
		}
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i] < bands[j] })
	return bands
}

// splbandFields extracts the comma-separated numbers from a +SPLBAND line.
func splbandFields(response string) []uint16 {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "+SPLBAND:") {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(line, "+SPLBAND:"))
		parts := strings.Split(raw, ",")
		fields := make([]uint16, 0, len(parts))
		for _, part := range parts {
			n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 16)
			if err != nil {
				n = 0
			}
			fields = append(fields, uint16(n))
		}
		return fields
	}
	return nil
}

// parseLteBandMasks parses the AT+SPLBAND=0 response
// "+SPLBAND: 0,<TDD>,0,<FDD>,0" into (fdd, tdd).
func parseLteBandMasks(response string) (uint16, uint16, bool) {
	fields := splbandFields(response)
	if len(fields) < 4 {
		return 0, 0, false
	}
	return fields[3], fields[1], true
}

// parseNrBandMasks parses the AT+SPLBAND=3 response
// "+SPLBAND: <FDD>,0,<TDD>,0" into (fdd, tdd).
func parseNrBandMasks(response string) (uint16, uint16, bool) {
	fields := splbandFields(response)
	if len(fields) < 3 {
		return 0, 0, false
	}
	return fields[0], fields[2], true
}

func buildLteLockCommand(fdd, tdd uint16) string {
	return fmt.Sprintf("AT+SPLBAND=1,0,%d,0,%d,0", tdd, fdd)
}

func buildNrLockCommand(fdd, tdd uint16) string {
	return fmt.Sprintf("AT+SPLBAND=2,%d,0,%d,0", fdd, tdd)
}

// BandLockRequest selects the bands to lock; empty lists clear the lock for
// that regime.
type BandLockRequest struct {
	LteFddBands []uint8 `json:"lte_fdd_bands"`
	LteTddBands []uint8 `json:"lte_tdd_bands"`
	NrFddBands  []uint8 `json:"nr_fdd_bands"`
	NrTddBands  []uint8 `json:"nr_tdd_bands"`
}

// BandLockStatus is the decoded lock state of both regimes.
type BandLockStatus struct {
	Locked      bool    `json:"locked"`
	LteFddBands []uint8 `json:"lte_fdd_bands"`
	LteTddBands []uint8 `json:"lte_tdd_bands"`
	NrFddBands  []uint8 `json:"nr_fdd_bands"`
	NrTddBands  []uint8 `json:"nr_tdd_bands"`
	RawResponse string  `json:"raw_response,omitempty"`
}

// BandLock reads back the current lock masks for LTE and NR. Two guarded
// AT sends.
func (c *Client) BandLock() (BandLockStatus, error) {
	lteResp, err := c.SendAT("AT+SPLBAND=0")
	if err != nil {
		return BandLockStatus{}, err
	}
	nrResp, err := c.SendAT("AT+SPLBAND=3")
	if err != nil {
		return BandLockStatus{}, err
	}

	status := BandLockStatus{
		LteFddBands: []uint8{},
		LteTddBands: []uint8{},
		NrFddBands:  []uint8{},
		NrTddBands:  []uint8{},
		RawResponse: strings.TrimSpace(lteResp + "\n" + nrResp),
	}

	if lteFdd, lteTdd, ok := parseLteBandMasks(lteResp); ok {
		status.LteFddBands = lteMaskToBands(lteFdd, lteFddBase)
		status.LteTddBands = lteMaskToBands(lteTdd, lteTddBase)
	}
	if nrFdd, nrTdd, ok := parseNrBandMasks(nrResp); ok {
		status.NrFddBands = nrMaskToBands(nrFdd, nrFddBandBits)
		status.NrTddBands = nrMaskToBands(nrTdd, nrTddBandBits)
	}

	status.Locked = len(status.LteFddBands)+len(status.LteTddBands)+
		len(status.NrFddBands)+len(status.NrTddBands) > 0

	return status, nil
}

// SetBandLock applies a lock request: LTE first, then NR, each as one
// guarded AT send.
func (c *Client) SetBandLock(req BandLockRequest) error {
	lteCmd := buildLteLockCommand(
		lteBandsToMask(req.LteFddBands, lteFddBase),
		lteBandsToMask(req.LteTddBands, lteTddBase),
	)
	nrCmd := buildNrLockCommand(
		nrBandsToMask(req.NrFddBands, nrFddBandBits),
		nrBandsToMask(req.NrTddBands, nrTddBandBits),
	)

	if _, err := c.SendAT(lteCmd); err != nil {
		return fmt.Errorf("lte band lock: %w", err)
	}
	if _, err := c.SendAT(nrCmd); err != nil {
		return fmt.Errorf("nr band lock: %w", err)
	}
	return nil
}
