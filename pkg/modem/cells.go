package modem

import (
	"fmt"
	"strconv"
	"strings"
)

// CellInfo is one serving or neighbor cell from engineering-mode output.
// Signal fields carry the raw vendor integers (value × 100); unit
// conversion is the UI's concern.
type CellInfo struct {
	IsServing bool   `json:"is_serving"`
	Tech      string `json:"tech"`
	Band      string `json:"band"`
	ARFCN     string `json:"arfcn"`
	PCI       string `json:"pci"`
	RSRP      string `json:"rsrp"`
	RSRQ      string `json:"rsrq"`
	SINR      string `json:"sinr"`
}

// CellsResult bundles the serving-cell snapshot with the parsed cell list.
type CellsResult struct {
	ServingCell ServingCell `json:"serving_cell"`
	Cells       []CellInfo  `json:"cells"`
}

// cellCommands holds the engineering-mode query pair per technology.
type cellCommands struct {
	primary  string
	neighbor string
}

func cellCommandsFor(tech string) (cellCommands, bool) {
	switch tech {
	case "nr":
		return cellCommands{primary: "AT+SPENGMD=0,14,1", neighbor: "AT+SPENGMD=0,14,2"}, true
	case "lte":
		return cellCommands{primary: "AT+SPENGMD=0,6,0", neighbor: "AT+SPENGMD=0,6,6"}, true
	}
	return cellCommands{}, false
}

// CellInfo queries serving + neighbor cell data for the current technology.
// Both AT sends are guarded individually.
func (c *Client) CellInfo() (CellsResult, error) {
	serving, err := c.ServingCellInfo()
	if err != nil {
		return CellsResult{}, err
	}

	result := CellsResult{ServingCell: serving, Cells: []CellInfo{}}

	cmds, ok := cellCommandsFor(serving.Tech)
	if !ok {
		// Unknown technology: report the serving snapshot only.
		return result, nil
	}

	primaryResp, err := c.SendAT(cmds.primary)
	if err != nil {
		return result, fmt.Errorf("serving cell query: %w", err)
	}
	primary := parsePrimaryCell(serving.Tech, parseATResponse2D(primaryResp))
	if primary.Tech != "" {
		result.Cells = append(result.Cells, primary)
	}

	neighborResp, err := c.SendAT(cmds.neighbor)
	if err != nil {
		return result, fmt.Errorf("neighbor cell query: %w", err)
	}
	result.Cells = append(result.Cells, parseNeighborCells(serving.Tech, parseATResponse2D(neighborResp))...)

	return result, nil
}

// parseATResponse2D splits engineering-mode output into rows and fields.
// A bare '-' separates rows unless it directly follows a ',' (then it is a
// numeric sign); a double '--' collapses to a literal '-' inside the next
// row. Trailing "OK" and all CR/LF are stripped first.
func parseATResponse2D(input string) [][]string {
	cleaned := strings.TrimSpace(input)
	for strings.HasSuffix(cleaned, "OK") {
		cleaned = strings.TrimSuffix(cleaned, "OK")
	}
	cleaned = strings.ReplaceAll(cleaned, "\r", "")
	cleaned = strings.ReplaceAll(cleaned, "\n", "")

	var result [][]string
	var current strings.Builder
	runes := []rune(cleaned)
	var prev rune

	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if ch == '-' && prev != ',' {
			if current.Len() > 0 {
				fields := strings.Split(strings.TrimSpace(current.String()), ",")
				result = append(result, fields)
				current.Reset()
			}
			if i+1 < len(runes) && runes[i+1] == '-' {
				current.WriteRune('-')
				i++
				prev = '-'
				continue
			}
		} else {
			current.WriteRune(ch)
		}
		prev = ch
	}

	if current.Len() > 0 {
		result = append(result, strings.Split(current.String(), ","))
	}

	if result == nil {
		return [][]string{}
	}
	return result
}

// Field layout of AT+SPENGMD serving rows. NR carries SINR at index 15,
// LTE at 33.
const (
	nrServingMinFields  = 16
	lteServingMinFields = 34
)

func rowField(rows [][]string, i int) []string {
	if i < len(rows) {
		return rows[i]
	}
	return nil
}

func firstField(fields []string) string {
	if len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func fieldAt(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// parsePrimaryCell extracts the serving cell from engineering-mode rows.
func parsePrimaryCell(tech string, rows [][]string) CellInfo {
	cell := CellInfo{IsServing: true}

	switch tech {
	case "nr":
		if len(rows) < nrServingMinFields {
			return cell
		}
		cell.Tech = tech
		rawBand := strings.Join(rowField(rows, 0), ",")
		if rawBand != "" && rawBand != "0" {
			cell.Band = "n" + rawBand
		} else {
			cell.Band = rawBand
		}
		cell.ARFCN = strings.Join(rowField(rows, 1), ",")
		cell.PCI = firstField(rowField(rows, 2))
		cell.RSRP = firstField(rowField(rows, 3))
		cell.RSRQ = firstField(rowField(rows, 4))
		cell.SINR = firstField(rowField(rows, 15))
	case "lte":
		if len(rows) < lteServingMinFields {
			return cell
		}
		cell.Tech = tech
		rawBand := strings.Join(rowField(rows, 0), ",")
		if rawBand != "" && rawBand != "0" {
			cell.Band = "B" + rawBand
		} else {
			cell.Band = rawBand
		}
		cell.ARFCN = strings.Join(rowField(rows, 1), ",")
		cell.PCI = strings.Join(rowField(rows, 2), ",")
		cell.RSRP = firstField(rowField(rows, 3))
		cell.RSRQ = firstField(rowField(rows, 4))
		cell.SINR = firstField(rowField(rows, 33))
	}

	return cell
}

// parseNeighborCells extracts the neighbor list. The NR layout is columnar
// (row N holds field N of every neighbor); the LTE layout is one row per
// neighbor. Scanning stops at the first (arfcn, pci) == (0, 0) pair.
func parseNeighborCells(tech string, rows [][]string) []CellInfo {
	result := []CellInfo{}

	switch tech {
	case "nr":
		if len(rows) == 0 {
			return result
		}
		count := len(rows[0])
		for i := 0; i < count; i++ {
			if len(rows) < 6 {
				break
			}

			arfcn := fieldAt(rowField(rows, 1), i)
			pci := fieldAt(rowField(rows, 2), i)
			if arfcn == "" {
				arfcn = "0"
			}
			if pci == "" {
				pci = "0"
			}
			if arfcn == "0" && pci == "0" {
				break
			}

			band := fieldAt(rowField(rows, 0), i)
			if band == "" || band == "0" {
				if num, err := strconv.ParseUint(arfcn, 10, 32); err == nil {
					band = arfcnToNrBand(uint32(num))
				} else {
					band = ""
				}
			}

			result = append(result, CellInfo{
				Tech:  tech,
				Band:  band,
				ARFCN: arfcn,
				PCI:   pci,
				RSRP:  fieldAt(rowField(rows, 3), i),
				RSRQ:  fieldAt(rowField(rows, 4), i),
				SINR:  fieldAt(rowField(rows, 5), i),
			})
		}
	case "lte":
		for _, row := range rows {
			if len(row) < 4 {
				continue
			}
			if row[0] == "0" && row[1] == "0" {
				break
			}

			band := ""
			if len(row) > 12 {
				band = row[12]
			}
			if band == "" || band == "0" {
				if num, err := strconv.ParseUint(row[0], 10, 32); err == nil {
					band = earfcnToLteBand(uint32(num))
				} else {
					band = ""
				}
			}

			result = append(result, CellInfo{
				Tech:  tech,
				Band:  band,
				ARFCN: row[0],
				PCI:   row[1],
				RSRP:  row[2],
				RSRQ:  row[3],
				SINR:  "-", // LTE neighbors do not report SINR
			})
		}
	}

	return result
}

// arfcnToNrBand derives the NR band from an NR-ARFCN per 3GPP TS 38.104.
// The n77 range overlaps n78 and is reported as n78.
func arfcnToNrBand(arfcn uint32) string {
	switch {
	case arfcn >= 422000 && arfcn <= 434000:
		return "n1"
	case arfcn >= 361000 && arfcn <= 376000:
		return "n3"
	case arfcn >= 185000 && arfcn <= 192000:
		return "n8"
	case arfcn >= 151600 && arfcn <= 160600:
		return "n28"
	case arfcn >= 499200 && arfcn <= 537999:
		return "n41"
	case arfcn >= 620000 && arfcn <= 680000:
		return "n78"
	case arfcn >= 693334 && arfcn <= 733333:
		return "n79"
	}
	return ""
}

// earfcnToLteBand derives the LTE band from an EARFCN per 3GPP TS 36.101.
func earfcnToLteBand(earfcn uint32) string {
	switch {
	case earfcn <= 599:
		return "B1"
	case earfcn >= 1200 && earfcn <= 1949:
		return "B3"
	case earfcn >= 2400 && earfcn <= 2649:
		return "B5"
	case earfcn >= 2750 && earfcn <= 3449:
		return "B7"
	case earfcn >= 3450 && earfcn <= 3799:
		return "B8"
	case earfcn >= 6150 && earfcn <= 6449:
		return "B20"
	case earfcn >= 9210 && earfcn <= 9659:
		return "B28"
	case earfcn >= 37750 && earfcn <= 38249:
		return "B38"
	case earfcn >= 38250 && earfcn <= 38649:
		return "B39"
	case earfcn >= 38650 && earfcn <= 39649:
		return "B40"
	case earfcn >= 39650 && earfcn <= 41589:
		return "B41"
	}
	return ""
}
