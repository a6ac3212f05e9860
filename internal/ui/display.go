package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"gpuselect/internal/device"
)

var statusHeader = []string{"ID", "NAME", "UTIL", "MEM", "PROCS", "PSTATE", "POWER", "TEMP"}

func PrintStatus(w io.Writer, records []device.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No visible devices")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(statusHeader)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(statusRows(records))
	table.Render()
}

func PrintStatusJSON(w io.Writer, records []device.Record) error {
	if records == nil {
		records = []device.Record{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

// PrintSelection writes the bound value, or a shell assignment for eval.
func PrintSelection(w io.Writer, key, value string, export bool) {
	if export {
		fmt.Fprintf(w, "export %s=%s\n", key, strconv.Quote(value))
		return
	}
	fmt.Fprintln(w, value)
}

func PrintError(err error) {
	content := fmt.Sprintf("✗ Error: %v", err)
	fmt.Fprintln(os.Stderr, errorBoxStyle.Render(content))
}

func statusRows(records []device.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.ID),
			r.Name,
			fmt.Sprintf("%d%%", r.Util),
			fmt.Sprintf("%d%%", r.MemUtil),
			formatProcesses(r.Processes),
			fmt.Sprintf("P%d", r.PerfState),
			FormatPower(r.PowerUsage),
			fmt.Sprintf("%d°C", r.Temperature),
		})
	}
	return rows
}

func formatProcesses(n int) string {
	if n == device.UnknownProcesses {
		return "n/a"
	}
	return strconv.Itoa(n)
}

// FormatPower rounds half up to a tenth of a watt; humanize alone truncates.
func FormatPower(milliwatts int) string {
	watts := math.Round(float64(milliwatts)/100) / 10
	return humanize.SIWithDigits(watts, 1, "W")
}
