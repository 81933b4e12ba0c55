// Package export flattens device records into tabular form and writes them
// as CSV, XLSX and sensor pairing sheets.
package export

import (
	"fmt"
	"strconv"

	"panel_exporter/internal/protocol"
	"panel_exporter/internal/scan"
)

// Identity columns are always present, in this order.
var identityColumns = []string{
	"DeviceID",
	"DeviceType",
	"RFID",
	"SerialNumber",
	"DeviceName",
	"DeviceLabel",
	"ProductModel",
}

// Diagnostic columns appear after the identity block, each only when at
// least one device in the batch populated it.
var commonColumns = []string{
	protocol.FieldBatteryVoltage,
	protocol.FieldRFValidity,
	protocol.FieldCommStatus,
	protocol.FieldGatewayPER,
	protocol.FieldRSSI,
	protocol.FieldLQI,
	protocol.FieldPERMax,
	protocol.FieldRSSIMin,
	protocol.FieldLQIMin,
	protocol.FieldSignalQuality,
}

var heatTagColumns = []string{
	protocol.FieldAlarmType,
	protocol.FieldAlarmLevel,
	protocol.FieldOperationMode,
}

// enumFormats maps diagnostic fields to their presentation decoders. The
// stored values keep the raw register codes; decoding happens only here.
var enumFormats = map[string]func(int64) string{
	protocol.FieldCommStatus:    protocol.FormatCommStatus,
	protocol.FieldRFValidity:    protocol.FormatRFValidity,
	protocol.FieldAlarmType:     protocol.FormatAlarmType,
	protocol.FieldAlarmLevel:    protocol.FormatAlarmLevel,
	protocol.FieldOperationMode: protocol.FormatOperationMode,
}

// Table is the flat render of one export batch. Rows align with Header;
// cells of columns a device never populated are empty strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// BuildTable flattens the records into one table. The header is the ordered
// union of populated columns: identity fields first, then common
// diagnostics, then device specific fields.
func BuildTable(records []scan.DeviceRecord) Table {
	flat := make([]map[string]string, 0, len(records))
	populated := map[string]bool{}

	for _, record := range records {
		cells := map[string]string{
			"DeviceID":     strconv.FormatUint(uint64(record.DeviceID), 10),
			"DeviceType":   string(record.DeviceType),
			"RFID":         record.RFID,
			"SerialNumber": record.SerialNumber,
			"DeviceName":   record.DeviceName,
			"DeviceLabel":  record.DeviceLabel,
			"ProductModel": record.ProductModel,
		}
		for name, value := range record.Diagnostics {
			cells[name] = formatCell(name, value)
			populated[name] = true
		}
		if len(record.Diagnostics) > 0 {
			cells[protocol.FieldSignalQuality] = string(record.SignalQuality())
			populated[protocol.FieldSignalQuality] = true
		}
		flat = append(flat, cells)
	}

	header := append([]string{}, identityColumns...)
	for _, name := range commonColumns {
		if populated[name] {
			header = append(header, name)
		}
	}
	for _, name := range heatTagColumns {
		if populated[name] {
			header = append(header, name)
		}
	}

	rows := make([][]string, 0, len(flat))
	for _, cells := range flat {
		row := make([]string, len(header))
		for i, name := range header {
			row[i] = cells[name]
		}
		rows = append(rows, row)
	}
	return Table{Header: header, Rows: rows}
}

// formatCell renders one diagnostic value. Enum-coded fields go through
// their human-readable decoder; everything else renders numerically, with
// missing values as "N/A".
func formatCell(name string, value scan.Value) string {
	format, ok := enumFormats[name]
	if !ok {
		return value.String()
	}
	if value.IsMissing() {
		return value.String()
	}
	code, ok := value.Int()
	if !ok {
		return fmt.Sprintf("Invalid (%s)", value.String())
	}
	return format(code)
}
