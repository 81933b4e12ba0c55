package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"panel_exporter/internal/scan"
)

const pairingSheet = "Sensor Pairing Sheet"

const pairingNotFound = "Not Found"

var pairingHeader = []string{
	"Sensor ID", "RFID", "Serial Number", "Device Type", "Device Name", "Device Label",
	"Equipement", "Sensor Position", "Measured Point", "Cubicle ID", "Cubicle Type",
	"Feeder ID", "Circuit Breaker ID", "Drawer ID",
}

// pairingID accepts the commissioning file's identifiers whether they were
// written as JSON strings or numbers.
type pairingID string

func (p *pairingID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = pairingID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = pairingID(n.String())
	return nil
}

// PairingSensor is one planned sensor from the commissioning JSON file.
type PairingSensor struct {
	SlaveID          pairingID `json:"slaveId"`
	DeviceAddress    pairingID `json:"deviceAddress"`
	Equipement       string    `json:"Equipement"`
	SensorPosition   string    `json:"SensorPosition"`
	MeasuredPoint    string    `json:"MeasuredPoint"`
	CubicleID        string    `json:"CubicleId"`
	CubicleType      string    `json:"CubicleType"`
	FeederID         string    `json:"FeederId"`
	CircuitBreakerID string    `json:"CircuitBreakerId"`
	DrawerID         string    `json:"DrawerId"`
}

type pairingFile struct {
	Sensors []PairingSensor `json:"sensors"`
}

// LoadPairingSensors reads the sensors array from a commissioning JSON file.
func LoadPairingSensors(path string) ([]PairingSensor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pairing file %s: %w", path, err)
	}
	var file pairingFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse pairing file %s: %w", path, err)
	}
	return file.Sensors, nil
}

// BuildPairingTable merges planned sensors with the exported records.
// Records are matched by RFID first, then by device ID; sensors without a
// matching device keep their planning metadata and mark the device fields
// "Not Found".
func BuildPairingTable(sensors []PairingSensor, records []scan.DeviceRecord) Table {
	byRFID := map[string]scan.DeviceRecord{}
	byID := map[string]scan.DeviceRecord{}
	for _, record := range records {
		if record.RFID != "" {
			byRFID[record.RFID] = record
		}
		byID[fmt.Sprintf("%d", record.DeviceID)] = record
	}

	rows := make([][]string, 0, len(sensors))
	for _, sensor := range sensors {
		deviceType, serial, name, label := pairingNotFound, pairingNotFound, pairingNotFound, pairingNotFound
		record, ok := byRFID[string(sensor.DeviceAddress)]
		if !ok {
			record, ok = byID[string(sensor.SlaveID)]
		}
		if ok {
			deviceType = string(record.DeviceType)
			serial = record.SerialNumber
			name = record.DeviceName
			label = record.DeviceLabel
		}
		rows = append(rows, []string{
			string(sensor.SlaveID), string(sensor.DeviceAddress), serial, deviceType, name, label,
			sensor.Equipement, sensor.SensorPosition, sensor.MeasuredPoint, sensor.CubicleID, sensor.CubicleType,
			sensor.FeederID, sensor.CircuitBreakerID, sensor.DrawerID,
		})
	}
	return Table{Header: append([]string{}, pairingHeader...), Rows: rows}
}

// WritePairingSheet writes the merged pairing table as a workbook.
func WritePairingSheet(path string, table Table) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", pairingSheet); err != nil {
		return fmt.Errorf("name pairing sheet: %w", err)
	}
	header := make([]interface{}, len(table.Header))
	for i, name := range table.Header {
		header[i] = name
	}
	if err := book.SetSheetRow(pairingSheet, "A1", &header); err != nil {
		return fmt.Errorf("write pairing header: %w", err)
	}
	for i, row := range table.Rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		anchor, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(pairingSheet, anchor, &cells); err != nil {
			return fmt.Errorf("write pairing row %d: %w", i+2, err)
		}
	}
	if err := book.SaveAs(path); err != nil {
		return fmt.Errorf("save pairing sheet %s: %w", path, err)
	}
	return nil
}
