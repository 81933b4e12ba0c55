package protocol

// DeviceType identifies the wireless sensor family behind a device ID.
type DeviceType string

const (
	DeviceCL110   DeviceType = "CL110"
	DeviceTH110   DeviceType = "TH110"
	DeviceHeatTag DeviceType = "HeatTag"
	DeviceUnknown DeviceType = "Unknown"
)

// Classify maps a commercial reference string to the device type. Anything
// outside the three known references is Unknown and skips diagnostics.
func Classify(commercialReference string) DeviceType {
	switch commercialReference {
	case "EMS59443":
		return DeviceCL110
	case "EMS59440":
		return DeviceTH110
	case "SMT10020":
		return DeviceHeatTag
	default:
		return DeviceUnknown
	}
}

// DecodeKind selects the decoder applied to a diagnostic register block.
type DecodeKind int

const (
	KindFloat32 DecodeKind = iota
	KindUInt16
	KindBitmap
)

// IdentityField describes one identity register block read during profiling.
type IdentityField struct {
	Name    string
	Address uint16
	Count   uint16
}

// Identity register blocks shared by all panel server devices. Each block is
// read independently; a failed read blanks only its own field.
var (
	RegCommercialReference = IdentityField{Name: "Commercial Reference", Address: 31060, Count: 16}
	RegRFID                = IdentityField{Name: "RFID", Address: 31026, Count: 6}
	RegSerialNumber        = IdentityField{Name: "SerialNumber", Address: 31088, Count: 10}
	RegDeviceName          = IdentityField{Name: "DeviceName", Address: 31000, Count: 10}
	RegDeviceLabel         = IdentityField{Name: "DeviceLabel", Address: 31010, Count: 3}
	RegProductModel        = IdentityField{Name: "ProductModel", Address: 31106, Count: 8}
)

// DiagnosticField describes one entry of the enhanced diagnostics plan.
type DiagnosticField struct {
	Name    string
	Address uint16
	Count   uint16
	Kind    DecodeKind
}

// Diagnostic field names referenced by the quality derivation and exports.
const (
	FieldRFValidity     = "RF Communication Validity"
	FieldCommStatus     = "Communication Status"
	FieldGatewayPER     = "Gateway PER"
	FieldRSSI           = "RSSI"
	FieldLQI            = "LQI"
	FieldPERMax         = "PER Max"
	FieldRSSIMin        = "RSSI Min"
	FieldLQIMin         = "LQI Min"
	FieldBatteryVoltage = "Battery Voltage"
	FieldAlarmType      = "HeatTag Alarm Type"
	FieldAlarmLevel     = "HeatTag Alarm Level"
	FieldOperationMode  = "HeatTag Operation Mode"
	FieldSignalQuality  = "Signal Quality"
)

var commonDiagnostics = []DiagnosticField{
	{Name: FieldRFValidity, Address: 31144, Count: 1, Kind: KindBitmap},
	{Name: FieldCommStatus, Address: 31145, Count: 1, Kind: KindBitmap},
	{Name: FieldGatewayPER, Address: 31151, Count: 2, Kind: KindFloat32},
	{Name: FieldRSSI, Address: 31153, Count: 2, Kind: KindFloat32},
	{Name: FieldLQI, Address: 31155, Count: 1, Kind: KindUInt16},
	{Name: FieldPERMax, Address: 31156, Count: 2, Kind: KindFloat32},
	{Name: FieldRSSIMin, Address: 31158, Count: 2, Kind: KindFloat32},
	{Name: FieldLQIMin, Address: 31160, Count: 1, Kind: KindUInt16},
}

var cl110Diagnostics = []DiagnosticField{
	{Name: FieldBatteryVoltage, Address: 3315, Count: 2, Kind: KindFloat32},
}

var heatTagDiagnostics = []DiagnosticField{
	{Name: FieldAlarmType, Address: 3321, Count: 1, Kind: KindUInt16},
	{Name: FieldAlarmLevel, Address: 3322, Count: 1, Kind: KindUInt16},
	{Name: FieldOperationMode, Address: 31175, Count: 1, Kind: KindUInt16},
}

// DiagnosticPlan returns the enhanced diagnostic register set for a device
// type. Unknown devices have no plan.
func DiagnosticPlan(t DeviceType) []DiagnosticField {
	switch t {
	case DeviceCL110:
		return append(append([]DiagnosticField{}, commonDiagnostics...), cl110Diagnostics...)
	case DeviceTH110:
		return append([]DiagnosticField{}, commonDiagnostics...)
	case DeviceHeatTag:
		return append(append([]DiagnosticField{}, commonDiagnostics...), heatTagDiagnostics...)
	default:
		return nil
	}
}
