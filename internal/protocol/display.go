package protocol

import "fmt"

// Human-readable renderings of the enum-coded diagnostic registers. These
// apply at presentation time only; raw diagnostics keep the register codes.

// FormatCommStatus renders the Communication Status register.
func FormatCommStatus(code int64) string {
	switch code {
	case 0:
		return "Com. loss"
	case 1:
		return "OK"
	default:
		return fmt.Sprintf("Unknown (%d)", code)
	}
}

// FormatRFValidity renders the RF Communication Validity register.
func FormatRFValidity(code int64) string {
	switch code {
	case 0:
		return "Invalid"
	case 1:
		return "Valid"
	default:
		return fmt.Sprintf("Unknown (%d)", code)
	}
}

// FormatAlarmType renders the HeatTag alarm type. Code 99 is the test alarm
// and takes precedence over the 94-190 high level band it falls into.
func FormatAlarmType(code int64) string {
	switch {
	case code == 0:
		return "No alarm"
	case code >= 1 && code <= 15:
		return "Low level alarm"
	case code >= 16 && code <= 93:
		return "Medium level alarm"
	case code == 99:
		return "Test alarm"
	case code >= 94 && code <= 190:
		return "High level alarm"
	default:
		return fmt.Sprintf("Unknown (%d)", code)
	}
}

// FormatAlarmLevel renders the HeatTag alarm level.
func FormatAlarmLevel(code int64) string {
	switch code {
	case 0:
		return "No alarm"
	case 1:
		return "Low level alarm"
	case 2:
		return "Medium level alarm"
	case 3:
		return "High level alarm"
	default:
		return fmt.Sprintf("Unknown (%d)", code)
	}
}

// FormatOperationMode renders the HeatTag operation mode.
func FormatOperationMode(code int64) string {
	switch code {
	case 0:
		return "Test mode (0-30 min after power on)"
	case 1:
		return "Auto-learning mode (30 min-8 hrs after power on)"
	case 2:
		return "Normal operation mode (>8 hrs after power on)"
	default:
		return fmt.Sprintf("Unknown (%d)", code)
	}
}
