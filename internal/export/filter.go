package export

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"panel_exporter/internal/scan"
)

// Filter is a compiled row filter. A nil filter matches every record.
type Filter struct {
	program    *vm.Program
	expression string
}

// CompileFilter compiles a boolean expression evaluated once per device
// record. An empty expression yields a nil filter.
func CompileFilter(expression string) (*Filter, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, nil
	}
	program, err := expr.Compile(trimmed, expr.Env(map[string]interface{}{}), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile export filter %q: %w", trimmed, err)
	}
	return &Filter{program: program, expression: trimmed}, nil
}

// Match evaluates the filter against one record. Non-boolean results are an
// error so silently dropped rows cannot hide a broken expression.
func (f *Filter) Match(record scan.DeviceRecord) (bool, error) {
	if f == nil || f.program == nil {
		return true, nil
	}
	result, err := vm.Run(f.program, filterEnv(record))
	if err != nil {
		return false, fmt.Errorf("run export filter %q: %w", f.expression, err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("export filter %q returned %T, want bool", f.expression, result)
	}
	return matched, nil
}

// filterEnv exposes a record to the expression. Diagnostic fields live in
// the Diagnostics map under their column names because those contain
// spaces; missing values appear as nil.
func filterEnv(record scan.DeviceRecord) map[string]interface{} {
	diagnostics := make(map[string]interface{}, len(record.Diagnostics))
	for name, value := range record.Diagnostics {
		if number, ok := value.Float(); ok {
			diagnostics[name] = number
			continue
		}
		if value.IsMissing() {
			diagnostics[name] = nil
			continue
		}
		diagnostics[name] = value.String()
	}
	return map[string]interface{}{
		"DeviceID":      int(record.DeviceID),
		"DeviceType":    string(record.DeviceType),
		"RFID":          record.RFID,
		"SerialNumber":  record.SerialNumber,
		"DeviceName":    record.DeviceName,
		"DeviceLabel":   record.DeviceLabel,
		"ProductModel":  record.ProductModel,
		"SignalQuality": string(record.SignalQuality()),
		"Diagnostics":   diagnostics,
	}
}
