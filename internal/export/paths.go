package export

// enhancedSuffix marks exports that include the enhanced diagnostics
// columns so plain and enhanced runs never overwrite each other.
const enhancedSuffix = "_ED"

// CSVPath derives the CSV file name from the export base path.
func CSVPath(base string, enhanced bool) string {
	return base + diagnosticsSuffix(enhanced) + ".csv"
}

// XLSXPath derives the workbook file name from the export base path.
func XLSXPath(base string, enhanced bool) string {
	return base + diagnosticsSuffix(enhanced) + ".xlsx"
}

// PairingPath derives the sensor pairing sheet file name.
func PairingPath(base string) string {
	return base + "_SPS.xlsx"
}

func diagnosticsSuffix(enhanced bool) string {
	if enhanced {
		return enhancedSuffix
	}
	return ""
}
