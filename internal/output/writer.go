package output

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteJSON writes v as indented JSON to outputPath, or to stdout when
// outputPath is "-".
func WriteJSON(outputPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}

	if outputPath == "-" {
		_, err = os.Stdout.Write(data)
		fmt.Fprintln(os.Stdout)
		return err
	}

	return os.WriteFile(outputPath, data, 0o644)
}
