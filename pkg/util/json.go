package util

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PrintPrettyJSON prints any value with two-space indentation.
func PrintPrettyJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	fmt.Println(buf.String())
	return nil
}
