package pipeline

import (
	"fmt"
	"os"

	"quotematch/internal"
)

// ExtractFromInput runs one extractor directly, for ad-hoc matching
// of a file or pasted text without going through the mail store.
func ExtractFromInput(inputType, input string) ([]internal.LineItem, error) {
	switch inputType {
	case "email_text":
		return itemsFromText(input), nil
	case "email_table":
		return itemsFromHTMLTables(input), nil
	case "xlsx":
		blob, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		return itemsFromXLSX(blob)
	case "pdf":
		blob, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		return itemsFromPDF(blob)
	default:
		return nil, fmt.Errorf("unsupported input type: %s", inputType)
	}
}
