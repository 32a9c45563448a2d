package render

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ValidatePDF checks produced bytes parse as a well-formed PDF and returns
// the page count. Run on every artifact before it leaves the service; a
// renderer bug should fail the job, not ship a corrupt file.
func ValidatePDF(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("validate pdf: empty output")
	}
	pages, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("validate pdf: %w", err)
	}
	if pages < 1 {
		return 0, fmt.Errorf("validate pdf: no pages")
	}
	return pages, nil
}
