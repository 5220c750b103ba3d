package dispatch

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/fabline/fabline/internal/inquiries"
)

// writeInquiryCSV emits one row per part, followed by the attached files.
func writeInquiryCSV(w io.Writer, inq *inquiries.Inquiry) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Inquiry", "Line", "Material", "Thickness", "Grade", "Quantity", "Remarks"}); err != nil {
		return err
	}
	for i, p := range inq.Parts {
		if err := writer.Write([]string{
			inq.InquiryNumber,
			strconv.Itoa(i + 1),
			p.Material,
			p.Thickness,
			p.Grade,
			strconv.Itoa(p.Quantity),
			p.Remarks,
		}); err != nil {
			return err
		}
	}
	if len(inq.Files) > 0 {
		if err := writer.Write(nil); err != nil {
			return err
		}
		if err := writer.Write([]string{"File", "Size", "Content type"}); err != nil {
			return err
		}
		for _, f := range inq.Files {
			if err := writer.Write([]string{f.Name, strconv.FormatInt(f.Size, 10), f.ContentType}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}
