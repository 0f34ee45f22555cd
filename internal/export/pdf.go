/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders t on A4 pages with the built-in Helvetica. Text outside cp1252
// is replaced by the translator. Player lines are right-aligned.
func WritePDF(w io.Writer, t Transcript) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(t.Title, true)
	pdf.SetCreator("chatquest", false)
	if !t.Exported.IsZero() {
		pdf.SetCreationDate(t.Exported)
	}
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, tr(t.Title), "", 1, "L", false, 0, "")
	if !t.Exported.IsZero() {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, t.Exported.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	for _, e := range t.Entries {
		align := "L"
		if e.IsPlayer {
			align = "R"
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(int(e.Color.R), int(e.Color.G), int(e.Color.B))
		pdf.CellFormat(0, 5, tr(e.Name), "", 1, align, false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(0, 5.5, tr(e.Text), "", align, false)
		pdf.Ln(2.5)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
