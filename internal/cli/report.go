package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Veraticus/pdfmail/internal/model"
)

// previewLimit is how many entries of a long list are shown.
const previewLimit = 3

// ScanReport holds what RenderScan needs besides the classification itself.
type ScanReport struct {
	Result    model.ClassificationResult
	Companies map[string]model.Company
	Source    string
	Limit     int64
}

// RenderScan formats a classification result for the terminal.
func RenderScan(r ScanReport) string {
	var b strings.Builder

	res := r.Result
	fmt.Fprintf(&b, "%s %s: %d PDF files\n", FolderIcon, r.Source, res.FileCount())

	if len(res.Deliverable) == 0 {
		b.WriteString(FormatWarning("No files are ready to send.") + "\n")
	} else {
		var lines []string
		for _, name := range model.SortedKeys(res.Deliverable) {
			g := res.Deliverable[name]
			c := r.Companies[name]
			lines = append(lines, fmt.Sprintf("%s (%d files, %s)",
				BoldStyle.Render(name), len(g.Files), humanize.IBytes(uint64(g.TotalSize()))))
			lines = append(lines, SubtleStyle.Render(fmt.Sprintf("  to: %s  template: %s",
				strings.Join(c.Emails, ", "), c.Template)))
			for _, f := range g.Files {
				lines = append(lines, fmt.Sprintf("  %s %s", FileIcon, f.RelPath))
			}
		}
		title := fmt.Sprintf("Ready to send: %d companies, %d files", len(res.Deliverable), res.DeliverableFileCount())
		b.WriteString(RenderBox(title, strings.Join(lines, "\n")) + "\n")
	}

	if len(res.Oversize) > 0 {
		b.WriteString(FormatWarning(fmt.Sprintf("%d companies exceed the attachment limit:", len(res.Oversize))) + "\n")
		for _, name := range model.SortedKeys(res.Oversize) {
			g := res.Oversize[name]
			fmt.Fprintf(&b, "  %s: %s > %s (%d files)\n", name,
				humanize.IBytes(uint64(g.TotalSize())), humanize.IBytes(uint64(r.Limit)), len(g.Files))
		}
		b.WriteString(SubtleStyle.Render("  Split or compress these files and send them again.") + "\n")
	}

	if len(res.Unmatched) > 0 {
		b.WriteString(FormatWarning(fmt.Sprintf("%d files do not match the file name pattern:", len(res.Unmatched))) + "\n")
		names := make([]string, 0, len(res.Unmatched))
		for _, f := range res.Unmatched {
			names = append(names, f.RelPath)
		}
		writePreview(&b, names)
		b.WriteString(SubtleStyle.Render("  Rename them like Company___title.pdf.") + "\n")
	}

	if len(res.UnknownCompany) > 0 {
		b.WriteString(FormatWarning(fmt.Sprintf("%d companies are not registered:", len(res.UnknownCompany))) + "\n")
		names := model.SortedKeys(res.UnknownCompany)
		for i, name := range names {
			names[i] = fmt.Sprintf("%s (%d files)", name, len(res.UnknownCompany[name]))
		}
		writePreview(&b, names)
		b.WriteString(SubtleStyle.Render("  Add them to companies in the settings file or fix the file names.") + "\n")
	}

	return b.String()
}

func writePreview(b *strings.Builder, items []string) {
	for i, item := range items {
		if i == previewLimit {
			fmt.Fprintf(b, "  ... and %d more\n", len(items)-previewLimit)
			return
		}
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

// RenderSummary formats the result of a send batch.
func RenderSummary(s model.Summary) string {
	var lines []string
	lines = append(lines, FormatSuccess(fmt.Sprintf("Sent: %d", s.Succeeded)))
	if s.Failed > 0 {
		lines = append(lines, FormatError(fmt.Sprintf("Failed: %d", s.Failed)))
	}
	if s.Oversize > 0 {
		lines = append(lines, FormatWarning(fmt.Sprintf("Skipped as too large: %d", s.Oversize)))
	}
	if s.ArchiveWarnings > 0 {
		lines = append(lines, FormatWarning(fmt.Sprintf("Sent but not moved: %d", s.ArchiveWarnings)))
	}

	for _, o := range s.Outcomes {
		switch {
		case !o.Success:
			lines = append(lines, fmt.Sprintf("  %s %s [%s]: %v", ErrorIcon, o.Company, o.Category, o.Err))
		case o.ArchiveErr != nil:
			lines = append(lines, fmt.Sprintf("  %s %s: %v", WarningIcon, o.Company, o.ArchiveErr))
		default:
			lines = append(lines, SubtleStyle.Render(fmt.Sprintf("  %s %s (%d files, %s)",
				SuccessIcon, o.Company, len(o.Files), o.Elapsed.Round(time.Millisecond))))
		}
	}

	return RenderBox("Batch "+s.BatchID, strings.Join(lines, "\n"))
}
