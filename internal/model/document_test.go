package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentGroup_TotalSizeAndNames(t *testing.T) {
	g := DocumentGroup{
		Company: "Acme",
		Files: []FileRef{
			{Path: "/src/q1/Acme___Q1.pdf", RelPath: "q1/Acme___Q1.pdf", Size: 100},
			{Path: "/src/Acme___Q2.pdf", RelPath: "Acme___Q2.pdf", Size: 250},
		},
	}

	assert.Equal(t, int64(350), g.TotalSize())
	assert.Equal(t, []string{"Acme___Q1.pdf", "Acme___Q2.pdf"}, g.FileNames())
}

func TestClassificationResult_FileCount(t *testing.T) {
	r := NewClassificationResult()
	r.Deliverable["Acme"] = DocumentGroup{Company: "Acme", Files: []FileRef{{Path: "a"}, {Path: "b"}}}
	r.Oversize["Beta"] = DocumentGroup{Company: "Beta", Files: []FileRef{{Path: "c"}}}
	r.UnknownCompany["Gamma"] = []FileRef{{Path: "d"}}
	r.Unmatched = []FileRef{{Path: "e"}, {Path: "f"}}

	assert.Equal(t, 6, r.FileCount())
	assert.Equal(t, 2, r.DeliverableFileCount())
	assert.Equal(t, []string{"Acme"}, SortedKeys(r.Deliverable))
}

func TestSummary_Add(t *testing.T) {
	var s Summary
	s.Add(SendOutcome{Company: "A", Success: true})
	s.Add(SendOutcome{Company: "B", Success: true, ArchiveErr: errors.New("disk full")})
	s.Add(SendOutcome{Company: "C", Category: FailureNetwork})
	s.Add(SendOutcome{Company: "D", Category: FailureSize})

	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.Oversize)
	assert.Equal(t, 1, s.ArchiveWarnings)
	assert.Len(t, s.Outcomes, 4)
}

func TestSummary_Skip(t *testing.T) {
	var s Summary
	s.Add(SendOutcome{Company: "A", Success: true})
	s.Skip(SendOutcome{Company: "B", Category: FailureSize})

	assert.Equal(t, 1, s.Succeeded)
	assert.Zero(t, s.Failed, "skipped groups were never attempted")
	assert.Equal(t, 1, s.Oversize)
	assert.Len(t, s.Outcomes, 2)
}
