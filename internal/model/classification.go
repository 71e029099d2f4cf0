package model

import "sort"

// ClassificationResult partitions every discovered PDF into exactly one of
// four buckets.
type ClassificationResult struct {
	// Deliverable groups belong to registered companies and fit the size limit.
	Deliverable map[string]DocumentGroup
	// Oversize groups belong to registered companies but exceed the size limit.
	Oversize map[string]DocumentGroup
	// UnknownCompany is keyed by the extracted identifier.
	UnknownCompany map[string][]FileRef
	// Unmatched files did not match the file name pattern.
	Unmatched []FileRef
}

// NewClassificationResult returns an empty result with initialized maps.
func NewClassificationResult() ClassificationResult {
	return ClassificationResult{
		Deliverable:    make(map[string]DocumentGroup),
		Oversize:       make(map[string]DocumentGroup),
		UnknownCompany: make(map[string][]FileRef),
	}
}

// FileCount returns the number of files across all buckets.
func (r ClassificationResult) FileCount() int {
	n := len(r.Unmatched)
	for _, g := range r.Deliverable {
		n += len(g.Files)
	}
	for _, g := range r.Oversize {
		n += len(g.Files)
	}
	for _, files := range r.UnknownCompany {
		n += len(files)
	}
	return n
}

// DeliverableFileCount returns the number of files that can be sent.
func (r ClassificationResult) DeliverableFileCount() int {
	n := 0
	for _, g := range r.Deliverable {
		n += len(g.Files)
	}
	return n
}

// SortedKeys returns the keys of a company-keyed map in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
