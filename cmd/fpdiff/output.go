package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	incremental "github.com/Thereisnospon/gradle/pkg"
	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

var (
	addedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	modifiedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	titleStyle    = lipgloss.NewStyle().Bold(true)
)

func changeStyle(change incremental.ChangeType) lipgloss.Style {
	switch change {
	case incremental.ChangeAdded:
		return addedStyle
	case incremental.ChangeRemoved:
		return removedStyle
	default:
		return modifiedStyle
	}
}

// writeStructured encodes v as json or yaml
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	return table
}

// printStatus writes the changes of one comparison
func printStatus(w io.Writer, format string, result *incremental.StatusResult) error {
	if format != "human" {
		return writeStructured(w, format, result)
	}

	if !result.HasChanges() {
		fmt.Fprintf(w, "%s: no changes\n", titleStyle.Render(result.Title))
		return nil
	}

	fmt.Fprintf(w, "%s: %d changes\n", titleStyle.Render(result.Title), result.TotalChanges())
	table := newTable(w, "Change", "Type", "Path")
	for _, change := range result.Changes {
		fileType := change.CurrentType
		if change.Change == incremental.ChangeRemoved {
			fileType = change.PreviousType
		}
		table.Append([]string{
			changeStyle(change.Change).Render(change.Change.String()),
			fileType.String(),
			change.Path,
		})
	}
	table.Render()

	if result.Truncated {
		fmt.Fprintln(w, "(more changes not shown)")
	}
	return nil
}

type fingerprintEntryView struct {
	Key            string `json:"key" yaml:"key"`
	NormalizedPath string `json:"normalized_path" yaml:"normalized_path"`
	Type           string `json:"type" yaml:"type"`
	Hash           string `json:"hash" yaml:"hash"`
}

type rootHashView struct {
	Root string `json:"root" yaml:"root"`
	Hash string `json:"hash" yaml:"hash"`
}

type fingerprintView struct {
	Strategy string                 `json:"strategy" yaml:"strategy"`
	Hash     string                 `json:"hash" yaml:"hash"`
	Roots    []rootHashView         `json:"roots" yaml:"roots"`
	Entries  []fingerprintEntryView `json:"entries" yaml:"entries"`
}

func newFingerprintView(fingerprint *incremental.FileCollectionFingerprint, algorithm *incremental.HashAlgorithm) (*fingerprintView, error) {
	hash, err := fingerprint.Hash(algorithm)
	if err != nil {
		return nil, err
	}
	view := &fingerprintView{
		Strategy: string(fingerprint.Strategy()),
		Hash:     hash.String(),
		Roots:    make([]rootHashView, 0),
		Entries:  make([]fingerprintEntryView, 0, fingerprint.Len()),
	}
	for _, root := range fingerprint.RootHashes() {
		view.Roots = append(view.Roots, rootHashView{Root: root.Root, Hash: root.Hash.String()})
	}
	for _, entry := range fingerprint.Entries() {
		view.Entries = append(view.Entries, fingerprintEntryView{
			Key:            entry.Key,
			NormalizedPath: entry.Fingerprint.NormalizedPath,
			Type:           entry.Fingerprint.Type.String(),
			Hash:           entry.Fingerprint.NormalizedContentHash.String(),
		})
	}
	return view, nil
}

func printFingerprint(w io.Writer, format string, view *fingerprintView) error {
	if format != "human" {
		return writeStructured(w, format, view)
	}

	fmt.Fprintf(w, "%s fingerprint %s (%d entries)\n", titleStyle.Render(view.Strategy), view.Hash, len(view.Entries))
	table := newTable(w, "Type", "Hash", "Normalized Path", "Path")
	for _, entry := range view.Entries {
		table.Append([]string{entry.Type, shortHash(entry.Hash), entry.NormalizedPath, entry.Key})
	}
	table.Render()
	return nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// fingerprintListing renders one line per entry for unified diffs
func fingerprintListing(fingerprint *incremental.FileCollectionFingerprint) string {
	if fingerprint == nil {
		return ""
	}
	var b strings.Builder
	for _, entry := range fingerprint.Entries() {
		fmt.Fprintf(&b, "%s %s %s\n", entry.Fingerprint.NormalizedContentHash, entry.Fingerprint.Type, entry.Key)
	}
	return b.String()
}

// unifiedDiff renders the entry listings of previous and current as a unified diff
func unifiedDiff(name string, previous, current *incremental.FileCollectionFingerprint) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(fingerprintListing(previous)),
		B:        difflib.SplitLines(fingerprintListing(current)),
		FromFile: name + " (previous)",
		ToFile:   name + " (current)",
		Context:  1,
	}
	return difflib.GetUnifiedDiffString(diff)
}
