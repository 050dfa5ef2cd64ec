package main

import (
	"time"

	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.SeparateFooter = false
	tw.Style().Options.SeparateHeader = false
	tw.Style().Options.SeparateRows = false
	return tw
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339)
}

func optional(value *string) string {
	if value == nil {
		return "-"
	}
	return *value
}

func printDocuments(cmd *cobra.Command, documents []docs.Document) {
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "TITLE", "OWNER", "CURRENT VERSION", "CREATED AT"})
	for _, document := range documents {
		tw.AppendRow(table.Row{
			document.ID,
			document.Title,
			document.OwnerID,
			optional(document.CurrentVersionID),
			formatTime(document.CreatedAt),
		})
	}
	cmd.Printf("%s\n", tw.Render())
}

func printVersions(cmd *cobra.Command, versions []docs.Version) {
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "NUMBER", "AUTHOR", "SUGGESTION", "CREATED AT"})
	for _, version := range versions {
		tw.AppendRow(table.Row{
			version.ID,
			version.Number,
			version.AuthorID,
			optional(version.SuggestionID),
			formatTime(version.CreatedAt),
		})
	}
	cmd.Printf("%s\n", tw.Render())
}

func printSuggestions(cmd *cobra.Command, suggestions []docs.Suggestion) {
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "TITLE", "AUTHOR", "STATUS", "BASE VERSION", "CREATED AT"})
	for _, suggestion := range suggestions {
		tw.AppendRow(table.Row{
			suggestion.ID,
			suggestion.Title,
			suggestion.AuthorID,
			string(suggestion.Status),
			suggestion.BaseVersionID,
			formatTime(suggestion.CreatedAt),
		})
	}
	cmd.Printf("%s\n", tw.Render())
}
