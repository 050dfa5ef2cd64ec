package main

import (
	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"github.com/spf13/cobra"
)

func (a *application) newSuggestionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggestions",
		Short: "Review suggestions",
	}
	cmd.AddCommand(
		a.newSuggestionsListCommand(),
		a.newSuggestionsResolveCommand("accept", "Accept a suggestion, making its content current"),
		a.newSuggestionsResolveCommand("reject", "Reject a suggestion"),
	)
	return cmd
}

func (a *application) newSuggestionsListCommand() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list [document id]",
		Short: "List a document's suggestions, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(func(rt *runtime) error {
				suggestions, err := rt.docs.ListSuggestions(cmd.Context(), docs.DocumentID(args[0]), docs.SuggestionStatus(status))
				if err != nil {
					return err
				}
				printSuggestions(cmd, suggestions)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, accepted, rejected)")
	return cmd
}

func (a *application) newSuggestionsResolveCommand(action, short string) *cobra.Command {
	var reviewer string
	cmd := &cobra.Command{
		Use:   action + " [suggestion id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suggestionID := docs.SuggestionID(args[0])
			reviewerID := docs.UserID(reviewer)
			return a.withRuntime(func(rt *runtime) error {
				if action == "reject" {
					if err := rt.docs.Reject(cmd.Context(), suggestionID, reviewerID); err != nil {
						return err
					}
					cmd.Printf("rejected %s\n", suggestionID)
					return nil
				}
				version, err := rt.docs.Accept(cmd.Context(), suggestionID, reviewerID)
				if err != nil {
					return err
				}
				printVersions(cmd, []docs.Version{version})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "Reviewing user id (must own the document)")
	_ = cmd.MarkFlagRequired("reviewer")
	return cmd
}
