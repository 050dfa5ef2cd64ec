package main

import (
	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"github.com/spf13/cobra"
)

func (a *application) newVersionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Inspect version history",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list [document id]",
		Short: "List a document's versions in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(func(rt *runtime) error {
				versions, err := rt.docs.ListVersions(cmd.Context(), docs.DocumentID(args[0]))
				if err != nil {
					return err
				}
				printVersions(cmd, versions)
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "show [version id]",
		Short: "Print the content of one version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(func(rt *runtime) error {
				version, err := rt.docs.GetVersion(cmd.Context(), docs.VersionID(args[0]))
				if err != nil {
					return err
				}
				cmd.Printf("%s\n", version.Content)
				return nil
			})
		},
	})
	return cmd
}
