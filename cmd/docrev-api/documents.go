package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"github.com/spf13/cobra"
)

func (a *application) newDocumentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Manage documents",
	}
	cmd.AddCommand(
		a.newDocumentsListCommand(),
		a.newDocumentsShowCommand(),
		a.newDocumentsCreateCommand(),
		a.newDocumentsDeleteCommand(),
	)
	return cmd
}

func (a *application) newDocumentsListCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(func(rt *runtime) error {
				documents, err := rt.docs.ListDocuments(cmd.Context(), docs.UserID(owner))
				if err != nil {
					return err
				}
				printDocuments(cmd, documents)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Only list documents owned by this user")
	return cmd
}

func (a *application) newDocumentsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [document id]",
		Short: "Show a document and its current content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(func(rt *runtime) error {
				view, err := rt.docs.GetDocument(cmd.Context(), docs.DocumentID(args[0]))
				if err != nil {
					return err
				}
				printDocuments(cmd, []docs.Document{view.Document})
				if view.CurrentVersion != nil {
					cmd.Printf("\n%s\n", view.CurrentVersion.Content)
				}
				return nil
			})
		},
	}
}

func (a *application) newDocumentsCreateCommand() *cobra.Command {
	var (
		owner       string
		title       string
		contentFile string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a document with its initial version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var content string
			if contentFile != "" {
				raw, err := os.ReadFile(contentFile)
				if err != nil {
					return fmt.Errorf("read content file: %w", err)
				}
				content = string(raw)
			}
			return a.withRuntime(func(rt *runtime) error {
				view, err := rt.docs.Create(cmd.Context(), docs.CreateDocumentRequest{
					OwnerID: docs.UserID(owner),
					Title:   title,
					Content: content,
				})
				if err != nil {
					return err
				}
				printDocuments(cmd, []docs.Document{view.Document})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner user id")
	cmd.Flags().StringVar(&title, "title", "", "Document title")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "File holding the initial content")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (a *application) newDocumentsDeleteCommand() *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "delete [document id]",
		Short: "Delete a document with its versions and suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(func(rt *runtime) error {
				err := rt.docs.Delete(cmd.Context(), docs.DocumentID(args[0]), docs.UserID(caller))
				if errors.Is(err, docs.ErrForbidden) {
					return fmt.Errorf("%s does not own document %s", caller, args[0])
				}
				if err != nil {
					return err
				}
				cmd.Printf("deleted %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "User id performing the delete")
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}
