package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ubermorgenland/openapi-mcp-server/pkg/openapi2mcp"
	"github.com/ubermorgenland/openapi-mcp-server/pkg/store"
)

func newSpecsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "specs",
		Short: "Manage OpenAPI documents stored in PostgreSQL (DATABASE_URL)",
	}
	cmd.AddCommand(
		newSpecsImportCmd(opts),
		newSpecsListCmd(opts),
		newSpecsSetActiveCmd(opts, "activate", true),
		newSpecsSetActiveCmd(opts, "deactivate", false),
		newSpecsDeleteCmd(opts),
	)
	return cmd
}

// withStore opens the spec store, runs migrations and hands it to fn.
func (o *rootOptions) withStore(ctx context.Context, fn func(*store.Store) error) error {
	logger, err := o.logger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	st, err := store.Open(ctx, os.Getenv("DATABASE_URL"), logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	return fn(st)
}

func newSpecsImportCmd(opts *rootOptions) *cobra.Command {
	var (
		name     string
		inactive bool
	)

	cmd := &cobra.Command{
		Use:     "import <file>",
		Short:   "Validate a document and store it",
		Example: "  openapi-mcp specs import petstore.yaml --name petstore",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			return opts.withStore(cmd.Context(), func(st *store.Store) error {
				if _, err := openapi2mcp.NewLoader(nil).LoadFromData(cmd.Context(), content, nil); err != nil {
					return fmt.Errorf("refusing to import %s: %w", path, err)
				}

				spec := store.NewSpec(name, content)
				spec.Active = !inactive
				if err := st.Create(cmd.Context(), spec); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %q (id %d)\n", spec.DisplayTitle(), spec.Name, spec.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "name to store the spec under (default: file name without extension)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "store the spec deactivated")
	return cmd
}

func newSpecsListCmd(opts *rootOptions) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored specs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(st *store.Store) error {
				specs, err := st.List(cmd.Context(), activeOnly)
				if err != nil {
					return err
				}
				if len(specs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No specs stored.")
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tTITLE\tVERSION\tFORMAT\tSIZE\tACTIVE\tUPDATED")
				for _, s := range specs {
					version := "-"
					if s.Version != nil {
						version = *s.Version
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%t\t%s\n",
						s.Name, s.DisplayTitle(), version, s.Format, s.Size, s.Active,
						s.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "only list active specs")
	return cmd
}

func newSpecsSetActiveCmd(opts *rootOptions, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a stored spec",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(st *store.Store) error {
				if err := st.SetActive(cmd.Context(), args[0], active); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Spec %q %sd\n", args[0], use)
				return nil
			})
		},
	}
}

func newSpecsDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored spec",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(st *store.Store) error {
				if err := st.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Spec %q deleted\n", args[0])
				return nil
			})
		},
	}
}
