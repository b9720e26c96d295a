package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockd/core"
)

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load()
			if err != nil {
				return err
			}

			logger, err := newLogger(config.Log)
			if err != nil {
				return err
			}

			// repositories migrate when they are opened
			repo, err := initRepository(cmd.Context(), config.DB, logger)
			if err != nil {
				return err
			}
			logger.Info("schema is up to date", zap.String("db", config.DB.Type))
			return repo.Close()
		},
	}
}

func newAssetsCmd(load configLoader) *cobra.Command {
	assets := &cobra.Command{
		Use:   "assets",
		Short: "Inspect and clean local asset records",
	}
	assets.AddCommand(newAssetsListCmd(load), newAssetsCleanCmd(load))
	return assets
}

func newAssetsListCmd(load configLoader) *cobra.Command {
	var (
		path  string
		title string
		page  int
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List locally stored assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load()
			if err != nil {
				return err
			}

			app, err := newApp(cmd.Context(), config)
			if err != nil {
				return err
			}
			defer app.Close()

			criteria := core.NewSearchCriteria().SetPage(page, limit)
			if path != "" {
				criteria.AddFilter(core.AttributePath, path, core.ConditionEq)
			}
			if title != "" {
				criteria.AddFilter(core.AttributeTitle, "%"+title+"%", core.ConditionLike)
			}

			result, err := app.repo.SearchAssets(cmd.Context(), criteria)
			if err != nil {
				return err
			}

			renderAssets(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "only assets stored under this path")
	cmd.Flags().StringVar(&title, "title", "", "only assets whose title contains this text")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", core.DefaultPageSize, "page size")

	return cmd
}

func renderAssets(out io.Writer, result *core.AssetSearchResult) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"MEDIA ID", "TITLE", "PATH", "CATEGORY", "SIZE", "LICENSED"})

	for _, asset := range result.Items {
		t.AppendRow(table.Row{
			asset.MediaID,
			asset.Title,
			asset.Path,
			asset.CategoryName,
			fmt.Sprintf("%dx%d", asset.Width, asset.Height),
			asset.IsLicensed,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "TOTAL", result.TotalCount})

	t.Render()
}

func newAssetsCleanCmd(load configLoader) *cobra.Command {
	var (
		path       string
		deleteFile bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove asset records that point to a path",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load()
			if err != nil {
				return err
			}

			app, err := newApp(cmd.Context(), config)
			if err != nil {
				return err
			}
			defer app.Close()

			removed, err := cleanAssets(cmd.Context(), app, path, deleteFile)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d asset record(s) for %s\n", removed, path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "destination path of the removed image")
	cmd.Flags().BoolVar(&deleteFile, "delete-file", false, "also delete the image from file storage")
	cmd.MarkFlagRequired("path")

	return cmd
}

func cleanAssets(ctx context.Context, app *app, path string, deleteFile bool) (int, error) {
	if deleteFile {
		return app.images.RemoveImage(ctx, path)
	}
	return core.CleanAssetMetadata(ctx, app.repo, path)
}

func newAdminTokenCmd(load configLoader) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Issue an admin session token for local tooling",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load()
			if err != nil {
				return err
			}

			if userID <= 0 {
				return fmt.Errorf("%w: --user must be positive", core.ErrInvalidArgument)
			}

			token, err := core.GenerateAdminToken(userID, &config.Core.JWT)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "admin user id")
	cmd.MarkFlagRequired("user")

	return cmd
}
