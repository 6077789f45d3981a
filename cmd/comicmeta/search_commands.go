package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	httphandler "comic-catalog-provider/internal/adapter/http"
	"comic-catalog-provider/internal/domain"
	"comic-catalog-provider/internal/domain/provider/all"
)

func newSeriesCommand(ctx *commandContext) *cobra.Command {
	var providerID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "series <query>",
		Short: "Search series by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}
			res, err := svc.SearchSeries(cmd.Context(), providerID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			warnPartial(cmd.ErrOrStderr(), res)
			if asJSON {
				if err := writeJSON(cmd, httphandler.NewResponse(res)); err != nil {
					return err
				}
				return resultError(res)
			}

			rows := make([][]string, 0, len(res.Items))
			for _, s := range res.Items {
				rows = append(rows, []string{s.Name, s.ID, s.StartYear, s.Publisher, s.Country, s.Source})
			}
			printTable(cmd.OutOrStdout(),
				[]string{"Series", "ID", "Year", "Publisher", "Country", "Source"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
			)
			return resultError(res)
		},
	}

	cmd.Flags().StringVarP(&providerID, "provider", "p", all.ID, "Catalog to query (bdgest, comicvine, all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newAlbumsCommand(ctx *commandContext) *cobra.Command {
	var providerID string
	var seriesID string
	var seriesName string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "albums [query]",
		Short: "Search albums by title or list the albums of a series",
		Args: func(cmd *cobra.Command, args []string) error {
			if seriesID == "" && len(args) == 0 {
				return errors.New("albums requires a query or --series-id")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}

			var res domain.Result[domain.Album]
			if seriesID != "" {
				res, err = svc.SearchAlbumsBySeriesID(cmd.Context(), providerID, seriesID, seriesName)
			} else {
				res, err = svc.SearchAlbums(cmd.Context(), providerID, strings.Join(args, " "))
			}
			if err != nil {
				return err
			}
			warnPartial(cmd.ErrOrStderr(), res)
			if asJSON {
				if err := writeJSON(cmd, httphandler.NewResponse(res)); err != nil {
					return err
				}
				return resultError(res)
			}

			rows := make([][]string, 0, len(res.Items))
			for _, a := range res.Items {
				rows = append(rows, []string{a.SeriesName, a.Number, a.Title, a.Publisher, a.Date, a.ISBN, a.Source})
			}
			printTable(cmd.OutOrStdout(),
				[]string{"Series", "#", "Title", "Publisher", "Date", "ISBN", "Source"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			)
			return resultError(res)
		},
	}

	cmd.Flags().StringVarP(&providerID, "provider", "p", all.ID, "Catalog to query (bdgest, comicvine, all)")
	cmd.Flags().StringVar(&seriesID, "series-id", "", "List the albums of this catalog series id")
	cmd.Flags().StringVar(&seriesName, "series-name", "", "Series name used when album rows lack one")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newDetailsCommand(ctx *commandContext) *cobra.Command {
	var providerID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "details <url>",
		Short: "Fetch the detail mapping of one album page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}
			detailURL := args[0]
			if providerID == "" {
				providerID = providerForURL(detailURL)
			}

			details, err := svc.AlbumDetails(cmd.Context(), providerID, detailURL)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, httphandler.DetailsResponse{Status: domain.StatusOK, Details: details})
			}

			keys := make([]string, 0, len(details))
			for k := range details {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{k, details[k]})
			}
			printTable(cmd.OutOrStdout(), []string{"Field", "Value"}, rows, nil)
			return nil
		},
	}

	cmd.Flags().StringVarP(&providerID, "provider", "p", "", "Catalog owning the page (inferred from the URL when empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

// providerForURL guesses the catalog from a detail page host.
func providerForURL(detailURL string) string {
	if strings.Contains(strings.ToLower(detailURL), "comicvine") {
		return domain.SourceComicVine
	}
	return domain.SourceBDGest
}

// warnPartial notes on stderr that some items are missing data.
func warnPartial[T any](out io.Writer, res domain.Result[T]) {
	if res.Succeeded() && res.Partial {
		fmt.Fprintf(out, "Warning: incomplete results (%v)\n", res.Err)
	}
}

// resultError turns a non-ok result into the command's exit error.
func resultError[T any](res domain.Result[T]) error {
	switch {
	case res.Succeeded():
		return nil
	case res.Signal != nil:
		return fmt.Errorf("%s: %s", res.Status, res.Signal.Message)
	case res.Err != nil:
		return fmt.Errorf("%s: %w", res.Status, res.Err)
	default:
		return fmt.Errorf("%s", res.Status)
	}
}

func printTable(out io.Writer, headers []string, rows [][]string, aligns []columnAlignment) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No results")
		return
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns, shouldColorize(out)))
}
