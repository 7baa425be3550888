package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/handsomefox/tv-discover/internal/watchlist"
	"github.com/spf13/cobra"
)

var watchlistCmd = &cobra.Command{
	Use:     "watchlist",
	Aliases: []string{"wl"},
	Short:   "Manage the saved watchlist",
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved shows",
	Long: `List saved shows.

Sort keys: added, binge, first_air_date, rating, votes, popularity,
each followed by .asc or .desc.

Examples:
  tvdiscover watchlist list --sort binge.asc
  tvdiscover watchlist list --q office`,
	Args: cobra.NoArgs,
	RunE: withEnv(runWatchlistList),
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add <tmdb-id>",
	Short: "Save a show by id",
	Args:  cobra.ExactArgs(1),
	RunE:  withEnv(runWatchlistAdd),
}

var watchlistRemoveCmd = &cobra.Command{
	Use:     "rm <tmdb-id>",
	Aliases: []string{"remove"},
	Short:   "Remove a saved show",
	Args:    cobra.ExactArgs(1),
	RunE:    withEnv(runWatchlistRemove),
}

func init() {
	rootCmd.AddCommand(watchlistCmd)
	watchlistCmd.AddCommand(watchlistListCmd, watchlistAddCmd, watchlistRemoveCmd)

	watchlistListCmd.Flags().String("q", "", "Only titles containing this text")
	watchlistListCmd.Flags().String("sort", watchlist.DefaultSort.String(), "Sort order")
}

func runWatchlistList(cmd *cobra.Command, _ []string, e *env) error {
	q, _ := cmd.Flags().GetString("q")
	sortRaw, _ := cmd.Flags().GetString("sort")

	items, err := e.watchlist().List(cmd.Context())
	if err != nil {
		return err
	}
	items = watchlist.Apply(items, q, watchlist.ParseSort(sortRaw))

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, items)
	}
	printItems(out, items, time.Now())
	return nil
}

func runWatchlistAdd(cmd *cobra.Command, args []string, e *env) error {
	ctx := cmd.Context()
	id, err := parseShowID(args[0])
	if err != nil {
		return err
	}
	client, err := e.client(ctx)
	if err != nil {
		return err
	}

	detail, err := client.Details(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch show %d: %w", id, err)
	}
	item := watchlist.NewItem(detail.Show, detail, time.Now())
	added, err := e.watchlist().Add(ctx, item)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{"added": added, "item": item})
	}
	if !added {
		fmt.Fprintf(out, "%s is already on the watchlist\n", item.Name)
		return nil
	}
	fmt.Fprintf(out, "Added %s", item.Name)
	if item.BingeHours != nil {
		fmt.Fprintf(out, " (%s to binge)", formatHours(*item.BingeHours))
	}
	fmt.Fprintln(out)
	return nil
}

func runWatchlistRemove(cmd *cobra.Command, args []string, e *env) error {
	id, err := parseShowID(args[0])
	if err != nil {
		return err
	}
	removed, err := e.watchlist().Remove(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("show %d is not on the watchlist", id)
	}
	if !jsonOutput {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d\n", id)
	}
	return nil
}

func parseShowID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid show id %q", raw)
	}
	return id, nil
}
