package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/handsomefox/tv-discover/internal/discover"
	"github.com/handsomefox/tv-discover/internal/filter"
	"github.com/handsomefox/tv-discover/internal/tmdb"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [flags]",
	Short: "Discover shows matching filters",
	Long: `Discover shows matching filters.

Numeric thresholds are applied the way the dashboard applies them: invalid
text means no minimum.

Examples:
  tvdiscover discover --genres 18,80 --min-votes 500
  tvdiscover discover --without 16 --mode all --sort vote_average.desc
  tvdiscover discover --year-min 2010 --year-max 2015 --language ko`,
	Args: cobra.NoArgs,
	RunE: withEnv(runDiscoverCmd),
}

var searchCmd = &cobra.Command{
	Use:   "search [flags] <query>...",
	Short: "Search shows by title",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withEnv(runSearchCmd),
}

func init() {
	rootCmd.AddCommand(discoverCmd, searchCmd)

	addFilterFlags(discoverCmd)
	searchCmd.Flags().Int("page", 1, "Result page")
}

func addFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("genres", "", "Comma-separated genre ids to include")
	f.String("without", "", "Comma-separated genre ids to exclude")
	f.String("mode", string(filter.ModeAny), "Genre match mode (any or all)")
	f.Int64("person", 0, "Only shows featuring this person id")
	f.String("min-votes", "", "Minimum vote count")
	f.String("min-rating", "", "Minimum average rating (0-10)")
	f.Int("year-min", 0, "Earliest first-air year")
	f.Int("year-max", 0, "Latest first-air year")
	f.String("language", "", "Original language (ISO 639-1)")
	f.String("sort", string(filter.DefaultSort), "Sort order")
	f.Int("page", 1, "Result page")
}

func runDiscoverCmd(cmd *cobra.Command, _ []string, e *env) error {
	now := time.Now()
	st, err := stateFromFlags(cmd, now)
	if err != nil {
		return err
	}
	return runQuery(cmd, e, st, now)
}

func runSearchCmd(cmd *cobra.Command, args []string, e *env) error {
	now := time.Now()
	query := strings.Join(args, " ")
	page, _ := cmd.Flags().GetInt("page")

	st := filter.NewState(now).Apply(filter.Edit{Search: &query}, now)
	st = st.Apply(filter.Edit{Page: &page}, now)
	return runQuery(cmd, e, st, now)
}

// stateFromFlags replays the flags as dashboard edits.
func stateFromFlags(cmd *cobra.Command, now time.Time) (filter.State, error) {
	f := cmd.Flags()
	st := filter.NewState(now)

	included, err := parseIDList(mustString(f.GetString("genres")))
	if err != nil {
		return st, fmt.Errorf("--genres: %w", err)
	}
	excluded, err := parseIDList(mustString(f.GetString("without")))
	if err != nil {
		return st, fmt.Errorf("--without: %w", err)
	}
	st.Genres = filter.NewGenres(included, excluded)

	var edit filter.Edit
	if f.Changed("mode") {
		mode := filter.GenreMode(mustString(f.GetString("mode")))
		if mode != filter.ModeAny && mode != filter.ModeAll {
			return st, fmt.Errorf("--mode must be %q or %q", filter.ModeAny, filter.ModeAll)
		}
		edit.Mode = &mode
	}
	if f.Changed("person") {
		id, _ := f.GetInt64("person")
		if id <= 0 {
			return st, errors.New("--person must be a positive id")
		}
		edit.Person = &filter.Person{ID: id}
	}
	if f.Changed("min-votes") {
		edit.MinVotes = ptr(mustString(f.GetString("min-votes")))
	}
	if f.Changed("min-rating") {
		edit.MinRating = ptr(mustString(f.GetString("min-rating")))
	}
	if f.Changed("year-min") || f.Changed("year-max") {
		lo, _ := f.GetInt("year-min")
		hi, _ := f.GetInt("year-max")
		edit.Years = &filter.YearRange{Min: lo, Max: hi}
	}
	if f.Changed("language") {
		edit.Language = ptr(mustString(f.GetString("language")))
	}
	if f.Changed("sort") {
		edit.Sort = ptr(filter.ParseSortKey(mustString(f.GetString("sort"))))
	}
	st = st.Apply(edit, now)

	if page, _ := f.GetInt("page"); page > 1 {
		st = st.Apply(filter.Edit{Page: &page}, now)
	}
	return st, nil
}

func runQuery(cmd *cobra.Command, e *env, st filter.State, now time.Time) error {
	ctx := cmd.Context()
	client, err := e.client(ctx)
	if err != nil {
		return err
	}

	query := discover.Build(discover.NewInput(st, discover.CommitAll(st, now)))
	var page tmdb.Page
	if query.Kind == discover.KindSearch {
		page, err = client.Search(ctx, query.Query, query.Page)
	} else {
		page, err = client.Discover(ctx, query.Values())
	}
	if err != nil {
		if errors.Is(err, tmdb.ErrUnauthorized) {
			return errors.New("the credential was rejected")
		}
		return fmt.Errorf("%s failed: %w", query.Kind, err)
	}
	page = discover.ReconcilePage(page, query.Thresholds())

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, page)
	}
	printShows(out, page)
	return nil
}

func parseIDList(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var ids []int
	for part := range strings.SplitSeq(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func mustString(s string, _ error) string { return s }

func ptr[T any](v T) *T { return &v }
