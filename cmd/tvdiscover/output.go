package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/handsomefox/tv-discover/internal/tmdb"
	"github.com/handsomefox/tv-discover/internal/watchlist"
)

const titleWidth = 40

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printShows(w io.Writer, p tmdb.Page) {
	if len(p.Results) == 0 {
		fmt.Fprintln(w, "No shows found")
		return
	}
	fmt.Fprintf(w, "Page %d of %d (%s results upstream)\n\n",
		p.Page, p.TotalPages, humanize.Comma(int64(p.TotalResults)))
	fmt.Fprintf(w, "%8s │ %-*s │ %4s │ %6s │ %8s\n", "ID", titleWidth, "TITLE", "YEAR", "RATING", "VOTES")
	fmt.Fprintln(w, strings.Repeat("─", 9)+"┼"+strings.Repeat("─", titleWidth+2)+"┼──────┼────────┼─────────")
	for i := range p.Results {
		s := &p.Results[i]
		fmt.Fprintf(w, "%8d │ %-*s │ %4s │ %6.1f │ %8s\n",
			s.ID, titleWidth, truncate(s.Name, titleWidth), orDash(s.Year()), s.VoteAverage, humanize.Comma(int64(s.VoteCount)))
	}
}

func printItems(w io.Writer, items []watchlist.Item, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(w, "Watchlist is empty")
		return
	}
	fmt.Fprintf(w, "%8s │ %-*s │ %4s │ %6s │ %8s │ %s\n", "ID", titleWidth, "TITLE", "YEAR", "RATING", "BINGE", "ADDED")
	for i := range items {
		it := &items[i]
		binge := "-"
		if it.BingeHours != nil {
			binge = formatHours(*it.BingeHours)
		}
		fmt.Fprintf(w, "%8d │ %-*s │ %4s │ %6.1f │ %8s │ %s\n",
			it.ID, titleWidth, truncate(it.Name, titleWidth), orDash(it.Year()), it.VoteAverage, binge,
			humanize.RelTime(it.AddedAt, now, "ago", "from now"))
	}
	fmt.Fprintf(w, "\n%s saved\n", pluralize(len(items), "show", "shows"))
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64) + "h"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return humanize.Comma(int64(n)) + " " + many
}
