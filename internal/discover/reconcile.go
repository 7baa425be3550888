package discover

import "github.com/handsomefox/tv-discover/internal/tmdb"

// Reconcile keeps the records meeting both thresholds, in their original order.
func Reconcile(results []tmdb.Show, th Thresholds) []tmdb.Show {
	out := make([]tmdb.Show, 0, len(results))
	for i := range results {
		if th.Accepts(&results[i]) {
			out = append(out, results[i])
		}
	}
	return out
}

func (th Thresholds) Accepts(s *tmdb.Show) bool {
	return s.VoteCount >= th.MinVotes && s.VoteAverage >= th.MinRating
}

// ReconcilePage filters the results of p. Totals stay as reported upstream and
// the page is never refilled from later pages.
func ReconcilePage(p tmdb.Page, th Thresholds) tmdb.Page {
	p.Results = Reconcile(p.Results, th)
	return p
}
