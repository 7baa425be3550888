package tmdb

import "time"

// Show is a TV record as returned by the discover and search endpoints.
type Show struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	OriginalName     string   `json:"original_name,omitempty"`
	Overview         string   `json:"overview,omitempty"`
	FirstAirDate     string   `json:"first_air_date,omitempty"`
	PosterPath       string   `json:"poster_path,omitempty"`
	BackdropPath     string   `json:"backdrop_path,omitempty"`
	GenreIDs         []int    `json:"genre_ids,omitempty"`
	OriginCountry    []string `json:"origin_country,omitempty"`
	OriginalLanguage string   `json:"original_language,omitempty"`
	VoteAverage      float64  `json:"vote_average"`
	VoteCount        int      `json:"vote_count"`
	Popularity       float64  `json:"popularity"`
}

// Year returns the first-air year, or "" when the date is missing.
func (s *Show) Year() string {
	if len(s.FirstAirDate) < 4 {
		return ""
	}
	return s.FirstAirDate[:4]
}

// AirDate parses FirstAirDate. ok is false for missing or malformed dates.
func (s *Show) AirDate() (t time.Time, ok bool) {
	t, err := time.Parse(time.DateOnly, s.FirstAirDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type Page struct {
	Page         int    `json:"page"`
	Results      []Show `json:"results"`
	TotalPages   int    `json:"total_pages"`
	TotalResults int    `json:"total_results"`
}

type pageResponse struct {
	Page         int    `json:"page"`
	Results      []Show `json:"results"`
	TotalPages   int    `json:"total_pages"`
	TotalResults int    `json:"total_results"`
}

func (p pageResponse) page() Page {
	results := p.Results
	if results == nil {
		results = []Show{}
	}
	return Page{
		Page:         p.Page,
		Results:      results,
		TotalPages:   p.TotalPages,
		TotalResults: p.TotalResults,
	}
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Language struct {
	Code       string `json:"iso_639_1"`
	Name       string `json:"english_name"`
	NativeName string `json:"name,omitempty"`
}

type Person struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	KnownForDepartment string  `json:"known_for_department,omitempty"`
	ProfilePath        string  `json:"profile_path,omitempty"`
	Popularity         float64 `json:"popularity"`
}
