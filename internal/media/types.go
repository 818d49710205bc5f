// SPDX-License-Identifier: MIT

// Package media models the host's library items and provides the
// MediaGateway read-through accessor over the host JSON-RPC surface:
// listing, detail/art/season retrieval, sidecar path resolution, and
// checksum computation used for change detection.
package media

import "fmt"

// Type is a library item kind.
type Type string

const (
	TypeMovie   Type = "movie"
	TypeTVShow  Type = "tvshow"
	TypeEpisode Type = "episode"
)

// AllTypes lists every media type in the fixed iteration order SyncAll,
// ImportAll and ExportAll use: movie, then tvshow, then episode.
var AllTypes = []Type{TypeMovie, TypeTVShow, TypeEpisode}

// Item identifies one library record. Equality is (Type, ID); File is the
// content path the host reports alongside it.
type Item struct {
	Type Type
	ID   uint32
	File string
}

// Equal reports whether two items refer to the same library record.
func (i Item) Equal(o Item) bool {
	return i.Type == o.Type && i.ID == o.ID
}

func (i Item) String() string {
	return fmt.Sprintf("%s:%d", i.Type, i.ID)
}

// ArtEntry is one piece of fan art associated with an item.
type ArtEntry struct {
	ArtType    string `json:"arttype"`
	URL        string `json:"url"`
	PreviewURL string `json:"previewurl,omitempty"`
}

// MovieSet describes the set (collection) a movie belongs to, when any.
type MovieSet struct {
	ID    uint32 `json:"setid"`
	Title string `json:"title"`
	Plot  string `json:"plot,omitempty"`
}

// Season is one tvshow season's details plus its season-specific art.
type Season struct {
	Number  int            `json:"season"`
	Details map[string]any `json:"details,omitempty"`
	Art     []ArtEntry     `json:"art,omitempty"`
}

// typeSpec captures the per-Type JSON-RPC surface: which methods list,
// detail, and refresh items of this type, and what the id/list-container
// field names are in the host's response envelope.
type typeSpec struct {
	listMethod      string
	detailsMethod   string
	refreshMethod   string
	idField         string
	listContainer   string
	detailsFields   []string
	detailsKey      string
	resumeOnRemove  bool // ImportOne resumption: OnRemove (movie/episode) vs OnUpdate (tvshow)
	hasMovieSet     bool
	hasSeasons      bool
}

var typeSpecs = map[Type]typeSpec{
	TypeMovie: {
		listMethod:    "VideoLibrary.GetMovies",
		detailsMethod: "VideoLibrary.GetMovieDetails",
		refreshMethod: "VideoLibrary.RefreshMovie",
		idField:       "movieid",
		listContainer: "movies",
		detailsKey:    "moviedetails",
		detailsFields: []string{
			"title", "originaltitle", "plot", "tagline", "genre", "year",
			"rating", "votes", "ratings", "uniqueid", "runtime", "mpaa",
			"director", "writer", "studio", "country", "premiered",
			"playcount", "lastplayed", "dateadded", "trailer", "tag", "set",
			"setid", "cast", "art", "file",
		},
		resumeOnRemove: true,
		hasMovieSet:    true,
	},
	TypeTVShow: {
		listMethod:    "VideoLibrary.GetTVShows",
		detailsMethod: "VideoLibrary.GetTVShowDetails",
		refreshMethod: "VideoLibrary.RefreshTVShow",
		idField:       "tvshowid",
		listContainer: "tvshows",
		detailsKey:    "tvshowdetails",
		detailsFields: []string{
			"title", "originaltitle", "plot", "genre", "year", "rating",
			"votes", "ratings", "uniqueid", "mpaa", "studio", "premiered",
			"episodeguide", "tag", "cast", "art", "file", "season",
		},
		resumeOnRemove: false,
		hasSeasons:     true,
	},
	TypeEpisode: {
		listMethod:    "VideoLibrary.GetEpisodes",
		detailsMethod: "VideoLibrary.GetEpisodeDetails",
		refreshMethod: "VideoLibrary.RefreshEpisode",
		idField:       "episodeid",
		listContainer: "episodes",
		detailsKey:    "episodedetails",
		detailsFields: []string{
			"title", "plot", "season", "episode", "rating", "votes",
			"ratings", "uniqueid", "runtime", "firstaired", "playcount",
			"lastplayed", "dateadded", "director", "writer", "cast", "art",
			"file", "tvshowid",
		},
		resumeOnRemove: true,
	},
}

// ResumeOnRemove reports whether ImportOne should treat VideoLibrary.OnRemove
// (true, for movie/episode) or VideoLibrary.OnUpdate (false, for tvshow) as
// the completion signal for a refresh of this type.
func ResumeOnRemove(t Type) bool {
	return typeSpecs[t].resumeOnRemove
}

// RefreshMethod returns the host RPC method used to refresh an item of type t.
func RefreshMethod(t Type) string {
	return typeSpecs[t].refreshMethod
}
