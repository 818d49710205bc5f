// SPDX-License-Identifier: MIT

package media

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"path"
	"strings"
	"time"
)

// HostRPC is the transport MediaGateway drives. It is satisfied by
// internal/hostclient.Client; MediaGateway only needs raw JSON-RPC calls
// and the one Files.GetFileDetails-derived stat operation.
type HostRPC interface {
	// Call invokes method with params and returns the raw JSON "result" value.
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	// FileModTime returns the host-reported modification time for path, and
	// whether the host reports the file as existing at all.
	FileModTime(ctx context.Context, path string) (time.Time, bool, error)
	// Notify publishes method as a bus notification via JSONRPC.NotifyAll.
	Notify(ctx context.Context, method string, data any) error
}

// Config is the subset of engine configuration MediaGateway needs.
type Config struct {
	// MovieNfoNaming controls the name used when creating a new movie
	// sidecar: "movie" for movie.nfo, "filename" for <basename>.nfo.
	MovieNfoNaming string
}

// Gateway is the read-through accessor over the host's library RPC.
type Gateway struct {
	rpc HostRPC
	cfg Config
}

// NewGateway constructs a Gateway over rpc using cfg.
func NewGateway(rpc HostRPC, cfg Config) *Gateway {
	return &Gateway{rpc: rpc, cfg: cfg}
}

// ListAll enumerates every item of type t known to the host.
func (g *Gateway) ListAll(ctx context.Context, t Type) ([]Item, error) {
	spec := typeSpecs[t]
	raw, err := g.rpc.Call(ctx, spec.listMethod, map[string]any{
		"properties": []string{"file"},
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t, err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s list envelope: %w", t, err)
	}

	listRaw, ok := envelope[spec.listContainer]
	if !ok {
		return nil, nil
	}

	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(listRaw, &rows); err != nil {
		return nil, fmt.Errorf("decode %s list rows: %w", t, err)
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		idRaw, ok := row[spec.idField]
		if !ok {
			continue
		}
		var id uint32
		if err := json.Unmarshal(idRaw, &id); err != nil {
			continue
		}
		var file string
		if fileRaw, ok := row["file"]; ok {
			_ = json.Unmarshal(fileRaw, &file)
		}
		items = append(items, Item{Type: t, ID: id, File: file})
	}
	return items, nil
}

// Refresh issues the host's type-specific refresh RPC (RefreshMovie,
// RefreshTVShow or RefreshEpisode) for item. ImportOne calls it and then
// suspends awaiting the matching library event.
func (g *Gateway) Refresh(ctx context.Context, item Item) error {
	_, err := g.rpc.Call(ctx, RefreshMethod(item.Type), map[string]any{typeSpecs[item.Type].idField: item.ID})
	if err != nil {
		return fmt.Errorf("refresh %s: %w", item, err)
	}
	return nil
}

// Clean issues VideoLibrary.Clean.
func (g *Gateway) Clean(ctx context.Context) error {
	_, err := g.rpc.Call(ctx, "VideoLibrary.Clean", nil)
	if err != nil {
		return fmt.Errorf("library clean: %w", err)
	}
	return nil
}

// Scan issues VideoLibrary.Scan.
func (g *Gateway) Scan(ctx context.Context) error {
	_, err := g.rpc.Call(ctx, "VideoLibrary.Scan", nil)
	if err != nil {
		return fmt.Errorf("library scan: %w", err)
	}
	return nil
}

// NfoPath resolves the existing sidecar path for item, if any is present
// on the host's filesystem, and its host-reported modification time.
// CreateNfoPath gives the path to use when none exists.
func (g *Gateway) NfoPath(ctx context.Context, item Item) (existing string, mtime time.Time, exists bool, err error) {
	candidates := g.candidatePaths(item)
	for _, c := range candidates {
		t, ok, statErr := g.rpc.FileModTime(ctx, c)
		if statErr != nil {
			return "", time.Time{}, false, fmt.Errorf("stat %s: %w", c, statErr)
		}
		if ok {
			return c, t, true, nil
		}
	}
	return "", time.Time{}, false, nil
}

// CreateNfoPath returns the path a new sidecar for item should be written
// to, honoring the movie_nfo_naming setting for movies.
func (g *Gateway) CreateNfoPath(item Item) string {
	dir := path.Dir(item.File)
	base := strings.TrimSuffix(path.Base(item.File), path.Ext(item.File))
	switch item.Type {
	case TypeMovie:
		if g.cfg.MovieNfoNaming == "filename" {
			return path.Join(dir, base+".nfo")
		}
		return path.Join(dir, "movie.nfo")
	case TypeTVShow:
		return path.Join(dir, "tvshow.nfo")
	default: // episode
		return path.Join(dir, base+".nfo")
	}
}

func (g *Gateway) candidatePaths(item Item) []string {
	dir := path.Dir(item.File)
	base := strings.TrimSuffix(path.Base(item.File), path.Ext(item.File))
	switch item.Type {
	case TypeMovie:
		return []string{path.Join(dir, "movie.nfo"), path.Join(dir, base+".nfo")}
	case TypeTVShow:
		return []string{path.Join(dir, "tvshow.nfo")}
	default: // episode
		return []string{path.Join(dir, base+".nfo")}
	}
}

// details, art, movieSet and seasons below fetch raw JSON so Info's
// checksum can hash the bytes the host returned (seasons re-encodes its
// list after merging in the art).

func (g *Gateway) details(ctx context.Context, item Item) (json.RawMessage, error) {
	spec := typeSpecs[item.Type]
	raw, err := g.rpc.Call(ctx, spec.detailsMethod, map[string]any{
		spec.idField: item.ID,
		"properties": spec.detailsFields,
	})
	if err != nil {
		return nil, fmt.Errorf("%s details: %w", item, err)
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s details envelope: %w", item, err)
	}
	d, ok := envelope[spec.detailsKey]
	if !ok {
		return json.RawMessage("{}"), nil
	}
	return d, nil
}

func (g *Gateway) art(ctx context.Context, item Item) (json.RawMessage, error) {
	raw, err := g.rpc.Call(ctx, "VideoLibrary.GetAvailableArt", map[string]any{
		"item": map[string]any{itemKey(item.Type): item.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("%s art: %w", item, err)
	}
	return raw, nil
}

func (g *Gateway) movieSet(ctx context.Context, setID uint32) (json.RawMessage, error) {
	raw, err := g.rpc.Call(ctx, "VideoLibrary.GetMovieSetDetails", map[string]any{
		"setid":      setID,
		"properties": []string{"title", "plot"},
	})
	if err != nil {
		return nil, fmt.Errorf("movieset %d: %w", setID, err)
	}
	return raw, nil
}

// seasons fetches the tvshow's season list and merges in each season's art,
// matching the original addon's MediaInfo.seasons property: it requests
// VideoLibrary.GetAvailableArt once with the tvshow's own id (not a
// season's), so the art genuinely is the tvshow's, repeated per season
// entry, and folds it into the checksum the same way.
func (g *Gateway) seasons(ctx context.Context, tvshowID uint32) (json.RawMessage, error) {
	raw, err := g.rpc.Call(ctx, "VideoLibrary.GetSeasons", map[string]any{
		"tvshowid":   tvshowID,
		"properties": []string{"season", "title"},
	})
	if err != nil {
		return nil, fmt.Errorf("seasons of tvshow %d: %w", tvshowID, err)
	}

	var envelope struct {
		Seasons []map[string]json.RawMessage `json:"seasons"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode seasons of tvshow %d: %w", tvshowID, err)
	}
	if len(envelope.Seasons) == 0 {
		return raw, nil
	}

	artRaw, err := g.rpc.Call(ctx, "VideoLibrary.GetAvailableArt", map[string]any{
		"item": map[string]any{"seasonid": tvshowID},
	})
	if err != nil {
		return nil, fmt.Errorf("season art of tvshow %d: %w", tvshowID, err)
	}
	var artEnvelope struct {
		AvailableArt json.RawMessage `json:"availableart"`
	}
	if err := json.Unmarshal(artRaw, &artEnvelope); err != nil {
		return nil, fmt.Errorf("decode season art of tvshow %d: %w", tvshowID, err)
	}

	merged := make([]map[string]json.RawMessage, len(envelope.Seasons))
	for i, s := range envelope.Seasons {
		m := make(map[string]json.RawMessage, len(s)+1)
		for k, v := range s {
			m[k] = v
		}
		if len(artEnvelope.AvailableArt) > 0 {
			m["art"] = artEnvelope.AvailableArt
		}
		merged[i] = m
	}

	out, err := json.Marshal(struct {
		Seasons []map[string]json.RawMessage `json:"seasons"`
	}{Seasons: merged})
	if err != nil {
		return nil, fmt.Errorf("encode merged seasons of tvshow %d: %w", tvshowID, err)
	}
	return out, nil
}

func itemKey(t Type) string {
	return typeSpecs[t].idField
}

// Info is a lazily populated view of one Item, fetched and cached for the
// lifetime of the object so repeated field access (details, art, checksum)
// costs exactly one host round trip per underlying piece of data.
type Info struct {
	gw   *Gateway
	item Item

	detailsRaw json.RawMessage
	artRaw     json.RawMessage
	setRaw     json.RawMessage
	seasonsRaw json.RawMessage

	hasDetails, hasArt, hasSet, hasSeasons bool
	checksum                               uint32
	hasChecksum                            bool
}

// NewInfo constructs a lazily-populated Info for item.
func (g *Gateway) NewInfo(item Item) *Info {
	return &Info{gw: g, item: item}
}

// Details fetches (once) and returns the raw details JSON for the item.
func (m *Info) Details(ctx context.Context) (json.RawMessage, error) {
	if m.hasDetails {
		return m.detailsRaw, nil
	}
	raw, err := m.gw.details(ctx, m.item)
	if err != nil {
		return nil, err
	}
	m.detailsRaw = raw
	m.hasDetails = true
	return raw, nil
}

// Art fetches (once) and returns the raw art JSON for the item.
func (m *Info) Art(ctx context.Context) (json.RawMessage, error) {
	if m.hasArt {
		return m.artRaw, nil
	}
	raw, err := m.gw.art(ctx, m.item)
	if err != nil {
		return nil, err
	}
	m.artRaw = raw
	m.hasArt = true
	return raw, nil
}

// MovieSet fetches (once) the raw movie-set JSON, if this item has one.
// Returns (nil, nil) for non-movies or movies without a set.
func (m *Info) MovieSet(ctx context.Context) (json.RawMessage, error) {
	if m.item.Type != TypeMovie {
		return nil, nil
	}
	if m.hasSet {
		return m.setRaw, nil
	}
	details, err := m.Details(ctx)
	if err != nil {
		return nil, err
	}
	var withSet struct {
		SetID uint32 `json:"setid"`
	}
	if err := json.Unmarshal(details, &withSet); err != nil || withSet.SetID == 0 {
		m.hasSet = true
		return nil, nil
	}
	raw, err := m.gw.movieSet(ctx, withSet.SetID)
	if err != nil {
		return nil, err
	}
	m.setRaw = raw
	m.hasSet = true
	return raw, nil
}

// Seasons fetches (once) the raw seasons+art JSON, if this item is a tvshow.
func (m *Info) Seasons(ctx context.Context) (json.RawMessage, error) {
	if m.item.Type != TypeTVShow {
		return nil, nil
	}
	if m.hasSeasons {
		return m.seasonsRaw, nil
	}
	raw, err := m.gw.seasons(ctx, m.item.ID)
	if err != nil {
		return nil, err
	}
	m.seasonsRaw = raw
	m.hasSeasons = true
	return raw, nil
}

// Checksum computes (once) the CRC32 of the canonical concatenation of
// details, art, movieset (movies only), and seasons (tvshows only), in
// that order, over the exact bytes the host returned.
func (m *Info) Checksum(ctx context.Context) (uint32, error) {
	if m.hasChecksum {
		return m.checksum, nil
	}

	details, err := m.Details(ctx)
	if err != nil {
		return 0, err
	}
	art, err := m.Art(ctx)
	if err != nil {
		return 0, err
	}

	// crc32.Update continues a running checksum over each piece in turn,
	// equivalent to computing CRC32 over the pieces concatenated in order.
	var sum uint32
	sum = crc32.Update(sum, crc32.IEEETable, details)
	sum = crc32.Update(sum, crc32.IEEETable, art)

	if m.item.Type == TypeMovie {
		set, err := m.MovieSet(ctx)
		if err != nil {
			return 0, err
		}
		if set != nil {
			sum = crc32.Update(sum, crc32.IEEETable, set)
		}
	}

	if m.item.Type == TypeTVShow {
		seasons, err := m.Seasons(ctx)
		if err != nil {
			return 0, err
		}
		sum = crc32.Update(sum, crc32.IEEETable, seasons)
	}

	m.checksum = sum
	m.hasChecksum = true
	return sum, nil
}
