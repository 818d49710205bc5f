// SPDX-License-Identifier: MIT

package media

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRPC struct {
	responses map[string]json.RawMessage
	calls     []string
}

func (f *fakeRPC) Call(_ context.Context, method string, _ any) (json.RawMessage, error) {
	f.calls = append(f.calls, method)
	if raw, ok := f.responses[method]; ok {
		return raw, nil
	}
	return json.RawMessage("{}"), nil
}

func (f *fakeRPC) FileModTime(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (f *fakeRPC) Notify(context.Context, string, any) error { return nil }

func newFakeMovieRPC() *fakeRPC {
	return &fakeRPC{responses: map[string]json.RawMessage{
		"VideoLibrary.GetMovieDetails": json.RawMessage(`{"moviedetails":{"title":"Arrival","setid":0}}`),
		"VideoLibrary.GetAvailableArt": json.RawMessage(`{"availableart":[{"arttype":"poster","url":"poster.jpg"}]}`),
	}}
}

func TestInfo_Checksum_IsStableAcrossCalls(t *testing.T) {
	rpc := newFakeMovieRPC()
	g := NewGateway(rpc, Config{})
	item := Item{Type: TypeMovie, ID: 1}

	info := g.NewInfo(item)
	first, err := info.Checksum(context.Background())
	require.NoError(t, err)

	second, err := info.Checksum(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Details/art must only be fetched once each thanks to Info's caching.
	assert.Equal(t, 2, len(rpc.calls))
}

func TestInfo_Checksum_ChangesWhenDetailsChange(t *testing.T) {
	rpc1 := newFakeMovieRPC()
	sum1, err := NewGateway(rpc1, Config{}).NewInfo(Item{Type: TypeMovie, ID: 1}).Checksum(context.Background())
	require.NoError(t, err)

	rpc2 := &fakeRPC{responses: map[string]json.RawMessage{
		"VideoLibrary.GetMovieDetails": json.RawMessage(`{"moviedetails":{"title":"Arrival (Director's Cut)","setid":0}}`),
		"VideoLibrary.GetAvailableArt": rpc1.responses["VideoLibrary.GetAvailableArt"],
	}}
	sum2, err := NewGateway(rpc2, Config{}).NewInfo(Item{Type: TypeMovie, ID: 1}).Checksum(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, sum1, sum2)
}

func TestInfo_Checksum_SkipsMovieSetWhenUnset(t *testing.T) {
	rpc := newFakeMovieRPC()
	g := NewGateway(rpc, Config{})
	_, err := g.NewInfo(Item{Type: TypeMovie, ID: 1}).Checksum(context.Background())
	require.NoError(t, err)

	for _, call := range rpc.calls {
		assert.NotEqual(t, "VideoLibrary.GetMovieSetDetails", call)
	}
}
