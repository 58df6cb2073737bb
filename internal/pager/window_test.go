package pager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWindowOverflow(t *testing.T) {
	recs := makeRecords(6)
	w := BuildWindow(recs, 5)
	assert.Equal(t, names(1, 5), domains(w.Records))
	assert.True(t, w.HasNext)
	require.NotNil(t, w.NextCursor)
	// Points at the last displayed record, not the lookahead.
	assert.Equal(t, recs[4].Cursor(), *w.NextCursor)
}

func TestBuildWindowExactlyPageSize(t *testing.T) {
	w := BuildWindow(makeRecords(5), 5)
	assert.Len(t, w.Records, 5)
	assert.False(t, w.HasNext)
	assert.Nil(t, w.NextCursor)
}

func TestBuildWindowShort(t *testing.T) {
	w := BuildWindow(makeRecords(2), 5)
	assert.Len(t, w.Records, 2)
	assert.False(t, w.HasNext)
	assert.Nil(t, w.NextCursor)
}

func TestBuildWindowEmpty(t *testing.T) {
	w := BuildWindow(nil, 10)
	assert.Empty(t, w.Records)
	assert.False(t, w.HasNext)
	assert.Nil(t, w.NextCursor)
}

func TestBuildWindowDoesNotAlias(t *testing.T) {
	recs := makeRecords(3)
	w := BuildWindow(recs, 10)
	recs[0].Domain = "mutated"
	assert.Equal(t, "r1.example.com", w.Records[0].Domain)
}

func TestFetchWindowOverFetchesByOne(t *testing.T) {
	sc := &memScanner{recs: makeRecords(12)}
	w, err := FetchWindow(context.Background(), sc, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, names(1, 5), domains(w.Records))
	require.Len(t, sc.calls, 1)
	assert.Equal(t, 6, sc.calls[0].limit)
	assert.Nil(t, sc.calls[0].after)

	w, err = FetchWindow(context.Background(), sc, 5, w.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, names(6, 10), domains(w.Records))
}

func TestFetchWindowRejectsNonPositiveSize(t *testing.T) {
	_, err := FetchWindow(context.Background(), &memScanner{}, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidPageSize)
}
