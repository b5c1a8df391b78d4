package livequery_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tommyfx/storefront/pkg/datastore"
	"github.com/tommyfx/storefront/pkg/livequery"
)

func TestPipeline_OrdersAndEnriches(t *testing.T) {
	store := newFakeStore(nil)
	seedReviews(store)

	recs, err := reviewPipeline(store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{5, 4, 3}, ratings(recs))
	assert.Equal(t, "Ada", recs[0].UserName)
	assert.Equal(t, "Grace", recs[1].UserName)
	assert.Equal(t, "Anonymous", recs[2].UserName, "profile u3 does not exist")
}

func TestPipeline_OneBatchedLookupPerRelation(t *testing.T) {
	store := newFakeStore(nil)
	for i, id := range []string{"a", "b", "c", "d", "e", "f"} {
		store.seed("feedback", datastore.Row{"id": id, "user_id": "u1", "rating": i + 1})
	}
	store.seed("profiles", datastore.Row{"id": "u1", "full_name": "Ada"})

	recs, err := reviewPipeline(store).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 6)

	assert.Equal(t, 1, store.selectCount("feedback"))
	assert.Equal(t, 1, store.selectCount("profiles"))
}

func TestPipeline_EmptyIsNotAnError(t *testing.T) {
	store := newFakeStore(nil)

	recs, err := reviewPipeline(store).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, 0, store.selectCount("profiles"), "no refs, no lookup")
}

func TestPipeline_PrimaryFailure(t *testing.T) {
	store := newFakeStore(nil)
	store.failRead["feedback"] = true

	recs, err := reviewPipeline(store).Run(context.Background())
	assert.Nil(t, recs)

	var fe *livequery.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "feedback", fe.Table)
	assert.ErrorIs(t, err, errDown)
}

func TestPipeline_EnrichmentFailureKeepsFallbacks(t *testing.T) {
	store := newFakeStore(nil)
	seedReviews(store)
	store.failRead["profiles"] = true

	recs, err := reviewPipeline(store).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for _, r := range recs {
		assert.Equal(t, "Anonymous", r.UserName)
	}
}

func TestPipeline_DropsMalformedRows(t *testing.T) {
	store := newFakeStore(nil)
	seedReviews(store)
	store.seed("feedback", datastore.Row{"id": "bad", "user_id": "u1", "rating": "lots"})

	recs, err := reviewPipeline(store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4, 3}, ratings(recs))
}

func TestIndex(t *testing.T) {
	ix := livequery.Index{"k": {{"n": 1}, {"n": 2}}}

	row, ok := ix.One("k")
	require.True(t, ok)
	assert.Equal(t, 1, row["n"])
	assert.Len(t, ix.Many("k"), 2)

	_, ok = ix.One("")
	assert.False(t, ok)
	assert.Nil(t, ix.Many("missing"))
}
