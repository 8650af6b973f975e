package aggregate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/epi-data-etl/internal/adapter/memory"
	"github.com/couchcryptid/epi-data-etl/internal/aggregate"
	"github.com/couchcryptid/epi-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builder(sink *memory.Sink, country string, calls *int) func() *domain.Location {
	return func() *domain.Location {
		*calls++
		return &domain.Location{ID: sink.NewIdentifier(domain.ClassGeoLocation), Country: country}
	}
}

func TestCache_GetOrCreate_BuildsOncePerKey(t *testing.T) {
	sink := memory.NewSink()
	cache := aggregate.New()
	calls := 0

	first, err := cache.GetOrCreate("Italy", builder(sink, "Italy", &calls))
	require.NoError(t, err)
	second, err := cache.GetOrCreate("Italy", builder(sink, "Italy", &calls))
	require.NoError(t, err)
	other, err := cache.GetOrCreate("Spain", builder(sink, "Spain", &calls))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, "Italy", first.Key)
}

func TestCache_RecordChild_PreservesOrder(t *testing.T) {
	sink := memory.NewSink()
	cache := aggregate.New()
	calls := 0

	_, err := cache.GetOrCreate("Italy", builder(sink, "Italy", &calls))
	require.NoError(t, err)
	_, err = cache.GetOrCreate("Spain", builder(sink, "Spain", &calls))
	require.NoError(t, err)
	for _, id := range []string{"d3", "d1", "d2"} {
		require.NoError(t, cache.RecordChild("Italy", id))
	}

	_, err = cache.Flush(context.Background(), sink, "distributions")
	require.NoError(t, err)
	stored := sink.ItemsOf(domain.ClassGeoLocation)
	require.Len(t, stored, 2)
	assert.Equal(t, []string{"d3", "d1", "d2"}, stored[0].Collections["distributions"])
	assert.Empty(t, stored[1].Collections["distributions"])
}

func TestCache_Flush_AttachesChildrenInCreationOrder(t *testing.T) {
	ctx := context.Background()
	sink := memory.NewSink()
	cache := aggregate.New()
	calls := 0

	italy, err := cache.GetOrCreate("Italy", builder(sink, "Italy", &calls))
	require.NoError(t, err)
	spain, err := cache.GetOrCreate("Spain", builder(sink, "Spain", &calls))
	require.NoError(t, err)
	require.NoError(t, cache.RecordChild("Italy", "Distribution_1"))
	require.NoError(t, cache.RecordChild("Italy", "Distribution_2"))

	n, err := cache.Flush(ctx, sink, "distributions")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored := sink.ItemsOf(domain.ClassGeoLocation)
	require.Len(t, stored, 2)
	assert.Equal(t, italy.ID, stored[0].Identifier)
	assert.Equal(t, []string{"Distribution_1", "Distribution_2"}, stored[0].Collections["distributions"])
	assert.Equal(t, spain.ID, stored[1].Identifier)
	assert.Empty(t, stored[1].Collections["distributions"], "location without children gets an empty collection")
	assert.Equal(t, "Spain", stored[1].Attributes[domain.AttrCountry])
}

func TestCache_FlushTwice(t *testing.T) {
	cache := aggregate.New()
	_, err := cache.Flush(context.Background(), memory.NewSink(), "distributions")
	require.NoError(t, err)

	_, err = cache.Flush(context.Background(), memory.NewSink(), "distributions")
	require.ErrorIs(t, err, aggregate.ErrFlushed)
}

func TestCache_UseAfterFlushOrClose(t *testing.T) {
	cache := aggregate.New()
	_, err := cache.Flush(context.Background(), memory.NewSink(), "distributions")
	require.NoError(t, err)

	_, err = cache.GetOrCreate("Italy", func() *domain.Location { return &domain.Location{} })
	require.ErrorIs(t, err, aggregate.ErrFlushed)
	require.ErrorIs(t, cache.RecordChild("Italy", "d1"), aggregate.ErrFlushed)

	closed := aggregate.New()
	closed.Close()
	require.ErrorIs(t, closed.RecordChild("Italy", "d1"), aggregate.ErrFlushed)
	assert.Equal(t, 0, closed.Len())
}

func TestCache_Flush_SinkFailure(t *testing.T) {
	ctx := context.Background()
	sink := memory.NewSink()
	cache := aggregate.New()
	calls := 0

	_, err := cache.GetOrCreate("Italy", builder(sink, "Italy", &calls))
	require.NoError(t, err)
	_, err = cache.GetOrCreate("Spain", builder(sink, "Spain", &calls))
	require.NoError(t, err)

	boom := errors.New("connection reset")
	sink.FailWhen = func(item domain.Item) error {
		if item.Attributes[domain.AttrCountry] == "Spain" {
			return boom
		}
		return nil
	}

	n, err := cache.Flush(ctx, sink, "distributions")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "store location Spain")
	assert.Equal(t, 1, n)
}
