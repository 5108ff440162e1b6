package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m int) time.Time {
	return time.Date(2025, 1, 10, h, m, 0, 0, time.UTC)
}

func TestFindOverlapDisjointAndTouching(t *testing.T) {
	intervals := []Interval{
		{Start: at(11, 0), End: at(12, 0)},
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(10, 0), End: at(11, 0)},
	}
	assert.Nil(t, FindOverlap(intervals))
	assert.Nil(t, FindOverlap(nil))
	assert.Nil(t, FindOverlap(intervals[:1]))
}

func TestFindOverlapReportsPairWithInputPositions(t *testing.T) {
	intervals := []Interval{
		{Start: at(13, 0), End: at(14, 0)},
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(9, 30), End: at(10, 30)},
	}

	got := FindOverlap(intervals)

	require.NotNil(t, got)
	assert.Equal(t, 1, got.FirstIndex)
	assert.Equal(t, 2, got.SecondIndex)
	assert.Equal(t, at(9, 0), got.First.Start)
	assert.Equal(t, at(9, 30), got.Second.Start)
}

func TestFindOverlapDetectsNonAdjacentConflictThroughMiddleInterval(t *testing.T) {
	intervals := []Interval{
		{Start: at(9, 0), End: at(12, 0)},
		{Start: at(11, 0), End: at(13, 0)},
		{Start: at(10, 0), End: at(10, 30)},
	}

	got := FindOverlap(intervals)

	require.NotNil(t, got)
	assert.True(t, got.First.Overlaps(got.Second))
}

func TestFindOverlapDuplicateStartsAreStable(t *testing.T) {
	intervals := []Interval{
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(9, 0), End: at(9, 30)},
	}

	got := FindOverlap(intervals)

	require.NotNil(t, got)
	assert.Equal(t, 0, got.FirstIndex)
	assert.Equal(t, 1, got.SecondIndex)
}
