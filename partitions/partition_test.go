package partitions

import (
	"errors"
	"testing"

	"github.com/notargets/DGTransport/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockPartition(t *testing.T) {
	pb := &PartitionBuilder{NumItems: 10, MaxPartitions: 3, Strategy: BlockPartition}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)

	assert.Equal(t, 3, layout.NumPartitions)
	assert.Equal(t, []int{0, 1, 2, 3}, layout.Partitions[0].Items)
	assert.Equal(t, []int{4, 5, 6, 7}, layout.Partitions[1].Items)
	assert.Equal(t, []int{8, 9}, layout.Partitions[2].Items)
	assert.Equal(t, 4, layout.KpartMax)
	assert.Equal(t, 2, layout.GetPartition(9))
	assert.Equal(t, -1, layout.GetPartition(10))

	stats := layout.PartitionStatistics()
	assert.Equal(t, 2, stats.MinItems)
	assert.Equal(t, 4, stats.MaxItems)
	assert.InDelta(t, 1.2, stats.Imbalance, 1e-12)
}

func TestBlockPartitionDropsEmpty(t *testing.T) {
	// ceil(8/6) = 2 items per block needs only 4 partitions
	pb := &PartitionBuilder{NumItems: 8, MaxPartitions: 6, Strategy: BlockPartition}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, 4, layout.NumPartitions)
	for _, p := range layout.Partitions {
		assert.Equal(t, 2, p.NumItems)
	}
}

func TestRoundRobinPartition(t *testing.T) {
	pb := &PartitionBuilder{NumItems: 7, MaxPartitions: 3, Strategy: RoundRobin}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)

	assert.Equal(t, []int{0, 3, 6}, layout.Partitions[0].Items)
	assert.Equal(t, []int{1, 4}, layout.Partitions[1].Items)
	assert.Equal(t, []int{2, 5}, layout.Partitions[2].Items)
}

func TestPartitionMoreWorkersThanItems(t *testing.T) {
	for _, s := range []PartitionStrategy{BlockPartition, RoundRobin} {
		pb := &PartitionBuilder{NumItems: 2, MaxPartitions: 8, Strategy: s}
		layout, err := pb.BuildPartitions()
		require.NoError(t, err, s.String())
		assert.Equal(t, 2, layout.NumPartitions, s.String())
	}
}

func TestValidateLayoutDetectsErrors(t *testing.T) {
	layout := &PartitionLayout{
		Partitions: []Partition{
			{ID: 0, Items: []int{0, 1}, NumItems: 2},
			{ID: 1, Items: []int{1}, NumItems: 1},
		},
		KpartMax:      2,
		TotalItems:    3,
		NumPartitions: 2,
		IToP:          []int{0, 0, 1},
	}
	err := layout.ValidateLayout()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLayout))
	assert.True(t, errors.Is(err, utils.ErrFatal))

	_, err = (&PartitionBuilder{}).BuildPartitions()
	assert.True(t, errors.Is(err, utils.ErrInput))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Round-Robin")
	require.NoError(t, err)
	assert.Equal(t, RoundRobin, s)
	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, BlockPartition, s)
	_, err = ParseStrategy("metis")
	assert.True(t, errors.Is(err, utils.ErrInput))
}
