package partitions

import (
	"fmt"
	"math"

	"github.com/notargets/DGTransport/utils"
)

// ErrLayout reports an inconsistent partition layout
var ErrLayout = fmt.Errorf("%w: invalid partition layout", utils.ErrFatal)

// Partition is a set of work items executed together by one worker. For a
// transport sweep the items are ordinate indices.
type Partition struct {
	ID int

	Items    []int // Global item indices, ascending
	NumItems int
}

// PartitionLayout is the complete decomposition of the work items
type PartitionLayout struct {
	Partitions []Partition

	KpartMax      int // max(NumItems) across partitions
	TotalItems    int
	NumPartitions int

	// Item to partition mapping
	IToP []int
}

// GetPartition returns the partition containing item k
func (pl *PartitionLayout) GetPartition(item int) int {
	if item < 0 || item >= len(pl.IToP) {
		return -1
	}
	return pl.IToP[item]
}

// ValidateLayout checks that every item is owned by exactly one partition
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("%w: %d partitions, expected %d", ErrLayout, len(pl.Partitions), pl.NumPartitions)
	}
	seen := make([]bool, pl.TotalItems)
	actualMax, total := 0, 0
	for _, p := range pl.Partitions {
		if p.NumItems != len(p.Items) {
			return fmt.Errorf("%w: partition %d: NumItems %d != %d items", ErrLayout, p.ID, p.NumItems, len(p.Items))
		}
		if p.NumItems > actualMax {
			actualMax = p.NumItems
		}
		for _, item := range p.Items {
			if item < 0 || item >= pl.TotalItems {
				return fmt.Errorf("%w: partition %d: item %d out of range", ErrLayout, p.ID, item)
			}
			if seen[item] {
				return fmt.Errorf("%w: item %d assigned twice", ErrLayout, item)
			}
			if pl.IToP[item] != p.ID {
				return fmt.Errorf("%w: item %d maps to %d, found in %d", ErrLayout, item, pl.IToP[item], p.ID)
			}
			seen[item] = true
			total++
		}
	}
	if total != pl.TotalItems {
		return fmt.Errorf("%w: %d items assigned, expected %d", ErrLayout, total, pl.TotalItems)
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("%w: computed KpartMax %d != stored KpartMax %d", ErrLayout, actualMax, pl.KpartMax)
	}
	return nil
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinItems:      math.MaxInt32,
		MaxItems:      0,
		AvgItems:      float64(pl.TotalItems) / float64(pl.NumPartitions),
	}

	for _, p := range pl.Partitions {
		if p.NumItems < stats.MinItems {
			stats.MinItems = p.NumItems
		}
		if p.NumItems > stats.MaxItems {
			stats.MaxItems = p.NumItems
		}
	}

	stats.Imbalance = float64(stats.MaxItems) / stats.AvgItems

	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinItems      int
	MaxItems      int
	AvgItems      float64
	Imbalance     float64 // MaxItems / AvgItems
}
