package partitions

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/DGTransport/utils"
)

// PartitionStrategy defines how items are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive items
	RoundRobin                              // Distribute cyclically
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round-robin"
	default:
		return fmt.Sprintf("PartitionStrategy(%d)", int(s))
	}
}

// ParseStrategy converts a strategy name, case insensitive
func ParseStrategy(name string) (PartitionStrategy, error) {
	switch strings.ToLower(name) {
	case "", "block":
		return BlockPartition, nil
	case "round-robin", "roundrobin":
		return RoundRobin, nil
	}
	return 0, fmt.Errorf("%w: unknown partition strategy %q", utils.ErrInput, name)
}

// PartitionBuilder distributes NumItems work items over at most
// MaxPartitions partitions
type PartitionBuilder struct {
	NumItems      int
	MaxPartitions int
	Strategy      PartitionStrategy
}

// BuildPartitions creates a partition layout. Empty partitions are never
// created, so fewer than MaxPartitions may be returned.
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumItems < 1 {
		return nil, fmt.Errorf("%w: nothing to partition", utils.ErrInput)
	}

	numPartitions := pb.calculateNumPartitions()

	iToP := pb.partitionItems(numPartitions)

	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i].ID = i
	}
	for item, part := range iToP {
		partitions[part].Items = append(partitions[part].Items, item)
		partitions[part].NumItems++
	}

	kpartMax := 0
	for _, p := range partitions {
		kpartMax = max(kpartMax, p.NumItems)
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalItems:    pb.NumItems,
		NumPartitions: numPartitions,
		IToP:          iToP,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

func (pb *PartitionBuilder) calculateNumPartitions() int {
	numPartitions := pb.MaxPartitions
	if numPartitions < 1 {
		numPartitions = 1
	}
	if numPartitions > pb.NumItems {
		numPartitions = pb.NumItems
	}
	if pb.Strategy == BlockPartition {
		// Equal sized blocks may need fewer partitions than requested
		per := int(math.Ceil(float64(pb.NumItems) / float64(numPartitions)))
		numPartitions = int(math.Ceil(float64(pb.NumItems) / float64(per)))
	}
	return numPartitions
}

func (pb *PartitionBuilder) partitionItems(numPartitions int) []int {
	iToP := make([]int, pb.NumItems)

	switch pb.Strategy {
	case RoundRobin:
		for i := 0; i < pb.NumItems; i++ {
			iToP[i] = i % numPartitions
		}

	default:
		itemsPerPartition := int(math.Ceil(float64(pb.NumItems) / float64(numPartitions)))
		for i := 0; i < pb.NumItems; i++ {
			iToP[i] = i / itemsPerPartition
			if iToP[i] >= numPartitions {
				iToP[i] = numPartitions - 1
			}
		}
	}

	return iToP
}
