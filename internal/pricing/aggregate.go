package pricing

import "sort"

// Partition is one of the two top-level revenue buckets used throughout
// discount and tax allocation.
type Partition string

const (
	PartitionInteriors    Partition = "interiors"
	PartitionFalseCeiling Partition = "false_ceiling"
)

// FallbackRoom buckets items without a room label.
const FallbackRoom = "Other"

// Line is the minimal projection of a line item the aggregator needs.
type Line struct {
	RoomLabel string
	Partition Partition
	Total     float64
}

// RoomLess orders room labels for deterministic rendering. The canonical
// ordering is product-defined, so callers inject it rather than relying on
// alphabetical order.
type RoomLess func(a, b string) bool

// RoomSubtotal carries per-room figures split by partition.
type RoomSubtotal struct {
	Room         string
	Interiors    float64
	FalseCeiling float64
	Total        float64
}

// Subtotals is the aggregator output: partition subtotals plus ordered
// per-room figures.
type Subtotals struct {
	Interiors    float64
	FalseCeiling float64
	Grand        float64
	Rooms        []RoomSubtotal
}

// Aggregate buckets lines by room label (exact, case-sensitive match) and
// sums the two partitions. Lines without a room label land in the fallback
// bucket. Room order follows the injected comparator; a nil comparator sorts
// labels alphabetically.
func Aggregate(lines []Line, less RoomLess) Subtotals {
	var out Subtotals
	byRoom := make(map[string]*RoomSubtotal)
	var order []string

	for _, line := range lines {
		label := line.RoomLabel
		if label == "" {
			label = FallbackRoom
		}
		room, ok := byRoom[label]
		if !ok {
			room = &RoomSubtotal{Room: label}
			byRoom[label] = room
			order = append(order, label)
		}
		switch line.Partition {
		case PartitionInteriors:
			room.Interiors = roundCents(room.Interiors + line.Total)
			out.Interiors = roundCents(out.Interiors + line.Total)
		default:
			room.FalseCeiling = roundCents(room.FalseCeiling + line.Total)
			out.FalseCeiling = roundCents(out.FalseCeiling + line.Total)
		}
		room.Total = roundCents(room.Interiors + room.FalseCeiling)
	}

	if less != nil {
		sort.SliceStable(order, func(i, j int) bool { return less(order[i], order[j]) })
	} else {
		sort.Strings(order)
	}

	out.Rooms = make([]RoomSubtotal, 0, len(order))
	for _, label := range order {
		out.Rooms = append(out.Rooms, *byRoom[label])
	}
	out.Grand = roundCents(out.Interiors + out.FalseCeiling)
	return out
}
