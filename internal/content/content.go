// Package content holds the collection state shared by the public site and the
// admin panel: ordering, visibility and the synchronized in-memory stores.
package content

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound = errors.New("content: not found")
	ErrConflict = errors.New("content: conflict")

	// ErrTiedPositions means the item shares its position with the neighbour
	// it would swap with, so exchanging positions changes nothing.
	ErrTiedPositions = errors.New("content: tied positions")
)

// Entity is anything a Store can hold.
type Entity interface {
	GetID() string
}

// Ordered entities carry a position unique within their collection.
type Ordered interface {
	Entity
	Position() int
}

// Visible entities decide whether the public site may show them. Entities
// that do not implement it are always public.
type Visible interface {
	IsPublic() bool
}

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func ParseDirection(value string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(value))) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	default:
		return "", fmt.Errorf("invalid direction %q", value)
	}
}

// Swap describes the position exchange between two items.
type Swap struct {
	FirstID   string `json:"firstId"`
	FirstPos  int    `json:"firstPosition"`
	SecondID  string `json:"secondId"`
	SecondPos int    `json:"secondPosition"`
}

// SortByPosition sorts by position then id so ties resolve the same way on
// every call.
func SortByPosition[T Ordered](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := items[i].Position(), items[j].Position()
		if pi != pj {
			return pi < pj
		}
		return items[i].GetID() < items[j].GetID()
	})
}

// PlanSwap finds the neighbour of id in direction dir. The returned swap gives
// the item its neighbour's position and vice versa. ok is false when the item
// is already first (up) or last (down). A neighbour holding the same position
// yields ErrTiedPositions.
func PlanSwap[T Ordered](items []T, id string, dir Direction) (swap Swap, ok bool, err error) {
	sorted := make([]T, len(items))
	copy(sorted, items)
	SortByPosition(sorted)

	index := -1
	for i, item := range sorted {
		if item.GetID() == id {
			index = i
			break
		}
	}
	if index < 0 {
		return Swap{}, false, ErrNotFound
	}

	neighbour := index - 1
	if dir == Down {
		neighbour = index + 1
	} else if dir != Up {
		return Swap{}, false, fmt.Errorf("invalid direction %q", dir)
	}
	if neighbour < 0 || neighbour >= len(sorted) {
		return Swap{}, false, nil
	}

	current, other := sorted[index], sorted[neighbour]
	if current.Position() == other.Position() {
		return Swap{}, false, ErrTiedPositions
	}
	return Swap{
		FirstID:   current.GetID(),
		FirstPos:  other.Position(),
		SecondID:  other.GetID(),
		SecondPos: current.Position(),
	}, true, nil
}

// Sequence returns ids in stable position order, the input for renumbering a
// collection to 1..n.
func Sequence[T Ordered](items []T) []string {
	sorted := make([]T, len(items))
	copy(sorted, items)
	SortByPosition(sorted)
	ids := make([]string, 0, len(sorted))
	for _, item := range sorted {
		ids = append(ids, item.GetID())
	}
	return ids
}

func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// PublicOnly drops drafts and disabled entries.
func PublicOnly[T any](items []T) []T {
	return Filter(items, func(item T) bool {
		if v, ok := any(item).(Visible); ok {
			return v.IsPublic()
		}
		return true
	})
}

// NextPosition is the position a newly created item takes: after the last one.
func NextPosition[T Ordered](items []T) int {
	max := 0
	for _, item := range items {
		if item.Position() > max {
			max = item.Position()
		}
	}
	return max + 1
}
