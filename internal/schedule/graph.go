// Package schedule computes critical paths over task dependency graphs
// and applies what-if delays and timeline adjustments to stored tasks.
package schedule

import (
	"errors"
	"math"
	"slices"
)

// ErrCycle is returned when a dependency graph is not acyclic.
var ErrCycle = errors.New("schedule: dependency graph contains a cycle")

// Node is a task with its duration in hours.
type Node struct {
	ID    uint
	Hours float64
}

// Edge states that Task cannot finish before DependsOn does.
type Edge struct {
	Task      uint
	DependsOn uint
}

// Graph is a project's dependency graph decoupled from storage.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Result is the longest chain of dependent tasks.
type Result struct {
	DurationHours float64 `json:"duration_hours"`
	PathTaskIDs   []uint  `json:"path_task_ids"`
}

// CriticalPath returns the longest-duration chain through g. A node's
// finish is its own hours plus the largest finish among the tasks it
// depends on; overrides replace a node's hours when present. Nodes are
// released in ascending id order and the first predecessor found wins
// ties, so results are deterministic. Edges that reference unknown
// nodes are ignored.
func CriticalPath(g Graph, overrides map[uint]float64) (Result, error) {
	hours := make(map[uint]float64, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, seen := hours[n.ID]; seen {
			continue
		}
		h := n.Hours
		if o, ok := overrides[n.ID]; ok {
			h = o
		}
		if h < 0 || math.IsNaN(h) {
			h = 0
		}
		hours[n.ID] = h
	}

	if len(hours) == 0 {
		return Result{PathTaskIDs: []uint{}}, nil
	}

	successors := make(map[uint][]uint, len(hours))
	indegree := make(map[uint]int, len(hours))
	seenEdge := make(map[Edge]struct{}, len(g.Edges))

	for _, e := range g.Edges {
		if _, ok := hours[e.Task]; !ok {
			continue
		}
		if _, ok := hours[e.DependsOn]; !ok {
			continue
		}
		if _, dup := seenEdge[e]; dup {
			continue
		}
		seenEdge[e] = struct{}{}
		successors[e.DependsOn] = append(successors[e.DependsOn], e.Task)
		indegree[e.Task]++
	}

	queue := make([]uint, 0, len(hours))
	for id := range hours {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	slices.Sort(queue)

	var (
		start     = make(map[uint]float64, len(hours))
		via       = make(map[uint][]uint, len(hours))
		hasPred   = make(map[uint]bool, len(hours))
		best      Result
		found     bool
		processed int
	)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		processed++

		finish := start[current] + hours[current]
		path := append(slices.Clone(via[current]), current)

		if !found || finish > best.DurationHours {
			best = Result{DurationHours: finish, PathTaskIDs: path}
			found = true
		}

		next := successors[current]
		slices.Sort(next)
		for _, succ := range next {
			if !hasPred[succ] || finish > start[succ] {
				start[succ] = finish
				via[succ] = path
				hasPred[succ] = true
			}
			indegree[succ]--
			if indegree[succ] == 0 {
				queue = insertSorted(queue, succ)
			}
		}
	}

	if processed < len(hours) {
		return Result{}, ErrCycle
	}

	best.DurationHours = Round(best.DurationHours)
	return best, nil
}

func insertSorted(queue []uint, id uint) []uint {
	idx, _ := slices.BinarySearch(queue, id)
	return slices.Insert(queue, idx, id)
}

// Reachable reports whether target can be reached from start by
// following edges from a task to the tasks it depends on.
func Reachable(edges []Edge, start, target uint) bool {
	deps := make(map[uint][]uint, len(edges))
	for _, e := range edges {
		deps[e.Task] = append(deps[e.Task], e.DependsOn)
	}

	visited := map[uint]bool{start: true}
	stack := []uint{start}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == target {
			return true
		}
		for _, next := range deps[current] {
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// Round rounds hours to two decimal places.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}
