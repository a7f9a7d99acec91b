package trimesh

import (
	"container/heap"
)

// Sweep is the element visiting order of one ordinate
type Sweep struct {
	Order []int // Every element exactly once
	Roots []int // Elements with no upwind neighbor
	// Elements released to break a dependency cycle. Their inflow from
	// elements later in Order uses the previous iterate.
	Broken []int
}

// Upwind reports whether edge f of element e receives flow from its
// neighbor in direction (wx, wy)
func Upwind(m *Mesh, e, f int, wx, wy float64) bool {
	ed := &m.Elements[e].Edges[f]
	return !ed.IsBoundary() && wx*ed.Nx+wy*ed.Ny < 0
}

// SweepOrder topologically sorts the upwind dependency graph of direction
// (wx, wy). Ties are broken by lowest element index, and a cycle is broken by
// releasing its lowest-index remaining element.
func SweepOrder(m *Mesh, wx, wy float64) *Sweep {
	K := m.NumElements()
	indegree := make([]int, K)
	downwind := make([][]int, K)
	for e := 0; e < K; e++ {
		for f := 0; f < 3; f++ {
			if Upwind(m, e, f, wx, wy) {
				nbr := m.Elements[e].Edges[f].Neighbor
				indegree[e]++
				downwind[nbr] = append(downwind[nbr], e)
			}
		}
	}

	sw := &Sweep{Order: make([]int, 0, K)}
	ready := &intHeap{}
	for e := 0; e < K; e++ {
		if indegree[e] == 0 {
			sw.Roots = append(sw.Roots, e)
			heap.Push(ready, e)
		}
	}

	done := make([]bool, K)
	next := 0 // Lowest index that may still be unvisited
	for len(sw.Order) < K {
		if ready.Len() == 0 {
			for done[next] || indegree[next] < 0 {
				next++
			}
			sw.Broken = append(sw.Broken, next)
			indegree[next] = -1
			heap.Push(ready, next)
		}
		e := heap.Pop(ready).(int)
		if done[e] {
			continue
		}
		done[e] = true
		sw.Order = append(sw.Order, e)
		for _, d := range downwind[e] {
			if done[d] || indegree[d] < 0 {
				continue
			}
			indegree[d]--
			if indegree[d] == 0 {
				indegree[d] = -1
				heap.Push(ready, d)
			}
		}
	}
	return sw
}

type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
