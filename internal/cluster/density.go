package cluster

import (
	"math"
	"sort"
)

// Default density clustering parameters.
const (
	DefaultMinClusterSize = 25
	DefaultMinSamples     = 10
)

// DensityParams configures density-based clustering.
type DensityParams struct {
	// MinClusterSize is the smallest group of points that counts as a cluster.
	MinClusterSize int
	// MinSamples is the core-point density threshold. Higher values push more
	// borderline points into noise.
	MinSamples int
}

func (p DensityParams) withDefaults() DensityParams {
	if p.MinClusterSize <= 0 {
		p.MinClusterSize = DefaultMinClusterSize
	}
	if p.MinClusterSize < 2 {
		p.MinClusterSize = 2
	}
	if p.MinSamples <= 0 {
		p.MinSamples = DefaultMinSamples
	}
	return p
}

// DensityModel retains enough fitted state to softly assign new points to the
// clusters discovered by a run. It is an opaque capability: callers only get
// Assign.
type DensityModel struct {
	points [][]float32
	labels []int
	radius map[int]float64
}

// Assign returns the label of the cluster whose nearest member is within that
// cluster's formation radius, or -1 when the point is noise.
func (m *DensityModel) Assign(v []float32) int {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range m.points {
		if m.labels[i] < 0 {
			continue
		}
		if d := euclidean(p, v); d < bestDist {
			bestDist = d
			best = m.labels[i]
		}
	}
	if best < 0 {
		return -1
	}
	if r, ok := m.radius[best]; ok && bestDist > r {
		return -1
	}
	return best
}

// densityCluster labels points using a mutual-reachability single-linkage
// hierarchy condensed at MinClusterSize, with excess-of-mass stability
// selection.
//
// Stability ties between a parent cluster and the sum of its children keep
// the parent. The parent always holds more points, so this is the
// larger-cluster-wins tie-break; equal-size ties cannot arise between a
// parent and its own children, and sibling selection is independent, so the
// result is fully deterministic for a fixed input and parameter set.
func densityCluster(points [][]float32, p DensityParams) ([]int, *DensityModel) {
	p = p.withDefaults()
	n := len(points)

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	model := &DensityModel{points: points, labels: labels, radius: map[int]float64{}}

	// Too few points to form even one cluster: everything is noise.
	if n < p.MinClusterSize {
		return labels, model
	}

	core := coreDistances(points, p.MinSamples)
	edges := mutualReachabilityMST(points, core)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].w != edges[j].w {
			return edges[i].w < edges[j].w
		}
		if edges[i].a != edges[j].a {
			return edges[i].a < edges[j].a
		}
		return edges[i].b < edges[j].b
	})

	nodes := buildDendrogram(n, edges)
	tree := condenseTree(n, nodes, p.MinClusterSize)
	selected := selectExcessOfMass(n, tree)
	if len(selected) == 0 {
		return labels, model
	}

	assignDensityLabels(n, tree, selected, labels, model)
	return labels, model
}

// coreDistances returns, per point, the distance to its minSamples-th nearest
// other point.
func coreDistances(points [][]float32, minSamples int) []float64 {
	n := len(points)
	k := minSamples
	if k > n-1 {
		k = n - 1
	}
	core := make([]float64, n)
	row := make([]float64, 0, n-1)
	for i := range points {
		row = row[:0]
		for j := range points {
			if i == j {
				continue
			}
			row = append(row, euclidean(points[i], points[j]))
		}
		sort.Float64s(row)
		core[i] = row[k-1]
	}
	return core
}

type mstEdge struct {
	a, b int
	w    float64
}

// mutualReachabilityMST builds a minimum spanning tree over the complete
// graph weighted by max(core[i], core[j], d(i,j)) using Prim's algorithm.
func mutualReachabilityMST(points [][]float32, core []float64) []mstEdge {
	n := len(points)
	inTree := make([]bool, n)
	minW := make([]float64, n)
	minFrom := make([]int, n)
	for i := range minW {
		minW[i] = math.Inf(1)
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[0] = true
	for len(edges) < n-1 {
		next := -1
		nextW := math.Inf(1)
		for v := 0; v < n; v++ {
			if inTree[v] {
				continue
			}
			w := euclidean(points[current], points[v])
			if core[current] > w {
				w = core[current]
			}
			if core[v] > w {
				w = core[v]
			}
			if w < minW[v] {
				minW[v] = w
				minFrom[v] = current
			}
			if minW[v] < nextW {
				nextW = minW[v]
				next = v
			}
		}
		edges = append(edges, mstEdge{a: minFrom[next], b: next, w: minW[next]})
		inTree[next] = true
		current = next
	}
	return edges
}

// dendroNode is one merge in the single-linkage hierarchy. Leaves are point
// indices 0..n-1; internal node i is referenced as n+i.
type dendroNode struct {
	left, right int
	weight      float64
	size        int
}

func buildDendrogram(n int, edges []mstEdge) []dendroNode {
	nodes := make([]dendroNode, 0, n-1)
	parent := make([]int, n+len(edges))
	compNode := make([]int, n+len(edges))
	for i := range parent {
		parent[i] = i
		compNode[i] = i
	}
	var find func(x int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	sizeOf := func(id int) int {
		if id < n {
			return 1
		}
		return nodes[id-n].size
	}

	for _, e := range edges {
		ra, rb := find(e.a), find(e.b)
		na, nb := compNode[ra], compNode[rb]
		id := n + len(nodes)
		nodes = append(nodes, dendroNode{
			left:   na,
			right:  nb,
			weight: e.w,
			size:   sizeOf(na) + sizeOf(nb),
		})
		parent[ra] = rb
		compNode[find(rb)] = id
	}
	return nodes
}

// condensedTree is the hierarchy simplified to clusters of at least
// minClusterSize points. Child ids < n are points falling out of their parent
// cluster at the given lambda; child ids >= n are nested clusters.
type condensedTree struct {
	edges     []condEdge
	birth     map[int]float64 // cluster id -> lambda at creation
	parentOf  map[int]int     // cluster id -> parent cluster id
	sizes     map[int]int
	rootID    int
	nClusters int
}

type condEdge struct {
	parent, child int
	lambda        float64
	size          int
}

func condenseTree(n int, nodes []dendroNode, minClusterSize int) *condensedTree {
	tree := &condensedTree{
		birth:    map[int]float64{},
		parentOf: map[int]int{},
		sizes:    map[int]int{},
		rootID:   n,
	}
	if len(nodes) == 0 {
		return tree
	}

	nextCluster := n
	newCluster := func(parent int, lambda float64, size int) int {
		nextCluster++
		tree.birth[nextCluster] = lambda
		tree.parentOf[nextCluster] = parent
		tree.sizes[nextCluster] = size
		return nextCluster
	}
	tree.birth[tree.rootID] = 0
	tree.sizes[tree.rootID] = nodes[len(nodes)-1].size

	subtreeSize := func(id int) int {
		if id < n {
			return 1
		}
		return nodes[id-n].size
	}

	var leavesOf func(id int, out []int) []int
	leavesOf = func(id int, out []int) []int {
		if id < n {
			return append(out, id)
		}
		out = leavesOf(nodes[id-n].left, out)
		return leavesOf(nodes[id-n].right, out)
	}

	fallOut := func(cluster, subtree int, lambda float64) {
		for _, p := range leavesOf(subtree, nil) {
			tree.edges = append(tree.edges, condEdge{parent: cluster, child: p, lambda: lambda, size: 1})
		}
	}

	var walk func(nodeID, cluster int)
	walk = func(nodeID, cluster int) {
		node := nodes[nodeID-n]
		lambda := math.Inf(1)
		if node.weight > 0 {
			lambda = 1 / node.weight
		}
		leftSize := subtreeSize(node.left)
		rightSize := subtreeSize(node.right)

		switch {
		case leftSize >= minClusterSize && rightSize >= minClusterSize:
			// True split: both sides persist as new clusters.
			cl := newCluster(cluster, lambda, leftSize)
			tree.edges = append(tree.edges, condEdge{parent: cluster, child: cl, lambda: lambda, size: leftSize})
			cr := newCluster(cluster, lambda, rightSize)
			tree.edges = append(tree.edges, condEdge{parent: cluster, child: cr, lambda: lambda, size: rightSize})
			walk(node.left, cl)
			walk(node.right, cr)
		case leftSize >= minClusterSize:
			fallOut(cluster, node.right, lambda)
			walk(node.left, cluster)
		case rightSize >= minClusterSize:
			fallOut(cluster, node.left, lambda)
			walk(node.right, cluster)
		default:
			fallOut(cluster, node.left, lambda)
			fallOut(cluster, node.right, lambda)
		}
	}

	walk(n+len(nodes)-1, tree.rootID)
	tree.nClusters = nextCluster - n
	return tree
}

// selectExcessOfMass picks the set of condensed clusters maximizing total
// stability. The root (all points) is never selected. On a stability tie the
// parent wins.
func selectExcessOfMass(n int, tree *condensedTree) map[int]bool {
	if tree.nClusters == 0 {
		return nil
	}

	stability := map[int]float64{}
	children := map[int][]int{}
	for _, e := range tree.edges {
		lambda := e.lambda
		if math.IsInf(lambda, 1) {
			lambda = 1 / 1e-12
		}
		stability[e.parent] += (lambda - tree.birth[e.parent]) * float64(e.size)
		if e.child >= n {
			children[e.parent] = append(children[e.parent], e.child)
		}
	}

	selected := map[int]bool{}
	subtree := map[int]float64{}

	var deselect func(c int)
	deselect = func(c int) {
		for _, ch := range children[c] {
			selected[ch] = false
			deselect(ch)
		}
	}

	// Children always carry higher ids than their parent, so descending order
	// is bottom-up.
	for c := tree.rootID + tree.nClusters; c > tree.rootID; c-- {
		kids := children[c]
		if len(kids) == 0 {
			selected[c] = true
			subtree[c] = stability[c]
			continue
		}
		childSum := 0.0
		for _, ch := range kids {
			childSum += subtree[ch]
		}
		if childSum > stability[c] {
			subtree[c] = childSum
			selected[c] = false
			continue
		}
		selected[c] = true
		subtree[c] = stability[c]
		deselect(c)
	}

	out := map[int]bool{}
	for c, ok := range selected {
		if ok {
			out[c] = true
		}
	}
	return out
}

// assignDensityLabels maps every point to its selected ancestor cluster and
// renumbers selected clusters 0..k-1 by size descending (ties by smallest
// member index) so label numbering is deterministic.
func assignDensityLabels(n int, tree *condensedTree, selected map[int]bool, labels []int, model *DensityModel) {
	pointHome := map[int]int{}
	for _, e := range tree.edges {
		if e.child < n {
			pointHome[e.child] = e.parent
		}
	}

	members := map[int][]int{}
	for p := 0; p < n; p++ {
		c, ok := pointHome[p]
		for ok {
			if selected[c] {
				members[c] = append(members[c], p)
				break
			}
			c, ok = tree.parentOf[c]
		}
	}

	order := make([]int, 0, len(members))
	for c := range members {
		order = append(order, c)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if len(members[a]) != len(members[b]) {
			return len(members[a]) > len(members[b])
		}
		return members[a][0] < members[b][0]
	})

	for label, c := range order {
		for _, p := range members[c] {
			labels[p] = label
		}
		if birth := tree.birth[c]; birth > 0 {
			model.radius[label] = 1 / birth
		} else {
			model.radius[label] = math.Inf(1)
		}
	}
}
