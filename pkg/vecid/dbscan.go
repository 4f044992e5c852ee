package vecid

// Noise labels a vector that belongs to no dense cluster.
const Noise = -1

// DBSCAN clusters vectors by Euclidean density.
//
// Parameters:
//   - vectors: the data points (typically standardized)
//   - eps: maximum distance for two points to be neighbors
//   - minPts: minimum neighborhood size, the point itself included, for a
//     core point
//
// Returns one label per vector. Clusters are numbered 0, 1, ... in order
// of discovery; Noise marks outliers.
func DBSCAN(vectors [][]float64, eps float64, minPts int) []int {
	n := len(vectors)
	if n == 0 {
		return nil
	}

	const undefined = -2

	labels := make([]int, n)
	for i := range labels {
		labels[i] = undefined
	}
	clusterID := -1

	for i := 0; i < n; i++ {
		if labels[i] != undefined {
			continue
		}

		neighbors := rangeQuery(vectors, i, eps)
		if len(neighbors) < minPts {
			labels[i] = Noise
			continue
		}

		clusterID++
		labels[i] = clusterID

		seed := make([]int, 0, len(neighbors))
		for _, j := range neighbors {
			if j != i {
				seed = append(seed, j)
			}
		}

		for len(seed) > 0 {
			q := seed[0]
			seed = seed[1:]

			// Former noise becomes a border point; it is not expanded.
			if labels[q] == Noise {
				labels[q] = clusterID
			}
			if labels[q] != undefined {
				continue
			}
			labels[q] = clusterID

			qNeighbors := rangeQuery(vectors, q, eps)
			if len(qNeighbors) >= minPts {
				seed = append(seed, qNeighbors...)
			}
		}
	}

	return labels
}

// rangeQuery returns indices of all vectors within eps of vectors[idx],
// idx included.
func rangeQuery(vectors [][]float64, idx int, eps float64) []int {
	var result []int
	q := vectors[idx]
	for i, v := range vectors {
		if Euclidean(q, v) <= eps {
			result = append(result, i)
		}
	}
	return result
}

// NumClusters returns the number of distinct non-noise labels.
func NumClusters(labels []int) int {
	max := -1
	for _, l := range labels {
		if l > max {
			max = l
		}
	}
	return max + 1
}
