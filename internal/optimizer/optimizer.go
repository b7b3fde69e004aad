package optimizer

import (
	"errors"
	"fmt"
	"sort"

	"ai-trip-planner/internal/geo"
	"ai-trip-planner/internal/poi"
)

// ErrContractViolation marks a caller error (invalid day count or capacity).
// It is fatal and never retried.
var ErrContractViolation = errors.New("optimizer contract violation")

// maxIterations caps the k-means refinement loop.
const maxIterations = 50

// Optimize partitions the verified POIs into dayCount geographic clusters and
// orders each day's stops with a greedy nearest-neighbour traversal. The
// result is deterministic for a fixed input: seeding is farthest-point from
// the lowest-ID POI and every tie breaks on the lower ID.
//
// Days with no assigned stops are still returned with their correct index.
func Optimize(pois []poi.Verified, dayCount, maxPerDay int) ([]poi.ItineraryDay, error) {
	if dayCount <= 0 {
		return nil, fmt.Errorf("%w: day count must be positive, got %d", ErrContractViolation, dayCount)
	}
	if maxPerDay <= 0 {
		return nil, fmt.Errorf("%w: max per day must be positive, got %d", ErrContractViolation, maxPerDay)
	}

	routable := make([]poi.Verified, 0, len(pois))
	for _, p := range pois {
		if p.Routable() {
			routable = append(routable, p)
		}
	}
	if len(routable) > dayCount*maxPerDay {
		return nil, fmt.Errorf("%w: %d stops exceed capacity of %d days x %d",
			ErrContractViolation, len(routable), dayCount, maxPerDay)
	}

	sort.Slice(routable, func(i, j int) bool {
		return routable[i].Candidate.ID < routable[j].Candidate.ID
	})

	days := make([]poi.ItineraryDay, dayCount)
	for i := range days {
		days[i].Index = i + 1
	}
	if len(routable) == 0 {
		return days, nil
	}

	k := dayCount
	if len(routable) < k {
		k = len(routable)
	}

	clusters := cluster(routable, k)
	rebalance(clusters, maxPerDay)

	// Drop empty clusters, then order the survivors by their lowest member ID
	// so day numbering is stable.
	filled := clusters[:0]
	for _, c := range clusters {
		if len(c.members) > 0 {
			filled = append(filled, c)
		}
	}
	sort.Slice(filled, func(i, j int) bool {
		return filled[i].members[0].Candidate.ID < filled[j].members[0].Candidate.ID
	})

	for i, c := range filled {
		stops := orderStops(c.members, c.centroid)
		days[i].Stops = stops
		days[i].TravelKm = routeKm(stops)
	}
	return days, nil
}

type clusterState struct {
	centroid poi.Coordinates
	members  []poi.Verified
}

func coords(p poi.Verified) poi.Coordinates {
	return *p.Candidate.Coords
}

// cluster runs k-means with farthest-point seeding. The input must be sorted
// by candidate ID.
func cluster(pois []poi.Verified, k int) []*clusterState {
	centroids := seed(pois, k)

	assignments := make([]int, len(pois))
	for i := range assignments {
		assignments[i] = -1
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range pois {
			best := nearestCentroid(coords(p), centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		// Recompute centroids as the mean coordinate of assigned POIs.
		sums := make([]poi.Coordinates, k)
		counts := make([]int, k)
		for i, p := range pois {
			c := coords(p)
			sums[assignments[i]].Lat += c.Lat
			sums[assignments[i]].Lng += c.Lng
			counts[assignments[i]]++
		}
		for j := range centroids {
			if counts[j] == 0 {
				continue
			}
			centroids[j] = poi.Coordinates{
				Lat: sums[j].Lat / float64(counts[j]),
				Lng: sums[j].Lng / float64(counts[j]),
			}
		}
	}

	clusters := make([]*clusterState, k)
	for j := range clusters {
		clusters[j] = &clusterState{centroid: centroids[j]}
	}
	for i, p := range pois {
		clusters[assignments[i]].members = append(clusters[assignments[i]].members, p)
	}
	return clusters
}

// seed picks the lowest-ID POI first, then repeatedly the POI farthest from
// every centroid chosen so far.
func seed(pois []poi.Verified, k int) []poi.Coordinates {
	centroids := []poi.Coordinates{coords(pois[0])}
	chosen := map[int]bool{0: true}

	for len(centroids) < k {
		bestIdx := -1
		bestDist := -1.0
		for i, p := range pois {
			if chosen[i] {
				continue
			}
			minDist := minDistanceTo(coords(p), centroids)
			if minDist > bestDist {
				bestDist = minDist
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		chosen[bestIdx] = true
		centroids = append(centroids, coords(pois[bestIdx]))
	}
	return centroids
}

func minDistanceTo(c poi.Coordinates, centroids []poi.Coordinates) float64 {
	min := geo.DistanceKm(c, centroids[0])
	for _, ct := range centroids[1:] {
		if d := geo.DistanceKm(c, ct); d < min {
			min = d
		}
	}
	return min
}

func nearestCentroid(c poi.Coordinates, centroids []poi.Coordinates) int {
	best := 0
	bestDist := geo.DistanceKm(c, centroids[0])
	for j := 1; j < len(centroids); j++ {
		if d := geo.DistanceKm(c, centroids[j]); d < bestDist {
			bestDist = d
			best = j
		}
	}
	return best
}

// rebalance enforces the per-day capacity cap: clusters over the cap hand
// their lowest-confidence excess members to the nearest cluster with spare
// room. Capacity takes priority over geographic tightness.
func rebalance(clusters []*clusterState, maxPerDay int) {
	for _, c := range clusters {
		for len(c.members) > maxPerDay {
			idx := lowestConfidenceIndex(c.members)
			moved := c.members[idx]
			c.members = append(c.members[:idx], c.members[idx+1:]...)

			target := -1
			targetDist := 0.0
			for j, other := range clusters {
				if other == c || len(other.members) >= maxPerDay {
					continue
				}
				d := geo.DistanceKm(coords(moved), other.centroid)
				if target < 0 || d < targetDist {
					target = j
					targetDist = d
				}
			}
			// Capacity was validated up front, so a target always exists.
			clusters[target].members = insertByID(clusters[target].members, moved)
		}
	}
}

func lowestConfidenceIndex(members []poi.Verified) int {
	best := 0
	for i, m := range members {
		if m.Confidence < members[best].Confidence ||
			(m.Confidence == members[best].Confidence && m.Candidate.ID > members[best].Candidate.ID) {
			best = i
		}
	}
	return best
}

// insertByID keeps cluster members sorted by candidate ID.
func insertByID(members []poi.Verified, p poi.Verified) []poi.Verified {
	pos := sort.Search(len(members), func(i int) bool {
		return members[i].Candidate.ID > p.Candidate.ID
	})
	members = append(members, poi.Verified{})
	copy(members[pos+1:], members[pos:])
	members[pos] = p
	return members
}

// orderStops orders a day's stops by greedy nearest-neighbour traversal,
// starting from the stop closest to the cluster centroid. Distance ties
// break on the lower candidate ID; strict less-than comparisons preserve
// that because members are pre-sorted by ID.
func orderStops(members []poi.Verified, centroid poi.Coordinates) []poi.Verified {
	if len(members) <= 1 {
		return members
	}

	remaining := make([]poi.Verified, len(members))
	copy(remaining, members)

	startIdx := 0
	startDist := geo.DistanceKm(coords(remaining[0]), centroid)
	for i := 1; i < len(remaining); i++ {
		if d := geo.DistanceKm(coords(remaining[i]), centroid); d < startDist {
			startDist = d
			startIdx = i
		}
	}

	ordered := []poi.Verified{remaining[startIdx]}
	remaining = append(remaining[:startIdx], remaining[startIdx+1:]...)

	for len(remaining) > 0 {
		cur := coords(ordered[len(ordered)-1])
		nearest := 0
		nearestDist := geo.DistanceKm(cur, coords(remaining[0]))
		for i := 1; i < len(remaining); i++ {
			if d := geo.DistanceKm(cur, coords(remaining[i])); d < nearestDist {
				nearestDist = d
				nearest = i
			}
		}
		ordered = append(ordered, remaining[nearest])
		remaining = append(remaining[:nearest], remaining[nearest+1:]...)
	}
	return ordered
}

func routeKm(stops []poi.Verified) float64 {
	route := make([]poi.Coordinates, len(stops))
	for i, s := range stops {
		route[i] = coords(s)
	}
	return geo.RouteKm(route)
}
