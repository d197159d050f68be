package segment

import (
	"math"
	"math/rand"
	"sort"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
	"github.com/rs/zerolog"
)

// KMeans clusters customers over standardized (total volume, average handle
// time) with a fixed k of 4 and a fixed seed, then ranks the centroids so
// numeric cluster ids map to the same four ordered labels the rule-based
// strategy produces: centroids sorted ascending by volume, then ascending by
// handle time within the low and high volume halves.
type KMeans struct {
	Overrides Overrides
	Seed      int64 // defaults to 42 when zero
	MaxIter   int   // defaults to 100 when zero
	Logger    zerolog.Logger
}

const clusterCount = 4

// Name implements Strategy.
func (k *KMeans) Name() string { return "kmeans" }

// Assign implements Strategy.
func (k *KMeans) Assign(profiles []types.CustomerProfile) []types.SegmentAssignment {
	out := make([]types.SegmentAssignment, 0, len(profiles))

	var active []types.CustomerProfile
	for _, p := range profiles {
		if k.Overrides.IsAbsence(p) {
			out = append(out, assignment(p, types.SegmentAbsence))
			continue
		}
		if p.TotalCalls == 0 {
			out = append(out, assignment(p, types.SegmentUnknown))
			continue
		}
		active = append(active, p)
		out = append(out, assignment(p, types.SegmentUnknown)) // placeholder, fixed below
	}

	if len(active) < clusterCount {
		// Too few active customers to form four clusters; degrade to the
		// rule-based buckets rather than failing.
		k.Logger.Warn().Int("active", len(active)).Msg("too few customers for k-means, using rule-based fallback")
		rb := &RuleBased{Overrides: k.Overrides, Logger: k.Logger}
		return rb.Assign(profiles)
	}

	points := standardize(active)
	labels, centroids := lloyd(points, clusterCount, k.seed(), k.maxIter())

	// Rank centroids on the raw scale to attach semantic labels.
	raw := rawCentroids(active, labels)
	labelByCluster := rankCentroids(raw)

	j := 0
	for i := range out {
		if out[i].Segment != types.SegmentUnknown || profiles[i].TotalCalls == 0 {
			continue
		}
		out[i].Segment = labelByCluster[labels[j]]
		j++
	}

	k.Logger.Info().
		Int("clustered", len(active)).
		Interface("centroids", centroids).
		Msg("k-means segmentation complete")
	return out
}

func (k *KMeans) seed() int64 {
	if k.Seed == 0 {
		return 42
	}
	return k.Seed
}

func (k *KMeans) maxIter() int {
	if k.MaxIter == 0 {
		return 100
	}
	return k.MaxIter
}

type point struct{ x, y float64 }

func standardize(profiles []types.CustomerProfile) []point {
	var meanX, meanY float64
	for _, p := range profiles {
		meanX += float64(p.TotalCalls)
		meanY += p.AvgHandleSecs
	}
	n := float64(len(profiles))
	meanX /= n
	meanY /= n

	var sdX, sdY float64
	for _, p := range profiles {
		sdX += (float64(p.TotalCalls) - meanX) * (float64(p.TotalCalls) - meanX)
		sdY += (p.AvgHandleSecs - meanY) * (p.AvgHandleSecs - meanY)
	}
	sdX = math.Sqrt(sdX / n)
	sdY = math.Sqrt(sdY / n)
	if sdX == 0 {
		sdX = 1
	}
	if sdY == 0 {
		sdY = 1
	}

	pts := make([]point, len(profiles))
	for i, p := range profiles {
		pts[i] = point{
			x: (float64(p.TotalCalls) - meanX) / sdX,
			y: (p.AvgHandleSecs - meanY) / sdY,
		}
	}
	return pts
}

// lloyd runs standard k-means with seeded random initialization. The fixed
// seed keeps assignments reproducible across runs on identical data.
func lloyd(pts []point, k int, seed int64, maxIter int) ([]int, []point) {
	rng := rand.New(rand.NewSource(seed))

	centroids := make([]point, k)
	perm := rng.Perm(len(pts))
	for i := 0; i < k; i++ {
		centroids[i] = pts[perm[i]]
	}

	labels := make([]int, len(pts))
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range pts {
			best, bestDist := 0, math.MaxFloat64
			for c, ctr := range centroids {
				d := (p.x-ctr.x)*(p.x-ctr.x) + (p.y-ctr.y)*(p.y-ctr.y)
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}

		counts := make([]int, k)
		sums := make([]point, k)
		for i, p := range pts {
			c := labels[i]
			counts[c]++
			sums[c].x += p.x
			sums[c].y += p.y
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster: reseed from a random point.
				centroids[c] = pts[rng.Intn(len(pts))]
				continue
			}
			centroids[c] = point{x: sums[c].x / float64(counts[c]), y: sums[c].y / float64(counts[c])}
		}
		if !changed {
			break
		}
	}
	return labels, centroids
}

func rawCentroids(profiles []types.CustomerProfile, labels []int) []point {
	sums := make([]point, clusterCount)
	counts := make([]int, clusterCount)
	for i, p := range profiles {
		c := labels[i]
		sums[c].x += float64(p.TotalCalls)
		sums[c].y += p.AvgHandleSecs
		counts[c]++
	}
	out := make([]point, clusterCount)
	for c := 0; c < clusterCount; c++ {
		if counts[c] > 0 {
			out[c] = point{x: sums[c].x / float64(counts[c]), y: sums[c].y / float64(counts[c])}
		}
	}
	return out
}

// rankCentroids orders clusters ascending by volume, splits them into low
// and high halves, and orders each half ascending by handle time.
func rankCentroids(centroids []point) map[int]types.BehaviorSegment {
	order := make([]int, len(centroids))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return centroids[order[a]].x < centroids[order[b]].x
	})

	low := order[:2]
	high := order[2:]
	sort.Slice(low, func(a, b int) bool { return centroids[low[a]].y < centroids[low[b]].y })
	sort.Slice(high, func(a, b int) bool { return centroids[high[a]].y < centroids[high[b]].y })

	return map[int]types.BehaviorSegment{
		low[0]:  types.SegmentLowVolumeShort,
		low[1]:  types.SegmentLowVolumeLong,
		high[0]: types.SegmentHighVolumeShort,
		high[1]: types.SegmentHighVolumeLong,
	}
}
