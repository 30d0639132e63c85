package fundamental

import (
	"github.com/newthinker/prism/internal/core"
)

// PercentileRanks places each of target's metrics within the distribution
// of the same metric across peers, in [0, 100]. Ties count half. A metric is
// omitted when the target or every peer lacks it.
func PercentileRanks(target core.FundamentalData, peers []core.FundamentalData) map[string]float64 {
	ranks := make(map[string]float64)
	if len(peers) == 0 {
		return ranks
	}

	for _, m := range metrics {
		tv := m.value(target)
		if !usable(tv) {
			continue
		}

		var below, equal, n float64
		for _, peer := range peers {
			pv := m.value(peer)
			if !usable(pv) {
				continue
			}
			n++
			switch {
			case *pv < *tv:
				below++
			case *pv == *tv:
				equal++
			}
		}
		if n == 0 {
			continue
		}
		ranks[m.key] = (below + 0.5*equal) / n * 100
	}
	return ranks
}
