package game

import (
	"math"
	"sort"

	"github.com/pointdeck/backend/internal/deck"
)

// Stats summarizes a revealed round. Average and median are nil when no
// numeric votes were cast (e.g. a t-shirt deck or only sentinel cards).
type Stats struct {
	Average      *float64    `json:"average"`
	Median       *float64    `json:"median"`
	Distribution []VoteCount `json:"distribution"`
	Consensus    bool        `json:"consensus"`
}

// VoteCount is the tally for one distinct card value. Distribution entries
// appear in first-vote order, which keeps repeated computations stable.
type VoteCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// computeStats derives round statistics from the unredacted vote set.
// Spectators never contribute. Sentinel cards count in the distribution
// and in consensus, but are excluded from average and median.
func computeStats(g *Game) *Stats {
	var cast []string
	for _, id := range g.order {
		p := g.players[id]
		if p.Role == RoleSpectator || !p.HasVoted || p.Vote == nil {
			continue
		}
		cast = append(cast, *p.Vote)
	}

	var numeric []float64
	for _, v := range cast {
		if n, ok := deck.NumericValue(v); ok {
			numeric = append(numeric, n)
		}
	}
	sort.Float64s(numeric)

	var distribution []VoteCount
	for _, v := range cast {
		found := false
		for i := range distribution {
			if distribution[i].Value == v {
				distribution[i].Count++
				found = true
				break
			}
		}
		if !found {
			distribution = append(distribution, VoteCount{Value: v, Count: 1})
		}
	}

	s := &Stats{
		Distribution: distribution,
		Consensus:    len(cast) > 1 && allEqual(cast),
	}

	if len(numeric) > 0 {
		sum := 0.0
		for _, n := range numeric {
			sum += n
		}
		avg := math.Round(sum/float64(len(numeric))*10) / 10
		s.Average = &avg

		var med float64
		mid := len(numeric) / 2
		if len(numeric)%2 == 0 {
			med = (numeric[mid-1] + numeric[mid]) / 2
		} else {
			med = numeric[mid]
		}
		s.Median = &med
	}

	return s
}

func allEqual(votes []string) bool {
	for _, v := range votes[1:] {
		if v != votes[0] {
			return false
		}
	}
	return true
}
