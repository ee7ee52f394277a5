package analytics

import (
	"math"

	"github.com/sentience/backend/internal/review"
)

// RatingCount is the number of reviews with a given star rating.
type RatingCount struct {
	Rating int `json:"rating"`
	Count  int `json:"count"`
}

// RatingDistribution counts reviews per star, five stars first.
type RatingDistribution struct {
	Ratings    []RatingCount `json:"ratings"`
	Unrated    int           `json:"unrated"`
	OutOfRange int           `json:"out_of_range"`
}

const (
	minStars = 1
	maxStars = 5
)

// RatingDistributionOf buckets ratings by their nearest whole star.
func RatingDistributionOf(records []review.Record) RatingDistribution {
	var counts [maxStars + 1]int
	dist := RatingDistribution{}

	for i := range records {
		r := records[i].Rating
		if r == nil {
			dist.Unrated++
			continue
		}
		stars := int(math.Round(*r))
		if stars < minStars || stars > maxStars {
			dist.OutOfRange++
			continue
		}
		counts[stars]++
	}

	dist.Ratings = make([]RatingCount, 0, maxStars)
	for stars := maxStars; stars >= minStars; stars-- {
		dist.Ratings = append(dist.Ratings, RatingCount{Rating: stars, Count: counts[stars]})
	}
	return dist
}

// LabelCount is the number of reviews with a given sentiment label.
type LabelCount struct {
	Label review.Label `json:"label"`
	Count int          `json:"count"`
}

// LabelDistribution counts reviews per sentiment label in review.Labels
// order.
type LabelDistribution struct {
	Labels    []LabelCount `json:"labels"`
	Unlabeled int          `json:"unlabeled"`
}

// LabelDistributionOf counts labeled reviews and tallies the rest as
// unlabeled.
func LabelDistributionOf(records []review.Record) LabelDistribution {
	dist := LabelDistribution{Labels: make([]LabelCount, len(review.Labels))}
	for i, l := range review.Labels {
		dist.Labels[i].Label = l
	}
	for i := range records {
		l := records[i].SentimentLabel
		if l == nil {
			dist.Unlabeled++
			continue
		}
		for j := range dist.Labels {
			if dist.Labels[j].Label == *l {
				dist.Labels[j].Count++
				break
			}
		}
	}
	return dist
}
