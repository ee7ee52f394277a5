package analytics

// KPI is the latest value of a bucket metric and its change from the
// previous bucket that had a value.
type KPI struct {
	Value *float64 `json:"value"`
	Delta float64  `json:"delta"`
}

// KPISummary holds the headline metrics shown above the time series.
type KPISummary struct {
	Reviews        KPI `json:"reviews"`
	AvgRating      KPI `json:"avg_rating"`
	SentimentIndex KPI `json:"sentiment_index"`
	PositiveRatio  KPI `json:"positive_ratio"`
	NeutralRatio   KPI `json:"neutral_ratio"`
	NegativeRatio  KPI `json:"negative_ratio"`
}

// Summarize reads the headline metrics off the last bucket. An empty series
// yields nil values with zero deltas.
func Summarize(buckets []Bucket) KPISummary {
	return KPISummary{
		Reviews: newKPI(buckets, func(b *Bucket) *float64 {
			v := float64(b.CumReviews)
			return &v
		}),
		AvgRating:      newKPI(buckets, func(b *Bucket) *float64 { return b.AvgRating }),
		SentimentIndex: newKPI(buckets, func(b *Bucket) *float64 { return b.SentimentIndex }),
		PositiveRatio:  newKPI(buckets, func(b *Bucket) *float64 { return b.PositiveRatio }),
		NeutralRatio:   newKPI(buckets, func(b *Bucket) *float64 { return b.NeutralRatio }),
		NegativeRatio:  newKPI(buckets, func(b *Bucket) *float64 { return b.NegativeRatio }),
	}
}

func newKPI(buckets []Bucket, field func(*Bucket) *float64) KPI {
	if len(buckets) == 0 {
		return KPI{}
	}
	return KPI{
		Value: field(&buckets[len(buckets)-1]),
		Delta: Delta(buckets, field),
	}
}

// Delta is the difference between the last two non-nil values of field.
// Fewer than two values give 0.
func Delta(buckets []Bucket, field func(*Bucket) *float64) float64 {
	var last, prev *float64
	for i := len(buckets) - 1; i >= 0; i-- {
		v := field(&buckets[i])
		if v == nil {
			continue
		}
		if last == nil {
			last = v
			continue
		}
		prev = v
		break
	}
	if last == nil || prev == nil {
		return 0
	}
	return *last - *prev
}
