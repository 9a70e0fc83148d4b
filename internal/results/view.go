package results

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LoadFailedMessage is shown when a subscription cannot read the results store.
const LoadFailedMessage = "Failed to load analysis results. Make sure the results store is reachable."

// ItemView is an Item with presentation hints.
type ItemView struct {
	Item
	SentimentClass string `json:"sentimentClass"`
	ImpactLevel    string `json:"impactLevel"`
}

// View is the dashboard's live results state for one user.
type View struct {
	Loading           bool       `json:"loading"`
	Results           []ItemView `json:"results"`
	Error             string     `json:"error,omitempty"`
	FallbackAvailable bool       `json:"fallbackAvailable"`
	Count             int        `json:"count"`
	AverageImpact     int64      `json:"averageImpact"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
	ProcessedAt       string     `json:"processedAt,omitempty"`
}

// NewView returns the state shown before the first snapshot arrives.
func NewView() View {
	return View{Loading: true, Results: []ItemView{}}
}

// Apply folds a snapshot into the view. A failed read keeps the last results on screen.
func (v View) Apply(snap Snapshot) View {
	v.Loading = false
	if snap.Err != nil {
		v.Error = LoadFailedMessage
		v.FallbackAvailable = true
		return v
	}

	v.Error = ""
	v.FallbackAvailable = false
	v.UpdatedAt = nil
	v.ProcessedAt = ""
	v.Results = []ItemView{}
	if snap.Exists {
		for _, item := range snap.Document.Items() {
			v.Results = append(v.Results, ItemView{
				Item:           item,
				SentimentClass: SentimentClass(item.Analysis.Sentiment),
				ImpactLevel:    ImpactLevel(item.Analysis.ImpactScore),
			})
		}
		if !snap.Document.Timestamp.IsZero() {
			ts := snap.Document.Timestamp
			v.UpdatedAt = &ts
		}
		v.ProcessedAt = snap.Document.ProcessedAt
	}
	v.Count = len(v.Results)
	v.AverageImpact = AverageImpact(v.Results)
	return v
}

// AverageImpact is the mean impact score rounded half up, or 0 for no items.
func AverageImpact(items []ItemView) int64 {
	if len(items) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.Analysis.ImpactScore))
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(items))))
	// floor(x + 0.5) rounds negative halves toward +inf
	return mean.Add(decimal.NewFromFloat(0.5)).Floor().IntPart()
}

// SentimentClass maps a sentiment label to a style class.
func SentimentClass(sentiment string) string {
	switch strings.ToLower(sentiment) {
	case "positive":
		return "positive"
	case "negative":
		return "negative"
	default:
		return "neutral"
	}
}

// ImpactLevel buckets an impact score.
func ImpactLevel(score float64) string {
	switch {
	case score >= 70:
		return "high"
	case score >= 40:
		return "medium"
	default:
		return "low"
	}
}
