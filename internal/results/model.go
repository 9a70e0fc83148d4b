package results

import (
	"encoding/json"
	"time"
)

// Analysis is the engine's verdict on one article.
type Analysis struct {
	Summary     string  `json:"summary" yaml:"summary"`
	Sentiment   string  `json:"sentiment" yaml:"sentiment"`
	ImpactScore float64 `json:"impact_score" yaml:"impact_score"`
	Reasoning   string  `json:"reasoning" yaml:"reasoning"`
}

// Item is one analysed news article for a holding.
type Item struct {
	Ticker     string   `json:"ticker" yaml:"ticker"`
	Headline   string   `json:"headline" yaml:"headline"`
	Source     string   `json:"source" yaml:"source"`
	ArticleURL string   `json:"article_url" yaml:"article_url"`
	Analysis   Analysis `json:"analysis" yaml:"analysis"`
}

// Document is the single results record kept per user.
// Results hold the items exactly as submitted so reads return what was written.
type Document struct {
	UserID      string            `json:"userId"`
	Results     []json.RawMessage `json:"results"`
	Timestamp   time.Time         `json:"timestamp"`
	ProcessedAt string            `json:"processedAt"`
}

// Items decodes the stored results. Entries that do not decode become zero Items
// so positions still line up with Results.
func (d Document) Items() []Item {
	items := make([]Item, len(d.Results))
	for i, raw := range d.Results {
		_ = json.Unmarshal(raw, &items[i])
	}
	return items
}

// isoMillis matches JavaScript's Date.prototype.toISOString.
func isoMillis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
