package feed

// Canonical feed types

const StatusOK = "ok"

// Post is one aggregator-supplied article after cleaning and validation.
type Post struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	PublishedAt string `json:"pubDate"` // upstream text, never reformatted here
	Description string `json:"description"`
	Content     string `json:"content"`
	Thumbnail   string `json:"thumbnail,omitempty"` // empty means absent
	GUID        string `json:"guid"`
}

type Meta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// FeedResult keeps items in upstream order.
type FeedResult struct {
	Status string `json:"status"`
	Feed   Meta   `json:"feed"`
	Items  []Post `json:"items"`
}

// Source configuration types

type Source struct {
	Name          string         `yaml:"name"`
	FeedURL       string         `yaml:"feed_url"`
	AggregatorURL string         `yaml:"aggregator_url"`
	Settings      SourceSettings `yaml:"settings"`
}

type SourceSettings struct {
	RefreshInterval int `yaml:"refresh_interval"` // seconds
	Timeout         int `yaml:"timeout"`          // seconds, 0 disables
}
