package cfg

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Cfg struct {
	// Server configuration
	Host      string
	Port      string
	Env       string
	BaseUrl   string
	StaticDir string

	// Upstream configuration
	AggregatorURL   string
	FeedURL         string
	SourceFile      string
	RefreshInterval int // seconds
	UpstreamTimeout int // seconds, 0 disables

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}
