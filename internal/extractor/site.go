package extractor

// Site describes how one search site differs from the others. It is passed by
// value to the extractor, the search client and the scanner.
type Site struct {
	Name      string `yaml:"name" json:"name"`
	BaseURL   string `yaml:"base_url" json:"base_url"`   // public site root, used for property and search URLs
	Endpoint  string `yaml:"endpoint" json:"endpoint"`   // search API endpoint
	Authority string `yaml:"authority" json:"authority"` // value of the authority request header

	// PointRateField is the raw room field holding the effective point rate
	PointRateField string `yaml:"point_rate_field" json:"point_rate_field"`
}
