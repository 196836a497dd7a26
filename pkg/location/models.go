package location

// Location represents the geographical coordinates of a device
type Location struct {
	Latitude  float64 `yaml:"lat"`
	Longitude float64 `yaml:"lng"`
	Accuracy  float64 `yaml:"accuracy"`
}
