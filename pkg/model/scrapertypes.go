package model // import "github.com/9Nieo/petworld-market/pkg/model"

// ScraperPetMetadata is the display metadata resolved from a pet's token URI
type ScraperPetMetadata struct {
	name string

	image string

	description string
}

// NewScraperPetMetadata creates a new ScraperPetMetadata
func NewScraperPetMetadata(name string, image string, description string) *ScraperPetMetadata {
	return &ScraperPetMetadata{
		name:        name,
		image:       image,
		description: description,
	}
}

// Name returns the display name from the metadata
func (s *ScraperPetMetadata) Name() string {
	return s.name
}

// Image returns the image URL from the metadata
func (s *ScraperPetMetadata) Image() string {
	return s.image
}

// Description returns the description from the metadata
func (s *ScraperPetMetadata) Description() string {
	return s.description
}
