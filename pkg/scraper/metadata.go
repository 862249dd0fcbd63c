// Package scraper contains components to retrieve display metadata for
// listed pets from their token URIs.
package scraper // import "github.com/9Nieo/petworld-market/pkg/scraper"

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/9Nieo/petworld-market/pkg/model"
)

const (
	// defaultIPFSGateway serves ipfs:// token URIs over https
	defaultIPFSGateway = "https://ipfs.io/ipfs/"

	fetchTimeout = 10 * time.Second

	maxMetadataBytes = 1 << 20
)

// PetMetadataScraper resolves a token URI to display metadata. Resolution
// is best-effort; callers fall back to placeholder fields on error.
type PetMetadataScraper struct {
	client *http.Client

	ipfsGateway string
}

// NewPetMetadataScraper creates a PetMetadataScraper with the default
// http client and IPFS gateway
func NewPetMetadataScraper() *PetMetadataScraper {
	return &PetMetadataScraper{
		client:      &http.Client{Timeout: fetchTimeout},
		ipfsGateway: defaultIPFSGateway,
	}
}

// NewPetMetadataScraperWithClient creates a PetMetadataScraper with the
// given http client, for tests
func NewPetMetadataScraperWithClient(client *http.Client, ipfsGateway string) *PetMetadataScraper {
	return &PetMetadataScraper{
		client:      client,
		ipfsGateway: ipfsGateway,
	}
}

type petMetadataJSON struct {
	Name        string `json:"name"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

// ScrapeMetadata retrieves and parses the metadata document at the given
// token URI. ipfs:// URIs are rewritten to the configured https gateway.
func (s *PetMetadataScraper) ScrapeMetadata(uri string) (*model.ScraperPetMetadata, error) {
	fetchURL, err := s.NormalizeURI(uri)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Get(fetchURL)
	if err != nil {
		return nil, errors.Wrapf(err, "Error retrieving metadata from %v", fetchURL)
	}
	defer func() {
		_ = resp.Body.Close() // nolint: gosec
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("Error retrieving metadata from %v: status %v", fetchURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return nil, errors.Wrap(err, "Error reading metadata body")
	}

	parsed := &petMetadataJSON{}
	err = json.Unmarshal(body, parsed)
	if err != nil {
		return nil, errors.Wrapf(err, "Error parsing metadata from %v", fetchURL)
	}

	image, err := s.NormalizeURI(parsed.Image)
	if err != nil {
		// A bad image URI does not fail the whole document
		image = ""
	}
	return model.NewScraperPetMetadata(parsed.Name, image, parsed.Description), nil
}

// NormalizeURI rewrites an ipfs:// URI to the https gateway form and
// rejects schemes the scraper cannot fetch. An empty URI maps to an empty
// result without error.
func (s *PetMetadataScraper) NormalizeURI(uri string) (string, error) {
	if uri == "" {
		return "", nil
	}
	if strings.HasPrefix(uri, "ipfs://") {
		return fmt.Sprintf("%s%s", s.ipfsGateway, strings.TrimPrefix(uri, "ipfs://")), nil
	}
	lowered := strings.ToLower(uri)
	if strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://") {
		return uri, nil
	}
	return "", errors.Errorf("Unsupported metadata URI scheme: %v", uri)
}
