// Package messages holds every user-visible sentence the bot sends.
package messages

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog is the set of user-visible texts.
type Catalog struct {
	Start          string `yaml:"start"`
	EstimateFailed string `yaml:"estimate_failed"`
	DefaultHeading string `yaml:"default_heading"`
	RevisionPrefix string `yaml:"revision_prefix"`
	Reset          string `yaml:"reset"`

	MediaDetected    string `yaml:"media_detected"`
	ButtonAudio      string `yaml:"button_audio"`
	ButtonVideo      string `yaml:"button_video"`
	ButtonRetry      string `yaml:"button_retry"`
	ButtonCancel     string `yaml:"button_cancel"`
	DownloadingAudio string `yaml:"downloading_audio"`
	DownloadingVideo string `yaml:"downloading_video"`
	AudioDelivered   string `yaml:"audio_delivered"`
	VideoDelivered   string `yaml:"video_delivered"`
	MissingURL       string `yaml:"missing_url"`
	Cancelled        string `yaml:"cancelled"`
	NoStream         string `yaml:"no_stream"`
	Timeout          string `yaml:"timeout"`
	SiteBlocked      string `yaml:"site_blocked"`
	DownloadFailed   string `yaml:"download_failed"`
	EmptyArtifact    string `yaml:"empty_artifact"`
	UploadFailed     string `yaml:"upload_failed"`
	Oversize         string `yaml:"oversize"` // %.1f size in MB, %d limit in MB
}

// Default returns the built-in catalog.
func Default() *Catalog {
	var c Catalog
	if err := yaml.Unmarshal(defaultCatalog, &c); err != nil {
		panic(fmt.Sprintf("messages: embedded catalog is invalid: %v", err))
	}
	return &c
}

// Load returns the built-in catalog with the keys present in path replacing
// the defaults. An empty path returns the defaults.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read messages file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse messages file %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("messages file %s: %w", path, err)
	}
	return c, nil
}

// validate checks that templated texts take exactly the arguments they are
// formatted with.
func (c *Catalog) validate() error {
	if strings.Contains(c.OversizeWarning(3*1024*1024, 50*1024*1024), "%!") {
		return fmt.Errorf("oversize must use exactly one %%.1f (size) and one %%d (limit) verb, got %q", c.Oversize)
	}
	return nil
}

// OversizeWarning formats the soft warning for a video above the ceiling.
func (c *Catalog) OversizeWarning(size, limit int64) string {
	return fmt.Sprintf(c.Oversize, float64(size)/(1024*1024), limit/(1024*1024))
}
