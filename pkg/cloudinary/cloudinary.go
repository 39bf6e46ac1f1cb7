package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// ErrMissingCredentials indicates the archive was configured without an account.
var ErrMissingCredentials = errors.New("cloudinary credentials must be provided")

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	// UploadPrefix overrides the upload API host.
	UploadPrefix string
}

// RosterArchive keeps a copy of every uploaded roster as a raw Cloudinary asset.
type RosterArchive struct {
	client *cloudinary.Cloudinary
	folder string
	now    func() time.Time
	logger zerolog.Logger
}

// New constructs a roster archive.
func New(cfg Config, logger zerolog.Logger) (*RosterArchive, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrMissingCredentials
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	if cfg.UploadPrefix != "" {
		cld.Config.API.UploadPrefix = strings.TrimRight(cfg.UploadPrefix, "/")
	}

	return &RosterArchive{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		now:    time.Now,
		logger: logger.With().Str("component", "roster_archive").Logger(),
	}, nil
}

// Upload stores the roster and returns its secure URL.
func (a *RosterArchive) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	publicID := buildPublicID(name, a.now().UTC())
	overwrite := false

	result, err := a.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:       a.folder,
		PublicID:     publicID,
		ResourceType: "raw",
		Overwrite:    &overwrite,
		Tags:         []string{"roster"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive roster: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to archive roster: %s", result.Error.Message)
	}

	a.logger.Info().Str("public_id", result.PublicID).Int("bytes", result.Bytes).Msg("roster archived")
	return result.SecureURL, nil
}

// buildPublicID stamps the upload time into the name. Raw assets keep their extension.
func buildPublicID(name string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "roster"
	}

	return fmt.Sprintf("%s-%s%s", base, at.Format("20060102T150405"), ext)
}
