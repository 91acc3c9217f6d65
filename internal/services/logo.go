package services

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const logoFolder = "connectpro/logos"

// FileFetcher downloads raw bytes for a platform file reference.
type FileFetcher func(ctx context.Context, fileRef string) ([]byte, error)

// LogoService mirrors owner logos from the chat platform to Cloudinary
// so they stay reachable after the platform file reference expires.
type LogoService struct {
	cld   *cloudinary.Cloudinary
	fetch FileFetcher
}

func NewLogoService(cloudName, apiKey, apiSecret string, fetch FileFetcher) (*LogoService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}

	return &LogoService{
		cld:   cld,
		fetch: fetch,
	}, nil
}

// Mirror downloads the referenced photo and re-hosts it, returning the
// stable URL.
func (s *LogoService) Mirror(ctx context.Context, fileRef string) (string, error) {
	data, err := s.fetch(ctx, fileRef)
	if err != nil {
		return "", fmt.Errorf("failed to fetch logo: %w", err)
	}

	uploadResult, err := s.cld.Upload.Upload(ctx, data, uploader.UploadParams{
		Folder:       logoFolder,
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}

	return uploadResult.SecureURL, nil
}
