package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const cloudinaryScheme = "cloudinary:"

// CloudinaryStorage uploads artifacts as private Cloudinary assets and hands
// out time-limited download URLs for them.
type CloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
	now    func() time.Time
}

func NewCloudinaryStorage(cloudinaryURL, folder string) (*CloudinaryStorage, error) {
	if cloudinaryURL == "" {
		return nil, errors.New("CLOUDINARY_URL is required for cloudinary storage")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStorage{cld: cld, folder: folder, now: time.Now}, nil
}

func resourceTypeFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "raw"
	}
}

func (s *CloudinaryStorage) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	resourceType := resourceTypeFor(contentType)
	publicID := key
	if resourceType != "raw" {
		publicID = strings.TrimSuffix(key, path.Ext(key))
	}

	overwrite := true
	res, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     publicID,
		Folder:       s.folder,
		ResourceType: resourceType,
		Type:         api.Private,
		Overwrite:    &overwrite,
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload %s: %w", key, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload %s: %s", key, res.Error.Message)
	}

	locator := cloudinaryScheme + resourceType + "/" + res.PublicID
	if resourceType != "raw" && res.Format != "" {
		locator += "." + res.Format
	}
	return locator, nil
}

type cloudinaryAsset struct {
	resourceType string
	publicID     string
	format       string
}

func parseCloudinaryLocator(locator string) (cloudinaryAsset, error) {
	rest, ok := strings.CutPrefix(locator, cloudinaryScheme)
	if !ok {
		return cloudinaryAsset{}, fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	resourceType, id, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		return cloudinaryAsset{}, fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}

	asset := cloudinaryAsset{resourceType: resourceType, publicID: id}
	if resourceType != "raw" {
		if ext := path.Ext(id); ext != "" {
			asset.format = ext[1:]
			asset.publicID = strings.TrimSuffix(id, ext)
		}
	}
	return asset, nil
}

// Sign builds a private download URL; Cloudinary rejects it after expires_at.
func (s *CloudinaryStorage) Sign(_ context.Context, locator string, ttl time.Duration) (string, error) {
	asset, err := parseCloudinaryLocator(locator)
	if err != nil {
		return "", err
	}

	now := s.now()
	params := url.Values{}
	params.Set("public_id", asset.publicID)
	if asset.format != "" {
		params.Set("format", asset.format)
	}
	params.Set("type", string(api.Private))
	params.Set("timestamp", strconv.FormatInt(now.Unix(), 10))
	params.Set("expires_at", strconv.FormatInt(now.Add(ttl).Unix(), 10))

	signature, err := api.SignParameters(params, s.cld.Config.Cloud.APISecret)
	if err != nil {
		return "", fmt.Errorf("sign download params: %w", err)
	}
	params.Set("signature", signature)
	params.Set("api_key", s.cld.Config.Cloud.APIKey)

	return fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/%s/download?%s",
		s.cld.Config.Cloud.CloudName, asset.resourceType, params.Encode()), nil
}

func (s *CloudinaryStorage) Delete(ctx context.Context, locator string) error {
	asset, err := parseCloudinaryLocator(locator)
	if err != nil {
		return err
	}

	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     asset.publicID,
		ResourceType: asset.resourceType,
		Type:         api.Private,
	})
	if err != nil {
		return fmt.Errorf("cloudinary destroy %s: %w", locator, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy %s: %s", locator, res.Error.Message)
	}
	if res.Result != "ok" && res.Result != "not found" {
		return fmt.Errorf("cloudinary destroy %s: %s", locator, res.Result)
	}
	return nil
}
