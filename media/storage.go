package media

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Storage holds processed media artifacts. A locator is the opaque string
// Put returns; it is what gets persisted on a GalleryItem.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	// Sign returns a URL granting read access to locator until ttl elapses.
	Sign(ctx context.Context, locator string, ttl time.Duration) (string, error)
	// Delete removes the artifact. Deleting a missing artifact is not an error.
	Delete(ctx context.Context, locator string) error
}

// Locators tells backends apart so artifacts written before a storage switch
// can still be signed and deleted.
type Locators struct {
	Local      Storage
	Cloudinary Storage
	Default    Storage
}

func (l *Locators) backend(locator string) (Storage, error) {
	if strings.HasPrefix(locator, cloudinaryScheme) {
		if l.Cloudinary == nil {
			return nil, fmt.Errorf("%w: no cloudinary backend for %q", ErrInvalidLocator, locator)
		}
		return l.Cloudinary, nil
	}
	if l.Local == nil {
		return nil, fmt.Errorf("%w: no local backend for %q", ErrInvalidLocator, locator)
	}
	return l.Local, nil
}

func (l *Locators) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	return l.Default.Put(ctx, key, r, contentType)
}

func (l *Locators) Sign(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	b, err := l.backend(locator)
	if err != nil {
		return "", err
	}
	return b.Sign(ctx, locator, ttl)
}

func (l *Locators) Delete(ctx context.Context, locator string) error {
	b, err := l.backend(locator)
	if err != nil {
		return err
	}
	return b.Delete(ctx, locator)
}
