// Package media resolves asset references from the backend into delivery
// URLs.
package media

import (
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
)

const (
	avatarTransformation  = "c_fill,g_face,h_96,w_96"
	productTransformation = "c_limit,w_480"
)

// Resolver turns Cloudinary public ids into delivery URLs. Absolute URLs
// pass through unchanged.
type Resolver struct {
	cld *cloudinary.Cloudinary
}

// NewResolver creates a Resolver for cloudName. With an empty cloudName the
// resolver only passes references through.
func NewResolver(cloudName string) (*Resolver, error) {
	if cloudName == "" {
		return &Resolver{}, nil
	}

	cld, err := cloudinary.NewFromParams(cloudName, "", "")
	if err != nil {
		return nil, fmt.Errorf("configuring cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	cld.Config.URL.Analytics = false

	return &Resolver{cld: cld}, nil
}

// Avatar returns a face-cropped thumbnail URL.
func (r *Resolver) Avatar(ref string) string {
	return r.resolve(ref, avatarTransformation)
}

// ProductImage returns a width-limited product image URL.
func (r *Resolver) ProductImage(ref string) string {
	return r.resolve(ref, productTransformation)
}

func (r *Resolver) resolve(ref, transformation string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || isAbsolute(ref) || r.cld == nil {
		return ref
	}

	img, err := r.cld.Image(ref)
	if err != nil {
		return ref
	}
	img.Transformation = transformation

	u, err := img.String()
	if err != nil {
		return ref
	}
	return u
}

func isAbsolute(ref string) bool {
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "data:")
}
