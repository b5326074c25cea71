// Package images turns data-URI payloads into files under a public directory
// and hands back the relative reference stored on survey records.
package images

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Dir is the directory, relative to the codec root, that holds stored images.
const Dir = "images"

var (
	ErrInvalidImageFormat   = errors.New("did not match data URI with image data")
	ErrUnsupportedImageType = errors.New("invalid image type")
	ErrDecode               = errors.New("base64 decode failed")
	ErrInvalidRef           = errors.New("invalid image reference")
)

var allowedTypes = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"png":  true,
}

var reDataURI = regexp.MustCompile(`^data:image/(\w+);base64,`)

var writeFile = os.WriteFile

// StorageError reports a filesystem failure while writing or deleting an image.
type StorageError struct {
	Op  string
	Ref string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("image %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Image is a decoded payload ready to be written.
type Image struct {
	Ext  string
	Data []byte
}

type Codec struct {
	root string
}

func NewCodec(root string) *Codec {
	return &Codec{root: root}
}

func (c *Codec) Decode(payload string) (Image, error) {
	match := reDataURI.FindStringSubmatch(payload)
	if match == nil {
		return Image{}, ErrInvalidImageFormat
	}

	ext := strings.ToLower(match[1])
	if !allowedTypes[ext] {
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedImageType, ext)
	}

	encoded := payload[len(match[0]):]
	encoded = strings.ReplaceAll(encoded, " ", "+")
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty image", ErrDecode)
	}

	// the declared subtype is trusted for the extension; only bytes that
	// positively identify as another kind of file are refused
	if mime := mimetype.Detect(data); !plausibleImage(mime) {
		return Image{}, fmt.Errorf("%w: content is %s", ErrDecode, mime.String())
	}

	return Image{Ext: ext, Data: data}, nil
}

func plausibleImage(mime *mimetype.MIME) bool {
	// text/plain and octet-stream are the fallbacks for unrecognised bytes
	if mime.Is("application/octet-stream") || mime.Is("text/plain") {
		return true
	}
	for m := mime; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

// Store writes img under a fresh random name and returns its relative reference.
func (c *Codec) Store(img Image) (string, error) {
	ref := path.Join(Dir, uuid.NewString()+"."+img.Ext)

	dir := filepath.Join(c.root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &StorageError{Op: "mkdir", Ref: ref, Err: err}
	}

	if err := writeFile(c.Path(ref), img.Data, 0o644); err != nil {
		if rmErr := os.Remove(c.Path(ref)); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = multierror.Append(err, rmErr)
		}
		return "", &StorageError{Op: "write", Ref: ref, Err: err}
	}
	return ref, nil
}

func (c *Codec) DecodeAndStore(payload string) (string, error) {
	img, err := c.Decode(payload)
	if err != nil {
		return "", err
	}
	return c.Store(img)
}

// Release deletes the referenced image. A missing file is not an error.
func (c *Codec) Release(ref string) error {
	if !validRef(ref) {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}

	err := os.Remove(c.Path(ref))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StorageError{Op: "delete", Ref: ref, Err: err}
	}
	return nil
}

// Exists reports whether ref resolves to a stored file.
func (c *Codec) Exists(ref string) bool {
	if !validRef(ref) {
		return false
	}
	info, err := os.Stat(c.Path(ref))
	return err == nil && info.Mode().IsRegular()
}

// Path resolves ref to a filesystem path below the codec root.
func (c *Codec) Path(ref string) string {
	return filepath.Join(c.root, filepath.FromSlash(ref))
}

func (c *Codec) Root() string {
	return c.root
}

func validRef(ref string) bool {
	clean := path.Clean(ref)
	return clean == ref && path.Dir(clean) == Dir && !strings.HasPrefix(path.Base(clean), ".")
}
