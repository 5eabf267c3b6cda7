package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/blang/semver"

	"github.com/janelia-flyem/szinterp/sz"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ContentType is the MIME type given to archived compressed grids.
const ContentType = "application/x-szinterp"

// FormatVersion is the version of the compressed stream written by this package.
// Archives with a different major version can't be read.
var FormatVersion = semver.MustParse("1.0.0")

// ErrNotFound is returned when an archive key doesn't exist.
var ErrNotFound = errors.New("archive not found")

// Metadata describes a compressed grid.  It is kept with each archive so it can
// be decompressed without other configuration.
type Metadata struct {
	Dims         sz.Dims
	DataType     sz.DataType
	ErrorBound   float64
	BlockSize    int
	Interpolator string
	Direction    int
	Encoder      string
	Lossless     string
	Checksum     string
	Version      semver.Version
}

// blob attribute keys; gocloud lowercases metadata keys
const (
	keyDims         = "dims"
	keyDataType     = "datatype"
	keyErrorBound   = "errorbound"
	keyBlockSize    = "blocksize"
	keyInterpolator = "interpolator"
	keyDirection    = "direction"
	keyEncoder      = "encoder"
	keyLossless     = "lossless"
	keyChecksum     = "checksum"
	keyVersion      = "version"
)

func (m Metadata) attributes() map[string]string {
	version := m.Version
	if version.Equals(semver.Version{}) {
		version = FormatVersion
	}
	return map[string]string{
		keyDims:         m.Dims.String(),
		keyDataType:     m.DataType.String(),
		keyErrorBound:   strconv.FormatFloat(m.ErrorBound, 'g', -1, 64),
		keyBlockSize:    strconv.Itoa(m.BlockSize),
		keyInterpolator: m.Interpolator,
		keyDirection:    strconv.Itoa(m.Direction),
		keyEncoder:      m.Encoder,
		keyLossless:     m.Lossless,
		keyChecksum:     m.Checksum,
		keyVersion:      version.String(),
	}
}

func parseMetadata(attrs map[string]string) (m Metadata, err error) {
	get := func(key string) (string, error) {
		v, found := attrs[key]
		if !found {
			return "", fmt.Errorf("archive metadata has no %q", key)
		}
		return v, nil
	}
	var s string
	if s, err = get(keyVersion); err != nil {
		return
	}
	if m.Version, err = semver.Parse(s); err != nil {
		return m, fmt.Errorf("bad archive version %q: %v", s, err)
	}
	if m.Version.Major != FormatVersion.Major {
		return m, fmt.Errorf("archive version %s is incompatible with supported version %s", m.Version, FormatVersion)
	}
	if s, err = get(keyDims); err != nil {
		return
	}
	if m.Dims, err = sz.StringToDims(s, "x"); err != nil {
		return
	}
	if s, err = get(keyDataType); err != nil {
		return
	}
	if m.DataType, err = sz.ParseDataType(s); err != nil {
		return
	}
	if s, err = get(keyErrorBound); err != nil {
		return
	}
	if m.ErrorBound, err = strconv.ParseFloat(s, 64); err != nil {
		return m, fmt.Errorf("bad error bound %q: %v", s, err)
	}
	if s, err = get(keyBlockSize); err != nil {
		return
	}
	if m.BlockSize, err = strconv.Atoi(s); err != nil {
		return m, fmt.Errorf("bad block size %q: %v", s, err)
	}
	if s, err = get(keyDirection); err != nil {
		return
	}
	if m.Direction, err = strconv.Atoi(s); err != nil {
		return m, fmt.Errorf("bad direction %q: %v", s, err)
	}
	m.Interpolator = attrs[keyInterpolator]
	m.Encoder = attrs[keyEncoder]
	m.Lossless = attrs[keyLossless]
	m.Checksum = attrs[keyChecksum]
	return m, nil
}

// Archive stores compressed grids with their Metadata in a blob bucket.
type Archive struct {
	bucket *blob.Bucket
	ref    string
}

// NewArchive returns an Archive using an already opened bucket.
func NewArchive(bucket *blob.Bucket, ref string) *Archive {
	return &Archive{bucket: bucket, ref: ref}
}

// Open returns an Archive for a bucket reference accepted by OpenBucket.
func Open(ctx context.Context, ref string) (*Archive, error) {
	bucket, err := OpenBucket(ctx, ref)
	if err != nil {
		return nil, err
	}
	return NewArchive(bucket, ref), nil
}

func (a *Archive) String() string {
	return fmt.Sprintf("archive @ %s", a.ref)
}

// Put stores a compressed grid under key.
func (a *Archive) Put(ctx context.Context, key string, payload []byte, m Metadata) error {
	opts := &blob.WriterOptions{
		ContentType: ContentType,
		Metadata:    m.attributes(),
	}
	if err := a.bucket.WriteAll(ctx, key, payload, opts); err != nil {
		return fmt.Errorf("writing %q to %s: %v", key, a, err)
	}
	sz.Debugf("Stored %d bytes of %s %s grid as %q in %s\n", len(payload), m.Dims, m.DataType, key, a)
	return nil
}

// Get returns a compressed grid and its Metadata.
func (a *Archive) Get(ctx context.Context, key string) ([]byte, Metadata, error) {
	attrs, err := a.bucket.Attributes(ctx, key)
	if err != nil {
		return nil, Metadata{}, a.wrap(key, err)
	}
	m, err := parseMetadata(attrs.Metadata)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("%q in %s: %v", key, a, err)
	}
	payload, err := a.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, Metadata{}, a.wrap(key, err)
	}
	return payload, m, nil
}

// Delete removes key from the archive.
func (a *Archive) Delete(ctx context.Context, key string) error {
	if err := a.bucket.Delete(ctx, key); err != nil {
		return a.wrap(key, err)
	}
	return nil
}

// Keys returns the keys with the given prefix in lexicographic order.
func (a *Archive) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := a.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s: %v", a, err)
		}
		if obj.IsDir || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (a *Archive) Close() error {
	return a.bucket.Close()
}

func (a *Archive) wrap(key string, err error) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return fmt.Errorf("%w: %q in %s", ErrNotFound, key, a)
	}
	return fmt.Errorf("%q in %s: %v", key, a, err)
}
