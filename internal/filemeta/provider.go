// Package filemeta provides FileDigest metadata: the content digest of one
// source file. It is the physical-fact upstream that other providers depend on
// when they need to know that a file changed.
package filemeta

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/conduit-lang/metagraph/internal/metadata"
	"github.com/conduit-lang/metagraph/internal/metadata/mid"
)

const (
	// MetadataClass is the class name of FileDigest metadata.
	MetadataClass = "FileDigest"
	// ResourcePrefix starts the upstream identifier of a watched file.
	ResourcePrefix = "file:"
)

// ProvidesType is the class identifier of FileDigest metadata.
var ProvidesType = mid.MustClassIdentifier(MetadataClass)

// Digest is the FileDigest metadata of one file. It is invalid when the file
// could not be read.
type Digest struct {
	metadata.BaseItem
	Path string
	Hash string
	Size int64
}

// InstanceID returns the FileDigest identifier for path.
func InstanceID(path string) (string, error) {
	return mid.CreateInstanceIdentifier(MetadataClass, filepath.Clean(path))
}

// ResourceID returns the upstream identifier for changes to path.
func ResourceID(path string) string {
	return ResourcePrefix + filepath.Clean(path)
}

// Provider computes Digest items. It is registered with a metadata Service and
// tracks files by registering resource dependencies on the Service's registry.
type Provider struct {
	svc    *metadata.Service
	hasher *Hasher
	logger *zap.Logger
}

// NewProvider creates a provider bound to svc. The caller registers it.
func NewProvider(svc *metadata.Service, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		svc:    svc,
		hasher: NewHasher(),
		logger: logger,
	}
}

// ProvidesType implements metadata.Provider.
func (p *Provider) ProvidesType() string {
	return ProvidesType
}

// Get implements metadata.Provider. A missing file yields an invalid item.
func (p *Provider) Get(id string) (metadata.Item, error) {
	if mid.ClassIdentifierOf(id) != ProvidesType {
		return nil, fmt.Errorf("%w: %s is not a %s identifier", metadata.ErrInvalidIdentifier, id, MetadataClass)
	}
	path := mid.InstanceKey(id)

	digest, err := p.hasher.SumFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			p.logger.Debug("file digest unavailable", zap.String("path", path), zap.Error(err))
			return &Digest{BaseItem: metadata.NewBaseItem(id, false), Path: path}, nil
		}
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return &Digest{
		BaseItem: metadata.NewBaseItem(id, true),
		Path:     path,
		Hash:     digest.Hash,
		Size:     digest.Size,
	}, nil
}

// Track registers the file resource of path as the upstream of its digest and
// returns the digest identifier.
func (p *Provider) Track(path string) (string, error) {
	id, err := InstanceID(path)
	if err != nil {
		return "", err
	}
	if err := p.svc.Dependencies().RegisterDependency(ResourceID(path), id); err != nil {
		return "", err
	}
	return id, nil
}

// Untrack removes the edges registered by Track and evicts the cached digest.
func (p *Provider) Untrack(path string) error {
	id, err := InstanceID(path)
	if err != nil {
		return err
	}
	if err := p.svc.Dependencies().DeregisterDependencies(id); err != nil {
		return err
	}
	return p.svc.Evict(id)
}

// Digest returns the current digest of path through the Service cache.
func (p *Provider) Digest(path string) (*Digest, error) {
	id, err := InstanceID(path)
	if err != nil {
		return nil, err
	}
	item, err := p.svc.Get(id)
	if err != nil {
		return nil, err
	}
	digest, _ := item.(*Digest)
	return digest, nil
}
