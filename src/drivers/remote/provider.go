package remote

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Namespace is the fixed base prefix every asset lives under.
const Namespace = "guides"

// AssetPath addresses one object in the remote tree:
// guides/<tenant>/<fileName>.
type AssetPath struct {
	Tenant   string
	FileName string
}

// Segments returns the full slash-free path segments, namespace first.
func (p AssetPath) Segments() []string {
	return []string{Namespace, p.Tenant, p.FileName}
}

// Dir returns the segments of the containing directory.
func (p AssetPath) Dir() []string {
	return []string{Namespace, p.Tenant}
}

func (p AssetPath) String() string {
	return path.Join(Namespace, p.Tenant, p.FileName)
}

// Characters that would break path addressing on the wire. Callers are
// expected to sanitize user-supplied names before building an AssetPath;
// Validate is the hard stop behind that.
const reservedChars = "/\\\r\n\x00"

// Validate rejects empty or protocol-unsafe segments.
func (p AssetPath) Validate() error {
	for _, seg := range p.Segments() {
		if err := validateSegment(seg); err != nil {
			return err
		}
	}
	return nil
}

func validateSegment(seg string) error {
	if seg == "" {
		return fmt.Errorf("empty path segment")
	}
	if seg == "." || seg == ".." {
		return fmt.Errorf("path segment %q is reserved", seg)
	}
	if strings.ContainsAny(seg, reservedChars) {
		return fmt.Errorf("path segment %q contains reserved characters", seg)
	}
	return nil
}

// ValidateTenant checks a tenant slug on its own (tree-level operations
// carry no filename).
func ValidateTenant(tenant string) error {
	return validateSegment(tenant)
}

// ObjectStore is the interface for remote asset backends. All operations
// are self-contained: each one acquires whatever connection it needs and
// releases it before returning.
//
// Delete operations report absence as (false, nil) - deleting something
// that is already gone is not an error.
type ObjectStore interface {
	// UploadObject writes a fully-materialized buffer and returns the
	// public URL the object is served from. Uploads overwrite by filename,
	// so retrying a failed upload as a whole is always safe.
	UploadObject(ctx context.Context, p AssetPath, data []byte) (string, error)

	// DeleteObject removes a single file. Returns true only on confirmed
	// removal of a plain file.
	DeleteObject(ctx context.Context, p AssetPath) (bool, error)

	// DeleteTree removes a tenant's whole subtree under the namespace.
	// Partial progress on failure is acceptable; a second call finishes
	// the job.
	DeleteTree(ctx context.Context, tenant string) (bool, error)

	// Ping performs a diagnostic listing against the backend.
	Ping(ctx context.Context) error
}

// JoinPublicURL builds the public URL for an asset path under base.
func JoinPublicURL(base string, p AssetPath) string {
	return strings.TrimRight(base, "/") + "/" + p.String()
}
