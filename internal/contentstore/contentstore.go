// Package contentstore stores user-supplied files (profile photos and
// message/response attachments) and hands back a public URL.
package contentstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/iliyamo/peer-support/internal/ids"
)

// ErrForeignURL is returned by Delete for URLs this store did not issue.
var ErrForeignURL = errors.New("contentstore: url not owned by this store")

// Store uploads and deletes objects.
type Store interface {
	// Put stores the content under a fresh key derived from name and
	// returns its public URL.
	Put(ctx context.Context, folder, name string, r io.Reader, size int64, contentType string) (string, error)
	// Delete removes the object behind url.
	Delete(ctx context.Context, url string) error
}

// objectKey builds "<folder>/<uuid><ext>".  The client-supplied base name
// is dropped so it cannot steer the key.
func objectKey(folder, name string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(name, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return strings.Trim(folder, "/") + "/" + ids.ObjectKey() + ext
}
