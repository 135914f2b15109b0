// Package attachments stores capsule media in S3-compatible object storage
// and converts inline data URIs into uploadable payloads.
package attachments

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/atinyakov/chronos/internal/models"
	"github.com/vincent-petithory/dataurl"
)

// TempFolder replaces the capsule ID for uploads made before the capsule exists.
const TempFolder = "temp"

// ErrNotInline is returned by DecodeInline for URLs without the data: prefix.
var ErrNotInline = errors.New("attachment is not an inline data URI")

// ObjectPath builds the storage key {owner}/{capsule|temp}/{millis}_{filename}.
func ObjectPath(ownerID, capsuleID, filename string, now time.Time) string {
	folder := capsuleID
	if folder == "" {
		folder = TempFolder
	}
	return fmt.Sprintf("%s/%s/%d_%s", ownerID, folder, now.UnixMilli(), cleanName(filename))
}

// DecodeInline extracts the payload and content type of an inline data URI.
func DecodeInline(url string) ([]byte, string, error) {
	if !strings.HasPrefix(url, models.InlinePrefix) {
		return nil, "", ErrNotInline
	}
	du, err := dataurl.DecodeString(url)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URI: %w", err)
	}
	return du.Data, du.ContentType(), nil
}

func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}
