package lifecycle

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/atinyakov/chronos/internal/models"
)

const (
	quickMinDelay = 30 * 24 * time.Hour
	quickMaxDelay = 730 * 24 * time.Hour
)

// RandomUnlock picks an unlock time for a quick note, uniformly between 30
// and 730 days after now. A nil rng uses the global source.
func RandomUnlock(now time.Time, rng *rand.Rand) int64 {
	span := int64(quickMaxDelay-quickMinDelay) / int64(time.Millisecond)
	var off int64
	if rng != nil {
		off = rng.Int64N(span)
	} else {
		off = rand.Int64N(span)
	}
	return now.Add(quickMinDelay).UnixMilli() + off
}

// MediaTypeFromMIME classifies a MIME type by its prefix.
func MediaTypeFromMIME(mime string) models.MediaType {
	switch {
	case strings.HasPrefix(mime, "image"):
		return models.MediaImage
	case strings.HasPrefix(mime, "video"):
		return models.MediaVideo
	case strings.HasPrefix(mime, "audio"):
		return models.MediaAudio
	}
	return models.MediaFile
}
