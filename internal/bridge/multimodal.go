package bridge

import (
	"strings"

	"litertd/pkg/types"
)

// attachMedia walks user messages in order and issues the native attach
// calls for their media parts, sequentially: the native session holds
// ordered attachment state, so attachments must land in message order.
// Attachment is best-effort: unsupported payloads and disabled modalities
// are skipped with a warning and generation proceeds regardless. Only
// native attach failures are hard errors.
func (b *Bridge) attachMedia(entry *sessionEntry, messages []types.Message) error {
	for _, msg := range messages {
		if msg.Role != types.RoleUser {
			continue
		}
		for _, part := range msg.Content {
			if !part.IsMedia() {
				continue
			}
			kind := mediaKind(part.MediaType)
			if kind == "" {
				continue
			}
			path, ok := resolveMediaPath(part.URI)
			if !ok {
				// data: URIs and raw binary payloads are unsupported by
				// the native attach call.
				b.log.Warn().Str("media_type", part.MediaType).
					Msg("skipping unsupported media payload; expected a file path")
				continue
			}
			switch kind {
			case "image":
				if !entry.cfg.EnableVision {
					b.log.Warn().Str("path", path).
						Msg("skipping image part: vision modality not enabled on session")
					continue
				}
				if err := b.eng.AddImageToSession(entry.handle, path); err != nil {
					return ErrEngine(err.Error())
				}
			case "audio":
				if !entry.cfg.EnableAudio {
					b.log.Warn().Str("path", path).
						Msg("skipping audio part: audio modality not enabled on session")
					continue
				}
				if err := b.eng.AddAudioToSession(entry.handle, path); err != nil {
					return ErrEngine(err.Error())
				}
			}
		}
	}
	return nil
}

// mediaKind classifies a media type as "image", "audio", or "" (ignored).
func mediaKind(mediaType string) string {
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return "image"
	case strings.HasPrefix(mediaType, "audio/"):
		return "audio"
	default:
		return ""
	}
}

// resolveMediaPath turns a part URI into a local file path usable by the
// native attach calls. file:// prefixes are stripped; data: URIs are
// rejected.
func resolveMediaPath(uri string) (string, bool) {
	if uri == "" || strings.HasPrefix(uri, "data:") {
		return "", false
	}
	return strings.TrimPrefix(uri, "file://"), true
}
