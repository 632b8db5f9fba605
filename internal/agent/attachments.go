package agent

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/golemcore/agentd/pkg/models"
)

// maxAttachmentB64Len bounds the base64 payload a tool may hand back.
// Anything larger is dropped rather than decoded into memory.
const maxAttachmentB64Len = 67_000_000

// extractAttachment pulls a binary payload out of a tool result's data
// map. Tools hand back attachments under one of three shapes:
//
//	data["attachment"]        a map with data/filename/mime_type
//	data["screenshot_base64"] a bare base64 PNG
//	data["file_bytes"]        base64 plus filename/mime_type siblings
//
// A result without any of these yields (nil, nil).
func extractAttachment(data map[string]any) (*models.Attachment, error) {
	if data == nil {
		return nil, nil
	}

	if raw, ok := data["attachment"].(map[string]any); ok {
		b64, _ := raw["data"].(string)
		filename, _ := raw["filename"].(string)
		mimeType, _ := raw["mime_type"].(string)
		return decodeAttachment(b64, filename, mimeType)
	}

	if b64, ok := data["screenshot_base64"].(string); ok {
		return decodeAttachment(b64, "screenshot.png", "image/png")
	}

	if b64, ok := data["file_bytes"].(string); ok {
		filename, _ := data["filename"].(string)
		mimeType, _ := data["mime_type"].(string)
		return decodeAttachment(b64, filename, mimeType)
	}

	return nil, nil
}

func decodeAttachment(b64, filename, mimeType string) (*models.Attachment, error) {
	if b64 == "" {
		return nil, nil
	}
	if len(b64) > maxAttachmentB64Len {
		return nil, fmt.Errorf("attachment too large: %d base64 chars", len(b64))
	}
	payload, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode attachment: %w", err)
	}
	if filename == "" {
		filename = "attachment.bin"
	}
	return &models.Attachment{
		Type:     attachmentTypeFor(mimeType),
		Data:     payload,
		Filename: filename,
		MimeType: mimeType,
	}, nil
}

func attachmentTypeFor(mimeType string) models.AttachmentType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return models.AttachmentImage
	case strings.HasPrefix(mimeType, "audio/"):
		return models.AttachmentAudio
	default:
		return models.AttachmentDocument
	}
}
