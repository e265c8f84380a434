package core

import (
	"context"
	"fmt"

	"courier/internal/types"
)

// AttachmentAssembler opens the attachment streams of a message for a send
// attempt. A file that no longer exists is logged and left out; the send
// goes ahead without it.
type AttachmentAssembler struct {
	files  FileStore
	logger types.Logger
}

func NewAttachmentAssembler(files FileStore, logger types.Logger) *AttachmentAssembler {
	return &AttachmentAssembler{files: files, logger: logger}
}

// Collect returns open streams for every attachment of messageID whose file
// still exists. The caller must close them, also on error paths; on error
// Collect closes whatever it already opened.
func (a *AttachmentAssembler) Collect(ctx context.Context, repos types.RepositoryRegistry, messageID string) ([]Attachment, error) {
	rows, err := repos.Attachments().ListByMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}

	out := make([]Attachment, 0, len(rows))
	for _, row := range rows {
		sf, err := repos.StoredFiles().GetByID(ctx, row.FileID)
		if err != nil {
			if types.CodeOf(err) == types.ErrCodeNotFoundStoredFile {
				a.logger.Warn("attachment is missing - skipped", "file_name", row.FileName, "file_id", row.FileID, "message_id", messageID)
				continue
			}
			closeAll(out)
			return nil, fmt.Errorf("load stored file %s: %w", row.FileID, err)
		}

		exists, err := a.files.Exists(ctx, sf)
		if err != nil {
			closeAll(out)
			return nil, fmt.Errorf("check stored file %s: %w", sf.ID, err)
		}
		if !exists {
			a.logger.Warn("attachment is missing - skipped", "file_name", sf.FileName, "file_id", sf.ID, "message_id", messageID)
			continue
		}

		rc, err := a.files.Open(ctx, sf)
		if err != nil {
			closeAll(out)
			return nil, fmt.Errorf("open stored file %s: %w", sf.ID, err)
		}
		out = append(out, Attachment{
			FileName:    row.FileName,
			ContentType: sf.ContentType,
			Size:        sf.Size,
			Content:     rc,
		})
	}
	return out, nil
}

func closeAll(atts []Attachment) {
	for _, att := range atts {
		if att.Content != nil {
			_ = att.Content.Close()
		}
	}
}
