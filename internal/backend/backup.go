package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sakif/craftmarket/internal/apperror"
)

// GetBackup downloads the backend's database export. The blob is opaque.
func (c *Client) GetBackup(ctx context.Context) (json.RawMessage, error) {
	var blob json.RawMessage
	if err := c.do(ctx, "get backup", http.MethodGet, "/backup/", nil, nil, &blob); err != nil {
		return nil, classify(err, "backup", "", apperror.Network("get backup", err))
	}
	return blob, nil
}

// UploadBackup replaces the backend's database with blob.
func (c *Client) UploadBackup(ctx context.Context, blob json.RawMessage) error {
	body := struct {
		BackupData json.RawMessage `json:"backup_data"`
	}{BackupData: blob}
	if err := c.do(ctx, "upload backup", http.MethodPost, "/backup/", nil, body, nil); err != nil {
		return classify(err, "backup", "", apperror.UpdateFailed("backup", "upload"))
	}
	return nil
}
