package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

// DriveExporter mirrors completed transcripts into a Google Drive
// folder. Optional: the gateway runs without it when credentials are
// not provisioned.
type DriveExporter struct {
	service  *drive.Service
	folderID string
}

// NewDriveExporter builds a Drive client from an OAuth credentials file
// and a previously provisioned token file, then resolves (or creates)
// the target folder. A missing token is an error rather than an
// interactive prompt; the gateway is a long-running service.
func NewDriveExporter(credentialsFile, tokenFile, folderName string) (*DriveExporter, error) {
	ctx := context.Background()

	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read drive credentials: %w", err)
	}
	config, err := google.ConfigFromJSON(raw, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}

	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("drive token not provisioned (authorize via %s and save the token to %s): %w",
			config.AuthCodeURL("state-token", oauth2.AccessTypeOffline), tokenFile, err)
	}

	service, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	exporter := &DriveExporter{service: service}
	if err := exporter.ensureFolder(folderName); err != nil {
		return nil, err
	}
	return exporter, nil
}

// Export uploads one transcript as a plain-text file and returns its
// shareable link.
func (d *DriveExporter) Export(job types.Job) (string, error) {
	meta := &drive.File{
		Name:     fmt.Sprintf("transcript_%s.txt", sanitizeFilename(job.ID)),
		MimeType: "text/plain",
		Parents:  []string{d.folderID},
	}

	created, err := d.service.Files.Create(meta).
		Media(strings.NewReader(job.RawText)).
		Fields("id, webViewLink").
		Do()
	if err != nil {
		return "", fmt.Errorf("upload transcript to drive: %w", err)
	}
	return created.WebViewLink, nil
}

// ensureFolder finds the named folder or creates it.
func (d *DriveExporter) ensureFolder(name string) error {
	query := fmt.Sprintf("name='%s' and mimeType='application/vnd.google-apps.folder' and trashed=false", name)
	list, err := d.service.Files.List().Q(query).Spaces("drive").Fields("files(id, name)").Do()
	if err != nil {
		return fmt.Errorf("search drive folder: %w", err)
	}
	if len(list.Files) > 0 {
		d.folderID = list.Files[0].Id
		return nil
	}

	folder, err := d.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.folder",
	}).Fields("id").Do()
	if err != nil {
		return fmt.Errorf("create drive folder: %w", err)
	}
	d.folderID = folder.Id
	return nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}
