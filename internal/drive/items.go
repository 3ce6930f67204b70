package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
)

// ChildEntry is one entry returned by Client.ListChildren.
type ChildEntry struct {
	ID    string
	Title string
}

// NewFolder describes a folder to create via Client.CreateFolder.
type NewFolder struct {
	Title    string
	ParentID string // empty means no parent; RootID sends an explicit root parent
}

// NewFile describes a file to upload via Client.CreateAndUploadFile.
type NewFile struct {
	Title       string
	Spaces      []string
	ParentID    string // empty means no parent (root)
	ContentPath string
}

// Client implements the RemoteDriveCapability the uploader's JobExecutor
// needs against the Google Drive v3 REST API.
type Client struct {
	http   *httpClient
	tokens *tokenSource
	logger *slog.Logger
}

// NewClient builds a Client using tokens for authentication. baseURL and
// uploadBaseURL default to the production Drive endpoints when empty.
func NewClient(baseURL, uploadBaseURL string, hc *http.Client, tokens *tokenSource, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if uploadBaseURL == "" {
		uploadBaseURL = DefaultUploadBaseURL
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		http:   newHTTPClient(baseURL, uploadBaseURL, hc, tokens, logger),
		tokens: tokens,
		logger: logger,
	}
}

// IsTokenExpired reports whether the current access token has expired and
// needs a refresh before the next request.
func (c *Client) IsTokenExpired() bool {
	return c.tokens.isExpired()
}

// Refresh exchanges the stored refresh token for a new access token,
// persisting the result. Returns ErrRefreshFailed (wrapped) on failure.
func (c *Client) Refresh(ctx context.Context) error {
	if err := c.tokens.refresh(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	return nil
}

// ListChildren lists the non-trashed children of parentID (RootID for the
// drive root).
func (c *Client) ListChildren(ctx context.Context, parentID string) ([]ChildEntry, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", parentID)
	path := "/files?q=" + url.QueryEscape(query) + "&fields=files(id,title)"

	resp, err := c.http.do(ctx, http.MethodGet, c.http.baseURL, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var listResp fileListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("drive: decoding file list: %w", err)
	}

	entries := make([]ChildEntry, len(listResp.Files))
	for i, f := range listResp.Files {
		entries[i] = ChildEntry{ID: f.ID, Title: f.Title}
	}

	return entries, nil
}

// CreateFolder creates a single folder and returns its id.
func (c *Client) CreateFolder(ctx context.Context, f NewFolder) (string, error) {
	reqBody := createFileRequest{
		Title:    f.Title,
		MimeType: FolderMimeType,
	}

	if f.ParentID != "" {
		reqBody.Parents = []parentRef{newParentRef(f.ParentID)}
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("drive: encoding folder request: %w", err)
	}

	resp, err := c.http.do(ctx, http.MethodPost, c.http.baseURL, "/files", bytes.NewReader(data), "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var created createFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("drive: decoding folder response: %w", err)
	}

	return created.ID, nil
}

// CreateAndUploadFile creates a file with the given metadata and streams
// its content in a single multipart request.
func (c *Client) CreateAndUploadFile(ctx context.Context, f NewFile) error {
	content, err := os.Open(f.ContentPath)
	if err != nil {
		return fmt.Errorf("drive: opening %s for upload: %w", f.ContentPath, err)
	}
	defer content.Close()

	meta := createFileRequest{
		Title:  f.Title,
		Spaces: f.Spaces,
	}

	if f.ParentID != "" {
		meta.Parents = []parentRef{newParentRef(f.ParentID)}
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("drive: encoding file metadata: %w", err)
	}

	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	metaPart, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return fmt.Errorf("drive: building multipart metadata part: %w", err)
	}

	if _, err := metaPart.Write(metaJSON); err != nil {
		return fmt.Errorf("drive: writing multipart metadata part: %w", err)
	}

	mediaPart, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/octet-stream"}})
	if err != nil {
		return fmt.Errorf("drive: building multipart media part: %w", err)
	}

	if _, err := io.Copy(mediaPart, content); err != nil {
		return fmt.Errorf("drive: reading %s for upload: %w", f.ContentPath, err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("drive: closing multipart body: %w", err)
	}

	contentType := "multipart/related; boundary=" + writer.Boundary()

	resp, err := c.http.do(ctx, http.MethodPost, c.http.uploadURL, "/files?uploadType=multipart",
		bytes.NewReader(body.Bytes()), contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return nil
}
