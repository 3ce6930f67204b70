// Package jobexecutor drives a single job's FilesUploadSM to completion:
// acquiring its lock, opening a remote session, resolving remote folders,
// uploading files, and cleaning up, translating each uploadsm.Command into
// the corresponding filesystem or network side effect.
package jobexecutor

import (
	"context"

	"github.com/JohnJocoo/gdrive-dormouse/internal/drive"
)

// RemoteDriveCapability is the subset of *drive.Client a JobExecutor needs.
// Defined here (rather than consumed directly as *drive.Client) so tests can
// inject fakes without spinning up an HTTP server.
type RemoteDriveCapability interface {
	IsTokenExpired() bool
	Refresh(ctx context.Context) error
	ListChildren(ctx context.Context, parentID string) ([]drive.ChildEntry, error)
	CreateFolder(ctx context.Context, f drive.NewFolder) (string, error)
	CreateAndUploadFile(ctx context.Context, f drive.NewFile) error
}

var _ RemoteDriveCapability = (*drive.Client)(nil)
