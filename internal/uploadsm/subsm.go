package uploadsm

// subRetries is the number of additional attempts allowed per file after the
// first, matching the original fixed retry budget.
const subRetries = 2

// subState is the FileUploadSubSM's state.
type subState int

const (
	subIdle subState = iota
	subUploadingFile
	subDone
)

func (s subState) String() string {
	switch s {
	case subIdle:
		return "idle"
	case subUploadingFile:
		return "uploading_file"
	case subDone:
		return "done"
	default:
		return "unknown"
	}
}

type pendingFile struct {
	path        string
	retriesLeft int
}

// FileUploadSubSM sequences per-file uploads within a single job, retrying a
// failed file up to subRetries times before giving up on it and reporting a
// final error. It never touches the filesystem or network itself; Start and
// the two UploadX methods return Commands for the caller to execute.
type FileUploadSubSM struct {
	state       subState
	queue       []pendingFile
	currentFile *pendingFile
}

// NewFileUploadSubSM returns a FileUploadSubSM in its initial idle state.
func NewFileUploadSubSM() *FileUploadSubSM {
	return &FileUploadSubSM{state: subIdle}
}

// State returns the sub state machine's current state name, for logging and
// diagnostics only.
func (sm *FileUploadSubSM) State() string {
	return sm.state.String()
}

// Start seeds the queue from files and begins uploading the first one, or
// reports empty immediately if files is empty.
func (sm *FileUploadSubSM) Start(files []FileEntry) []Command {
	sm.queue = make([]pendingFile, len(files))
	for i, f := range files {
		sm.queue[i] = pendingFile{path: f.Path, retriesLeft: subRetries}
	}

	if len(sm.queue) == 0 {
		sm.state = subDone

		return []Command{subEmpty{}}
	}

	sm.state = subUploadingFile

	return []Command{UploadFile{Path: sm.next()}}
}

// UploadSucceeded records that filePath finished uploading and advances to
// the next queued file, or reports empty if none remain. filePath must be
// the current in-flight file, or ErrInvalidFile is returned.
func (sm *FileUploadSubSM) UploadSucceeded(filePath string) ([]Command, error) {
	if err := sm.checkCurrent(filePath); err != nil {
		return nil, err
	}

	sm.currentFile = nil

	cmds := []Command{ReleaseFile{Path: filePath}}

	if len(sm.queue) == 0 {
		sm.state = subDone

		return append(cmds, subEmpty{}), nil
	}

	return append(cmds, UploadFile{Path: sm.next()}), nil
}

// UploadFailed records that filePath's upload attempt failed. If filePath
// still has retries left it is requeued and the next file (which may be
// itself) is uploaded; otherwise a final error is reported for it. filePath
// must be the current in-flight file, or ErrInvalidFile is returned.
func (sm *FileUploadSubSM) UploadFailed(filePath string) ([]Command, error) {
	if err := sm.checkCurrent(filePath); err != nil {
		return nil, err
	}

	if sm.currentFile.retriesLeft > 0 {
		return sm.retryCurrent(), nil
	}

	return []Command{subFinalError{path: filePath}}, nil
}

func (sm *FileUploadSubSM) checkCurrent(filePath string) error {
	if sm.currentFile == nil || sm.currentFile.path != filePath {
		return ErrInvalidFile
	}

	return nil
}

func (sm *FileUploadSubSM) retryCurrent() []Command {
	retries := sm.currentFile.retriesLeft
	path := sm.currentFile.path
	sm.currentFile = nil
	sm.queue = append(sm.queue, pendingFile{path: path, retriesLeft: retries - 1})

	return []Command{UploadFile{Path: sm.next()}}
}

func (sm *FileUploadSubSM) next() string {
	head := sm.queue[0]
	sm.queue = sm.queue[1:]
	sm.currentFile = &head

	return head.path
}

// subEmpty and subFinalError are internal signals the SubSM hands back to
// FilesUploadSM via handleSubEffects — never seen by a job executor.
type subEmpty struct{}

func (subEmpty) isCommand() {}

type subFinalError struct {
	path string
}

func (subFinalError) isCommand() {}
