package uploadsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileUploadSubSM_StartEmpty(t *testing.T) {
	sm := NewFileUploadSubSM()
	cmds := sm.Start(nil)

	require.Len(t, cmds, 1)
	assert.IsType(t, subEmpty{}, cmds[0])
	assert.Equal(t, "done", sm.State())
}

func TestFileUploadSubSM_StartSingleFile(t *testing.T) {
	sm := NewFileUploadSubSM()
	cmds := sm.Start([]FileEntry{{Path: "a.txt", Size: 10}})

	require.Len(t, cmds, 1)
	require.IsType(t, UploadFile{}, cmds[0])
	assert.Equal(t, "a.txt", cmds[0].(UploadFile).Path)
	assert.Equal(t, "uploading_file", sm.State())
}

func TestFileUploadSubSM_SuccessSequence(t *testing.T) {
	sm := NewFileUploadSubSM()
	sm.Start([]FileEntry{{Path: "a.txt", Size: 1}, {Path: "b.txt", Size: 2}})

	cmds, err := sm.UploadSucceeded("a.txt")
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, ReleaseFile{Path: "a.txt"}, cmds[0])
	assert.Equal(t, UploadFile{Path: "b.txt"}, cmds[1])

	cmds, err = sm.UploadSucceeded("b.txt")
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, ReleaseFile{Path: "b.txt"}, cmds[0])
	assert.IsType(t, subEmpty{}, cmds[1])
	assert.Equal(t, "done", sm.State())
}

func TestFileUploadSubSM_WrongPathIsInvalid(t *testing.T) {
	sm := NewFileUploadSubSM()
	sm.Start([]FileEntry{{Path: "a.txt", Size: 1}})

	_, err := sm.UploadSucceeded("wrong.txt")
	assert.ErrorIs(t, err, ErrInvalidFile)

	_, err = sm.UploadFailed("wrong.txt")
	assert.ErrorIs(t, err, ErrInvalidFile)
}

func TestFileUploadSubSM_RetriesThenFinalError(t *testing.T) {
	sm := NewFileUploadSubSM()
	sm.Start([]FileEntry{{Path: "a.txt", Size: 1}})

	// Attempt 1 fails -> retry (requeued, retriesLeft 1), next is itself again
	cmds, err := sm.UploadFailed("a.txt")
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, UploadFile{Path: "a.txt"}, cmds[0])

	// Attempt 2 fails -> retry (requeued, retriesLeft 0)
	cmds, err = sm.UploadFailed("a.txt")
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, UploadFile{Path: "a.txt"}, cmds[0])

	// Attempt 3 fails -> no retries left -> final error
	cmds, err = sm.UploadFailed("a.txt")
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, subFinalError{path: "a.txt"}, cmds[0])
}

func TestFileUploadSubSM_RetryThenSucceed(t *testing.T) {
	sm := NewFileUploadSubSM()
	sm.Start([]FileEntry{{Path: "a.txt", Size: 1}, {Path: "b.txt", Size: 1}})

	// a.txt fails, b.txt becomes current
	cmds, err := sm.UploadFailed("a.txt")
	require.NoError(t, err)
	assert.Equal(t, UploadFile{Path: "b.txt"}, cmds[0])

	// b.txt succeeds, a.txt (requeued) becomes current again
	cmds, err = sm.UploadSucceeded("b.txt")
	require.NoError(t, err)
	assert.Equal(t, UploadFile{Path: "a.txt"}, cmds[1])

	// a.txt succeeds this time, queue now empty
	cmds, err = sm.UploadSucceeded("a.txt")
	require.NoError(t, err)
	assert.IsType(t, subEmpty{}, cmds[1])
}

func TestFileUploadSubSM_AttemptsPerFileBoundedByThree(t *testing.T) {
	sm := NewFileUploadSubSM()
	sm.Start([]FileEntry{{Path: "a.txt", Size: 1}})

	attempts := 1 // Start already counts as attempt 1

	for {
		cmds, err := sm.UploadFailed("a.txt")
		require.NoError(t, err)

		if _, ok := cmds[0].(subFinalError); ok {
			break
		}

		attempts++
		require.LessOrEqual(t, attempts, 3, "sub state machine retried more than the bounded attempt count")
	}
}
