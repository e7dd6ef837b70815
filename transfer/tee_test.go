package transfer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTee_CopiesEveryIncludedCandidate(t *testing.T) {
	fs := newMemFS()
	fs.addDir("/staging/out")
	mtime := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	var candidates []*Candidate
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("file-%02d.dat", i)
		path := "/staging/out/" + name
		fs.addFile(path, []byte(name+" payload"), mtime)
		candidates = append(candidates, &Candidate{Path: path, Name: name, ModTime: mtime})
	}

	err := Tee(context.Background(), fs, candidates, "/backup", NewBufferPool(0))
	require.NoError(t, err)

	for _, c := range candidates {
		assert.True(t, fs.has("/backup/"+c.Name), "missing backup of %s", c.Name)
		assert.NotZero(t, c.Checksum, "checksum not recorded for %s", c.Name)
	}
}

func TestTee_NoBackupDirIsNoOp(t *testing.T) {
	fs := newMemFS()
	fs.addFile("/staging/out/a.txt", []byte("a"), time.Now())
	candidates := []*Candidate{{Path: "/staging/out/a.txt", Name: "a.txt"}}

	err := Tee(context.Background(), fs, candidates, "", nil)
	require.NoError(t, err)
	assert.False(t, fs.has("/backup/a.txt"))
}

func TestTee_SkipsExcludedCandidates(t *testing.T) {
	fs := newMemFS()
	fs.addFile("/staging/out/hold_x.dat", []byte("h"), time.Now())
	candidates := []*Candidate{{Path: "/staging/out/hold_x.dat", Name: "hold_x.dat", Excluded: true}}

	err := Tee(context.Background(), fs, candidates, "/backup", nil)
	require.NoError(t, err)
	assert.False(t, fs.has("/backup/hold_x.dat"))
}

func TestTee_FirstFailureAborts(t *testing.T) {
	fs := newMemFS()
	now := time.Now()
	fs.addFile("/staging/out/good.txt", []byte("g"), now)
	fs.addFile("/staging/out/bad.txt", []byte("b"), now)
	fs.failWrites["/backup/bad.txt"] = errors.New("disk full")

	candidates := []*Candidate{
		{Path: "/staging/out/good.txt", Name: "good.txt"},
		{Path: "/staging/out/bad.txt", Name: "bad.txt"},
	}

	err := Tee(context.Background(), fs, candidates, "/backup", nil)
	require.Error(t, err)

	var pf *PreflightError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, KindBackupWriteFailed, pf.Kind)
	assert.Equal(t, "/staging/out/bad.txt", pf.Path)
	assert.ErrorContains(t, err, "disk full")
}

func TestTee_UnreadableSourceAborts(t *testing.T) {
	fs := newMemFS()
	fs.addFile("/staging/out/a.txt", []byte("a"), time.Now())
	fs.failReads["/staging/out/a.txt"] = errors.New("permission denied")

	candidates := []*Candidate{{Path: "/staging/out/a.txt", Name: "a.txt"}}

	err := Tee(context.Background(), fs, candidates, "/backup", nil)
	var pf *PreflightError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, KindBackupWriteFailed, pf.Kind)
}

func TestTee_CancelledContextIsNotABackupFailure(t *testing.T) {
	fs := newMemFS()
	fs.addFile("/staging/out/a.txt", []byte("a"), time.Now())
	candidates := []*Candidate{{Path: "/staging/out/a.txt", Name: "a.txt"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Tee(ctx, fs, candidates, "/backup", nil)
	require.Error(t, err)

	var pf *PreflightError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, KindBatchCancelled, pf.Kind, "cancellation must not be blamed on the backup")
	assert.ErrorIs(t, err, context.Canceled)
}
