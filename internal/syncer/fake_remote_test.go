package syncer_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/remote"
)

// fakeRemote is an in-memory path-addressed file store shared between the
// fake devices in a test, standing in for the GitHub-backed repository.
type fakeRemote struct {
	mu        sync.Mutex
	files     map[string][]byte
	accessErr error
	failPaths map[string]error // per-path write failures
	writes    int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		files:     make(map[string][]byte),
		failPaths: make(map[string]error),
	}
}

func (f *fakeRemote) ReadDocument(ctx context.Context, p string, v any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.files[p]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (f *fakeRemote) ReadRawText(ctx context.Context, p string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.files[p]
	if !ok {
		return "", false, nil
	}
	return string(raw), true, nil
}

func (f *fakeRemote) WriteDocument(ctx context.Context, p string, v any, message string) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failPaths[p]; err != nil {
		return err
	}
	f.files[p] = raw
	f.writes++
	return nil
}

func (f *fakeRemote) AppendLine(ctx context.Context, p, line, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failPaths[p]; err != nil {
		return err
	}
	content := string(f.files[p])
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	f.files[p] = []byte(content + line + "\n")
	f.writes++
	return nil
}

func (f *fakeRemote) ListDirectory(ctx context.Context, dir string) ([]remote.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(dir, "/") + "/"
	var infos []remote.FileInfo
	for p := range f.files {
		if !strings.HasPrefix(p, prefix) || strings.Contains(strings.TrimPrefix(p, prefix), "/") {
			continue
		}
		infos = append(infos, remote.FileInfo{
			Name: path.Base(p),
			Path: p,
			Size: int64(len(f.files[p])),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func (f *fakeRemote) VerifyAccess(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accessErr
}

func (f *fakeRemote) setAccessErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessErr = err
}

func (f *fakeRemote) failWrites(p string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failPaths, p)
		return
	}
	f.failPaths[p] = err
}

func (f *fakeRemote) raw(p string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.files[p])
}

func (f *fakeRemote) has(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[p]
	return ok
}

var _ remote.Client = (*fakeRemote)(nil)

// errNetwork simulates a transient transport failure.
var errNetwork = fmt.Errorf("dial tcp: connection refused")
