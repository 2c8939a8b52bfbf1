package remote_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/remote"
)

// contentsAPI is a minimal in-memory stand-in for the GitHub contents API.
type contentsAPI struct {
	mu      sync.Mutex
	files   map[string][]byte // repo path -> raw content
	shas    map[string]string
	commits int
	token   string
}

func newContentsAPI(token string) *contentsAPI {
	return &contentsAPI{
		files: make(map[string][]byte),
		shas:  make(map[string]string),
		token: token,
	}
}

func (s *contentsAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/jolly/fitness-data", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"full_name":"jolly/fitness-data"}`)
	})
	mux.HandleFunc("/repos/jolly/fitness-data/contents/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		p := strings.TrimPrefix(r.URL.Path, "/repos/jolly/fitness-data/contents/")
		switch r.Method {
		case http.MethodGet:
			s.get(w, p)
		case http.MethodPut:
			s.put(w, r, p)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func (s *contentsAPI) entry(p string) map[string]any {
	return map[string]any{
		"type":     "file",
		"name":     path.Base(p),
		"path":     p,
		"sha":      s.shas[p],
		"size":     len(s.files[p]),
		"content":  base64.StdEncoding.EncodeToString(s.files[p]),
		"encoding": "base64",
	}
}

func (s *contentsAPI) get(w http.ResponseWriter, p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[p]; ok {
		json.NewEncoder(w).Encode(s.entry(p))
		return
	}
	// Directory listing: any file below p/.
	var listing []map[string]any
	for fp := range s.files {
		if strings.HasPrefix(fp, p+"/") && !strings.Contains(strings.TrimPrefix(fp, p+"/"), "/") {
			listing = append(listing, s.entry(fp))
		}
	}
	if len(listing) == 0 {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
		return
	}
	json.NewEncoder(w).Encode(listing)
}

func (s *contentsAPI) put(w http.ResponseWriter, r *http.Request, p string) {
	var payload struct {
		Message string `json:"message"`
		Content string `json:"content"`
		Branch  string `json:"branch"`
		SHA     string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	raw, err := base64.StdEncoding.DecodeString(payload.Content)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.files[p]
	if exists && payload.SHA != s.shas[p] {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"sha mismatch"}`)
		return
	}
	s.files[p] = raw
	s.commits++
	s.shas[p] = fmt.Sprintf("sha-%d", s.commits)
	if exists {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusCreated)
	}
	fmt.Fprint(w, `{}`)
}

func (s *contentsAPI) commitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func newTestClient(t *testing.T, api *contentsAPI, token string) *remote.GitHubClient {
	t.Helper()
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)
	return remote.NewGitHubClient("jolly", "fitness-data", "main", token, zap.NewNop(),
		remote.WithBaseURL(server.URL), remote.WithHTTPClient(server.Client()))
}

func TestReadDocumentAbsentIsNotAnError(t *testing.T) {
	client := newTestClient(t, newContentsAPI("tok"), "tok")

	var out []string
	found, err := client.ReadDocument(context.Background(), "data/exercises.json", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWriteThenReadDocument(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, newContentsAPI("tok"), "tok")

	in := map[string]string{"id": "squat", "name": "Back Squat"}
	require.NoError(t, client.WriteDocument(ctx, "data/exercises.json", in, "add squat"))

	var out map[string]string
	found, err := client.ReadDocument(ctx, "data/exercises.json", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestWriteDocumentIdenticalContentSkipsCommit(t *testing.T) {
	ctx := context.Background()
	api := newContentsAPI("tok")
	client := newTestClient(t, api, "tok")

	doc := []string{"a", "b"}
	require.NoError(t, client.WriteDocument(ctx, "data/tombstones.json", doc, "write"))
	commits := api.commitCount()
	require.NoError(t, client.WriteDocument(ctx, "data/tombstones.json", doc, "write again"))
	assert.Equal(t, commits, api.commitCount(), "identical content must not create a commit")

	require.NoError(t, client.WriteDocument(ctx, "data/tombstones.json", []string{"a", "b", "c"}, "changed"))
	assert.Equal(t, commits+1, api.commitCount())
}

func TestAppendLineCreatesAndGrowsFile(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, newContentsAPI("tok"), "tok")
	logFile := "data/logs/2025-06-01-abc.jsonl"

	require.NoError(t, client.AppendLine(ctx, logFile, `{"sessionId":"s1"}`, "log s1"))
	require.NoError(t, client.AppendLine(ctx, logFile, `{"sessionId":"s2"}`, "log s2"))

	content, found, err := client.ReadRawText(ctx, logFile)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "{\"sessionId\":\"s1\"}\n{\"sessionId\":\"s2\"}\n", content)
}

func TestListDirectory(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, newContentsAPI("tok"), "tok")

	infos, err := client.ListDirectory(ctx, "data/logs")
	require.NoError(t, err)
	assert.Empty(t, infos, "missing directory lists as empty")

	require.NoError(t, client.AppendLine(ctx, "data/logs/2025-06-01-abc.jsonl", "{}", "m"))
	require.NoError(t, client.AppendLine(ctx, "data/logs/2025-06-02-abc.jsonl", "{}", "m"))

	infos, err = client.ListDirectory(ctx, "data/logs")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	names := []string{infos[0].Name, infos[1].Name}
	assert.Contains(t, names, "2025-06-01-abc.jsonl")
	assert.Contains(t, names, "2025-06-02-abc.jsonl")
}

func TestVerifyAccessBadToken(t *testing.T) {
	client := newTestClient(t, newContentsAPI("tok"), "wrong")

	err := client.VerifyAccess(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrAccessDenied)
}

func TestVerifyAccessOK(t *testing.T) {
	client := newTestClient(t, newContentsAPI("tok"), "tok")
	require.NoError(t, client.VerifyAccess(context.Background()))
}
