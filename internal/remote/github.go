package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultAPIBaseURL = "https://api.github.com"

// GitHubClient implements Client against the GitHub contents API. The synced
// repository doubles as the user's own backup: every sync cycle is visible as
// plain commits touching data/ files.
type GitHubClient struct {
	http    *http.Client
	baseURL string
	owner   string
	repo    string
	branch  string
	token   string
	logger  *zap.Logger
}

// GitHubOption customizes a GitHubClient.
type GitHubOption func(*GitHubClient)

// WithBaseURL points the client at a different API host (GitHub Enterprise,
// or an httptest server in tests).
func WithBaseURL(u string) GitHubOption {
	return func(c *GitHubClient) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) GitHubOption {
	return func(c *GitHubClient) { c.http = h }
}

// NewGitHubClient builds a contents-API client for owner/repo on branch,
// authenticated with a personal access token.
func NewGitHubClient(owner, repo, branch, token string, logger *zap.Logger, opts ...GitHubOption) *GitHubClient {
	if branch == "" {
		branch = "main"
	}
	c := &GitHubClient{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultAPIBaseURL,
		owner:   owner,
		repo:    repo,
		branch:  branch,
		token:   token,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// contentsEntry is the subset of the contents-API response the client needs.
type contentsEntry struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (c *GitHubClient) contentsURL(path string) string {
	// Escape per segment; the separators themselves must survive.
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, c.owner, c.repo, strings.Join(segments, "/"))
}

func (c *GitHubClient) do(ctx context.Context, method, urlStr string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// getFile fetches a single file entry, reporting found=false on 404.
func (c *GitHubClient) getFile(ctx context.Context, path string) (*contentsEntry, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, c.contentsURL(path)+"?ref="+url.QueryEscape(c.branch), nil)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, apiError("get", path, resp)
	}

	var entry contentsEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return &entry, true, nil
}

func decodeContent(entry *contentsEntry) ([]byte, error) {
	if entry.Encoding != "base64" {
		return []byte(entry.Content), nil
	}
	// The API wraps base64 content in newlines.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(entry.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("decode content of %s: %w", entry.Path, err)
	}
	return raw, nil
}

// ReadDocument implements Client.
func (c *GitHubClient) ReadDocument(ctx context.Context, path string, v any) (bool, error) {
	entry, found, err := c.getFile(ctx, path)
	if err != nil || !found {
		return false, err
	}
	raw, err := decodeContent(entry)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// ReadRawText implements Client.
func (c *GitHubClient) ReadRawText(ctx context.Context, path string) (string, bool, error) {
	entry, found, err := c.getFile(ctx, path)
	if err != nil || !found {
		return "", false, err
	}
	raw, err := decodeContent(entry)
	if err != nil {
		return "", false, err
	}
	return string(raw), true, nil
}

// putFile creates or replaces a file. sha must be the current blob sha when
// updating, empty when creating.
func (c *GitHubClient) putFile(ctx context.Context, path string, content []byte, sha, message string) error {
	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  c.branch,
	}
	if sha != "" {
		payload["sha"] = sha
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPut, c.contentsURL(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return apiError("put", path, resp)
	}
	c.logger.Debug("remote write", zap.String("path", path), zap.Int("bytes", len(content)))
	return nil
}

// WriteDocument implements Client.
func (c *GitHubClient) WriteDocument(ctx context.Context, path string, v any, message string) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	entry, found, err := c.getFile(ctx, path)
	if err != nil {
		return err
	}
	sha := ""
	if found {
		sha = entry.SHA
		if existing, derr := decodeContent(entry); derr == nil && bytes.Equal(existing, content) {
			// Identical content, skip the commit.
			return nil
		}
	}
	return c.putFile(ctx, path, content, sha, message)
}

// AppendLine implements Client. Read-modify-write; two devices appending at
// the same moment race at the file level and the loser's line is re-appended
// on its next cycle, which the merge layer tolerates.
func (c *GitHubClient) AppendLine(ctx context.Context, path, line, message string) error {
	entry, found, err := c.getFile(ctx, path)
	if err != nil {
		return err
	}
	content := ""
	sha := ""
	if found {
		raw, derr := decodeContent(entry)
		if derr != nil {
			return derr
		}
		content = string(raw)
		sha = entry.SHA
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += line + "\n"
	return c.putFile(ctx, path, []byte(content), sha, message)
}

// ListDirectory implements Client.
func (c *GitHubClient) ListDirectory(ctx context.Context, path string) ([]FileInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, c.contentsURL(path)+"?ref="+url.QueryEscape(c.branch), nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, apiError("list", path, resp)
	}

	var entries []contentsEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode listing of %s: %w", path, err)
	}
	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, FileInfo{
			Name: e.Name,
			Path: e.Path,
			Size: e.Size,
			Dir:  e.Type == "dir",
		})
	}
	return infos, nil
}

// VerifyAccess implements Client.
func (c *GitHubClient) VerifyAccess(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/repos/%s/%s", c.baseURL, c.owner, c.repo), nil)
	if err != nil {
		return fmt.Errorf("verify access: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return fmt.Errorf("%w: %s/%s (HTTP %d)", ErrAccessDenied, c.owner, c.repo, resp.StatusCode)
	default:
		return apiError("verify", c.owner+"/"+c.repo, resp)
	}
}

func apiError(op, path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("github %s %s: HTTP %d: %s", op, path, resp.StatusCode, msg)
}
