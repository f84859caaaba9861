package git

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/waabox/changesdeck/internal/domain"
)

// DetectRepository reads .git/config in dir and returns the repository
// named by the origin remote.
func DetectRepository(dir string) (domain.Repository, error) {
	configPath := filepath.Join(dir, ".git", "config")
	f, err := os.Open(configPath)
	if err != nil {
		return domain.Repository{}, fmt.Errorf("could not open .git/config: %w", err)
	}
	defer f.Close()

	var inOrigin bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inOrigin = line == `[remote "origin"]`
			continue
		}
		if !inOrigin {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if ok && strings.TrimSpace(key) == "url" {
			return ParseRemoteURL(strings.TrimSpace(value))
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.Repository{}, fmt.Errorf("reading .git/config: %w", err)
	}
	return domain.Repository{}, errors.New("no origin remote found in .git/config")
}

// ParseRemoteURL parses a git remote URL into a Repository.
// Supports scp-like SSH (git@host:owner/repo.git) and URL forms
// (https://, http://, ssh://). Nested groups are kept in Owner.
// RemoteURL preserves the input unchanged.
func ParseRemoteURL(rawURL string) (domain.Repository, error) {
	var path string
	switch {
	case strings.Contains(rawURL, "://"):
		u, err := url.Parse(rawURL)
		if err != nil {
			return domain.Repository{}, fmt.Errorf("invalid remote URL %s: %w", rawURL, err)
		}
		if u.Scheme != "https" && u.Scheme != "http" && u.Scheme != "ssh" {
			return domain.Repository{}, fmt.Errorf("unsupported remote URL scheme: %s", rawURL)
		}
		path = u.Path
	case strings.HasPrefix(rawURL, "git@"):
		_, p, ok := strings.Cut(rawURL, ":")
		if !ok {
			return domain.Repository{}, fmt.Errorf("invalid SSH remote URL: %s", rawURL)
		}
		path = p
	default:
		return domain.Repository{}, fmt.Errorf("unsupported remote URL format: %s", rawURL)
	}

	path = strings.Trim(strings.TrimSuffix(path, ".git"), "/")
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return domain.Repository{}, fmt.Errorf("remote URL has no owner/name path: %s", rawURL)
	}
	return domain.Repository{
		Owner:     path[:i],
		Name:      path[i+1:],
		RemoteURL: rawURL,
	}, nil
}

// DefaultProject returns the project slug for the working copy in dir: the
// origin repository's name.
func DefaultProject(dir string) (string, error) {
	repo, err := DetectRepository(dir)
	if err != nil {
		return "", err
	}
	return repo.Name, nil
}
