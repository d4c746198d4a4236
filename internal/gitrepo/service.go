// Package gitrepo keeps the revision history of each page in its own git
// repository. Every save commits the page as content.json on main.
package gitrepo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	ErrNoHistory       = errors.New("page has no history")
	ErrInvalidPageID   = errors.New("invalid page id")
	ErrUnknownRevision = errors.New("unknown revision")
)

const contentFile = "content.json"

var pageIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Content is the versioned part of a page.
type Content struct {
	Title           string          `json:"title"`
	Slug            string          `json:"slug"`
	Excerpt         string          `json:"excerpt"`
	Status          string          `json:"status"`
	CategoryID      *string         `json:"categoryId"`
	MetaTitle       string          `json:"metaTitle"`
	MetaDescription string          `json:"metaDescription"`
	Doc             json.RawMessage `json:"doc,omitempty"`
}

type Revision struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Change struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
	now     func() time.Time
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// Commit records content as the newest revision of the page. When nothing
// changed since the last revision no commit is made and changed is false.
func (s *Service) Commit(pageID string, content Content, author, message string) (rev Revision, changed bool, err error) {
	if !pageIDPattern.MatchString(pageID) {
		return Revision{}, false, ErrInvalidPageID
	}
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(pageID)
	if err != nil {
		return Revision{}, false, err
	}

	if head, err := repo.Head(); err == nil {
		headCommit, err := repo.CommitObject(head.Hash())
		if err != nil {
			return Revision{}, false, fmt.Errorf("load head commit: %w", err)
		}
		previous, err := readContentFromCommit(headCommit)
		if err != nil {
			return Revision{}, false, err
		}
		if !HasChanges(previous, content) {
			return toRevision(headCommit), false, nil
		}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Revision{}, false, fmt.Errorf("resolve head: %w", err)
	}

	hash, err := s.commit(repo, content, author, message)
	if err != nil {
		return Revision{}, false, err
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Revision{}, false, fmt.Errorf("read commit object: %w", err)
	}
	return toRevision(commitObj), true, nil
}

// History lists revisions newest first. A page that was never saved has an
// empty history.
func (s *Service) History(pageID string, limit int) ([]Revision, error) {
	if !pageIDPattern.MatchString(pageID) {
		return nil, ErrInvalidPageID
	}
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(pageID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Revision{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Revision{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Revision, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevision(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Get loads the page content stored at a revision. hash may be abbreviated.
func (s *Service) Get(pageID, hash string) (Content, Revision, error) {
	if !pageIDPattern.MatchString(pageID) {
		return Content{}, Revision{}, ErrInvalidPageID
	}
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(pageID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Content{}, Revision{}, ErrNoHistory
	}
	if err != nil {
		return Content{}, Revision{}, fmt.Errorf("open repo: %w", err)
	}

	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return Content{}, Revision{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return Content{}, Revision{}, fmt.Errorf("%w: %s", ErrUnknownRevision, hash)
	}
	content, err := readContentFromCommit(commitObj)
	if err != nil {
		return Content{}, Revision{}, err
	}
	return content, toRevision(commitObj), nil
}

// Remove drops the history of a deleted page.
func (s *Service) Remove(pageID string) error {
	if !pageIDPattern.MatchString(pageID) {
		return ErrInvalidPageID
	}
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(s.repoPath(pageID)); err != nil {
		return fmt.Errorf("remove page history: %w", err)
	}
	return nil
}

func (s *Service) repoPath(pageID string) string {
	return filepath.Join(s.baseDir, pageID)
}

func (s *Service) pageLock(pageID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[pageID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[pageID] = lock
	return lock
}

func (s *Service) openOrInit(pageID string) (*git.Repository, error) {
	path := s.repoPath(pageID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func (s *Service) commit(repo *git.Repository, content Content, author, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("marshal content: %w", err)
	}

	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, contentFile), append(payload, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add content: %w", err)
	}

	if author == "" {
		author = "Portal"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@portal.vsa.local", sanitizeEmail(author)),
			When:  s.now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit content: %w", err)
	}
	return hash, nil
}

func readContentFromCommit(commitObj *object.Commit) (Content, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return Content{}, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Content{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Content{}, fmt.Errorf("read content bytes: %w", err)
	}

	var content Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return Content{}, fmt.Errorf("decode commit content: %w", err)
	}
	return content, nil
}

func categoryText(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

// DiffFields lists the fields that differ between two revisions, sorted by name.
func DiffFields(from, to Content) []Change {
	pairs := []Change{
		{Field: "title", Before: from.Title, After: to.Title},
		{Field: "slug", Before: from.Slug, After: to.Slug},
		{Field: "excerpt", Before: from.Excerpt, After: to.Excerpt},
		{Field: "status", Before: from.Status, After: to.Status},
		{Field: "categoryId", Before: categoryText(from.CategoryID), After: categoryText(to.CategoryID)},
		{Field: "metaTitle", Before: from.MetaTitle, After: to.MetaTitle},
		{Field: "metaDescription", Before: from.MetaDescription, After: to.MetaDescription},
	}
	result := make([]Change, 0)
	for _, item := range pairs {
		if item.Before != item.After {
			result = append(result, item)
		}
	}
	if !bytes.Equal(normalizeDoc(from.Doc), normalizeDoc(to.Doc)) {
		result = append(result, Change{Field: "doc", Before: "[conteúdo]", After: "[conteúdo]"})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Field < result[j].Field
	})
	return result
}

func HasChanges(from, to Content) bool {
	return len(DiffFields(from, to)) > 0
}

func toRevision(commitObj *object.Commit) Revision {
	return Revision{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func normalizeDoc(doc json.RawMessage) []byte {
	if len(doc) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil
	}
	normalized, err := json.Marshal(parsed)
	if err != nil {
		return nil
	}
	return normalized
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrUnknownRevision, hash)
	}
	return *resolved, nil
}
