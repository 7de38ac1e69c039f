package gitodb

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Repository is the read-only handle onto one Git object database, rooted
// at a resolved .git directory. Adapted from the teacher's Repo/OpenRepo:
// generalized from "Config selects an FS and a Cd target" to functional
// options, and Open() gained the gitdir-pointer resolution the teacher's
// Cd() never needed because it only ever worked against bare repo
// directories it created itself.
type Repository struct {
	root   string
	fs     FS
	logger *logrus.Logger

	cacheMu sync.Mutex
	cache   map[Fingerprint]RawObject
}

// Option configures a Repository at Open time.
type Option func(*repoOptions)

type repoOptions struct {
	fs     FS
	logger *logrus.Logger
}

// WithFS overrides the filesystem a Repository reads loose objects, loose
// refs, HEAD, packed-refs and gitdir pointers from. Absent this option,
// Open uses the local disk rooted at the resolved .git directory.
func WithFS(fs FS) Option {
	return func(o *repoOptions) { o.fs = fs }
}

// WithLogger overrides the logrus.Logger a Repository reports diagnostic
// conditions through. Absent this option, Open uses the package default.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *repoOptions) { o.logger = logger }
}

// Open resolves path to a .git directory and returns a Repository ready
// for reads. path may be a working tree (containing .git), a bare
// repository directory directly, or a "gitdir: <path>" pointer file
// itself — passed directly, as git-worktree checkouts leave behind at
// <worktree>/.git — or nested one level inside a directory (§4.10).
func Open(path string, opts ...Option) (*Repository, error) {
	options := repoOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	var fs FS
	var err error
	if options.fs != nil {
		fs = options.fs
	} else {
		fs, err = openRootFS(path)
		if err != nil {
			return nil, err
		}
	}

	root, fs, err := resolveGitDir(fs)
	if err != nil {
		return nil, err
	}

	logger := options.logger
	if logger == nil {
		logger = defaultLogger
	}

	return &Repository{
		root:   root,
		fs:     fs,
		logger: logger,
		cache:  make(map[Fingerprint]RawObject),
	}, nil
}

// openRootFS implements §4.10's dispatch on the path argument Open itself
// received, before any FS exists to abstract over: a directory is used as
// the root directly; a regular file must be a "gitdir: <path>" pointer,
// whose target — resolved per resolveGitDirPointerTarget — becomes the
// root instead. Anything else is NotARepository.
func openRootFS(path string) (FS, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, wrapErr(KindIoError, err, "resolving absolute path for %q", path)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, wrapErr(KindNotARepository, err, "stat %q", absPath)
	}

	if info.IsDir() {
		return newDiskFS(absPath)
	}
	if !info.Mode().IsRegular() {
		return nil, newErr(KindNotARepository, "%q is neither a directory nor a regular file", absPath)
	}

	contents, err := os.ReadFile(absPath)
	if err != nil {
		return nil, wrapErr(KindIoError, err, "reading %q", absPath)
	}
	target, ok := parseGitDirPointer(contents)
	if !ok {
		return nil, newErr(KindNotARepository, "%q is not a gitdir pointer", absPath)
	}

	resolved := resolveGitDirPointerTarget(absPath, target)
	resolvedInfo, err := os.Stat(resolved)
	if err != nil || !resolvedInfo.IsDir() {
		return nil, newErr(KindNotARepository, "gitdir pointer %q does not resolve to a directory", resolved)
	}
	return newDiskFS(resolved)
}

// resolveGitDirPointerTarget resolves a "gitdir: <path>" pointer's target
// per §4.10: an absolute target is used as-is; a relative one resolves
// against pointerPath's own parent directory, or its grandparent when
// pointerPath's base name is ".git" (the common worktree/submodule
// layout, where the pointer itself sits inside the component it names).
func resolveGitDirPointerTarget(pointerPath, target string) string {
	if filepath.IsAbs(target) {
		return target
	}
	base := filepath.Dir(pointerPath)
	if filepath.Base(pointerPath) == ".git" {
		base = filepath.Dir(base)
	}
	return filepath.Join(base, target)
}

// resolveGitDir finds the repository root that fs.Root() actually names,
// per §4.10: a bare repo has "objects" and "HEAD" directly under it; a
// working tree has them under a ".git" subdirectory, which may itself be a
// "gitdir: <path>" pointer file instead of a real directory (a worktree
// checkout, or a submodule). At most one pointer hop is followed — git
// itself never nests them further.
func resolveGitDir(fs FS) (string, FS, error) {
	if looksLikeGitDir(fs, "") {
		return fs.Root(), fs, nil
	}

	stat := fs.Stat(".git")
	switch stat[0] {
	case fsTypeDir:
		sub, err := newDiskFS(fs.Root() + "/.git")
		if err != nil {
			return "", nil, err
		}
		if !looksLikeGitDir(sub, "") {
			return "", nil, newErr(KindNotARepository, "%q/.git is not a valid git directory", fs.Root())
		}
		return sub.Root(), sub, nil

	case fsTypeFile:
		pointerPath := filepath.Join(fs.Root(), ".git")
		contents, err := fs.ReadFile(".git")
		if err != nil {
			return "", nil, wrapErr(KindIoError, err, "reading %q", pointerPath)
		}
		target, ok := parseGitDirPointer(contents)
		if !ok {
			return "", nil, newErr(KindNotARepository, "%q is not a gitdir pointer", pointerPath)
		}
		resolved := resolveGitDirPointerTarget(pointerPath, target)
		sub, err := newDiskFS(resolved)
		if err != nil {
			return "", nil, err
		}
		if !looksLikeGitDir(sub, "") {
			return "", nil, newErr(KindNotARepository, "gitdir pointer %q is not a valid git directory", resolved)
		}
		return sub.Root(), sub, nil

	default:
		return "", nil, newErr(KindNotARepository, "%q is not a repository", fs.Root())
	}
}

// looksLikeGitDir applies the minimal structural test §4.10 calls for: an
// "objects" and a "HEAD" entry directly under base.
func looksLikeGitDir(fs FS, base string) bool {
	objStat := fs.Stat(joinGitPath(base, "objects"))
	headStat := fs.Stat(joinGitPath(base, "HEAD"))
	return objStat[0] == fsTypeDir && headStat[0] == fsTypeFile
}

func joinGitPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}

// parseGitDirPointer recognizes the "gitdir: <path>" line format (§4.10).
func parseGitDirPointer(contents []byte) (string, bool) {
	line := strings.TrimSpace(string(contents))
	const prefix = "gitdir:"
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(prefix):]), true
}

// GetObject fetches and decodes the object named by fp (§4.5/§4.6).
func (r *Repository) GetObject(fp Fingerprint) (TypedObject, error) {
	raw, err := r.getRaw(fp)
	if err != nil {
		return TypedObject{}, err
	}
	return decodeObject(fp, raw)
}
