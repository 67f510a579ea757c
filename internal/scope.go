package internal

import (
	"os"
	"path/filepath"
)

// ProjectDirName is the per-deployment configuration directory looked up
// from the working directory upwards.
const ProjectDirName = ".blamed"

type ScopeType string

const (
	ScopeGlobal  ScopeType = "global"
	ScopeProject ScopeType = "project"
)

// Scope is a configuration directory.
type Scope struct {
	Type ScopeType
	Dir  string
}

func (s Scope) ConfigPath() string {
	return filepath.Join(s.Dir, "config.yaml")
}

// IgnorePath holds exclude patterns in .gitignore syntax.
func (s Scope) IgnorePath() string {
	return filepath.Join(s.Dir, "blameignore")
}

type ScopeResolver struct {
	configDir string
	workDir   func() (string, error)
}

func NewScopeResolver() *ScopeResolver {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return &ScopeResolver{configDir: dir, workDir: os.Getwd}
}

func (r *ScopeResolver) Global() Scope {
	return Scope{Type: ScopeGlobal, Dir: filepath.Join(r.configDir, "blamed")}
}

func (r *ScopeResolver) Project() (Scope, bool) {
	cwd, err := r.workDir()
	if err != nil {
		return Scope{}, false
	}
	return findProjectScope(cwd)
}

func findProjectScope(dir string) (Scope, bool) {
	for {
		p := filepath.Join(dir, ProjectDirName)
		info, err := os.Stat(p)
		if err == nil && info.IsDir() {
			return Scope{Type: ScopeProject, Dir: p}, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Scope{}, false
		}
		dir = parent
	}
}

// Resolve picks the project scope when one exists, unless explicit is
// "global".
func (r *ScopeResolver) Resolve(explicit string) Scope {
	if explicit == string(ScopeGlobal) {
		return r.Global()
	}
	if scope, ok := r.Project(); ok {
		return scope
	}
	return r.Global()
}
