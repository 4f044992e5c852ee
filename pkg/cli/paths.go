package cli

import (
	"os"
	"path/filepath"
)

// Paths locates the per-app directories under the user's home.
type Paths struct {
	AppName string
	HomeDir string
}

// NewPaths returns Paths rooted at the current user's home directory.
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: appName, HomeDir: home}, nil
}

// BaseDir returns ~/.giztoy.
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns ~/.giztoy/<app>.
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns ~/.giztoy/<app>/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// DataDir returns ~/.giztoy/<app>/data, where profile stores default to.
func (p *Paths) DataDir() string {
	return filepath.Join(p.AppDir(), "data")
}

// EnsureDataDir creates the data directory.
func (p *Paths) EnsureDataDir() error {
	return os.MkdirAll(p.DataDir(), 0o755)
}

// DataPath joins name onto the data directory.
func (p *Paths) DataPath(name string) string {
	return filepath.Join(p.DataDir(), name)
}

// StoreLocation returns the store location for ctx, falling back to a
// directory under DataDir named after the store kind.
func (p *Paths) StoreLocation(ctx *Context) string {
	if ctx.Store.Location != "" {
		return ctx.Store.Location
	}
	return p.DataPath(ctx.StoreKind())
}
