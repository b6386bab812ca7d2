package main

import (
	"os"
	"path/filepath"
)

const appName = "spotmap"

// fileExists reports whether the given path exists and is a file (not a directory).
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// xdgDir returns $env or falls back to $HOME/<rel...>.
func xdgDir(env string, rel ...string) string {
	if d := os.Getenv(env); d != "" {
		return d
	}
	home := os.Getenv("HOME")
	if home == "" {
		// Last resort: current working directory
		cwd, _ := os.Getwd()
		home = cwd
	}
	return filepath.Join(append([]string{home}, rel...)...)
}

func xdgConfigDir() string { return xdgDir("XDG_CONFIG_HOME", ".config") }
func xdgCacheDir() string  { return xdgDir("XDG_CACHE_HOME", ".cache") }
func xdgDataDir() string   { return xdgDir("XDG_DATA_HOME", ".local", "share") }

// appDir resolves an application directory: the flag value when set,
// otherwise <base>/spotmap. The directory is created.
func appDir(flagValue, base string) (string, error) {
	dir := flagValue
	if dir == "" {
		dir = filepath.Join(base, appName)
	}
	return dir, ensureDir(dir)
}

// envFiles lists the dotenv files to load, in precedence order: ./.env
// first, then <configDir>/spotmap.env. Missing files are skipped.
func envFiles(configDir string) []string {
	var files []string
	for _, f := range []string{".env", filepath.Join(configDir, appName+".env")} {
		if fileExists(f) {
			files = append(files, f)
		}
	}
	return files
}

// ensureDir creates the directory and any necessary parents if it doesn't exist.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
