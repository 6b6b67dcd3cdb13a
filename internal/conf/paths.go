package conf

import (
	"os"
	"path/filepath"
	"runtime"
)

const configFileName = "config.yaml"

// configSearchPaths lists the directories searched for config.yaml, working
// directory first. The per-user directory is left out when $HOME is unknown.
func configSearchPaths() []string {
	paths := []string{"."}
	home, err := os.UserHomeDir()
	if runtime.GOOS == "windows" {
		if err == nil {
			paths = append(paths, filepath.Join(home, "AppData", "Roaming", "imageclassifier"))
		}
		return paths
	}
	if err == nil {
		paths = append(paths, filepath.Join(home, ".config", "imageclassifier"))
	}
	return append(paths, "/etc/imageclassifier")
}

// UserConfigPath is where `config init` writes config.yaml: the per-user
// directory, or the working directory when $HOME is unknown.
func UserConfigPath() (string, error) {
	paths := configSearchPaths()
	if len(paths) > 1 && paths[1] != "/etc/imageclassifier" {
		return filepath.Join(paths[1], configFileName), nil
	}
	return filepath.Join(paths[0], configFileName), nil
}
