package badge

import (
	"os"
	"path/filepath"

	"github.com/MimeLyc/twitch-chat-translator/pkg/log"
)

// IconStore looks up icon bytes by name.
type IconStore interface {
	Icon(name string) ([]byte, bool)
}

// DirStore reads <dir>/<name>.png. Missing or unreadable files are reported
// as absent.
type DirStore struct {
	dir string
}

func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

func (s *DirStore) Icon(name string) ([]byte, bool) {
	if s == nil || s.dir == "" || name == "" {
		return nil, false
	}
	path := filepath.Join(s.dir, name+".png")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug("badge icon %s unreadable: %v", path, err)
		}
		return nil, false
	}
	return data, true
}
