package handlers

import (
	"io/fs"
	"net/http"
)

// Outputs serves generated artifacts from dir under prefix. Directories are
// reported as not found, so the artifact list is never exposed.
func Outputs(prefix, dir string) http.Handler {
	return http.StripPrefix(prefix, http.FileServer(filesOnly{http.Dir(dir)}))
}

type filesOnly struct {
	root http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
