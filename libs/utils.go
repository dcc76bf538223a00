package libs

import (
	"crypto/sha256"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
)

var envCfg string

func GetSum(b []byte) string {
	h := sha256.New()
	h.Write(b)
	bs := h.Sum(nil)
	return fmt.Sprintf("%x", bs)
}

func SetRootDir(path string) {
	if len(envCfg) <= 0 {
		envCfg = path
	}
}

func GetCurExecDir() string {
	curDir, _ := filepath.Abs(filepath.Dir(os.Args[0]))
	return curDir
}

func GetCurRootDir() string {
	if len(envCfg) <= 0 {
		curExecDir := GetCurExecDir()
		envCfg = filepath.Dir(curExecDir)
	}
	return envCfg
}

// ResolvePath joins relative paths onto the root dir, absolute paths are kept.
func ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(GetCurRootDir(), path)
}

func MakeDir(name string) error {
	err := os.MkdirAll(name, 0755)
	if err != nil {
		return err
	}
	return nil
}

// WriteFileAtomic writes data to a temp file in the same dir and renames it over name.
func WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	f, err := ioutil.TempFile(dir, filepath.Base(name)+".tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, name)
}
