package fileutils_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/afero"
	"github.com/static-dev/contentful/internal/fileutils"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		data            []byte
		fileExists      bool
		fileExistsPerms os.FileMode
		nested          bool
		parentIsFile    bool

		wantError bool
	}{
		"Empty file":          {data: []byte{}},
		"Non-empty file":      {data: []byte("data")},
		"Override file":       {data: []byte("data"), fileExistsPerms: 0600, fileExists: true},
		"Override empty file": {data: []byte{}, fileExistsPerms: 0600, fileExists: true},
		"Nested file":         {data: []byte("data"), nested: true},

		"Override read-only file": {data: []byte("data"), fileExistsPerms: 0400, fileExists: true, wantError: runtime.GOOS == "windows"},
		"Parent is a file":        {data: []byte("data"), parentIsFile: true, wantError: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewOsFs()
			oldFile := []byte("Old File!")
			tempDir := t.TempDir()
			path := filepath.Join(tempDir, "file")
			if tc.nested {
				path = filepath.Join(tempDir, "a", "b", "file")
			}
			if tc.parentIsFile {
				require.NoError(t, os.WriteFile(path, oldFile, 0600), "Setup: WriteFile should not return an error")
				path = filepath.Join(path, "child")
			}

			if tc.fileExists {
				err := os.WriteFile(path, oldFile, tc.fileExistsPerms)
				require.NoError(t, err, "Setup: WriteFile should not return an error")
				t.Cleanup(func() { _ = os.Chmod(path, 0600) })
			}

			err := fileutils.AtomicWrite(fs, path, tc.data)
			if tc.wantError {
				require.Error(t, err, "AtomicWrite should return an error")

				if tc.fileExists {
					data, err := os.ReadFile(path)
					require.NoError(t, err, "ReadFile should not return an error")
					require.Equal(t, oldFile, data, "AtomicWrite should not overwrite the file")
				}
				return
			}
			require.NoError(t, err, "AtomicWrite should not return an error")

			data, err := os.ReadFile(path)
			require.NoError(t, err, "ReadFile should not return an error")
			require.Equal(t, tc.data, data, "AtomicWrite should write the data to the file")

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err, "ReadDir should not return an error")
			require.Len(t, entries, 1, "AtomicWrite should not leave temporary files behind")
		})
	}
}

func TestAtomicWriteMemFs(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fileutils.AtomicWrite(fs, "/out/posts/a.html", []byte("first")), "AtomicWrite should not return an error")
	require.NoError(t, fileutils.AtomicWrite(fs, "/out/posts/a.html", []byte("second")), "AtomicWrite should override the file")

	data, err := afero.ReadFile(fs, "/out/posts/a.html")
	require.NoError(t, err, "ReadFile should not return an error")
	require.Equal(t, "second", string(data), "AtomicWrite should write the last data")
}

func TestLocalPath(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		name string

		want    string
		wantErr bool
	}{
		"Simple name":       {name: "index.html", want: "index.html"},
		"Nested name":       {name: "posts/a.html", want: filepath.Join("posts", "a.html")},
		"Uncleaned name":    {name: "posts/../b.html", want: "b.html"},
		"Current directory": {name: "./a.html", want: "a.html"},

		"Error on parent directory": {name: "../a.html", wantErr: true},
		"Error on absolute path":    {name: "/etc/passwd", wantErr: true},
		"Error on empty name":       {name: "", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := fileutils.LocalPath(tc.name)
			if tc.wantErr {
				require.Error(t, err, "LocalPath should return an error")
				return
			}
			require.NoError(t, err, "LocalPath should not return an error")
			require.Equal(t, tc.want, got, "LocalPath should return the cleaned path")
		})
	}
}
