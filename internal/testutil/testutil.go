// Package testutil holds fixture helpers shared by reaper's tests.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

// ReadFile reads content from a file.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error: %v", path, err)
	}
	return string(data)
}

// CreateFileTree creates files from a map of slash-separated relative path
// to content under root.
func CreateFileTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(name)), content)
	}
}

// Project creates a temp directory holding files and returns its path.
func Project(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	CreateFileTree(t, root, files)
	return root
}

// ListFiles returns the files under root as sorted slash-separated
// relative paths.
func ListFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir(%s) error: %v", root, err)
	}
	sort.Strings(files)
	return files
}

// PHPProject is a small application: public/index.php calls into App\Kernel,
// which uses App\Utils\Math. Everything in src/Legacy/Old.php is unreachable
// from public/index.php.
var PHPProject = map[string]string{
	"public/index.php": `<?php
function bootstrap() {
    $k = new \App\Kernel();
    $k->handle();
}
`,
	"src/Kernel.php": `<?php
namespace App;

class Kernel {
    public function handle() {
        $m = new \App\Utils\Math();
        return $m->sum(1, 2);
    }
}
`,
	"src/Utils/Math.php": `<?php
namespace App\Utils;

class Math {
    public function sum($a, $b) { return $a + $b; }
}
`,
	"src/Legacy/Old.php": `<?php
namespace App\Legacy;

function unused() {}

class Old {
    public function run() {}
}
`,
}
