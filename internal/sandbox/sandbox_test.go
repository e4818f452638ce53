package sandbox

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestValidatePathInsideRoot(t *testing.T) {
	root := t.TempDir()
	resolved, err := ValidatePath(root, "agent_configs/support.yaml")
	if err != nil {
		t.Fatalf("ValidatePath: %v", err)
	}
	if filepath.Base(resolved) != "support.yaml" {
		t.Errorf("resolved = %s", resolved)
	}
}

func TestValidatePathRejectsEscape(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"../outside.yaml", "a/../../outside.yaml"} {
		if _, err := ValidatePath(root, p); err == nil {
			t.Errorf("path %q escaped the project root", p)
		}
	}
}

func TestValidatePathRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks not reliable on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Fatal(err)
	}
	if _, err := ValidatePath(root, "link/escaped.yaml"); err == nil {
		t.Error("symlinked path escaped the project root")
	}
}

func TestSafeWriteCreatesParents(t *testing.T) {
	root := t.TempDir()
	if err := SafeWrite(root, "agent_configs/deep/support.yaml", []byte("name: support\n"), 0644); err != nil {
		t.Fatalf("SafeWrite: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "agent_configs/deep/support.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "name: support\n" {
		t.Errorf("content = %q", data)
	}
}

func TestSafeWriteLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	if err := SafeWrite(root, "a.yaml", []byte("x: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 1 {
		t.Errorf("directory contents: %v", entries)
	}
}

func TestSafeRemove(t *testing.T) {
	root := t.TempDir()
	if err := SafeWrite(root, "a.yaml", []byte("x: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := SafeRemove(root, "a.yaml"); err != nil {
		t.Fatalf("SafeRemove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a.yaml")); !os.IsNotExist(err) {
		t.Error("file still present after SafeRemove")
	}
	if err := SafeRemove(root, "../a.yaml"); err == nil {
		t.Error("SafeRemove allowed escaping path")
	}
}

func TestSafeMkdirAll(t *testing.T) {
	root := t.TempDir()
	if err := SafeMkdirAll(root, "agent_configs", 0755); err != nil {
		t.Fatalf("SafeMkdirAll: %v", err)
	}
	info, err := os.Stat(filepath.Join(root, "agent_configs"))
	if err != nil || !info.IsDir() {
		t.Errorf("agent_configs not created: %v", err)
	}
}
