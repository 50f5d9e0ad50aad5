package main

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
)

func newBackupFs(t *testing.T, path string, data []byte) afero.Fs {
	t.Helper()

	backupFs := afero.NewMemMapFs()

	err := afero.WriteFile(backupFs, path, data, 0o600)
	if err != nil {
		t.Fatal(err)
	}

	return backupFs
}

func runTest(t *testing.T, fs afero.Fs, args ...string) (int, string) {
	t.Helper()

	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)

	code := run(append([]string{"-no-color"}, args...), stdout, stderr, fs)
	if code != 0 {
		t.Logf("stderr:\n%s", stderr)
	}

	return code, stdout.String()
}

func TestRun_Backup(t *testing.T) {
	backupFs := newBackupFs(t, "/tmp/heap_1000-1010.bin", []byte("xxHolbertonxxxxx"))

	code, stdout := runTest(t, backupFs, "/tmp/heap_1000-1010.bin", "Holberton")
	if code != 0 {
		t.Fatalf("expected exit code 0 - got %d", code)
	}

	if stdout != "0x1002\n" {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
}

func TestRun_ScanPolicy(t *testing.T) {
	backupFs := newBackupFs(t, "/tmp/heap_1000-1004.bin", []byte("aaaa"))

	code, stdout := runTest(t, backupFs, "-offsets", "/tmp/heap_1000-1004.bin", "aa")
	if code != 0 {
		t.Fatalf("expected exit code 0 - got %d", code)
	}

	if stdout != "0\n1\n2\n" {
		t.Fatalf("unexpected overlapping stdout: %q", stdout)
	}

	code, stdout = runTest(t, backupFs, "-offsets", "-scan-policy", "disjoint", "/tmp/heap_1000-1004.bin", "aa")
	if code != 0 {
		t.Fatalf("expected exit code 0 - got %d", code)
	}

	if stdout != "0\n2\n" {
		t.Fatalf("unexpected disjoint stdout: %q", stdout)
	}
}

func TestRun_Unicode(t *testing.T) {
	backupFs := newBackupFs(t, "/tmp/heap_0-8.bin", []byte("xxH\x00i\x00xx"))

	code, stdout := runTest(t, backupFs, "-unicode", "/tmp/heap_0-8.bin", "Hi")
	if code != 0 {
		t.Fatalf("expected exit code 0 - got %d", code)
	}

	if stdout != "0x2\n" {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
}

func TestRun_Process(t *testing.T) {
	maps := "00000010-00000020 rw-p 00000000 00:00 0 [heap]\n"

	mem := make([]byte, 0x20)
	copy(mem[0x10:], "xxxxHolbertonxxx")

	procFs := afero.NewMemMapFs()

	err := procFs.MkdirAll("/proc/4242", 0o555)
	if err != nil {
		t.Fatal(err)
	}

	err = afero.WriteFile(procFs, "/proc/4242/maps", []byte(maps), 0o444)
	if err != nil {
		t.Fatal(err)
	}

	err = afero.WriteFile(procFs, "/proc/4242/mem", mem, 0o600)
	if err != nil {
		t.Fatal(err)
	}

	code, stdout := runTest(t, procFs, "-pid", "4242", "Holberton")
	if code != 0 {
		t.Fatalf("expected exit code 0 - got %d", code)
	}

	if stdout != "0x14\n" {
		t.Fatalf("unexpected stdout: %q", stdout)
	}

	after, err := afero.ReadFile(procFs, "/proc/4242/mem")
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(after, mem) {
		t.Fatal("memory was modified")
	}
}

func TestRun_Errors(t *testing.T) {
	backupFs := newBackupFs(t, "/tmp/heap_1000-1010.bin", []byte("too short"))

	tests := map[string][]string{
		"no arguments":   {},
		"missing search": {"/tmp/heap_1000-1010.bin"},
		"empty search":   {"/tmp/heap_1000-1010.bin", ""},
		"corrupt backup": {"/tmp/heap_1000-1010.bin", "short"},
		"missing backup": {"/tmp/heap_2000-2010.bin", "short"},
		"bad name":       {"/tmp/heap.bin", "short"},
		"no process":     {"-pid", "1337", "short"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			code, stdout := runTest(t, backupFs, args...)
			if code != 1 {
				t.Fatalf("expected exit code 1 - got %d", code)
			}

			if stdout != "" {
				t.Fatalf("expected no output - got %q", stdout)
			}
		})
	}
}
