package flatfat

import (
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"
	"testing"

	"github.com/spf13/afero"
)

// testingFs creates a 10 MiB volume holding "hello.txt" and an empty file "empty".
func testingFs(t *testing.T) (*Fs, *Volume) {
	t.Helper()
	v, _ := testingCreate(t, 10*MiB, 8*KiB)
	fs := NewFs(v)
	if err := fs.WriteFile("hello.txt", []byte("Hello World!")); err != nil {
		t.Fatal(err)
	}
	if _, err := v.CreateFile("empty"); err != nil {
		t.Fatal(err)
	}
	return fs, v
}

func readAll(t *testing.T, fs afero.Fs, name string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func Test_resolve(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "", want: ""},
		{input: ".", want: ""},
		{input: "/", want: ""},
		{input: "hello.txt", want: "hello.txt"},
		{input: "/hello.txt", want: "hello.txt"},
		{input: "./hello.txt", want: "hello.txt"},
		{input: "/../hello.txt", want: "hello.txt"},
		{input: "a/b", want: "a/b"},
	}
	for _, tt := range tests {
		if got := resolve(tt.input); got != tt.want {
			t.Errorf("resolve(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFs_Open(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantDir   bool
		wantSize  int64
		wantExist bool
	}{
		{name: "root", path: "/", wantDir: true, wantExist: true},
		{name: "root as dot", path: ".", wantDir: true, wantExist: true},
		{name: "file", path: "/hello.txt", wantSize: 12, wantExist: true},
		{name: "file without slash", path: "hello.txt", wantSize: 12, wantExist: true},
		{name: "empty file", path: "empty", wantExist: true},
		{name: "missing file", path: "missing"},
		{name: "sub directory", path: "dir/hello.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, _ := testingFs(t)
			f, err := fs.Open(tt.path)
			if !tt.wantExist {
				if !os.IsNotExist(err) {
					t.Errorf("Open() error = %v, want not exist", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				t.Fatal(err)
			}
			if info.IsDir() != tt.wantDir || info.Size() != tt.wantSize {
				t.Errorf("Stat() = dir %v size %v, want dir %v size %v", info.IsDir(), info.Size(), tt.wantDir, tt.wantSize)
			}
		})
	}
}

func TestFs_Open_Readdir(t *testing.T) {
	fs, _ := testingFs(t)
	f, err := fs.Open("/")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "empty" || names[1] != "hello.txt" {
		t.Errorf("Readdirnames() = %v", names)
	}
}

func TestFs_OpenFile(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		flag    int
		write   string
		want    string
		wantErr func(err error) bool
	}{
		{
			name:  "create a new file",
			path:  "new.txt",
			flag:  os.O_WRONLY | os.O_CREATE,
			write: "new content",
			want:  "new content",
		},
		{
			name:  "truncate an existing file",
			path:  "hello.txt",
			flag:  os.O_WRONLY | os.O_TRUNC,
			write: "Bye",
			want:  "Bye",
		},
		{
			name:  "overwrite the start",
			path:  "hello.txt",
			flag:  os.O_WRONLY,
			write: "Jello",
			want:  "Jello World!",
		},
		{
			name:  "append",
			path:  "hello.txt",
			flag:  os.O_WRONLY | os.O_APPEND,
			write: " Again!",
			want:  "Hello World! Again!",
		},
		{
			name: "truncate without writing",
			path: "hello.txt",
			flag: os.O_WRONLY | os.O_TRUNC,
			want: "",
		},
		{
			name:    "exclusive create of an existing file",
			path:    "hello.txt",
			flag:    os.O_WRONLY | os.O_CREATE | os.O_EXCL,
			wantErr: os.IsExist,
		},
		{
			name:    "write to a missing file",
			path:    "missing",
			flag:    os.O_WRONLY,
			wantErr: os.IsNotExist,
		},
		{
			name: "read write",
			path: "hello.txt",
			flag: os.O_RDWR,
			wantErr: func(err error) bool {
				return errors.Is(err, ErrUnsupported)
			},
		},
		{
			name: "write to the root",
			path: "/",
			flag: os.O_WRONLY,
			wantErr: func(err error) bool {
				return err != nil
			},
		},
		{
			name: "invalid name",
			path: strings.Repeat("a", MaxNameLength+1),
			flag: os.O_WRONLY | os.O_CREATE,
			wantErr: func(err error) bool {
				return errors.Is(err, ErrInvalidParameters)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, _ := testingFs(t)
			f, err := fs.OpenFile(tt.path, tt.flag, 0644)
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Errorf("OpenFile() error = %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			if tt.write != "" {
				if _, err := f.WriteString(tt.write); err != nil {
					t.Fatal(err)
				}
			}
			if err := f.Close(); err != nil {
				t.Fatal(err)
			}
			if got := readAll(t, fs, tt.path); got != tt.want {
				t.Errorf("content = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFs_Create(t *testing.T) {
	fs, v := testingFs(t)

	f, err := fs.Create("/created.txt")
	if err != nil {
		t.Fatal(err)
	}

	// The file exists before anything is written.
	if info, err := fs.Stat("created.txt"); err != nil || info.Size() != 0 {
		t.Fatalf("Stat() = %v, %v", info, err)
	}

	data := pattern(20 * KiB)
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := f.Sync(); err != nil {
		t.Fatal(err)
	}
	if info, err := fs.Stat("created.txt"); err != nil || info.Size() != int64(len(data)) {
		t.Fatalf("Stat() after Sync = %v, %v", info, err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := v.Read("created.txt")
	if err != nil {
		t.Fatal(err)
	}
	assertPattern(t, r, 20*KiB)

	// Create truncates.
	f, err = fs.Create("created.txt")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if info, _ := fs.Stat("created.txt"); info.Size() != 0 {
		t.Errorf("Size() after Create = %v", info.Size())
	}
}

func TestFs_Create_NoSpace(t *testing.T) {
	v, _ := testingCreate(t, 5*MiB, 16*KiB)
	fs := NewFs(v)

	f, err := fs.Create("big")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(make([]byte, 318*16*KiB)); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); !errors.Is(err, ErrNoSpace) {
		t.Errorf("Close() error = %v, wantErr %v", err, ErrNoSpace)
	}

	// The empty file created by Create is still there.
	if info, err := fs.Stat("big"); err != nil || info.Size() != 0 {
		t.Errorf("Stat() = %v, %v", info, err)
	}
}

func TestFs_Remove(t *testing.T) {
	fs, v := testingFs(t)

	if err := fs.Remove("/hello.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Stat("hello.txt"); !os.IsNotExist(err) {
		t.Errorf("Stat() error = %v, want not exist", err)
	}
	if err := fs.Remove("hello.txt"); !os.IsNotExist(err) {
		t.Errorf("Remove() error = %v, want not exist", err)
	}
	if err := fs.Remove("/"); err == nil {
		t.Error("Remove() of the root succeeded")
	}
	if v.FileCount() != 1 {
		t.Errorf("FileCount() = %v", v.FileCount())
	}
}

func TestFs_RemoveAll(t *testing.T) {
	fs, v := testingFs(t)

	if err := fs.RemoveAll("missing"); err != nil {
		t.Errorf("RemoveAll() of a missing file error = %v", err)
	}
	if err := fs.RemoveAll("empty"); err != nil {
		t.Fatal(err)
	}
	if v.FileCount() != 1 {
		t.Errorf("FileCount() = %v", v.FileCount())
	}

	if err := fs.RemoveAll("/"); err != nil {
		t.Fatal(err)
	}
	if v.FileCount() != 0 {
		t.Errorf("FileCount() = %v", v.FileCount())
	}
	if u := v.Usage(); u.Used != 3 {
		t.Errorf("Usage() = %+v", u)
	}
}

func TestFs_Rename(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr error
	}{
		{name: "new name", from: "hello.txt", to: "/renamed.txt"},
		{name: "replace", from: "hello.txt", to: "empty"},
		{name: "same name", from: "hello.txt", to: "/hello.txt"},
		{name: "missing", from: "missing", to: "other", wantErr: ErrNotFound},
		{name: "same missing name", from: "missing", to: "missing", wantErr: ErrNotFound},
		{name: "root", from: "/", to: "other", wantErr: syscall.EISDIR},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, _ := testingFs(t)
			err := fs.Rename(tt.from, tt.to)
			if tt.wantErr != nil {
				var linkErr *os.LinkError
				if !errors.As(err, &linkErr) {
					t.Fatalf("Rename() error = %v, want *os.LinkError", err)
				}
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Rename() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := readAll(t, fs, tt.to); got != "Hello World!" {
				t.Errorf("content = %q", got)
			}
			if resolve(tt.from) != resolve(tt.to) {
				if _, err := fs.Stat(tt.from); !os.IsNotExist(err) {
					t.Errorf("old name still exists: %v", err)
				}
			}
		})
	}
}

func TestFs_Stat(t *testing.T) {
	fs, _ := testingFs(t)

	root, err := fs.Stat("/")
	if err != nil {
		t.Fatal(err)
	}
	if !root.IsDir() || root.Mode() != os.ModeDir|0555 {
		t.Errorf("Stat(/) = %v %v", root.IsDir(), root.Mode())
	}

	info, err := fs.Stat("hello.txt")
	if err != nil {
		t.Fatal(err)
	}
	if info.Name() != "hello.txt" || info.Size() != 12 || !info.ModTime().Equal(testTime) {
		t.Errorf("Stat() = %v %v %v", info.Name(), info.Size(), info.ModTime())
	}
	if _, ok := info.Sys().(Entry); !ok {
		t.Errorf("Sys() = %T, want Entry", info.Sys())
	}

	_, err = fs.Stat("missing")
	var pathErr *os.PathError
	if !os.IsNotExist(err) || !errors.As(err, &pathErr) || pathErr.Path != "missing" {
		t.Errorf("Stat() error = %v", err)
	}
}

func TestFs_Unsupported(t *testing.T) {
	fs, _ := testingFs(t)

	if err := fs.MkdirAll("/", 0755); err != nil {
		t.Errorf("MkdirAll(/) error = %v", err)
	}
	calls := map[string]error{
		"Mkdir":    fs.Mkdir("dir", 0755),
		"MkdirAll": fs.MkdirAll("dir/sub", 0755),
		"Chmod":    fs.Chmod("hello.txt", 0600),
		"Chown":    fs.Chown("hello.txt", 1, 1),
		"Chtimes":  fs.Chtimes("hello.txt", testTime, testTime),
	}
	for call, err := range calls {
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("%v() error = %v, wantErr %v", call, err, ErrUnsupported)
		}
	}

	if fs.Name() != "flatfat" {
		t.Errorf("Name() = %v", fs.Name())
	}
}

func TestFs_WriteFile(t *testing.T) {
	fs, v := testingFs(t)

	if err := fs.WriteFile("/hello.txt", []byte("short")); err != nil {
		t.Fatal(err)
	}
	if got := readAll(t, fs, "hello.txt"); got != "short" {
		t.Errorf("content = %q", got)
	}
	if v.FileCount() != 2 {
		t.Errorf("FileCount() = %v", v.FileCount())
	}
	if err := fs.WriteFile("/", nil); err == nil {
		t.Error("WriteFile() to the root succeeded")
	}
}

func TestFs_Walk(t *testing.T) {
	fs, _ := testingFs(t)

	var walked []string
	err := afero.Walk(fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		walked = append(walked, path)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"/", "/empty", "/hello.txt"}
	if len(walked) != len(want) {
		t.Fatalf("Walk() = %v, want %v", walked, want)
	}
	for i := range want {
		if walked[i] != want[i] {
			t.Errorf("Walk() = %v, want %v", walked, want)
		}
	}
}

func TestFs_ReadSeek(t *testing.T) {
	fs, _ := testingFs(t)
	f, err := fs.Open("hello.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := f.Seek(6, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(f)
	if err != nil || string(data) != "World!" {
		t.Errorf("ReadAll() = %q, %v", data, err)
	}
	if _, err := f.Write([]byte("x")); err == nil {
		t.Error("Write() to a read only file succeeded")
	}
}
