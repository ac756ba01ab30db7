package pachfs

import (
	"fmt"
	"io/fs"
	"testing"

	"emperror.dev/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tybritten/fs-pach/pkg/pfs"
	"github.com/tybritten/fs-pach/pkg/pfs/memclient"
)

func newTestFS(t *testing.T, opts *Options) (*FS, *memclient.Cluster) {
	t.Helper()
	cluster := memclient.New()
	cluster.CreateRepo("default", "photos")
	coord := pfs.Coordinate{Project: "default", Repo: "photos", Branch: "master"}
	pachFS, err := NewFS(func() (pfs.Client, error) {
		return cluster.Dial(""), nil
	}, coord, opts, nil)
	if err != nil {
		t.Fatalf("cannot create filesystem: %v", err)
	}
	t.Cleanup(func() { pachFS.Close() })
	return pachFS, cluster
}

func mustWrite(t *testing.T, pachFS *FS, name, content string) {
	t.Helper()
	if err := pachFS.WriteFile(name, []byte(content)); err != nil {
		t.Fatalf("cannot write '%s': %v", name, err)
	}
}

func TestNewFSValidation(t *testing.T) {
	coord := pfs.Coordinate{Repo: "photos"}
	if _, err := NewFS(nil, coord, nil, nil); err == nil {
		t.Errorf("expected error for nil dialer")
	}
	dial := func() (pfs.Client, error) { return nil, errors.New("unused") }
	if _, err := NewFS(dial, pfs.Coordinate{}, nil, nil); err == nil {
		t.Errorf("expected error for empty repo")
	}
	pachFS, err := NewFS(dial, coord, nil, nil)
	if err != nil {
		t.Fatalf("cannot create filesystem: %v", err)
	}
	if c := pachFS.Coordinate(); c.Project != "default" || c.Branch != "master" {
		t.Errorf("defaults not applied: %s", c)
	}
	if pachFS.String() != "pachfs://default/photos@master/" {
		t.Errorf("unexpected String(): %s", pachFS)
	}
}

func TestResolveKinds(t *testing.T) {
	pachFS, _ := newTestFS(t, nil)
	mustWrite(t, pachFS, "/a/x", "1")
	mustWrite(t, pachFS, "/a/y", "2")

	// the root always exists
	if ok, err := pachFS.IsDir("/"); err != nil || !ok {
		t.Errorf("root should be a directory: %v %v", ok, err)
	}

	if ok, err := pachFS.IsFile("/a/x"); err != nil || !ok {
		t.Errorf("'/a/x' should be a file: %v %v", ok, err)
	}
	// '/a' exists only through the keys beneath it
	if ok, err := pachFS.IsDir("/a"); err != nil || !ok {
		t.Errorf("'/a' should be an implicit directory: %v %v", ok, err)
	}
	if ok, err := pachFS.Exists("/nope"); err != nil || ok {
		t.Errorf("'/nope' should not exist: %v %v", ok, err)
	}
	if ok, err := pachFS.IsDir("/a/x"); err != nil || ok {
		t.Errorf("'/a/x' should not be a directory: %v %v", ok, err)
	}
}

func TestStat(t *testing.T) {
	pachFS, _ := newTestFS(t, nil)
	mustWrite(t, pachFS, "/a/x", "hello")

	fi, err := pachFS.Stat("/a/x")
	if err != nil {
		t.Fatalf("cannot stat '/a/x': %v", err)
	}
	if fi.Name() != "x" || fi.IsDir() || fi.Size() != 5 {
		t.Errorf("unexpected file info: name '%s' dir %v size %d", fi.Name(), fi.IsDir(), fi.Size())
	}
	if fi.ModTime().IsZero() {
		t.Errorf("expected a modification time")
	}

	fi, err = pachFS.Stat("/a")
	if err != nil {
		t.Fatalf("cannot stat '/a': %v", err)
	}
	if !fi.IsDir() || fi.Mode()&fs.ModeDir == 0 {
		t.Errorf("'/a' should stat as directory")
	}

	if _, err := pachFS.Stat("/nope"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}
	// the taxonomy stays io/fs compatible
	if _, err := pachFS.Stat("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist compatibility, got %v", err)
	}
	// a file key below another file is not reachable through Stat
	if _, err := pachFS.Stat("/a/x/deeper"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound below a file, got %v", err)
	}
}

func TestWriteReadRoundtrip(t *testing.T) {
	pachFS, _ := newTestFS(t, nil)
	mustWrite(t, pachFS, "/doc.txt", "content")

	data, err := pachFS.ReadFile("/doc.txt")
	if err != nil {
		t.Fatalf("cannot read '/doc.txt': %v", err)
	}
	if string(data) != "content" {
		t.Errorf("got '%s', want 'content'", data)
	}

	// overwrite
	mustWrite(t, pachFS, "/doc.txt", "changed")
	data, err = pachFS.ReadFile("/doc.txt")
	if err != nil {
		t.Fatalf("cannot read '/doc.txt': %v", err)
	}
	if string(data) != "changed" {
		t.Errorf("got '%s', want 'changed'", data)
	}

	// empty content is a valid object
	mustWrite(t, pachFS, "/empty.bin", "")
	data, err = pachFS.ReadFile("/empty.bin")
	if err != nil {
		t.Fatalf("cannot read '/empty.bin': %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty content, got %d bytes", len(data))
	}
	if ok, _ := pachFS.IsFile("/empty.bin"); !ok {
		t.Errorf("'/empty.bin' should exist as a file")
	}

	if _, err := pachFS.ReadFile("/nope"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}
	// absent parents become implicit directories
	if err := pachFS.WriteFile("/deep/down/file", []byte("x")); err != nil {
		t.Errorf("nested write failed: %v", err)
	}
	if ok, _ := pachFS.IsDir("/deep/down"); !ok {
		t.Errorf("'/deep/down' should be an implicit directory")
	}
	// a parent resolving as a file is rejected
	if err := pachFS.WriteFile("/doc.txt/below", []byte("x")); !errors.Is(err, ErrDirectoryExpected) {
		t.Errorf("expected ErrDirectoryExpected, got %v", err)
	}
}

func TestMkDir(t *testing.T) {
	pachFS, _ := newTestFS(t, nil)

	sub, err := pachFS.MkDir("/inbox")
	if err != nil {
		t.Fatalf("cannot mkdir '/inbox': %v", err)
	}
	if ok, _ := pachFS.IsDir("/inbox"); !ok {
		t.Errorf("'/inbox' should be a directory")
	}
	if empty, err := pachFS.IsEmpty("/inbox"); err != nil || !empty {
		t.Errorf("fresh directory should be empty: %v %v", empty, err)
	}

	// the scoped view writes inside the new directory
	if err := sub.WriteFile("/mail", []byte("hi")); err != nil {
		t.Fatalf("cannot write through subfs: %v", err)
	}
	data, err := pachFS.ReadFile("/inbox/mail")
	if err != nil {
		t.Fatalf("cannot read '/inbox/mail': %v", err)
	}
	if string(data) != "hi" {
		t.Errorf("got '%s', want 'hi'", data)
	}

	if _, err := pachFS.MkDir("/inbox"); !errors.Is(err, ErrDirectoryExists) {
		t.Errorf("expected ErrDirectoryExists, got %v", err)
	}
	if _, err := pachFS.MkDir("/"); !errors.Is(err, ErrDirectoryExists) {
		t.Errorf("expected ErrDirectoryExists for root, got %v", err)
	}
	if _, err := pachFS.MkDir("/no/parent"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}
	mustWrite(t, pachFS, "/file", "x")
	if _, err := pachFS.MkDir("/file"); !errors.Is(err, ErrDirectoryExists) {
		t.Errorf("expected ErrDirectoryExists on occupied path, got %v", err)
	}
}

func TestReadDir(t *testing.T) {
	pachFS, _ := newTestFS(t, nil)
	mustWrite(t, pachFS, "/a/x", "1")
	mustWrite(t, pachFS, "/a/b/y", "2")
	if _, err := pachFS.MkDir("/a/c"); err != nil {
		t.Fatalf("cannot mkdir: %v", err)
	}

	entries, err := pachFS.ReadDir("/a")
	if err != nil {
		t.Fatalf("cannot read '/a': %v", err)
	}
	var names []string
	for _, de := range entries {
		names = append(names, fmt.Sprintf("%s:%v", de.Name(), de.IsDir()))
	}
	want := []string{"b:true", "c:true", "x:false"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entry %d: got %s, want %s", i, names[i], want[i])
		}
	}

	// the sentinel marker never shows up in listings
	listing, err := pachFS.ListDir("/a/c")
	if err != nil {
		t.Fatalf("cannot list '/a/c': %v", err)
	}
	if len(listing) != 0 {
		t.Errorf("expected empty listing, got %v", listing)
	}

	if _, err := pachFS.ReadDir("/a/x"); !errors.Is(err, ErrDirectoryExpected) {
		t.Errorf("expected ErrDirectoryExpected, got %v", err)
	}
	if _, err := pachFS.ReadDir("/nope"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestWalkDir(t *testing.T) {
	pachFS, _ := newTestFS(t, nil)
	mustWrite(t, pachFS, "/a/x", "1")
	mustWrite(t, pachFS, "/a/b/y", "2")
	mustWrite(t, pachFS, "/top", "3")

	var visited []string
	err := pachFS.WalkDir("/", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		visited = append(visited, p)
		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	want := []string{"/a", "/a/b", "/a/b/y", "/a/x", "/top"}
	if len(visited) != len(want) {
		t.Fatalf("got %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visit %d: got %s, want %s", i, visited[i], want[i])
		}
	}

	// SkipDir prunes the subtree
	visited = nil
	err = pachFS.WalkDir("/", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "/a/b" {
			return fs.SkipDir
		}
		visited = append(visited, p)
		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	for _, p := range visited {
		if p == "/a/b/y" {
			t.Errorf("SkipDir did not prune: %v", visited)
		}
	}
}

func TestRemove(t *testing.T) {
	pachFS, _ := newTestFS(t, nil)
	mustWrite(t, pachFS, "/a/x", "1")

	if err := pachFS.Remove("/a/x"); err != nil {
		t.Fatalf("cannot remove '/a/x': %v", err)
	}
	if ok, _ := pachFS.Exists("/a/x"); ok {
		t.Errorf("'/a/x' should be gone")
	}
	// the implicit parent vanishes with its last child
	if ok, _ := pachFS.Exists("/a"); ok {
		t.Errorf("'/a' should be gone with its last child")
	}

	if err := pachFS.Remove("/a/x"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}
	mustWrite(t, pachFS, "/d/f", "1")
	if err := pachFS.Remove("/d"); !errors.Is(err, ErrFileExpected) {
		t.Errorf("expected ErrFileExpected on directory, got %v", err)
	}
}

func TestRemoveDir(t *testing.T) {
	pachFS, _ := newTestFS(t, nil)
	if err := pachFS.RemoveDir("/"); !errors.Is(err, ErrRemoveRoot) {
		t.Errorf("expected ErrRemoveRoot, got %v", err)
	}
	if err := pachFS.RemoveDir("/nope"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}

	mustWrite(t, pachFS, "/d/f", "1")
	if err := pachFS.RemoveDir("/d/f"); !errors.Is(err, ErrDirectoryExpected) {
		t.Errorf("expected ErrDirectoryExpected on file, got %v", err)
	}
	if err := pachFS.RemoveDir("/d"); !errors.Is(err, ErrDirectoryNotEmpty) {
		t.Errorf("expected ErrDirectoryNotEmpty, got %v", err)
	}
	if err := pachFS.Remove("/d/f"); err != nil {
		t.Fatalf("cannot remove '/d/f': %v", err)
	}

	// an explicit directory survives the removal of its content
	if _, err := pachFS.MkDir("/e"); err != nil {
		t.Fatalf("cannot mkdir '/e': %v", err)
	}
	if err := pachFS.RemoveDir("/e"); err != nil {
		t.Fatalf("cannot remove '/e': %v", err)
	}
	if ok, _ := pachFS.Exists("/e"); ok {
		t.Errorf("'/e' should be gone")
	}
}

func TestCopyMove(t *testing.T) {
	pachFS, _ := newTestFS(t, nil)
	mustWrite(t, pachFS, "/src", "payload")
	mustWrite(t, pachFS, "/occupied", "other")

	if err := pachFS.Copy("/src", "/dst", false); err != nil {
		t.Fatalf("cannot copy: %v", err)
	}
	data, err := pachFS.ReadFile("/dst")
	if err != nil || string(data) != "payload" {
		t.Errorf("copy content wrong: '%s' %v", data, err)
	}
	if ok, _ := pachFS.Exists("/src"); !ok {
		t.Errorf("copy must keep the source")
	}

	if err := pachFS.Copy("/src", "/occupied", false); !errors.Is(err, ErrDestinationExists) {
		t.Errorf("expected ErrDestinationExists, got %v", err)
	}
	if err := pachFS.Copy("/src", "/occupied", true); err != nil {
		t.Errorf("overwrite copy failed: %v", err)
	}
	if err := pachFS.Copy("/nope", "/x", false); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}

	if err := pachFS.Move("/src", "/moved", false); err != nil {
		t.Fatalf("cannot move: %v", err)
	}
	if ok, _ := pachFS.Exists("/src"); ok {
		t.Errorf("move must drop the source")
	}
	data, err = pachFS.ReadFile("/moved")
	if err != nil || string(data) != "payload" {
		t.Errorf("move content wrong: '%s' %v", data, err)
	}
}

func TestScopedDirPath(t *testing.T) {
	pachFS, cluster := newTestFS(t, &Options{DirPath: "/scope"})
	mustWrite(t, pachFS, "/f", "inside")

	// the object lands under the prefix in the backend
	other, err := NewFS(func() (pfs.Client, error) {
		return cluster.Dial(""), nil
	}, pachFS.Coordinate(), nil, nil)
	if err != nil {
		t.Fatalf("cannot create unscoped view: %v", err)
	}
	defer other.Close()
	mustWrite(t, other, "/outside", "secret")
	data, err := other.ReadFile("/scope/f")
	if err != nil || string(data) != "inside" {
		t.Errorf("expected '/scope/f' in backend: '%s' %v", data, err)
	}

	// traversal cannot escape the scope
	if _, err := pachFS.ReadFile("/../../outside"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}
	names, err := pachFS.ListDir("/")
	if err != nil {
		t.Fatalf("cannot list scoped root: %v", err)
	}
	if len(names) != 1 || names[0] != "f" {
		t.Errorf("scoped listing: got %v", names)
	}
}

func TestConcurrentWriters(t *testing.T) {
	pachFS, _ := newTestFS(t, nil)
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("/w/file-%d", i)
		content := fmt.Sprintf("writer %d", i)
		g.Go(func() error {
			return pachFS.WriteFile(name, []byte(content))
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent write failed: %v", err)
	}
	names, err := pachFS.ListDir("/w")
	if err != nil {
		t.Fatalf("cannot list '/w': %v", err)
	}
	if len(names) != 8 {
		t.Errorf("expected 8 files, got %v", names)
	}
	for i := 0; i < 8; i++ {
		data, err := pachFS.ReadFile(fmt.Sprintf("/w/file-%d", i))
		if err != nil || string(data) != fmt.Sprintf("writer %d", i) {
			t.Errorf("file %d content wrong: '%s' %v", i, data, err)
		}
	}
}

func TestConcurrentWritersSamePath(t *testing.T) {
	pachFS, _ := newTestFS(t, nil)
	candidates := map[string]bool{}
	var g errgroup.Group
	for i := 0; i < 4; i++ {
		content := fmt.Sprintf("writer %d", i)
		candidates[content] = true
		g.Go(func() error {
			return pachFS.WriteFile("/shared", []byte(content))
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent write failed: %v", err)
	}
	// last committer wins, never an interleaving
	data, err := pachFS.ReadFile("/shared")
	if err != nil {
		t.Fatalf("cannot read '/shared': %v", err)
	}
	if !candidates[string(data)] {
		t.Errorf("final content '%s' matches no single writer", data)
	}
}

func TestPermissionDenied(t *testing.T) {
	pachFS, cluster := newTestFS(t, nil)
	cluster.SetAuthToken("s3cr3t")

	if _, err := pachFS.Exists("/x"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
	if err := pachFS.WriteFile("/x", []byte("y")); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
	// the io/fs mapping holds here too
	if _, err := pachFS.Exists("/x"); !errors.Is(err, fs.ErrPermission) {
		t.Errorf("expected fs.ErrPermission compatibility, got %v", err)
	}
}

func TestClosedFS(t *testing.T) {
	pachFS, _ := newTestFS(t, nil)
	if err := pachFS.Close(); err != nil {
		t.Fatalf("cannot close: %v", err)
	}
	if _, err := pachFS.Exists("/x"); !errors.Is(err, ErrOperationFailed) {
		t.Errorf("expected ErrOperationFailed, got %v", err)
	}
	// closing twice is fine
	if err := pachFS.Close(); err != nil {
		t.Errorf("double close failed: %v", err)
	}
}

func TestSub(t *testing.T) {
	pachFS, _ := newTestFS(t, nil)
	mustWrite(t, pachFS, "/a/b/deep", "x")

	sub := pachFS.Sub("/a")
	if ok, err := sub.IsFile("/b/deep"); err != nil || !ok {
		t.Errorf("'/b/deep' should be a file in the subview: %v %v", ok, err)
	}
	nested := sub.Sub("/b")
	data, err := nested.ReadFile("/deep")
	if err != nil || string(data) != "x" {
		t.Errorf("nested subview read: '%s' %v", data, err)
	}

	var walked []string
	if err := sub.WalkDir("/", func(p string, d fs.DirEntry, err error) error {
		walked = append(walked, p)
		return err
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	want := []string{"/b", "/b/deep"}
	if len(walked) != len(want) {
		t.Fatalf("got %v, want %v", walked, want)
	}
	for i := range want {
		if walked[i] != want[i] {
			t.Errorf("walk %d: got %s, want %s", i, walked[i], want[i])
		}
	}
}
