// Package memclient provides an in-memory pfs.Client with real
// branch/commit semantics: staged operations become visible atomically
// when a commit finishes, and never before. It backs the test suite and
// serves embedders as a volatile development backend.
package memclient

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/google/uuid"
	"golang.org/x/exp/maps"

	"github.com/tybritten/fs-pach/pkg/pfs"
)

type object struct {
	data    []byte
	modTime time.Time
}

// branch is a flat key space; keys carry no leading delimiter.
type branch = map[string]object

// Cluster is a process-local stand-in for a versioned storage cluster.
type Cluster struct {
	mu    sync.RWMutex
	token string
	repos map[string]map[string]branch
}

func New() *Cluster {
	return &Cluster{repos: map[string]map[string]branch{}}
}

// SetAuthToken makes every subsequent call require the given token,
// exercising the permission-denied path of client consumers.
func (cl *Cluster) SetAuthToken(token string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.token = token
}

func (cl *Cluster) CreateRepo(project, repo string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	name := project + "/" + repo
	if _, ok := cl.repos[name]; !ok {
		cl.repos[name] = map[string]branch{}
	}
}

// Dial hands out a cheap client handle. Handles share the cluster state
// but are not safe for concurrent use themselves, matching the contract.
func (cl *Cluster) Dial(token string) pfs.Client {
	return &conn{cluster: cl, token: token}
}

// DialFunc adapts the cluster to the opener's dial contract. Host and
// port are ignored, the auth token is honored.
func (cl *Cluster) DialFunc() pfs.DialFunc {
	return func(cfg pfs.ConnectConfig) (pfs.Client, error) {
		return cl.Dial(cfg.AuthToken), nil
	}
}

// locked; returns nil for a branch that has no commits yet.
func (cl *Cluster) lookup(coord pfs.Coordinate) (branch, error) {
	branches, ok := cl.repos[coord.Project+"/"+coord.Repo]
	if !ok {
		return nil, pfs.Errorf(pfs.CodeNotFound, "repo %s/%s not found", coord.Project, coord.Repo)
	}
	return branches[coord.Branch], nil
}

type conn struct {
	cluster *Cluster
	token   string
	closed  bool
}

func (c *conn) authorize() error {
	if c.closed {
		return pfs.Errorf(pfs.CodeUnknown, "client is closed")
	}
	if c.cluster.token != "" && c.token != c.cluster.token {
		return pfs.Errorf(pfs.CodePermissionDenied, "invalid auth token")
	}
	return nil
}

func (c *conn) ListEntries(ctx context.Context, coord pfs.Coordinate, key string, fn func(pfs.EntryInfo) error) error {
	if err := c.authorize(); err != nil {
		return err
	}
	entries, err := c.collect(coord, key)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *conn) collect(coord pfs.Coordinate, key string) ([]pfs.EntryInfo, error) {
	c.cluster.mu.RLock()
	defer c.cluster.mu.RUnlock()
	br, err := c.cluster.lookup(coord)
	if err != nil {
		return nil, err
	}
	key = strings.Trim(key, "/")
	if key != "" {
		if obj, ok := br[key]; ok {
			return []pfs.EntryInfo{{Key: key, SizeBytes: int64(len(obj.data)), ModTime: obj.modTime}}, nil
		}
	}
	prefix := ""
	if key != "" {
		prefix = key + "/"
	}
	var entries []pfs.EntryInfo
	dirs := map[string]bool{}
	for k, obj := range br {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			dirs[prefix+rest[:i]] = true
			continue
		}
		entries = append(entries, pfs.EntryInfo{Key: k, SizeBytes: int64(len(obj.data)), ModTime: obj.modTime})
	}
	for d := range dirs {
		entries = append(entries, pfs.EntryInfo{Key: d, IsDir: true})
	}
	if len(entries) == 0 {
		// the root of an existing branch is listable even when empty
		if key == "" {
			return nil, nil
		}
		return nil, pfs.Errorf(pfs.CodeNotFound, "file %q not found in %s", key, coord)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (c *conn) GetFile(ctx context.Context, coord pfs.Coordinate, key string) (io.ReadCloser, error) {
	if err := c.authorize(); err != nil {
		return nil, err
	}
	c.cluster.mu.RLock()
	defer c.cluster.mu.RUnlock()
	br, err := c.cluster.lookup(coord)
	if err != nil {
		return nil, err
	}
	key = strings.Trim(key, "/")
	obj, ok := br[key]
	if !ok {
		return nil, pfs.Errorf(pfs.CodeNotFound, "file %q not found in %s", key, coord)
	}
	data := append([]byte(nil), obj.data...)
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *conn) OpenCommit(ctx context.Context, coord pfs.Coordinate) (pfs.Commit, error) {
	if err := c.authorize(); err != nil {
		return nil, err
	}
	c.cluster.mu.RLock()
	_, err := c.cluster.lookup(coord)
	c.cluster.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return &commit{conn: c, coord: coord, id: uuid.NewString()}, nil
}

func (c *conn) Close() error {
	c.closed = true
	return nil
}

const (
	opPut = iota
	opDelete
	opCopy
)

type stagedOp struct {
	op   int
	key  string
	src  string
	data []byte
}

// commit buffers mutations and applies them all-or-nothing on Finish.
type commit struct {
	conn     *conn
	coord    pfs.Coordinate
	id       string
	ops      []stagedOp
	finished bool
}

func (cm *commit) stage(op stagedOp) error {
	if cm.finished {
		return pfs.Errorf(pfs.CodeAborted, "commit %s already finished", cm.id)
	}
	cm.ops = append(cm.ops, op)
	return nil
}

func (cm *commit) PutFile(ctx context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "cannot read source for %q", key)
	}
	return cm.stage(stagedOp{op: opPut, key: strings.Trim(key, "/"), data: data})
}

func (cm *commit) DeleteFile(ctx context.Context, key string) error {
	return cm.stage(stagedOp{op: opDelete, key: strings.Trim(key, "/")})
}

func (cm *commit) CopyFile(ctx context.Context, srcKey, dstKey string) error {
	return cm.stage(stagedOp{op: opCopy, src: strings.Trim(srcKey, "/"), key: strings.Trim(dstKey, "/")})
}

func (cm *commit) Finish(ctx context.Context) error {
	if cm.finished {
		return pfs.Errorf(pfs.CodeAborted, "commit %s already finished", cm.id)
	}
	cm.finished = true
	if err := cm.conn.authorize(); err != nil {
		return err
	}
	cl := cm.conn.cluster
	cl.mu.Lock()
	defer cl.mu.Unlock()
	branches, ok := cl.repos[cm.coord.Project+"/"+cm.coord.Repo]
	if !ok {
		return pfs.Errorf(pfs.CodeNotFound, "repo %s/%s not found", cm.coord.Project, cm.coord.Repo)
	}
	working := maps.Clone(branches[cm.coord.Branch])
	if working == nil {
		working = branch{}
	}
	for _, op := range cm.ops {
		if err := apply(working, op); err != nil {
			return err
		}
	}
	branches[cm.coord.Branch] = working
	return nil
}

func apply(working branch, op stagedOp) error {
	switch op.op {
	case opPut:
		working[op.key] = object{data: op.data, modTime: time.Now()}
	case opDelete:
		// deleting a directory key removes everything beneath it;
		// deleting an absent key is a no-op
		delete(working, op.key)
		prefix := op.key + "/"
		for k := range working {
			if strings.HasPrefix(k, prefix) {
				delete(working, k)
			}
		}
	case opCopy:
		if obj, ok := working[op.src]; ok {
			working[op.key] = object{data: append([]byte(nil), obj.data...), modTime: time.Now()}
			return nil
		}
		prefix := op.src + "/"
		var children []string
		for k := range working {
			if strings.HasPrefix(k, prefix) {
				children = append(children, k)
			}
		}
		if len(children) == 0 {
			return pfs.Errorf(pfs.CodeNotFound, "file %q not found", op.src)
		}
		for _, k := range children {
			working[op.key+"/"+strings.TrimPrefix(k, prefix)] = object{
				data:    append([]byte(nil), working[k].data...),
				modTime: time.Now(),
			}
		}
	}
	return nil
}
