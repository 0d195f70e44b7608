package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/jlaffaye/ftp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer holds remote tree state shared across fake sessions, the way
// a real server persists state between connections.
type fakeServer struct {
	root *fakeDir

	open   int
	dialed int

	failMkdir  map[string]bool
	failDelete map[string]bool
	failListAt map[string]bool
}

type fakeDir struct {
	dirs  map[string]*fakeDir
	files map[string][]byte
}

func newFakeDir() *fakeDir {
	return &fakeDir{dirs: map[string]*fakeDir{}, files: map[string][]byte{}}
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		root:       newFakeDir(),
		failMkdir:  map[string]bool{},
		failDelete: map[string]bool{},
		failListAt: map[string]bool{},
	}
}

func (s *fakeServer) connect() *fakeConn {
	s.dialed++
	s.open++
	return &fakeConn{server: s}
}

// mkdirAll seeds tree state directly, bypassing the store under test.
func (s *fakeServer) mkdirAll(segments ...string) *fakeDir {
	d := s.root
	for _, seg := range segments {
		child, ok := d.dirs[seg]
		if !ok {
			child = newFakeDir()
			d.dirs[seg] = child
		}
		d = child
	}
	return d
}

func (s *fakeServer) lookup(segments ...string) (*fakeDir, bool) {
	d := s.root
	for _, seg := range segments {
		child, ok := d.dirs[seg]
		if !ok {
			return nil, false
		}
		d = child
	}
	return d, true
}

type fakeConn struct {
	server *fakeServer
	cwd    []string
	closed bool
}

func (c *fakeConn) node() *fakeDir {
	d, ok := c.server.lookup(c.cwd...)
	if !ok {
		panic("fake cursor points at removed directory")
	}
	return d
}

func (c *fakeConn) cwdPath() string { return "/" + strings.Join(c.cwd, "/") }

func (c *fakeConn) CurrentDir() (string, error) { return c.cwdPath(), nil }

func (c *fakeConn) ChangeDir(path string) error {
	if path == "/" {
		c.cwd = nil
		return nil
	}
	if path == ".." {
		if len(c.cwd) > 0 {
			c.cwd = c.cwd[:len(c.cwd)-1]
		}
		return nil
	}
	if _, ok := c.node().dirs[path]; !ok {
		return fmt.Errorf("550 %s: no such directory", path)
	}
	c.cwd = append(c.cwd, path)
	return nil
}

func (c *fakeConn) MakeDir(path string) error {
	if c.server.failMkdir[path] {
		return fmt.Errorf("550 %s: permission denied", path)
	}
	d := c.node()
	if _, ok := d.dirs[path]; ok {
		return fmt.Errorf("550 %s: already exists", path)
	}
	d.dirs[path] = newFakeDir()
	return nil
}

func (c *fakeConn) RemoveDir(path string) error {
	d := c.node()
	sub, ok := d.dirs[path]
	if !ok {
		return fmt.Errorf("550 %s: no such directory", path)
	}
	if len(sub.dirs) > 0 || len(sub.files) > 0 {
		return fmt.Errorf("550 %s: directory not empty", path)
	}
	delete(d.dirs, path)
	return nil
}

func (c *fakeConn) Delete(path string) error {
	if c.server.failDelete[path] {
		return fmt.Errorf("550 %s: delete rejected", path)
	}
	d := c.node()
	if _, ok := d.files[path]; !ok {
		return fmt.Errorf("550 %s: no such file", path)
	}
	delete(d.files, path)
	return nil
}

func (c *fakeConn) Stor(path string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.node().files[path] = data
	return nil
}

func (c *fakeConn) List(path string) ([]*ftp.Entry, error) {
	if path != "" {
		return nil, fmt.Errorf("fake only lists the current directory")
	}
	if c.server.failListAt[c.cwdPath()] {
		return nil, fmt.Errorf("425 cannot open data connection")
	}

	d := c.node()
	entries := []*ftp.Entry{
		{Name: ".", Type: ftp.EntryTypeFolder},
		{Name: "..", Type: ftp.EntryTypeFolder},
	}
	var names []string
	for name := range d.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entries = append(entries, &ftp.Entry{Name: name, Type: ftp.EntryTypeFolder})
	}

	names = names[:0]
	for name := range d.files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entries = append(entries, &ftp.Entry{
			Name: name,
			Type: ftp.EntryTypeFile,
			Size: uint64(len(d.files[name])),
		})
	}
	return entries, nil
}

func (c *fakeConn) Close() error {
	if !c.closed {
		c.closed = true
		c.server.open--
	}
	return nil
}

func newTestStore(server *fakeServer) *FTPStore {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return &FTPStore{
		publicBase:  "https://assets.test",
		logger:      logger,
		dial:        func() (controlConn, error) { return server.connect(), nil },
		tenantLocks: make(map[string]*sync.Mutex),
	}
}

func TestUploadObject_CreatesTreeAndReturnsURL(t *testing.T) {
	server := newFakeServer()
	store := newTestStore(server)

	url, err := store.UploadObject(context.Background(), AssetPath{Tenant: "demo", FileName: "background_171234.mp4"}, []byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, "https://assets.test/guides/demo/background_171234.mp4", url)

	dir, ok := server.lookup("guides", "demo")
	require.True(t, ok)
	assert.Equal(t, []byte("0123456789"), dir.files["background_171234.mp4"])

	assert.Equal(t, 0, server.open, "session must be closed after the operation")
}

func TestUploadObject_OverwriteIsIdempotent(t *testing.T) {
	server := newFakeServer()
	store := newTestStore(server)
	p := AssetPath{Tenant: "demo", FileName: "intro.mp4"}

	_, err := store.UploadObject(context.Background(), p, []byte("first"))
	require.NoError(t, err)

	// Second run walks the now-existing tree and overwrites by filename.
	_, err = store.UploadObject(context.Background(), p, []byte("second"))
	require.NoError(t, err)

	dir, _ := server.lookup("guides", "demo")
	assert.Equal(t, []byte("second"), dir.files["intro.mp4"])
	assert.Equal(t, 2, server.dialed, "one fresh session per operation")
}

func TestUploadObject_DirectoryErrorNamesSegment(t *testing.T) {
	server := newFakeServer()
	server.failMkdir["demo"] = true
	store := newTestStore(server)

	_, err := store.UploadObject(context.Background(), AssetPath{Tenant: "demo", FileName: "a.mp4"}, []byte("x"))
	require.Error(t, err)

	var dirErr *DirectoryError
	require.True(t, errors.As(err, &dirErr))
	assert.Equal(t, "demo", dirErr.Segment)
	assert.Equal(t, 0, server.open)
}

func TestUploadObject_RejectsReservedCharacters(t *testing.T) {
	store := newTestStore(newFakeServer())

	_, err := store.UploadObject(context.Background(), AssetPath{Tenant: "de/mo", FileName: "a.mp4"}, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestEnsureDir_SecondRunIsNoop(t *testing.T) {
	server := newFakeServer()
	conn := server.connect()

	require.NoError(t, ensureDir(conn, []string{"guides", "demo"}))
	require.NoError(t, conn.ChangeDir("/"))
	require.NoError(t, ensureDir(conn, []string{"guides", "demo"}))

	_, ok := server.lookup("guides", "demo")
	assert.True(t, ok)
}

func TestDeleteObject_TrueThenFalse(t *testing.T) {
	server := newFakeServer()
	server.mkdirAll("guides", "demo").files["a.mp4"] = []byte("x")
	store := newTestStore(server)

	ok, err := store.DeleteObject(context.Background(), AssetPath{Tenant: "demo", FileName: "a.mp4"})
	require.NoError(t, err)
	assert.True(t, ok)

	// Deleting what is already gone is success:false, never an error.
	ok, err = store.DeleteObject(context.Background(), AssetPath{Tenant: "demo", FileName: "a.mp4"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, server.open)
}

func TestDeleteObject_AbsentTenantDirIsFalse(t *testing.T) {
	store := newTestStore(newFakeServer())

	ok, err := store.DeleteObject(context.Background(), AssetPath{Tenant: "ghost", FileName: "a.mp4"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteObject_IgnoresDirectoryWithSameName(t *testing.T) {
	server := newFakeServer()
	server.mkdirAll("guides", "demo", "a.mp4")
	store := newTestStore(server)

	ok, err := store.DeleteObject(context.Background(), AssetPath{Tenant: "demo", FileName: "a.mp4"})
	require.NoError(t, err)
	assert.False(t, ok, "directories are never deleted by DeleteObject")

	_, stillThere := server.lookup("guides", "demo", "a.mp4")
	assert.True(t, stillThere)
}

func TestDeleteTree_ClearsEverything(t *testing.T) {
	server := newFakeServer()
	tenant := server.mkdirAll("guides", "demo")
	tenant.files["a.mp4"] = []byte("a")
	tenant.files["b.mp4"] = []byte("b")
	sub := newFakeDir()
	sub.files["thumb.jpg"] = []byte("t")
	tenant.dirs["thumbs"] = sub

	store := newTestStore(server)

	ok, err := store.DeleteTree(context.Background(), "demo")
	require.NoError(t, err)
	assert.True(t, ok)

	_, exists := server.lookup("guides", "demo")
	assert.False(t, exists, "tenant directory itself must be removed")
	assert.Equal(t, 0, server.open)
}

func TestDeleteTree_AbsentIsFalseNotError(t *testing.T) {
	server := newFakeServer()
	server.mkdirAll("guides")
	store := newTestStore(server)

	ok, err := store.DeleteTree(context.Background(), "demo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteTree_PartialFailureIsRetryable(t *testing.T) {
	server := newFakeServer()
	tenant := server.mkdirAll("guides", "demo")
	tenant.files["a.mp4"] = []byte("a")
	tenant.files["b.mp4"] = []byte("b")
	server.failDelete["b.mp4"] = true

	store := newTestStore(server)

	_, err := store.DeleteTree(context.Background(), "demo")
	require.Error(t, err)
	var treeErr *TreeDeleteError
	require.True(t, errors.As(err, &treeErr))
	assert.Equal(t, "demo", treeErr.Tenant)

	// a.mp4 is already gone; a second full pass finishes the job.
	delete(server.failDelete, "b.mp4")
	ok, err := store.DeleteTree(context.Background(), "demo")
	require.NoError(t, err)
	assert.True(t, ok)

	_, exists := server.lookup("guides", "demo")
	assert.False(t, exists)
}

func TestDeleteTree_ListFailureAborts(t *testing.T) {
	server := newFakeServer()
	server.mkdirAll("guides", "demo").files["a.mp4"] = []byte("a")
	server.failListAt["/guides/demo"] = true

	store := newTestStore(server)

	_, err := store.DeleteTree(context.Background(), "demo")
	var treeErr *TreeDeleteError
	require.True(t, errors.As(err, &treeErr))
	assert.Equal(t, 0, server.open)
}

func TestDeleteTree_ThenDeleteTreeScenario(t *testing.T) {
	server := newFakeServer()
	store := newTestStore(server)

	url, err := store.UploadObject(context.Background(), AssetPath{Tenant: "demo", FileName: "background_171234.mp4"}, []byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, "https://assets.test/guides/demo/background_171234.mp4", url)

	ok, err := store.DeleteTree(context.Background(), "demo")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DeleteTree(context.Background(), "demo")
	require.NoError(t, err)
	assert.False(t, ok, "already absent is not an error")
}

func TestPing_DialsAndLists(t *testing.T) {
	server := newFakeServer()
	store := newTestStore(server)

	require.NoError(t, store.Ping(context.Background()))
	assert.Equal(t, 1, server.dialed)
	assert.Equal(t, 0, server.open)
}

func TestPing_DialFailurePropagates(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	dialErr := errors.New("boom")
	store := &FTPStore{
		publicBase:  "https://assets.test",
		logger:      logger,
		dial:        func() (controlConn, error) { return nil, dialErr },
		tenantLocks: make(map[string]*sync.Mutex),
	}

	assert.ErrorIs(t, store.Ping(context.Background()), dialErr)
}

func TestAssetPath(t *testing.T) {
	p := AssetPath{Tenant: "demo", FileName: "a.mp4"}
	assert.Equal(t, "guides/demo/a.mp4", p.String())
	assert.Equal(t, []string{"guides", "demo"}, p.Dir())
	assert.NoError(t, p.Validate())

	assert.Error(t, AssetPath{Tenant: "", FileName: "a"}.Validate())
	assert.Error(t, AssetPath{Tenant: "..", FileName: "a"}.Validate())
	assert.Error(t, AssetPath{Tenant: "demo", FileName: "a\nb"}.Validate())
	assert.Error(t, ValidateTenant("de\\mo"))
}

func TestJoinPublicURL(t *testing.T) {
	p := AssetPath{Tenant: "demo", FileName: "a.mp4"}
	assert.Equal(t, "https://cdn.example.com/guides/demo/a.mp4", JoinPublicURL("https://cdn.example.com/", p))
	assert.Equal(t, "https://cdn.example.com/guides/demo/a.mp4", JoinPublicURL("https://cdn.example.com", p))
}
