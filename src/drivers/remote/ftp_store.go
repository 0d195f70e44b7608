package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jlaffaye/ftp"
	"github.com/sirupsen/logrus"

	"github.com/guidecms/media-api/src/ftpclient"
)

// controlConn is the slice of the FTP control channel the store drives.
// *ftpclient.Session implements it; tests substitute an in-memory fake.
type controlConn interface {
	CurrentDir() (string, error)
	ChangeDir(path string) error
	MakeDir(path string) error
	RemoveDir(path string) error
	Delete(path string) error
	Stor(path string, r io.Reader) error
	List(path string) ([]*ftp.Entry, error)
	Close() error
}

// FTPStore translates logical tree operations into bounded command
// sequences, one fresh session per operation. The protocol exposes a
// single current-directory cursor per connection, so operations record
// their starting location and restore it; callers never observe cursor
// state across calls.
//
// Operations touching the same tenant are serialized by a per-tenant
// mutex. The admin workflow would rarely race here, but the navigate-
// then-act protocol is inherently sequential and the lock makes that an
// enforced invariant instead of an assumption.
type FTPStore struct {
	publicBase string
	logger     *logrus.Logger
	dial       func() (controlConn, error)

	mu          sync.Mutex
	tenantLocks map[string]*sync.Mutex
}

// NewFTPStore builds a store that dials cfg for every operation.
func NewFTPStore(cfg ftpclient.Config, publicBase string, logger *logrus.Logger) *FTPStore {
	return &FTPStore{
		publicBase: publicBase,
		logger:     logger,
		dial: func() (controlConn, error) {
			return ftpclient.Dial(cfg)
		},
		tenantLocks: make(map[string]*sync.Mutex),
	}
}

func (s *FTPStore) lockTenant(tenant string) func() {
	s.mu.Lock()
	l, ok := s.tenantLocks[tenant]
	if !ok {
		l = &sync.Mutex{}
		s.tenantLocks[tenant] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// UploadObject writes data under p, creating missing directories on the
// way. On failure the object may be partially written; the caller treats
// that as state-unknown and retries the whole upload (overwrite by name).
//
// The store intentionally does not honor mid-operation cancellation: once
// an upload starts it runs to completion or failure on its own session.
func (s *FTPStore) UploadObject(ctx context.Context, p AssetPath, data []byte) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	unlock := s.lockTenant(p.Tenant)
	defer unlock()

	conn, err := s.dial()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	start, err := conn.CurrentDir()
	if err != nil {
		return "", fmt.Errorf("read starting directory: %w", err)
	}

	if err := ensureDir(conn, p.Dir()); err != nil {
		return "", err
	}

	if err := conn.Stor(p.FileName, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("store %s: %w", p, err)
	}

	if err := conn.ChangeDir(start); err != nil {
		// Object is written; the session dies with the operation anyway.
		s.logger.WithError(err).WithField("dir", start).Warn("ftp: could not return to starting directory")
	}

	s.logger.WithFields(logrus.Fields{
		"path": p.String(),
		"size": len(data),
	}).Info("ftp: object uploaded")

	return JoinPublicURL(s.publicBase, p), nil
}

// ensureDir walks segments from the current location, entering each one
// and creating it first when entry fails. Re-running over an existing
// tree is side-effect-free, which is what makes uploads retryable.
func ensureDir(conn controlConn, segments []string) error {
	for _, seg := range segments {
		if err := conn.ChangeDir(seg); err == nil {
			continue
		}
		if err := conn.MakeDir(seg); err != nil {
			return &DirectoryError{Segment: seg, Err: err}
		}
		if err := conn.ChangeDir(seg); err != nil {
			return &DirectoryError{Segment: seg, Err: err}
		}
	}
	return nil
}

// enterDir walks into an existing directory segment by segment.
func enterDir(conn controlConn, segments []string) error {
	for _, seg := range segments {
		if err := conn.ChangeDir(seg); err != nil {
			return err
		}
	}
	return nil
}

// DeleteObject removes the file at p after confirming it exists and is a
// plain file. An absent target (or absent containing directory) yields
// (false, nil).
func (s *FTPStore) DeleteObject(ctx context.Context, p AssetPath) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}

	unlock := s.lockTenant(p.Tenant)
	defer unlock()

	conn, err := s.dial()
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if err := enterDir(conn, p.Dir()); err != nil {
		return false, nil
	}

	entries, err := conn.List("")
	if err != nil {
		return false, fmt.Errorf("list %s/%s: %w", Namespace, p.Tenant, err)
	}

	found := false
	for _, e := range entries {
		if e.Name == p.FileName && e.Type == ftp.EntryTypeFile {
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}

	if err := conn.Delete(p.FileName); err != nil {
		return false, fmt.Errorf("delete %s: %w", p, err)
	}

	s.logger.WithField("path", p.String()).Info("ftp: object deleted")
	return true, nil
}

// DeleteTree clears guides/<tenant> entirely and removes the directory
// itself. The tree shape is fixed at namespace/tenant/file, so the walk
// descends exactly one level into stray subdirectories. A subdirectory
// that cannot be entered counts as nothing-to-delete-there, not as an
// error; any other protocol failure aborts as TreeDeleteError and leaves
// retryable partial progress.
func (s *FTPStore) DeleteTree(ctx context.Context, tenant string) (bool, error) {
	if err := ValidateTenant(tenant); err != nil {
		return false, err
	}

	unlock := s.lockTenant(tenant)
	defer unlock()

	conn, err := s.dial()
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if err := enterDir(conn, []string{Namespace, tenant}); err != nil {
		// Tree already absent.
		return false, nil
	}

	entries, err := conn.List("")
	if err != nil {
		return false, &TreeDeleteError{Tenant: tenant, Op: "list", Err: err}
	}

	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}

		switch e.Type {
		case ftp.EntryTypeFile:
			if err := conn.Delete(e.Name); err != nil {
				return false, &TreeDeleteError{Tenant: tenant, Op: "delete " + e.Name, Err: err}
			}

		case ftp.EntryTypeFolder:
			if err := s.clearSubdir(conn, tenant, e.Name); err != nil {
				return false, err
			}
		}
	}

	if err := conn.ChangeDir(".."); err != nil {
		return false, &TreeDeleteError{Tenant: tenant, Op: "leave tenant directory", Err: err}
	}
	if err := conn.RemoveDir(tenant); err != nil {
		return false, &TreeDeleteError{Tenant: tenant, Op: "remove tenant directory", Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"tenant":  tenant,
		"entries": len(entries),
	}).Info("ftp: tenant tree deleted")

	return true, nil
}

func (s *FTPStore) clearSubdir(conn controlConn, tenant, name string) error {
	if err := conn.ChangeDir(name); err != nil {
		// A leftover from an earlier partial delete that vanished since the
		// listing, or never really existed. Nothing to clear.
		s.logger.WithFields(logrus.Fields{
			"tenant": tenant,
			"subdir": name,
		}).Debug("ftp: skipping unreachable subdirectory")
		return nil
	}

	entries, err := conn.List("")
	if err != nil {
		return &TreeDeleteError{Tenant: tenant, Op: "list " + name, Err: err}
	}

	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		if err := conn.Delete(e.Name); err != nil {
			return &TreeDeleteError{Tenant: tenant, Op: "delete " + name + "/" + e.Name, Err: err}
		}
	}

	if err := conn.ChangeDir(".."); err != nil {
		return &TreeDeleteError{Tenant: tenant, Op: "leave " + name, Err: err}
	}
	if err := conn.RemoveDir(name); err != nil {
		return &TreeDeleteError{Tenant: tenant, Op: "remove " + name, Err: err}
	}
	return nil
}

// Ping opens a session and lists the current directory, confirming the
// server is reachable and the account can authenticate.
func (s *FTPStore) Ping(ctx context.Context) error {
	conn, err := s.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.List(""); err != nil {
		return fmt.Errorf("diagnostic listing: %w", err)
	}
	return nil
}
