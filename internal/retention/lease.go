// Package retention drives the periodic Stream.Clean sweep: a cron
// schedule (github.com/adhocore/gronx) gated by a file-based lease so that
// only one process among several cooperating workers runs a given tick.
package retention

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"colas/pkg/logger"
)

// fileLease coordinates the sweep across processes with a lock file
// created via O_EXCL, so first acquisition is a single atomic syscall.
// The file body is one line, "<owner> <expiry-unix-nanos>"; a holder that
// stops renewing is replaced once the expiry passes.
type fileLease struct {
	path string
}

var errNotOwner = errors.New("lease held by another owner")

// NewFileLease returns a lease backed by <dir>/retention.lock.
func NewFileLease(dir string) *fileLease {
	return &fileLease{path: filepath.Join(dir, "retention.lock")}
}

func leaseBody(owner string, expires time.Time) []byte {
	return []byte(owner + " " + strconv.FormatInt(expires.UnixNano(), 10) + "\n")
}

func parseLease(b []byte) (owner string, expires time.Time, err error) {
	fields := strings.Fields(string(b))
	if len(fields) != 2 {
		return "", time.Time{}, fmt.Errorf("malformed lease file %q", string(b))
	}
	ns, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("malformed lease expiry: %w", err)
	}
	return fields[0], time.Unix(0, ns).UTC(), nil
}

// swap replaces the lock file body through a rename so readers never see a
// partial write.
func (l *fileLease) swap(body []byte) error {
	tmp := l.path + ".next"
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

// Acquire attempts to take the lease for owner, valid for ttl. It wins if
// the lock file does not exist, or exists but has expired.
func (l *fileLease) Acquire(owner string, ttl time.Duration) (bool, error) {
	body := leaseBody(owner, time.Now().UTC().Add(ttl))

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err == nil {
		_, werr := f.Write(body)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			os.Remove(l.path)
			return false, errors.Join(werr, cerr)
		}
		logger.Info("retention_lease_taken", "path", l.path, "owner", owner)
		return true, nil
	}
	if !os.IsExist(err) {
		return false, err
	}

	cur, err := os.ReadFile(l.path)
	if err != nil {
		return false, err
	}
	holder, expires, err := parseLease(cur)
	if err != nil {
		return false, err
	}
	if time.Now().UTC().Before(expires) {
		logger.Info("retention_lease_busy", "path", l.path, "holder", holder)
		return false, nil
	}

	// Expired: replace it. Two takers racing here both see their rename
	// succeed, but the loser's Renew calls fail the ownership check, and
	// its heartbeat aborts the run after three such failures.
	if err := l.swap(body); err != nil {
		return false, err
	}
	logger.Info("retention_lease_taken_over", "path", l.path, "owner", owner, "previous", holder)
	return true, nil
}

// Renew extends an owned lease by ttl. Renewing a lease another process
// has taken over returns errNotOwner.
func (l *fileLease) Renew(owner string, ttl time.Duration) error {
	cur, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}
	holder, _, err := parseLease(cur)
	if err != nil {
		return err
	}
	if holder != owner {
		return errNotOwner
	}
	return l.swap(leaseBody(owner, time.Now().UTC().Add(ttl)))
}

// Release drops an owned lease so the next Acquire does not have to wait
// out the expiry.
func (l *fileLease) Release(owner string) error {
	cur, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}
	holder, _, err := parseLease(cur)
	if err != nil {
		return err
	}
	if holder != owner {
		return errNotOwner
	}
	return os.Remove(l.path)
}
