package merge

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// AppendLocked appends line to path while holding an exclusive flock on
// path+".lock". Both files are created owned by account when missing.
func AppendLocked(path, line, account string) (err error) {
	lock, err := openOwned(path+".lock", os.O_CREATE|os.O_RDWR, account)
	if err != nil {
		return fmt.Errorf("failed to open lock: %w", err)
	}
	defer lock.Close()

	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to lock %s: %w", lock.Name(), err)
	}
	defer func() {
		if uerr := unix.Flock(int(lock.Fd()), unix.LOCK_UN); uerr != nil && err == nil {
			err = fmt.Errorf("failed to unlock %s: %w", lock.Name(), uerr)
		}
	}()

	f, err := openOwned(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, account)
	if err != nil {
		return err
	}

	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// openOwned opens path and, if this call created it, chowns it to account
func openOwned(path string, flag int, account string) (*os.File, error) {
	_, statErr := os.Stat(path)
	created := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, err
	}

	if created && account != "" {
		uid, gid, err := lookupAccount(account)
		if err == nil {
			err = f.Chown(uid, gid)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set owner of %s: %w", path, err)
		}
	}
	return f, nil
}

func lookupAccount(name string) (uid, gid int, err error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to look up account %s: %w", name, err)
	}
	uid, err = strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid uid %q for %s: %w", u.Uid, name, err)
	}
	gid, err = strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid gid %q for %s: %w", u.Gid, name, err)
	}
	return uid, gid, nil
}
