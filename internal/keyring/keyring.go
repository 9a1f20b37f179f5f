// Package keyring keeps the PostgreSQL connection string in the OS keyring
// so that it never has to live in the config file.
package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/habitkeep/internal/constants"
)

var (
	ErrNotFound           = errors.New("credentials not found in keyring")
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// probeUser is never written; reading it only tells whether the keyring answers
const probeUser = "availability-probe"

func GetConnectionString() (string, error) {
	connStr, err := keyring.Get(constants.AppName, constants.DefaultKeyringUser)
	if err != nil {
		return "", classify("read", err)
	}
	return connStr, nil
}

// SetConnectionString stores connStr with surrounding whitespace removed,
// replacing any previous value.
func SetConnectionString(connStr string) error {
	connStr = strings.TrimSpace(connStr)
	if connStr == "" {
		return errors.New("connection string cannot be empty")
	}
	return classify("store", keyring.Set(constants.AppName, constants.DefaultKeyringUser, connStr))
}

func DeleteConnectionString() error {
	return classify("delete", keyring.Delete(constants.AppName, constants.DefaultKeyringUser))
}

// IsAvailable is a best-effort probe of the OS keyring
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, probeUser)
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// classify maps go-keyring failures onto this package's errors. Reads that
// fail for any reason other than a missing item mean the backend is down.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return ErrNotFound
	case op == "read":
		return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	default:
		return fmt.Errorf("failed to %s credentials in keyring: %w", op, err)
	}
}
