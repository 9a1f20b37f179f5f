package keyring

import (
	"errors"
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestConnectionStringRoundTrip(t *testing.T) {
	gokeyring.MockInit()

	connStr := "postgres://habitkeep@localhost:5432/habitkeep?sslmode=disable"
	if err := SetConnectionString(connStr); err != nil {
		t.Fatalf("SetConnectionString() failed: %v", err)
	}

	got, err := GetConnectionString()
	if err != nil {
		t.Fatalf("GetConnectionString() failed: %v", err)
	}
	if got != connStr {
		t.Errorf("GetConnectionString() = %q, want %q", got, connStr)
	}

	if err := DeleteConnectionString(); err != nil {
		t.Fatalf("DeleteConnectionString() failed: %v", err)
	}
	if _, err := GetConnectionString(); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete, GetConnectionString() error = %v, want %v", err, ErrNotFound)
	}
}

func TestSetConnectionStringTrims(t *testing.T) {
	gokeyring.MockInit()

	for _, blank := range []string{"", "  \n"} {
		if err := SetConnectionString(blank); err == nil {
			t.Errorf("SetConnectionString(%q) should return an error", blank)
		}
	}

	if err := SetConnectionString("  host=localhost dbname=habitkeep\n"); err != nil {
		t.Fatalf("SetConnectionString() failed: %v", err)
	}
	got, err := GetConnectionString()
	if err != nil {
		t.Fatal(err)
	}
	if got != "host=localhost dbname=habitkeep" {
		t.Errorf("GetConnectionString() = %q, want trimmed value", got)
	}
}

func TestDeleteMissing(t *testing.T) {
	gokeyring.MockInit()

	if err := DeleteConnectionString(); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteConnectionString() error = %v, want %v", err, ErrNotFound)
	}
}

func TestIsAvailableWithMock(t *testing.T) {
	gokeyring.MockInit()

	if !IsAvailable() {
		t.Error("mock keyring should be reported as available")
	}
}

func TestUnavailableKeyring(t *testing.T) {
	gokeyring.MockInitWithError(errors.New("dbus not running"))

	if _, err := GetConnectionString(); !errors.Is(err, ErrKeyringUnavailable) {
		t.Errorf("GetConnectionString() error = %v, want %v", err, ErrKeyringUnavailable)
	}
	if err := SetConnectionString("host=localhost"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("SetConnectionString() error = %v, want a store failure", err)
	}
	if IsAvailable() {
		t.Error("IsAvailable() should be false when the keyring errors")
	}
}
