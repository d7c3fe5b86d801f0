package store

import (
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewStoreWithPath(dbPath)
	if err != nil {
		t.Fatalf("NewStoreWithPath() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_ReadMissing(t *testing.T) {
	s := testStore(t)

	if data, ok := s.Read("nothing"); ok {
		t.Errorf("Read(missing) = %q, true; want absent", data)
	}
}

func TestStore_WriteRead(t *testing.T) {
	s := testStore(t)

	if err := s.Write(KeyPreferences, []byte(`{"style":"anime"}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, ok := s.Read(KeyPreferences)
	if !ok {
		t.Fatal("Read() reported absent after Write()")
	}
	if string(data) != `{"style":"anime"}` {
		t.Errorf("Read() = %q", data)
	}
}

func TestStore_Overwrite(t *testing.T) {
	s := testStore(t)

	if err := s.Write("k", []byte(`1`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := s.Write("k", []byte(`2`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, ok := s.Read("k")
	if !ok || string(data) != `2` {
		t.Errorf("Read() = %q, %v; want 2, true", data, ok)
	}
}

func TestStore_Delete(t *testing.T) {
	s := testStore(t)

	if err := s.Write("k", []byte(`1`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := s.Read("k"); ok {
		t.Error("Read() found document after Delete()")
	}

	// Deleting an absent key is fine.
	if err := s.Delete("k"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewStoreWithPath(dbPath)
	if err != nil {
		t.Fatalf("NewStoreWithPath() error = %v", err)
	}
	if err := s.Write(KeyFavorites, []byte(`["a","b"]`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	s.Close()

	reopened, err := NewStoreWithPath(dbPath)
	if err != nil {
		t.Fatalf("NewStoreWithPath() reopen error = %v", err)
	}
	defer reopened.Close()

	data, ok := reopened.Read(KeyFavorites)
	if !ok || string(data) != `["a","b"]` {
		t.Errorf("Read() after reopen = %q, %v", data, ok)
	}
}
