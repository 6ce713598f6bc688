package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/carebridge/portal/internal/platform/session"
)

// sessionState is the credential persisted between CLI invocations.
// The token is the backend-issued JWT; expiry lives inside it.
type sessionState struct {
	Token string       `json:"token"`
	Role  session.Role `json:"role"`
	User  session.User `json:"user"`
}

func statePath() (string, error) {
	if dir := os.Getenv("PORTAL_STATE_DIR"); dir != "" {
		return filepath.Join(dir, "session.json"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "carebridge", "session.json"), nil
}

func loadState() (*sessionState, error) {
	path, err := statePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session state: %w", err)
	}
	st := &sessionState{}
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("parse session state: %w", err)
	}
	if st.Token == "" || !st.Role.Valid() {
		return nil, nil
	}
	return st, nil
}

func saveState(st sessionState) error {
	path, err := statePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}

func clearState() error {
	path, err := statePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session state: %w", err)
	}
	return nil
}
