package store

import (
	"context"
	"errors"
	"strings"
)

const CredentialKey = "tvdiscover.apikey"

// Credential returns the stored upstream credential, "" when none is stored.
func (s *Store) Credential(ctx context.Context) (string, error) {
	e, err := s.Get(ctx, CredentialKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(e.Value)), nil
}

func (s *Store) SetCredential(ctx context.Context, credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return errors.New("credential is empty")
	}
	_, err := s.Put(ctx, CredentialKey, []byte(credential))
	return err
}

// ClearCredential removes the stored credential. Clearing a missing one is not an error.
func (s *Store) ClearCredential(ctx context.Context) error {
	err := s.Delete(ctx, CredentialKey)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
