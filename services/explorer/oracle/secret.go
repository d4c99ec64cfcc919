// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/awnumar/memguard"
)

// Secret holds an API key in an encrypted memguard enclave so the
// plaintext is not resident between uses.
type Secret struct {
	enclave *memguard.Enclave
}

// NewSecret seals a value. An empty value yields a zero secret.
func NewSecret(value string) *Secret {
	if value == "" {
		return &Secret{}
	}
	return &Secret{enclave: memguard.NewEnclave([]byte(value))}
}

// IsZero reports whether the secret holds nothing.
func (s *Secret) IsZero() bool {
	return s == nil || s.enclave == nil
}

// Reveal decrypts and returns the value. A zero secret reveals the
// empty string. The returned string is an ordinary Go string; callers
// hand it to an SDK once and drop it.
func (s *Secret) Reveal() (string, error) {
	if s.IsZero() {
		return "", nil
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("open key enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

// LoadKey resolves an API key: the environment variable first, then
// the container secrets mount under the lower-cased variable name.
func LoadKey(envVar string) (*Secret, error) {
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return NewSecret(v), nil
	}
	secretPath := "/run/secrets/" + strings.ToLower(envVar)
	raw, err := os.ReadFile(secretPath)
	if err != nil {
		return nil, fmt.Errorf("%s not set and no secret at %s", envVar, secretPath)
	}
	slog.Info("read oracle API key from secrets mount", slog.String("path", secretPath))
	return NewSecret(strings.TrimSpace(string(raw))), nil
}
