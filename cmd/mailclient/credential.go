// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

const (
	serviceName = "mailclient"
	passwordEnv = "MAILCLIENT_PASSWORD"
)

var errNoPassword = errors.New("no password stored; run `mailclient login`")

func openKeyring() (keyring.Keyring, error) {
	fileDir := "~/.config/mailclient/credentials"
	if dir, err := os.UserConfigDir(); err == nil {
		fileDir = filepath.Join(dir, "mailclient", "credentials")
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("mailclient-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// credentialKey names the keyring entry for a mailbox.
func credentialKey(cfg Config) string {
	return fmt.Sprintf("%s@%s:%d", cfg.Username, cfg.POP3.Host, cfg.POP3.Port)
}

// resolvePassword returns the first password found in the -password flag, the
// environment, or the keyring. The keyring is opened lazily by `open` so that
// an explicit password works on hosts without one.
func resolvePassword(flagValue string, open func() (keyring.Keyring, error), key string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(passwordEnv); v != "" {
		return v, nil
	}

	ring, err := open()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", errNoPassword
	} else if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

func storePassword(ring keyring.Keyring, key, password string) error {
	err := ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(password),
		Label:       "mailclient " + key,
		Description: "POP3/SMTP mailbox password",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

func removePassword(ring keyring.Keyring, key string) error {
	if err := ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
