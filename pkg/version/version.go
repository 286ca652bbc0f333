// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

// Package version identifies the build. versionGit is set by the linker:
//
//	go build -ldflags "-X src.bluestatic.org/mailclient/pkg/version.versionGit=$(git rev-parse --short HEAD)"
package version

var (
	versionGit    = "development"
	versionNumber = "1.0.0"
	VersionString = "mailclient " + versionNumber + " (" + versionGit + ")\n"
)
