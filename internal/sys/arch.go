// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys

import (
	"debug/elf"
	"fmt"
)

type Arch string

// Supported target architectures.
const (
	AMD64   Arch = "amd64"
	ARM64   Arch = "arm64"
	RISCV64 Arch = "riscv64"
	I386    Arch = "386"
	ARM     Arch = "arm"
)

func (a Arch) String() string {
	return string(a)
}

// ParseArch validates the given string and returns it as [Arch].
func ParseArch(s string) (Arch, error) {
	switch arch := Arch(s); arch {
	case AMD64, ARM64, RISCV64, I386, ARM:
		return arch, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrArchNotSupported, s)
	}
}

// ArchFor maps an ELF machine and class pair to an [Arch].
//
// The [Arch] is only used as lookup key for the caller-supplied dynamic
// loader paths, so only machines a loader can be configured for are mapped.
func ArchFor(machine elf.Machine, class elf.Class) (Arch, error) {
	switch machine {
	case elf.EM_X86_64:
		return AMD64, nil
	case elf.EM_AARCH64:
		return ARM64, nil
	case elf.EM_RISCV:
		if class == elf.ELFCLASS64 {
			return RISCV64, nil
		}
	case elf.EM_386:
		return I386, nil
	case elf.EM_ARM:
		return ARM, nil
	}

	return "", fmt.Errorf("%w: %s", ErrMachineNotSupported, machine)
}
