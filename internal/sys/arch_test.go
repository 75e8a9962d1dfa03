// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys_test

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibor/sofix/internal/sys"
)

func TestArchFor(t *testing.T) {
	tests := []struct {
		name        string
		machine     elf.Machine
		class       elf.Class
		expected    sys.Arch
		expectedErr error
	}{
		{
			name:     "amd64",
			machine:  elf.EM_X86_64,
			class:    elf.ELFCLASS64,
			expected: sys.AMD64,
		},
		{
			name:     "arm64",
			machine:  elf.EM_AARCH64,
			class:    elf.ELFCLASS64,
			expected: sys.ARM64,
		},
		{
			name:     "riscv64",
			machine:  elf.EM_RISCV,
			class:    elf.ELFCLASS64,
			expected: sys.RISCV64,
		},
		{
			name:        "riscv32",
			machine:     elf.EM_RISCV,
			class:       elf.ELFCLASS32,
			expectedErr: sys.ErrMachineNotSupported,
		},
		{
			name:     "386",
			machine:  elf.EM_386,
			class:    elf.ELFCLASS32,
			expected: sys.I386,
		},
		{
			name:     "arm",
			machine:  elf.EM_ARM,
			class:    elf.ELFCLASS32,
			expected: sys.ARM,
		},
		{
			name:        "unsupported",
			machine:     elf.EM_S390,
			class:       elf.ELFCLASS64,
			expectedErr: sys.ErrMachineNotSupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := sys.ArchFor(tt.machine, tt.class)
			require.ErrorIs(t, err, tt.expectedErr)

			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestParseArch(t *testing.T) {
	tests := []struct {
		input       string
		expected    sys.Arch
		expectedErr error
	}{
		{input: "amd64", expected: sys.AMD64},
		{input: "arm64", expected: sys.ARM64},
		{input: "riscv64", expected: sys.RISCV64},
		{input: "386", expected: sys.I386},
		{input: "arm", expected: sys.ARM},
		{input: "mips", expectedErr: sys.ErrArchNotSupported},
		{input: "", expectedErr: sys.ErrArchNotSupported},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			actual, err := sys.ParseArch(tt.input)
			require.ErrorIs(t, err, tt.expectedErr)

			assert.Equal(t, tt.expected, actual)
		})
	}
}
