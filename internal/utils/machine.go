package utils

import (
	"runtime"
	"strings"
)

// Machine is a normalized target architecture
type Machine string

const (
	MachineX64   Machine = "x64"
	MachineX86   Machine = "x86"
	MachineARM64 Machine = "arm64"
)

// ParseMachine parses a machine string into a normalized Machine.
// An empty string selects the host architecture.
func ParseMachine(m string) (Machine, bool) {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "":
		return HostMachine(), true
	case "x64", "amd64", "x86_64", "x86-64":
		return MachineX64, true
	case "x86", "386", "i386", "i686", "win32":
		return MachineX86, true
	case "arm64", "aarch64":
		return MachineARM64, true
	}

	return "", false
}

// HostMachine returns the Machine of the running process
func HostMachine() Machine {
	switch runtime.GOARCH {
	case "386":
		return MachineX86
	case "arm64":
		return MachineARM64
	default:
		return MachineX64
	}
}

// LinkerFlag returns the /MACHINE spelling used by MSVC-style linkers
func (m Machine) LinkerFlag() string {
	switch m {
	case MachineX86:
		return "X86"
	case MachineARM64:
		return "ARM64"
	default:
		return "X64"
	}
}

// GnuFlag returns the -m spelling used by GNU-style compilers, or "" when none applies
func (m Machine) GnuFlag() string {
	switch m {
	case MachineX86:
		return "-m32"
	case MachineX64:
		return "-m64"
	default:
		return ""
	}
}
