// Package spvinfo reads the module-level facts out of a SPIR-V binary:
// header, capabilities, extensions, memory model and entry points.
//
// It does not validate the module; it walks the instruction stream only
// far enough to collect what compile output summaries and the inspect
// command print.
package spvinfo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Magic is the SPIR-V magic number in host word order.
const Magic = 0x07230203

const headerSize = 20

// SPIR-V opcodes read by Parse.
const (
	opSource        = 3
	opName          = 5
	opExtension     = 10
	opExtInstImport = 11
	opMemoryModel   = 14
	opEntryPoint    = 15
	opExecutionMode = 16
	opCapability    = 17
	opConstant      = 43
	opFunction      = 54
)

const executionModeLocalSize = 17

var (
	// ErrTooSmall is returned for input shorter than the SPIR-V header.
	ErrTooSmall = errors.New("spvinfo: input shorter than a SPIR-V header")

	// ErrBadMagic is returned when the first word is not the SPIR-V magic
	// number in either byte order.
	ErrBadMagic = errors.New("spvinfo: invalid SPIR-V magic number")

	// ErrMisaligned is returned when the length is not a multiple of 4.
	ErrMisaligned = errors.New("spvinfo: length is not a multiple of 4")
)

// InstructionError reports a malformed instruction.
type InstructionError struct {
	Offset    int // byte offset of the instruction
	Opcode    uint16
	WordCount int
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("spvinfo: invalid word count %d for %s at offset 0x%X", e.WordCount, opcodeName(e.Opcode), e.Offset)
}

// Version is a SPIR-V version.
type Version struct {
	Major uint8 `json:"major" yaml:"major"`
	Minor uint8 `json:"minor" yaml:"minor"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// EntryPoint is an OpEntryPoint with its execution modes.
type EntryPoint struct {
	Model     string   `json:"model" yaml:"model"`
	Name      string   `json:"name" yaml:"name"`
	ID        uint32   `json:"id" yaml:"id"`
	Interface []uint32 `json:"interface,omitempty" yaml:"interface,omitempty"`
	Modes     []string `json:"modes,omitempty" yaml:"modes,omitempty"`

	// LocalSize is the compute workgroup size, zero when not declared.
	LocalSize [3]uint32 `json:"local_size" yaml:"local_size,flow"`
}

// Module holds the facts read from a SPIR-V binary.
type Module struct {
	Version        Version      `json:"version" yaml:"version"`
	Generator      uint32       `json:"generator" yaml:"generator"`
	GeneratorName  string       `json:"generator_name" yaml:"generator_name"`
	Bound          uint32       `json:"bound" yaml:"bound"`
	Schema         uint32       `json:"schema" yaml:"schema"`
	BigEndian      bool         `json:"big_endian,omitempty" yaml:"big_endian,omitempty"`
	SourceLanguage string       `json:"source_language,omitempty" yaml:"source_language,omitempty"`
	Capabilities   []string     `json:"capabilities" yaml:"capabilities"`
	Extensions     []string     `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	ExtInstImports []string     `json:"ext_inst_imports,omitempty" yaml:"ext_inst_imports,omitempty"`
	Addressing     string       `json:"addressing_model" yaml:"addressing_model"`
	Memory         string       `json:"memory_model" yaml:"memory_model"`
	EntryPoints    []EntryPoint `json:"entry_points" yaml:"entry_points"`
	Functions      int          `json:"functions" yaml:"functions"`
	Instructions   int          `json:"instructions" yaml:"instructions"`
	Names          int          `json:"debug_names" yaml:"debug_names"`
}

// EntryPoint returns the entry point with the given name.
func (m *Module) EntryPoint(name string) (EntryPoint, bool) {
	for _, ep := range m.EntryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// Parse reads a SPIR-V binary in either byte order.
func Parse(data []byte) (*Module, error) {
	words, bigEndian, err := Words(data)
	if err != nil {
		return nil, err
	}

	version := words[1]
	m := &Module{
		Version:   Version{Major: uint8(version >> 16), Minor: uint8(version >> 8)},
		Generator: words[2],
		Bound:     words[3],
		Schema:    words[4],
		BigEndian: bigEndian,
	}
	m.GeneratorName = lookup(generators, m.Generator>>16)

	err = walk(words, func(_ int, opcode uint16, ops []uint32) {
		m.Instructions++
		switch opcode {
		case opCapability:
			m.Capabilities = append(m.Capabilities, lookup(capabilities, ops[0]))
		case opExtension:
			m.Extensions = append(m.Extensions, decodeString(ops))
		case opExtInstImport:
			m.ExtInstImports = append(m.ExtInstImports, decodeString(ops[1:]))
		case opSource:
			m.SourceLanguage = lookup(sourceLanguages, ops[0])
		case opMemoryModel:
			m.Addressing = lookup(addressingModels, ops[0])
			m.Memory = lookup(memoryModels, ops[1])
		case opEntryPoint:
			m.EntryPoints = append(m.EntryPoints, entryPoint(ops))
		case opExecutionMode:
			m.addExecutionMode(ops)
		case opName:
			m.Names++
		case opFunction:
			m.Functions++
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func entryPoint(ops []uint32) EntryPoint {
	name := decodeString(ops[2:])
	used := stringWords(name)
	ep := EntryPoint{
		Model: lookup(executionModels, ops[0]),
		Name:  name,
		ID:    ops[1],
	}
	if 2+used < len(ops) {
		ep.Interface = append([]uint32(nil), ops[2+used:]...)
	}
	return ep
}

// addExecutionMode attaches an OpExecutionMode to its entry point. The
// SPIR-V layout puts modes after all entry points.
func (m *Module) addExecutionMode(ops []uint32) {
	for i := range m.EntryPoints {
		ep := &m.EntryPoints[i]
		if ep.ID != ops[0] {
			continue
		}
		ep.Modes = append(ep.Modes, lookup(executionModes, ops[1]))
		if ops[1] == executionModeLocalSize && len(ops) >= 5 {
			ep.LocalSize = [3]uint32{ops[2], ops[3], ops[4]}
		}
	}
}

// Words decodes data into host-order words and reports whether the
// binary was big-endian.
func Words(data []byte) ([]uint32, bool, error) {
	if len(data) < headerSize {
		return nil, false, ErrTooSmall
	}
	if len(data)%4 != 0 {
		return nil, false, ErrMisaligned
	}

	var order binary.ByteOrder = binary.LittleEndian
	bigEndian := false
	switch {
	case binary.LittleEndian.Uint32(data) == Magic:
	case binary.BigEndian.Uint32(data) == Magic:
		order, bigEndian = binary.BigEndian, true
	default:
		return nil, false, fmt.Errorf("%w: 0x%08X", ErrBadMagic, binary.LittleEndian.Uint32(data))
	}

	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = order.Uint32(data[i*4:])
	}
	return words, bigEndian, nil
}

// walk calls fn for every instruction after the header with its byte
// offset, opcode and operand words.
func walk(words []uint32, fn func(offset int, opcode uint16, ops []uint32)) error {
	for i := headerSize / 4; i < len(words); {
		opcode := uint16(words[i] & 0xFFFF)
		count := int(words[i] >> 16)
		if count == 0 || i+count > len(words) {
			return &InstructionError{Offset: i * 4, Opcode: opcode, WordCount: count}
		}
		ops := words[i+1 : i+count]
		if len(ops) < minOperands(opcode) {
			return &InstructionError{Offset: i * 4, Opcode: opcode, WordCount: count}
		}
		fn(i*4, opcode, ops)
		i += count
	}
	return nil
}

// minOperands is the operand count Parse and Disassemble rely on.
func minOperands(opcode uint16) int {
	switch opcode {
	case opEntryPoint:
		return 3
	case opMemoryModel, opExecutionMode, opConstant:
		return 2
	case opSource, opName, opExtension, opExtInstImport, opCapability, opFunction:
		return 1
	}
	return 0
}

// decodeString reads a nul-terminated literal string packed into words.
func decodeString(ops []uint32) string {
	var sb strings.Builder
	for _, w := range ops {
		for shift := 0; shift < 32; shift += 8 {
			b := byte(w >> shift)
			if b == 0 {
				return sb.String()
			}
			sb.WriteByte(b)
		}
	}
	return sb.String()
}

// stringWords is the number of words a literal string of s occupies,
// including the terminator.
func stringWords(s string) int {
	return len(s)/4 + 1
}
