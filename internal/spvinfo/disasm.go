package spvinfo

import (
	"bufio"
	"fmt"
	"io"
)

// Instructions that define a result id with no result type.
var resultOnly = map[uint16]bool{
	11: true, 19: true, 20: true, 21: true, 22: true, 23: true, 24: true,
	25: true, 26: true, 27: true, 28: true, 29: true, 30: true, 31: true,
	32: true, 33: true, 248: true,
}

// Instructions that define a result type and a result id.
func hasTypeAndResult(op uint16) bool {
	switch {
	case op >= 41 && op <= 46, op == 54, op == 55, op == 57, op == 59:
		return true
	case op >= 60 && op <= 205 && op != 62 && op != 63 && op != 64 && op != 99:
		return true
	case op == 245:
		return true
	}
	return false
}

// Disassemble writes a readable listing of data to w: a comment header
// followed by one instruction per line. Result ids are printed as %N and
// literal strings are decoded for the debug and mode-setting
// instructions.
func Disassemble(w io.Writer, data []byte) error {
	words, _, err := Words(data)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	version := words[1]
	fmt.Fprintf(bw, "; SPIR-V\n")
	fmt.Fprintf(bw, "; Version: %d.%d\n", (version>>16)&0xFF, (version>>8)&0xFF)
	fmt.Fprintf(bw, "; Generator: 0x%08X\n", words[2])
	fmt.Fprintf(bw, "; Bound: %d\n", words[3])
	fmt.Fprintf(bw, "; Schema: %d\n", words[4])
	fmt.Fprintln(bw)

	err = walk(words, func(_ int, opcode uint16, ops []uint32) {
		writeInstruction(bw, opcode, ops)
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

func id(n uint32) string {
	return fmt.Sprintf("%%%d", n)
}

func writeInstruction(w io.Writer, opcode uint16, ops []uint32) {
	name := opcodeName(opcode)
	switch opcode {
	case opCapability:
		fmt.Fprintf(w, "%16s%s %s\n", "", name, lookup(capabilities, ops[0]))
	case opExtension:
		fmt.Fprintf(w, "%16s%s %q\n", "", name, decodeString(ops))
	case opExtInstImport:
		fmt.Fprintf(w, "%14s = %s %q\n", id(ops[0]), name, decodeString(ops[1:]))
	case opMemoryModel:
		fmt.Fprintf(w, "%16s%s %s %s\n", "", name, lookup(addressingModels, ops[0]), lookup(memoryModels, ops[1]))
	case opEntryPoint:
		ep := entryPoint(ops)
		fmt.Fprintf(w, "%16s%s %s %s %q", "", name, ep.Model, id(ep.ID), ep.Name)
		for _, v := range ep.Interface {
			fmt.Fprintf(w, " %s", id(v))
		}
		fmt.Fprintln(w)
	case opExecutionMode:
		fmt.Fprintf(w, "%16s%s %s %s", "", name, id(ops[0]), lookup(executionModes, ops[1]))
		for _, v := range ops[2:] {
			fmt.Fprintf(w, " %d", v)
		}
		fmt.Fprintln(w)
	case opName:
		fmt.Fprintf(w, "%16s%s %s %q\n", "", name, id(ops[0]), decodeString(ops[1:]))
	case opSource:
		fmt.Fprintf(w, "%16s%s %s", "", name, lookup(sourceLanguages, ops[0]))
		if len(ops) > 1 {
			fmt.Fprintf(w, " %d", ops[1])
		}
		fmt.Fprintln(w)
	case opConstant:
		fmt.Fprintf(w, "%14s = %s %s", id(ops[1]), name, id(ops[0]))
		for _, v := range ops[2:] {
			fmt.Fprintf(w, " %d", v)
		}
		fmt.Fprintln(w)
	default:
		writeGeneric(w, name, opcode, ops)
	}
}

func writeGeneric(w io.Writer, name string, opcode uint16, ops []uint32) {
	switch {
	case resultOnly[opcode] && len(ops) >= 1:
		fmt.Fprintf(w, "%14s = %s", id(ops[0]), name)
		ops = ops[1:]
	case hasTypeAndResult(opcode) && len(ops) >= 2:
		fmt.Fprintf(w, "%14s = %s %s", id(ops[1]), name, id(ops[0]))
		ops = ops[2:]
	default:
		fmt.Fprintf(w, "%16s%s", "", name)
	}
	for _, v := range ops {
		fmt.Fprintf(w, " %s", id(v))
	}
	fmt.Fprintln(w)
}
