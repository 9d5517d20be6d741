package bundle

// View decodes a bundle in zero-copy mode over caller-owned bytes: string
// pool entries alias data instead of being copied. The caller must keep
// data alive and unmodified for the lifetime of the bundle; Detach
// converts the result to an owned bundle if the backing needs to go away.
func View(data []byte) (*Bundle, error) {
	return ViewWithTable(data, DefaultTable())
}

// ViewWithTable decodes in zero-copy mode with an injected opcode table.
func ViewWithTable(data []byte, table *OpcodeTable) (*Bundle, error) {
	br, err := decode(data, true, table)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		flags:   br.header.Flags,
		strings: br.strings,
		defs:    br.defs,
		table:   table,
	}, nil
}
