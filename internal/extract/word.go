package extract

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

const maxDocumentXML = 64 << 20

// extractDOCX collects the text runs of word/document.xml
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer func() { _ = rc.Close() }()
		return documentXMLText(io.LimitReader(rc, maxDocumentXML))
	}
	return "", fmt.Errorf("docx has no word/document.xml")
}

// documentXMLText walks WordprocessingML, keeping w:t runs and turning
// paragraph, tab and break elements into whitespace
func documentXMLText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var buf strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				buf.WriteByte('\t')
			case "br", "cr":
				buf.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				buf.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}
	return collapseBlankLines(buf.String()), nil
}

// extractDOC reads a legacy Word 97-2003 document. Files saved as OOXML
// with a .doc media type are handled as DOCX.
func extractDOC(data []byte) (string, error) {
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return extractDOCX(data)
	}

	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open compound file: %w", err)
	}

	streams := make(map[string][]byte)
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "WordDocument", "0Table", "1Table":
		default:
			continue
		}
		buf, err := streamBuffer(entry.Name, entry.Size, len(data))
		if err != nil {
			return "", err
		}
		n, err := io.ReadFull(entry, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return "", fmt.Errorf("read %s stream: %w", entry.Name, err)
		}
		streams[entry.Name] = buf[:n]
	}

	word, ok := streams["WordDocument"]
	if !ok {
		return "", fmt.Errorf("compound file has no WordDocument stream")
	}
	return wordDocumentText(word, streams)
}

// streamBuffer allocates room for a stream whose size comes from the
// directory entry. A stream cannot be larger than the file that holds it.
func streamBuffer(name string, size int64, fileSize int) ([]byte, error) {
	if size < 0 || size > int64(fileSize) {
		return nil, fmt.Errorf("%s stream size %d exceeds file size %d", name, size, fileSize)
	}
	return make([]byte, size), nil
}

// File Information Block offsets (Word 97 and later)
const (
	fibIdent      = 0xA5EC
	fibFlags      = 0x000A
	fibFcMin      = 0x0018
	fibFcMac      = 0x001C
	fibFcClx      = 0x01A2
	fibLcbClx     = 0x01A6
	flagWhichTbl  = 0x0200
	pcdCompressed = 0x40000000
)

// wordDocumentText reassembles the character stream from the piece table
func wordDocumentText(word []byte, streams map[string][]byte) (string, error) {
	if len(word) < fibLcbClx+4 || binary.LittleEndian.Uint16(word) != fibIdent {
		return "", fmt.Errorf("not a Word 97 document")
	}

	flags := binary.LittleEndian.Uint16(word[fibFlags:])
	tableName := "0Table"
	if flags&flagWhichTbl != 0 {
		tableName = "1Table"
	}

	table, ok := streams[tableName]
	fcClx := binary.LittleEndian.Uint32(word[fibFcClx:])
	lcbClx := binary.LittleEndian.Uint32(word[fibLcbClx:])
	if !ok || lcbClx == 0 || uint64(fcClx)+uint64(lcbClx) > uint64(len(table)) {
		// No piece table: fall back to the contiguous 8-bit text range
		fcMin := binary.LittleEndian.Uint32(word[fibFcMin:])
		fcMac := binary.LittleEndian.Uint32(word[fibFcMac:])
		if fcMin >= fcMac || uint64(fcMac) > uint64(len(word)) {
			return "", fmt.Errorf("no text range in WordDocument stream")
		}
		return cleanWordText(decodeCP1252(word[fcMin:fcMac])), nil
	}

	pieces, err := pieceTable(table[fcClx : fcClx+lcbClx])
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for _, p := range pieces {
		if p.compressed {
			end := p.offset + p.chars
			if end > uint64(len(word)) {
				return "", fmt.Errorf("piece exceeds WordDocument stream")
			}
			buf.WriteString(decodeCP1252(word[p.offset:end]))
			continue
		}
		end := p.offset + 2*p.chars
		if end > uint64(len(word)) {
			return "", fmt.Errorf("piece exceeds WordDocument stream")
		}
		units := make([]uint16, p.chars)
		for i := range units {
			units[i] = binary.LittleEndian.Uint16(word[p.offset+uint64(2*i):])
		}
		buf.WriteString(string(utf16.Decode(units)))
	}
	return cleanWordText(buf.String()), nil
}

type piece struct {
	offset     uint64
	chars      uint64
	compressed bool
}

// pieceTable parses the Clx structure: zero or more Prc blocks followed by a Pcdt
func pieceTable(clx []byte) ([]piece, error) {
	i := 0
	for i < len(clx) && clx[i] == 0x01 {
		if i+3 > len(clx) {
			return nil, fmt.Errorf("truncated Prc")
		}
		i += 3 + int(binary.LittleEndian.Uint16(clx[i+1:]))
	}
	if i+5 > len(clx) || clx[i] != 0x02 {
		return nil, fmt.Errorf("missing piece table")
	}
	lcb := int(binary.LittleEndian.Uint32(clx[i+1:]))
	plc := clx[i+5:]
	if lcb > len(plc) || lcb < 4 || (lcb-4)%12 != 0 {
		return nil, fmt.Errorf("malformed piece table")
	}

	// PlcPcd: n+1 character positions followed by n 8-byte descriptors
	n := (lcb - 4) / 12
	pieces := make([]piece, 0, n)
	for k := 0; k < n; k++ {
		cpStart := binary.LittleEndian.Uint32(plc[4*k:])
		cpEnd := binary.LittleEndian.Uint32(plc[4*(k+1):])
		if cpEnd < cpStart {
			return nil, fmt.Errorf("malformed piece table")
		}
		pcd := plc[4*(n+1)+8*k:]
		fc := binary.LittleEndian.Uint32(pcd[2:])
		p := piece{chars: uint64(cpEnd - cpStart)}
		if fc&pcdCompressed != 0 {
			p.compressed = true
			p.offset = uint64(fc&^pcdCompressed) / 2
		} else {
			p.offset = uint64(fc)
		}
		pieces = append(pieces, p)
	}
	return pieces, nil
}

// cp1252 high range; the low half is identical to Latin-1
var cp1252 = [32]rune{
	'€', '\u0081', '‚', 'ƒ', '„', '…', '†', '‡', 'ˆ', '‰', 'Š', '‹', 'Œ', '\u008d', 'Ž', '\u008f',
	'\u0090', '‘', '’', '“', '”', '•', '–', '—', '˜', '™', 'š', '›', 'œ', '\u009d', 'ž', 'Ÿ',
}

func decodeCP1252(b []byte) string {
	var buf strings.Builder
	buf.Grow(len(b))
	for _, c := range b {
		if c >= 0x80 && c < 0xA0 {
			buf.WriteRune(cp1252[c-0x80])
			continue
		}
		buf.WriteRune(rune(c))
	}
	return buf.String()
}

// cleanWordText maps Word control characters to whitespace and drops
// field instructions, keeping field results
func cleanWordText(s string) string {
	var buf strings.Builder
	var fields []bool // per open field: still inside its instruction
	inInstruction := func() bool {
		for _, instr := range fields {
			if instr {
				return true
			}
		}
		return false
	}

	for _, r := range s {
		switch r {
		case 0x13: // field begin
			fields = append(fields, true)
			continue
		case 0x14: // field separator
			if len(fields) > 0 {
				fields[len(fields)-1] = false
			}
			continue
		case 0x15: // field end
			if len(fields) > 0 {
				fields = fields[:len(fields)-1]
			}
			continue
		}
		if inInstruction() {
			continue
		}
		switch r {
		case '\r', 0x0B, 0x0C:
			buf.WriteByte('\n')
		case 0x07:
			buf.WriteByte('\t')
		default:
			if r < 0x20 && r != '\t' && r != '\n' {
				continue
			}
			buf.WriteRune(r)
		}
	}
	return collapseBlankLines(buf.String())
}

// collapseBlankLines trims trailing spaces and squeezes runs of blank lines
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
