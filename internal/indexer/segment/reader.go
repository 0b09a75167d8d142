package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/tokenizer"
)

// Snapshot is a decoded snapshot file.
type Snapshot struct {
	Header      Header
	Meta        index.Meta
	Fingerprint string
	Tokenizer   tokenizer.Options
	Documents   []index.Document
	Entries     []index.TermEntry
}

// Read loads and verifies the snapshot at path.
func Read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("%w: file is %d bytes", ErrCorrupt, len(data))
	}
	header := decodeHeader(data[:HeaderSize])
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header.Version)
	}

	bodyEnd := len(data) - FooterSize
	footer := data[bodyEnd:]
	if want, got := binary.LittleEndian.Uint32(footer[4:8]), crc32.ChecksumIEEE(data[:HeaderSize]); want != got {
		return nil, fmt.Errorf("%w: header checksum mismatch", ErrCorrupt)
	}
	if want, got := binary.LittleEndian.Uint32(footer[0:4]), crc32.ChecksumIEEE(data[HeaderSize:bodyEnd]); want != got {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	if !within(header.PostOffset, header.PostSize, bodyEnd) ||
		!within(header.DictOffset, header.DictSize, bodyEnd) ||
		!within(header.DocsOffset, header.DocsSize, bodyEnd) {
		return nil, fmt.Errorf("%w: section offsets out of range", ErrCorrupt)
	}

	var dict []DictEntry
	if err := json.Unmarshal(data[header.DictOffset:header.DictOffset+header.DictSize], &dict); err != nil {
		return nil, fmt.Errorf("%w: parsing dictionary: %v", ErrCorrupt, err)
	}
	var docs docBlock
	if err := json.Unmarshal(data[header.DocsOffset:header.DocsOffset+header.DocsSize], &docs); err != nil {
		return nil, fmt.Errorf("%w: parsing documents: %v", ErrCorrupt, err)
	}
	if uint32(len(dict)) != header.TermCount || uint32(len(docs.Documents)) != header.DocCount {
		return nil, fmt.Errorf("%w: header counts do not match contents", ErrCorrupt)
	}

	postings := data[header.PostOffset : header.PostOffset+header.PostSize]
	entries := make([]index.TermEntry, 0, len(dict))
	for _, d := range dict {
		if !within(d.PostOffset, int64(d.PostLen), len(postings)) {
			return nil, fmt.Errorf("%w: postings for %q out of range", ErrCorrupt, d.Term)
		}
		var list index.PostingList
		if err := json.Unmarshal(postings[d.PostOffset:d.PostOffset+int64(d.PostLen)], &list); err != nil {
			return nil, fmt.Errorf("%w: parsing postings for %q: %v", ErrCorrupt, d.Term, err)
		}
		entries = append(entries, index.TermEntry{Term: d.Term, Frequency: d.Frequency, Postings: list})
	}

	return &Snapshot{
		Header:      header,
		Meta:        index.Meta{BuildID: docs.BuildID, BuiltAt: docs.BuiltAt, Source: docs.Source},
		Fingerprint: docs.Fingerprint,
		Tokenizer:   docs.Tokenizer,
		Documents:   docs.Documents,
		Entries:     entries,
	}, nil
}

// Index rebuilds the in-memory index from the snapshot.
func (s *Snapshot) Index() (*index.Index, error) {
	return index.Restore(s.Meta, tokenizer.New(s.Tokenizer), s.Documents, s.Entries)
}

// within reports whether [offset, offset+size) lies inside [0, limit)
// without computing offset+size, which can overflow.
func within(offset, size int64, limit int) bool {
	return offset >= 0 && size >= 0 && offset <= int64(limit) && size <= int64(limit)-offset
}
