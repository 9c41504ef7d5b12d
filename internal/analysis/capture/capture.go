// Package capture validates packet capture files before upload and produces
// a minimal offline summary of classic pcap files.
package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// Format identifies the container format of a capture file.
type Format string

const (
	FormatPcap   Format = "pcap"
	FormatPcapNS Format = "pcap-ns"
	FormatPcapNG Format = "pcapng"
)

const (
	globalHeaderLen = 24
	recordHeaderLen = 16
	minCaptureLen   = globalHeaderLen
)

var allowedExtensions = map[string]bool{".pcap": true, ".pcapng": true, ".cap": true}

// Hints shown next to validation failures.
const (
	HintEmpty     = "The file is empty. Re-export the capture from Wireshark or tcpdump."
	HintTooSmall  = "The file is too small to be a capture. Check that the export completed."
	HintMagic     = "The magic number does not match pcap or pcapng. Save the capture as .pcap or .pcapng and try again."
	HintExtension = "Only .pcap, .pcapng and .cap files are accepted."
	HintTooLarge  = "The capture exceeds the upload limit. Split it with editcap or filter it before uploading."
)

// ValidationError is returned when a capture file cannot be analyzed.
type ValidationError struct {
	Path   string
	Reason string
	Hint   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid capture %s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrInvalidInput }

// Info describes a validated capture file.
type Info struct {
	Path      string
	Size      int64
	Format    Format
	ByteOrder binary.ByteOrder
}

// DetectFormat inspects the first four bytes of a capture.
func DetectFormat(magic []byte) (Format, binary.ByteOrder, bool) {
	if len(magic) < 4 {
		return "", nil, false
	}
	switch {
	case magic[0] == 0xd4 && magic[1] == 0xc3 && magic[2] == 0xb2 && magic[3] == 0xa1:
		return FormatPcap, binary.LittleEndian, true
	case magic[0] == 0xa1 && magic[1] == 0xb2 && magic[2] == 0xc3 && magic[3] == 0xd4:
		return FormatPcap, binary.BigEndian, true
	case magic[0] == 0x4d && magic[1] == 0x3c && magic[2] == 0xb2 && magic[3] == 0xa1:
		return FormatPcapNS, binary.LittleEndian, true
	case magic[0] == 0xa1 && magic[1] == 0xb2 && magic[2] == 0x3c && magic[3] == 0x4d:
		return FormatPcapNS, binary.BigEndian, true
	case magic[0] == 0x0a && magic[1] == 0x0d && magic[2] == 0x0d && magic[3] == 0x0a:
		return FormatPcapNG, nil, true
	}
	return "", nil, false
}

// Validate checks extension, size and magic number of the file at path.
// maxBytes <= 0 disables the size limit.
func Validate(path string, maxBytes int64) (Info, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !allowedExtensions[ext] {
		return Info{}, &ValidationError{Path: path, Reason: fmt.Sprintf("unsupported extension %q", ext), Hint: HintExtension}
	}

	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("stat capture: %w", err)
	}
	info := Info{Path: path, Size: st.Size()}
	switch {
	case info.Size == 0:
		return info, &ValidationError{Path: path, Reason: "file is empty", Hint: HintEmpty}
	case info.Size < minCaptureLen:
		return info, &ValidationError{Path: path, Reason: fmt.Sprintf("file is only %d bytes", info.Size), Hint: HintTooSmall}
	case maxBytes > 0 && info.Size > maxBytes:
		return info, &ValidationError{Path: path, Reason: fmt.Sprintf("file is %d bytes, limit is %d", info.Size, maxBytes), Hint: HintTooLarge}
	}

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return info, fmt.Errorf("read magic number: %w", err)
	}
	format, order, ok := DetectFormat(magic)
	if !ok {
		return info, &ValidationError{Path: path, Reason: fmt.Sprintf("unknown magic number %x", magic), Hint: HintMagic}
	}
	info.Format = format
	info.ByteOrder = order
	return info, nil
}

// Summary is the offline description of a classic pcap file.
type Summary struct {
	Format      Format        `json:"format"`
	LinkType    uint32        `json:"link_type"`
	LinkName    string        `json:"link_name"`
	SnapLen     uint32        `json:"snap_len"`
	Packets     int           `json:"packets"`
	Bytes       int64         `json:"bytes"`
	FirstPacket time.Time     `json:"first_packet"`
	LastPacket  time.Time     `json:"last_packet"`
	Duration    time.Duration `json:"duration"`
	Truncated   bool          `json:"truncated"`
}

// ErrPcapNGSummary is returned by Summarize for pcapng files, which only the
// backend can decode.
var ErrPcapNGSummary = errors.New("offline summary supports classic pcap only")

var linkNames = map[uint32]string{
	0:   "NULL",
	1:   "Ethernet",
	101: "Raw IP",
	105: "IEEE 802.11",
	113: "Linux cooked",
	127: "802.11 radiotap",
	276: "Linux cooked v2",
}

// Summarize walks the record headers of a classic pcap stream. A short final
// record marks the summary as truncated rather than failing.
func Summarize(r io.Reader) (Summary, error) {
	br := bufio.NewReader(r)
	hdr := make([]byte, globalHeaderLen)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return Summary{}, &ValidationError{Path: "<stream>", Reason: "missing global header", Hint: HintTooSmall}
	}
	format, order, ok := DetectFormat(hdr[:4])
	if !ok {
		return Summary{}, &ValidationError{Path: "<stream>", Reason: fmt.Sprintf("unknown magic number %x", hdr[:4]), Hint: HintMagic}
	}
	if format == FormatPcapNG {
		return Summary{Format: format}, ErrPcapNGSummary
	}

	s := Summary{
		Format:   format,
		SnapLen:  order.Uint32(hdr[16:20]),
		LinkType: order.Uint32(hdr[20:24]),
	}
	s.LinkName = linkNames[s.LinkType]
	if s.LinkName == "" {
		s.LinkName = fmt.Sprintf("linktype %d", s.LinkType)
	}

	rec := make([]byte, recordHeaderLen)
	for {
		if _, err := io.ReadFull(br, rec); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				s.Truncated = true
			}
			break
		}
		sec := int64(order.Uint32(rec[0:4]))
		frac := int64(order.Uint32(rec[4:8]))
		inclLen := order.Uint32(rec[8:12])
		origLen := order.Uint32(rec[12:16])

		if format == FormatPcap {
			frac *= int64(time.Microsecond)
		}
		ts := time.Unix(sec, frac).UTC()
		if s.Packets == 0 {
			s.FirstPacket = ts
		}
		s.LastPacket = ts
		s.Packets++
		s.Bytes += int64(origLen)

		if _, err := br.Discard(int(inclLen)); err != nil {
			s.Truncated = true
			break
		}
	}
	if s.Packets > 0 {
		s.Duration = s.LastPacket.Sub(s.FirstPacket)
	}
	return s, nil
}

// SummarizeFile opens path and summarizes it.
func SummarizeFile(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()
	return Summarize(f)
}
