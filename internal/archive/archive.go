// Package archive writes the transcript of finished sessions as
// zstd-compressed JSON lines.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// Header is the first line of an archive file.
type Header struct {
	SessionID string         `json:"session_id"`
	Status    domain.Status  `json:"status"`
	Winner    domain.Faction `json:"winner,omitempty"`
	Round     int            `json:"round"`
	Players   []PlayerLine   `json:"players"`
	EndedAt   int64          `json:"ended_at"`

	// Unreachable counts failed deliveries per recipient.
	Unreachable map[string]int `json:"unreachable,omitempty"`
}

// PlayerLine summarises a player at the end of a session.
type PlayerLine struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Role  string        `json:"role"`
	Alive bool          `json:"alive"`
	Items []domain.Item `json:"items,omitempty"`
}

// EventLine is one journal event.
type EventLine struct {
	Seq     int64           `json:"seq"`
	Phase   domain.Phase    `json:"phase"`
	Round   int             `json:"round"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	At      int64           `json:"at"`
}

// Writer stores one file per session under baseDir, bucketed by day.
type Writer struct {
	baseDir string
}

// NewWriter creates a Writer rooted at baseDir.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// HeaderFor builds the archive header of a session. The caller holds the
// session lock.
func HeaderFor(s *domain.Session, endedAt time.Time) Header {
	h := Header{
		SessionID: s.ID,
		Status:    s.Status,
		Winner:    s.Winner,
		Round:     s.Round,
		EndedAt:   endedAt.Unix(),
	}
	for _, p := range s.Roster() {
		h.Players = append(h.Players, PlayerLine{
			ID:    p.ID,
			Name:  p.DisplayName,
			Role:  p.Role.String(),
			Alive: p.Alive,
			Items: p.Items,
		})
	}
	return h
}

func (w *Writer) pathFor(sessionID string, endedAt time.Time) string {
	day := endedAt.UTC().Format("2006-01-02")
	return filepath.Join(w.baseDir, day, fmt.Sprintf("%s-%d.jsonl.zst", sessionID, endedAt.Unix()))
}

// Write stores the header and events and returns the file path.
func (w *Writer) Write(h Header, events []domain.GameEvent) (string, error) {
	path := w.pathFor(h.SessionID, time.Unix(h.EndedAt, 0))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	if err := writeLine(bw, h); err != nil {
		enc.Close()
		return "", err
	}
	for _, e := range events {
		line := EventLine{
			Seq:     e.SeqNo,
			Phase:   e.Phase,
			Round:   e.Round,
			Type:    e.EventType,
			Payload: json.RawMessage(e.PayloadJSON),
			At:      e.CreatedAt,
		}
		if err := writeLine(bw, line); err != nil {
			enc.Close()
			return "", err
		}
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func writeLine(bw *bufio.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := bw.Write(b); err != nil {
		return err
	}
	return bw.WriteByte('\n')
}

// Read decodes an archive file.
func Read(path string) (Header, []EventLine, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return h, nil, err
		}
		return h, nil, fmt.Errorf("archive %s: missing header", path)
	}
	if err := json.Unmarshal(sc.Bytes(), &h); err != nil {
		return h, nil, fmt.Errorf("archive header: %w", err)
	}
	var events []EventLine
	for sc.Scan() {
		var e EventLine
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return h, nil, fmt.Errorf("archive event: %w", err)
		}
		events = append(events, e)
	}
	return h, events, sc.Err()
}
