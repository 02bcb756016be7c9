package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aether-games/echoes-engine/internal/domain"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	s := domain.NewSession("g1", time.Unix(0, 0))
	s.AddPlayer("p1", "Ana")
	s.AddPlayer("p2", "Bo")
	s.MarkStarted()
	s.Players["p1"].Role = domain.RoleShade
	s.Players["p2"].Role = domain.RoleOracle
	s.Players["p2"].Items = []domain.Item{domain.ItemRelic}
	s.KillPlayer("p2")
	s.Round = 2
	s.End(domain.FactionShadow)

	ended := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	h := HeaderFor(s, ended)
	events := []domain.GameEvent{
		{SeqNo: 1, Phase: domain.PhaseNone, EventType: "lobby_opened", PayloadJSON: "{}", CreatedAt: 1},
		{SeqNo: 2, Phase: domain.PhaseNight, EventType: "game_ended", PayloadJSON: `{"winner":"shadow"}`, CreatedAt: 2},
	}

	w := NewWriter(t.TempDir())
	path, err := w.Write(h, events)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(filepath.Dir(path)) != "2026-03-04" || !strings.HasPrefix(filepath.Base(path), "g1-") {
		t.Errorf("path = %s", path)
	}

	gotH, lines, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if gotH.Winner != domain.FactionShadow || gotH.Status != domain.StatusEnded || gotH.Round != 2 {
		t.Errorf("header = %+v", gotH)
	}
	if len(gotH.Players) != 2 || gotH.Players[0].Role != "Shade" || gotH.Players[1].Alive {
		t.Errorf("players = %+v", gotH.Players)
	}
	if len(gotH.Players[1].Items) != 1 {
		t.Errorf("items = %v", gotH.Players[1].Items)
	}
	if len(lines) != 2 || lines[1].Type != "game_ended" || string(lines[1].Payload) != `{"winner":"shadow"}` {
		t.Errorf("lines = %+v", lines)
	}
}

func TestRead_NotArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.jsonl.zst")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Read(path); err == nil {
		t.Error("Read of junk succeeded")
	}
}
