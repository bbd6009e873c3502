package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const objectDoc = `{
  "characters": [
    {"id": " tech_01 ", "name": "Mira", "description": "Barista", "avatar": "assets/avatars/tech_01.mp4",
     "startingStats": {"confidence": 25, "vocabulary": 25, "fluency": 10},
     "preferredChunks": ["could I get", "how much"]},
    {"id": 7, "avatarKey": "chef"}
  ],
  "quests": {
    "q_order": {"title": "Order a coffee", "requiredChunks": ["could I get"], "reward": {"confidence": 15, "coins": 50, "xp": 35}},
    "q_price": {"id": "q_price", "title": "Ask the price"}
  }
}`

func TestParse_ObjectDocument(t *testing.T) {
	cat, err := Parse(strings.NewReader(objectDoc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	chars := cat.Characters()
	if len(chars) != 2 {
		t.Fatalf("characters = %d, want 2", len(chars))
	}
	mira, ok := cat.Character("tech_01")
	if !ok {
		t.Fatal("expected trimmed id tech_01")
	}
	if mira.AvatarKey != "tech_01" {
		t.Errorf("avatar key = %q, want tech_01", mira.AvatarKey)
	}
	if mira.StartingStats.Confidence != 25 || mira.StartingStats.Fluency != 10 {
		t.Errorf("starting stats = %+v", mira.StartingStats)
	}

	chef, ok := cat.Character("7")
	if !ok {
		t.Fatal("expected numeric id normalized to \"7\"")
	}
	if chef.Name != "Unnamed" || chef.AvatarKey != "chef" {
		t.Errorf("chef = %+v", chef)
	}
	if chef.PreferredChunks == nil {
		t.Error("expected non-nil chunk list")
	}

	quests := cat.Quests()
	if len(quests) != 2 || quests[0].ID != "q_order" || quests[1].ID != "q_price" {
		t.Fatalf("quests = %+v", quests)
	}
	order, _ := cat.Quest("q_order")
	if order.Reward.Coins == nil || *order.Reward.Coins != 50 {
		t.Errorf("reward = %+v", order.Reward)
	}
	if order.Reward.Vocabulary != nil {
		t.Error("absent reward field must stay nil")
	}
}

func TestParse_BareArray(t *testing.T) {
	cat, err := Parse(strings.NewReader(`[{"id":"a","name":"A"},{"id":"b"}]`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(cat.Characters()) != 2 {
		t.Fatalf("characters = %d", len(cat.Characters()))
	}
	if len(cat.Quests()) != 0 {
		t.Fatalf("quests = %d, want 0", len(cat.Quests()))
	}
	b, _ := cat.Character("b")
	if b.AvatarKey != "b" {
		t.Errorf("avatar key = %q, want id fallback", b.AvatarKey)
	}
}

func TestParse_QuestArray(t *testing.T) {
	cat, err := Parse(strings.NewReader(`{"characters":[],"quests":[{"id":"q2"},{"id":"q1"}]}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	quests := cat.Quests()
	if len(quests) != 2 || quests[0].ID != "q2" {
		t.Fatalf("quest order not preserved: %+v", quests)
	}
}

func TestParse_ClampsStartingStats(t *testing.T) {
	cat, err := Parse(strings.NewReader(`[{"id":"a","startingStats":{"confidence":140,"vocabulary":-3}}]`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	a, _ := cat.Character("a")
	if a.StartingStats.Confidence != 100 || a.StartingStats.Vocabulary != 0 {
		t.Fatalf("stats = %+v", a.StartingStats)
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":              ``,
		"scalar":             `42`,
		"no characters":      `{"quests": {}}`,
		"characters object":  `{"characters": {"a": {}}}`,
		"missing id":         `[{"name": "x"}]`,
		"duplicate id":       `[{"id": "a"}, {"id": "a"}]`,
		"duplicate quest":    `{"characters": [], "quests": [{"id": "q"}, {"id": "q"}]}`,
		"quest without id":   `{"characters": [], "quests": [{"title": "t"}]}`,
		"quests scalar":      `{"characters": [], "quests": 3}`,
		"bool id":            `[{"id": true}]`,
		"broken json object": `{"characters": [`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(objectDoc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cat, err := Load(context.Background(), nil, path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cat.Characters()) != 2 {
		t.Fatalf("characters = %d", len(cat.Characters()))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(context.Background(), nil, filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cache-Control") != "no-store" {
			t.Errorf("cache-control = %q", r.Header.Get("Cache-Control"))
		}
		if r.URL.Path == "/missing.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(objectDoc))
	}))
	defer srv.Close()

	cat, err := Load(context.Background(), srv.Client(), srv.URL+"/data.json")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := cat.Quest("q_order"); !ok {
		t.Fatal("expected quest q_order")
	}

	_, err = Load(context.Background(), srv.Client(), srv.URL+"/missing.json")
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Fatalf("expected HTTP 404 error, got %v", err)
	}
}
